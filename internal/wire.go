package internal

import (
	"errors"
	"fmt"
)

// wire installs the port functions of an element being enabled. A
// loop-driven element gets its cothread here. Handoffs are only wired to
// peers of the same scheduler, cothreads never cross schedulers.
func (s *Scheduler) wire(e *Element) error {
	if e.IsLoopDriven() && e.priv.cothread == nil {
		s.ensureContext()

		co, err := s.ctx.Create(e.id)
		if err != nil {
			return err
		}
		s.ctx.Bind(co, s.trampoline(e))
		e.priv.cothread = co

		s.gauge(MetricCothreads, float32(s.ctx.Count()))
	}

	for p := range e.Ports() {
		switch p.dir {
		case DirSink:
			if e.IsLoopDriven() {
				peer := p.Peer()
				if peer == nil || peer.Owner().sched != s {
					continue
				}

				p.chainFn = s.chainHandoff
				if peer.slot == nil {
					peer.slot = &handoffSlot{}
				}
			} else if e.behavior.Chain != nil {
				p.chainFn = s.reactiveChain(e)
			}

		case DirSrc:
			if e.behavior.Get != nil {
				p.getFn = s.reactiveGet(e)
			}
		}
	}

	return nil
}

func (s *Scheduler) unwire(e *Element) {
	for p := range e.Ports() {
		p.chainFn = nil
		p.getFn = nil
	}
}

// rewire refreshes the port functions of an enabled element after its
// links changed.
func rewire(e *Element) {
	if e.sched == nil || !e.priv.enabled {
		return
	}

	e.sched.unwire(e)
	if err := e.sched.wire(e); err != nil {
		e.sched.logger.Warn("could not rewire element", LabelElement.L(e.name), LabelError.L(err))
	}
}

func (s *Scheduler) clearSlots(e *Element) {
	for p := range e.Ports() {
		src := p
		if p.dir == DirSink {
			src = p.Peer()
		}
		if src != nil {
			src.slot = nil
		}
	}
}

// trampoline runs the loop of e once per switch into its cothread and
// parks it again when asked to stop.
func (s *Scheduler) trampoline(e *Element) func() {
	return func() {
		for {
			s.invoke(e, func() { e.behavior.Loop(e) })

			if e.priv.stopping || !e.priv.enabled {
				e.priv.stopping = false
				e.priv.yielded = true
				s.ctx.SwitchTo(s.ctx.Main())
			}
		}
	}
}

func (s *Scheduler) reactiveChain(e *Element) func(p *Port, item any) error {
	return func(p *Port, item any) (err error) {
		s.invoke(e, func() { err = e.behavior.Chain(e, p, item) })
		return s.check(e, err)
	}
}

func (s *Scheduler) reactiveGet(e *Element) func(p *Port) (any, error) {
	return func(p *Port) (item any, err error) {
		s.invoke(e, func() { item, err = e.behavior.Get(e, p) })
		if err = s.check(e, err); err != nil {
			return nil, err
		}
		return item, nil
	}
}

// check sorts out an error returned by an element callback. Errors made by
// the scheduler itself pass through, end of stream finishes the element and
// anything else is a runtime error of e.
func (s *Scheduler) check(e *Element, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrEOS):
		s.Finish(e)
		return err
	case s.state == StateError,
		errors.Is(err, ErrInterrupted),
		errors.Is(err, ErrPortInactive),
		errors.Is(err, ErrNotLinked),
		errors.Is(err, ErrDeadlock):
		return err
	default:
		s.Error(e, err)
		return err
	}
}

// invoke runs an element callback, turning a panic into an error of e.
func (s *Scheduler) invoke(e *Element, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok && errors.Is(err, ErrTopologyInvariant) {
				panic(r)
			}
			s.Error(e, fmt.Errorf("%w: %v", ErrElementPanic, r))
		}
	}()

	s.ensureContext()
	s.ctx.Running().tracker.RunWithElement(e, fn)
}
