package internal

import (
	"iter"
)

// Behavior is the dispatch table of an element. An element with a Loop is
// loop-driven and gets a cothread once enabled, others are reactive.
type Behavior struct {
	Loop  func(e *Element)
	Chain func(e *Element, p *Port, item any) error
	Get   func(e *Element, p *Port) (any, error)
}

type Element struct {
	id    ElementID
	name  string
	arena *Arena
	ports []PortID

	behavior  Behavior
	decoupled bool

	// nil until the element is added to a scheduler
	sched *Scheduler
	priv  schedPrivate
}

// scheduler-private bookkeeping, reset whenever the element changes owner
type schedPrivate struct {
	chain    *Chain
	cothread *Cothread

	enabled     bool
	stopping    bool
	interrupted bool
	finished    bool
	eos         bool

	// the loop went back to the driver after seeing stopping, it gets no
	// more switches until the next quantum
	yielded bool

	// the sink port the element is blocked on inside a handoff
	waiting *Port

	// last activation failure
	err error
}

func (e *Element) ID() ElementID { return e.id }
func (e *Element) Name() string { return e.name }
func (e *Element) Arena() *Arena { return e.arena }
func (e *Element) Scheduler() *Scheduler { return e.sched }
func (e *Element) String() string { return e.name }

func (e *Element) IsLoopDriven() bool { return e.behavior.Loop != nil }
func (e *Element) IsDecoupled() bool { return e.decoupled }
func (e *Element) SetDecoupled(v bool) { e.decoupled = v }

func (e *Element) Enabled() bool { return e.priv.enabled }
func (e *Element) Finished() bool { return e.priv.finished }
func (e *Element) Err() error { return e.priv.err }

func (e *Element) AddPort(name string, dir Direction) *Port {
	return e.arena.addPort(e, name, dir)
}

func (e *Element) Ports() iter.Seq[*Port] {
	return func(yield func(*Port) bool) {
		for _, id := range e.ports {
			if !yield(e.arena.Port(id)) {
				return
			}
		}
	}
}

func (e *Element) Port(name string) *Port {
	for p := range e.Ports() {
		if p.name == name {
			return p
		}
	}
	return nil
}

func (e *Element) SinkCount() int {
	n := 0
	for p := range e.Ports() {
		if p.dir == DirSink {
			n++
		}
	}
	return n
}

// Peers yields the elements directly linked to e.
func (e *Element) Peers() iter.Seq[*Element] {
	return func(yield func(*Element) bool) {
		for p := range e.Ports() {
			peer := p.Peer()
			if peer == nil {
				continue
			}
			if !yield(peer.Owner()) {
				return
			}
		}
	}
}

// SetBehavior swaps the dispatch table of the element. An owned element is
// regrouped by its scheduler since it may become or stop being loop-driven.
func (e *Element) SetBehavior(b Behavior) error {
	if e.sched == nil {
		e.behavior = b
		return nil
	}
	return e.sched.SchedulingChange(e, b)
}

// Error reports a runtime failure of the element to its scheduler.
func (e *Element) Error(err error) {
	if e.sched != nil {
		e.sched.Error(e, err)
	}
}

// Interrupt asks the scheduler to hand control back to the driving context.
func (e *Element) Interrupt() bool {
	if e.sched == nil {
		return true
	}
	return e.sched.Interrupt(e)
}

func (e *Element) Yield() bool {
	if e.sched == nil {
		return true
	}
	return e.sched.Yield(e)
}

// Finish marks the element as having reached the end of its stream.
func (e *Element) Finish() {
	if e.sched != nil {
		e.sched.Finish(e)
	}
}
