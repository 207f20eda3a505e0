package internal

import (
	"fmt"
)

// chainHandoff is the chain function of a loop-driven element's sink port.
// It leaves item in the slot of the link and runs the consumer until the
// slot is empty again. An item still pending from an earlier push is
// drained first, never overwritten. Once the consumer is done for the
// quantum the item stays pending until the next one.
func (s *Scheduler) chainHandoff(p *Port, item any) error {
	src := p.Peer()
	consumer := p.Owner()
	co := consumer.priv.cothread

	if src == nil || src.slot == nil || co == nil || s.ctx == nil {
		panic(fmt.Errorf("%w: handoff into %s without a cothread", ErrTopologyInvariant, p))
	}

	if s.ctx.IsCurrent(co) {
		err := fmt.Errorf("%w: %s hands off to its own cothread", ErrDeadlock, p)
		s.Error(consumer, err)
		return err
	}

	if err := s.drain(src, consumer); err != nil {
		return err
	}
	if src.slot == nil {
		return fmt.Errorf("%w: %s", ErrNotLinked, p)
	}
	if src.slot.full {
		err := fmt.Errorf("%w: %s still holds an item", ErrDeadlock, src)
		s.Error(consumer, err)
		return err
	}

	src.slot.put(item)
	s.incr(MetricHandoffCount, 1, LabelPort.M(p.String()))

	return s.drain(src, consumer)
}

func (s *Scheduler) drain(src *Port, consumer *Element) error {
	for i := 0; src.slot != nil && src.slot.full; i++ {
		if s.state == StateError || !consumer.priv.enabled {
			return fmt.Errorf("%w: %s", ErrInterrupted, consumer)
		}
		if consumer.priv.yielded {
			return nil
		}

		if i >= s.cfg.maxRecursion {
			err := fmt.Errorf("%w: %s not drained after %d switches", ErrDeadlock, src, i)
			s.Error(consumer, err)
			return err
		}

		s.ctx.SwitchTo(consumer.priv.cothread)
	}

	return nil
}

// getHandoff takes the pending item of the link behind p, handing control
// back to the driving context while there is none. It must run inside the
// cothread of p's owner.
func (s *Scheduler) getHandoff(p *Port) (any, error) {
	e := p.Owner()
	co := e.priv.cothread

	if co == nil || s.ctx == nil {
		panic(fmt.Errorf("%w: handoff from %s without a cothread", ErrTopologyInvariant, p))
	}
	if !s.ctx.IsCurrent(co) {
		return nil, fmt.Errorf("%w: %s pulled outside of its cothread", ErrBusy, p)
	}

	for {
		src := p.Peer()
		if src == nil || src.slot == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotLinked, p)
		}
		if src.slot.full {
			return src.slot.take(), nil
		}

		if e.priv.interrupted {
			e.priv.interrupted = false
			return nil, fmt.Errorf("%w: %s", ErrInterrupted, e)
		}
		if e.priv.eos {
			e.priv.eos = false
			return nil, fmt.Errorf("%w: %s", ErrEOS, p)
		}

		e.priv.waiting = p
		s.logger.Debug("waiting for handoff", LabelPort.L(p.String()))
		s.ctx.SwitchTo(s.ctx.Main())
		e.priv.waiting = nil

		if s.state == StateError || !e.priv.enabled {
			return nil, fmt.Errorf("%w: %s", ErrInterrupted, e)
		}
	}
}
