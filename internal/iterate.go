package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Iterate runs one scheduling quantum: as many passes over the chains as
// configured. It returns StateStopped when a pass scheduled nothing,
// StateError when a chain or an element failed and StateRunning otherwise.
func (s *Scheduler) Iterate() State {
	if s.state == StateError {
		return StateError
	}

	s.ensureContext()
	if s.ctx.Running() != s.ctx.Main() {
		s.logger.Error("iterate called from inside a cothread")
		return s.state
	}

	start := time.Now()
	defer s.measureSince(MetricIterateDuration, start)
	s.incr(MetricIterateCount, 1)

	state := StateRunning
	for pass := 0; s.cfg.iterations < 0 || pass < s.cfg.iterations; pass++ {
		units, err := s.pass()
		if err != nil {
			return s.fail(err)
		}
		if s.state == StateError {
			return StateError
		}

		if units == 0 {
			state = StateStopped
			break
		}
	}

	s.setState(state)
	return state
}

// pass visits every chain once and returns how many units it scheduled.
func (s *Scheduler) pass() (int, error) {
	units := 0
	defer func() { s.incr(MetricScheduledUnits, float32(units)) }()

	for _, c := range s.Chains() {
		if c.destroyed || len(c.active) == 0 {
			continue
		}
		c.needsReschedule = false

		n, err := s.scheduleChain(c)
		units += n
		if err != nil {
			return units, err
		}
		if s.state == StateError {
			return units, nil
		}
	}

	return units, nil
}

func (s *Scheduler) scheduleChain(c *Chain) (int, error) {
	switch {
	case c.cothreaded > 1:
		return 0, fmt.Errorf("%w: chain %s has %d", ErrTopologyConfiguration, c.id, c.cothreaded)

	case c.cothreaded == 1:
		return s.scheduleLoop(c), nil

	default:
		if c.entry == NoElement {
			return 0, fmt.Errorf("%w: chain %s", ErrEntryMissing, c.id)
		}
		return s.scheduleEntry(c), nil
	}
}

// scheduleLoop switches once into the loop-driven element of c. While that
// element waits on an empty handoff slot, the chain entry is pumped to fill
// it.
func (s *Scheduler) scheduleLoop(c *Chain) int {
	e := c.loopElement()
	if e == nil || !e.priv.enabled {
		return 0
	}

	e.priv.yielded = false
	e.priv.stopping = true
	s.ctx.SwitchTo(e.priv.cothread)

	for i := 0; i < s.cfg.maxRecursion && e.priv.waiting != nil; i++ {
		if s.state == StateError || !e.priv.enabled || e.priv.yielded || c.destroyed {
			break
		}

		entry := c.element(c.entry)
		if entry == nil {
			break
		}

		if !entry.priv.enabled {
			if !entry.priv.finished {
				break
			}

			// upstream is exhausted, let the waiting element know
			e.priv.eos = true
			s.ctx.SwitchTo(e.priv.cothread)
			continue
		}

		if s.scheduleEntry(c) == 0 && !entry.priv.finished {
			break
		}
	}

	return 1
}

// scheduleEntry pulls one item from each src port of the chain entry and
// pushes it downstream.
func (s *Scheduler) scheduleEntry(c *Chain) int {
	entry := c.element(c.entry)
	if entry == nil || !entry.priv.enabled {
		return 0
	}

	units := 0
	for p := range entry.Ports() {
		if p.dir != DirSrc || p.getFn == nil || p.peer == NoPort {
			continue
		}

		item, err := p.getFn(p)
		if s.state == StateError {
			return units
		}
		if errors.Is(err, ErrEOS) {
			break
		}
		if err != nil || item == nil {
			continue
		}

		if err := p.Push(item); err != nil {
			if s.state == StateError {
				return units
			}
			s.logger.Debug("push from entry dropped", LabelPort.L(p.String()), LabelError.L(err))
		} else {
			units++
		}

		if c.needsReschedule || c.destroyed {
			s.logger.Debug("chain changed during pass", LabelChain.L(c.id), slog.Int("units", units))
			break
		}
	}

	return units
}
