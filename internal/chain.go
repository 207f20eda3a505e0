package internal

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"
)

// Chain is a maximal group of linked elements owned by the same scheduler.
// It is the unit of work of a scheduling pass.
type Chain struct {
	id    uuid.UUID
	sched *Scheduler

	active   map[ElementID]struct{}
	disabled map[ElementID]struct{}

	// loop-driven members, enabled or not
	cothreaded int

	entry ElementID

	// set whenever membership changes, a pass stops pushing into a chain
	// that changed under it
	needsReschedule bool
	destroyed       bool
}

func (s *Scheduler) newChain() *Chain {
	c := &Chain{
		id:       uuid.New(),
		sched:    s,
		active:   make(map[ElementID]struct{}),
		disabled: make(map[ElementID]struct{}),
		entry:    NoElement,
	}
	s.chains = append(s.chains, c)

	s.incr(MetricChainCreatedCount, 1)
	s.gauge(MetricChains, float32(len(s.chains)))
	s.logger.Debug("chain created", LabelChain.L(c.id))

	return c
}

func (s *Scheduler) destroyChain(c *Chain) {
	if c.destroyed {
		return
	}
	if c.Len() != 0 {
		panic(fmt.Errorf("%w: destroying chain %s with %d members", ErrTopologyInvariant, c.id, c.Len()))
	}

	c.destroyed = true
	c.needsReschedule = true
	c.entry = NoElement
	s.chains = slices.DeleteFunc(s.chains, func(other *Chain) bool { return other == c })

	s.incr(MetricChainDestroyedCount, 1)
	s.gauge(MetricChains, float32(len(s.chains)))
	s.logger.Debug("chain destroyed", LabelChain.L(c.id))
}

func (c *Chain) ID() uuid.UUID { return c.id }
func (c *Chain) Cothreaded() int { return c.cothreaded }
func (c *Chain) Entry() ElementID { return c.entry }
func (c *Chain) Len() int { return len(c.active) + len(c.disabled) }
func (c *Chain) Destroyed() bool { return c.destroyed }
func (c *Chain) NeedsReschedule() bool { return c.needsReschedule }

func (c *Chain) Active() []ElementID {
	return slices.Sorted(maps.Keys(c.active))
}

func (c *Chain) Disabled() []ElementID {
	return slices.Sorted(maps.Keys(c.disabled))
}

func (c *Chain) Members() []ElementID {
	ids := append(c.Active(), c.Disabled()...)
	slices.Sort(ids)
	return ids
}

func (c *Chain) Has(id ElementID) bool {
	_, active := c.active[id]
	_, disabled := c.disabled[id]
	return active || disabled
}

func (c *Chain) element(id ElementID) *Element {
	return c.sched.arena.Element(id)
}

// the loop-driven member, nil when there is none
func (c *Chain) loopElement() *Element {
	for _, id := range c.Members() {
		if e := c.element(id); e.IsLoopDriven() {
			return e
		}
	}
	return nil
}

func (c *Chain) add(e *Element) {
	if e.priv.chain == c {
		return
	}

	e.priv.chain = c
	if e.priv.enabled {
		c.active[e.id] = struct{}{}
	} else {
		c.disabled[e.id] = struct{}{}
	}
	if e.IsLoopDriven() {
		c.cothreaded++
	}

	c.needsReschedule = true
	c.updateEntry()
}

func (c *Chain) remove(e *Element) {
	if e.priv.chain != c {
		return
	}

	delete(c.active, e.id)
	delete(c.disabled, e.id)
	if e.IsLoopDriven() {
		c.cothreaded--
	}
	e.priv.chain = nil

	c.needsReschedule = true
	c.updateEntry()

	if c.Len() == 0 {
		c.sched.destroyChain(c)
	}
}

func (c *Chain) enable(e *Element) error {
	if err := c.sched.wire(e); err != nil {
		return err
	}

	delete(c.disabled, e.id)
	c.active[e.id] = struct{}{}
	e.priv.enabled = true

	c.updateEntry()
	return nil
}

func (c *Chain) disable(e *Element) {
	delete(c.active, e.id)
	c.disabled[e.id] = struct{}{}
	e.priv.enabled = false

	c.sched.unwire(e)
	c.updateEntry()
}

// The entry is a reactive member with no sink port, or a decoupled one.
// Enabled candidates win over disabled ones, sourceless ones over decoupled
// ones, then the lowest ID.
func (c *Chain) updateEntry() {
	best, bestRank := NoElement, 4

	for _, id := range c.Members() {
		e := c.element(id)
		if e.IsLoopDriven() {
			continue
		}

		sourceless := e.SinkCount() == 0
		if !sourceless && !e.decoupled {
			continue
		}

		rank := 0
		if !e.priv.enabled {
			rank += 2
		}
		if !sourceless {
			rank++
		}

		if rank < bestRank {
			best, bestRank = id, rank
		}
	}

	c.entry = best
}

// recursiveAdd adds seed and every element reachable from it through links
// to elements of the same scheduler that are not chained yet.
func (s *Scheduler) recursiveAdd(c *Chain, seed *Element) {
	work := []*Element{seed}

	for len(work) > 0 {
		e := work[len(work)-1]
		work = work[:len(work)-1]

		if e.sched != s || e.priv.chain != nil {
			continue
		}
		c.add(e)

		for peer := range e.Peers() {
			if peer.sched == s && peer.priv.chain == nil {
				work = append(work, peer)
			}
		}
	}
}

// mergeChains moves every member of b into a and destroys b.
func (s *Scheduler) mergeChains(a, b *Chain) *Chain {
	if a == b {
		return a
	}

	for _, id := range b.Members() {
		e := b.element(id)
		e.priv.chain = a
		if e.priv.enabled {
			a.active[id] = struct{}{}
		} else {
			a.disabled[id] = struct{}{}
		}
	}
	a.cothreaded += b.cothreaded

	clear(b.active)
	clear(b.disabled)
	b.cothreaded = 0
	s.destroyChain(b)

	a.needsReschedule = true
	a.updateEntry()

	s.incr(MetricChainMergedCount, 1)
	s.logger.Debug("chains merged", LabelChain.L(a.id), slog.Any("merged", b.id))

	return a
}

// rebuild tears c down and regroups its former members from scratch,
// starting with seeds. It returns the resulting chains.
func (s *Scheduler) rebuild(c *Chain, seeds ...*Element) []*Chain {
	members := make([]*Element, 0, c.Len()+len(seeds))
	members = append(members, seeds...)

	for _, id := range c.Members() {
		e := c.element(id)
		e.priv.chain = nil
		members = append(members, e)
	}

	clear(c.active)
	clear(c.disabled)
	c.cothreaded = 0
	s.destroyChain(c)

	var rebuilt []*Chain
	for _, e := range members {
		if e.sched != s || e.priv.chain != nil {
			continue
		}

		nc := s.newChain()
		s.recursiveAdd(nc, e)
		rebuilt = append(rebuilt, nc)
	}

	s.incr(MetricChainRebuiltCount, 1)
	s.logger.Debug("chain rebuilt", LabelChain.L(c.id), slog.Int("chains", len(rebuilt)))

	return rebuilt
}

func (s *Scheduler) disableChain(c *Chain) {
	for _, id := range c.Active() {
		c.disable(c.element(id))
	}
}
