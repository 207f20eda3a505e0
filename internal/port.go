package internal

import (
	"fmt"
)

type Direction int

const (
	DirSrc Direction = iota
	DirSink
)

func (d Direction) String() string {
	switch d {
	case DirSrc:
		return "src"
	case DirSink:
		return "sink"
	default:
		return "unknown"
	}
}

type Port struct {
	id    PortID
	name  string
	arena *Arena
	owner ElementID
	dir   Direction
	peer  PortID

	// pending item of a cothread-linked src port
	slot *handoffSlot

	getFn   func(p *Port) (any, error)
	chainFn func(p *Port, item any) error
}

type handoffSlot struct {
	item any
	full bool
}

func (s *handoffSlot) put(item any) {
	s.item = item
	s.full = true
}

func (s *handoffSlot) take() any {
	item := s.item
	s.item = nil
	s.full = false
	return item
}

func (p *Port) ID() PortID { return p.id }
func (p *Port) Name() string { return p.name }
func (p *Port) Direction() Direction { return p.dir }
func (p *Port) Owner() *Element { return p.arena.Element(p.owner) }

func (p *Port) String() string {
	return fmt.Sprintf("%s.%s", p.Owner().name, p.name)
}

func (p *Port) Peer() *Port {
	if p.peer == NoPort {
		return nil
	}
	return p.arena.Port(p.peer)
}

// Pending reports whether the handoff slot of the link holds an item.
func (p *Port) Pending() bool {
	src := p
	if p.dir == DirSink {
		src = p.Peer()
	}
	return src != nil && src.slot != nil && src.slot.full
}

// Push sends item through a src port to the chain function of its peer.
func (p *Port) Push(item any) error {
	if p.dir != DirSrc {
		return fmt.Errorf("%w: push on %s", ErrPortDirection, p)
	}

	peer := p.Peer()
	if peer == nil {
		return fmt.Errorf("%w: %s", ErrNotLinked, p)
	}
	if peer.chainFn == nil {
		return fmt.Errorf("%w: %s", ErrPortInactive, peer)
	}

	return peer.chainFn(peer, item)
}

// Pull takes one item from the peer of a sink port, either through the
// handoff slot of the link or from the peer's get function. Both ends must
// belong to the same scheduler.
func (p *Port) Pull() (any, error) {
	if p.dir != DirSink {
		return nil, fmt.Errorf("%w: pull on %s", ErrPortDirection, p)
	}

	peer := p.Peer()
	if peer == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotLinked, p)
	}

	owner := p.Owner()
	if owner.sched == nil || peer.Owner().sched != owner.sched {
		return nil, fmt.Errorf("%w: %s is not scheduled with %s", ErrPortInactive, peer, p)
	}

	if peer.Owner().behavior.Get != nil {
		if peer.getFn == nil {
			return nil, fmt.Errorf("%w: %s", ErrPortInactive, peer)
		}
		return peer.getFn(peer)
	}

	if peer.slot == nil {
		return nil, fmt.Errorf("%w: %s", ErrPortInactive, peer)
	}

	return owner.sched.getHandoff(p)
}
