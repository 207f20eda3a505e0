package internal

import (
	"fmt"
	"sync"
)

type ElementID int
type PortID int

const (
	NoElement ElementID = -1
	NoPort    PortID    = -1
)

// Arena owns every element and port of a graph. Elements, ports and chains
// refer to each other by ID only.
type Arena struct {
	mu sync.RWMutex

	elements []*Element
	ports    []*Port
}

func NewArena() *Arena {
	return &Arena{
		elements: make([]*Element, 0),
		ports:    make([]*Port, 0),
	}
}

func (a *Arena) NewElement(name string, behavior Behavior) *Element {
	a.mu.Lock()
	defer a.mu.Unlock()

	e := &Element{
		id:       ElementID(len(a.elements)),
		name:     name,
		arena:    a,
		ports:    make([]PortID, 0),
		behavior: behavior,
	}
	a.elements = append(a.elements, e)

	return e
}

func (a *Arena) addPort(e *Element, name string, dir Direction) *Port {
	a.mu.Lock()
	defer a.mu.Unlock()

	p := &Port{
		id:    PortID(len(a.ports)),
		name:  name,
		arena: a,
		owner: e.id,
		dir:   dir,
		peer:  NoPort,
	}
	a.ports = append(a.ports, p)
	e.ports = append(e.ports, p.id)

	return p
}

func (a *Arena) Element(id ElementID) *Element {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if id < 0 || int(id) >= len(a.elements) {
		return nil
	}
	return a.elements[id]
}

func (a *Arena) Port(id PortID) *Port {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if id < 0 || int(id) >= len(a.ports) {
		return nil
	}
	return a.ports[id]
}

func (a *Arena) Elements() []*Element {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return append([]*Element(nil), a.elements...)
}

func (a *Arena) Lookup(name string) *Element {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, e := range a.elements {
		if e.name == name {
			return e
		}
	}
	return nil
}

// Link connects a src port to a sink port. Linking two ports that are
// already linked to each other is a no-op.
func (a *Arena) Link(src, sink *Port) error {
	if src.dir != DirSrc || sink.dir != DirSink {
		return fmt.Errorf("%w: %s -> %s", ErrPortDirection, src, sink)
	}
	if src.peer == sink.id && sink.peer == src.id {
		return nil
	}
	if src.peer != NoPort || sink.peer != NoPort {
		return fmt.Errorf("%w: %s -> %s", ErrPortLinked, src, sink)
	}

	src.peer = sink.id
	sink.peer = src.id
	return nil
}

func (a *Arena) Unlink(src, sink *Port) error {
	if src.peer != sink.id || sink.peer != src.id {
		return fmt.Errorf("%w: %s -> %s", ErrNotLinked, src, sink)
	}

	src.peer = NoPort
	sink.peer = NoPort
	src.slot = nil
	return nil
}
