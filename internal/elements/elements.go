// Package elements holds a small catalogue of ready made elements, enough to
// assemble test and demo pipelines from a description file.
package elements

import (
	"errors"
	"sync"

	"github.com/AnatoleLucet/cosched"
)

// LoopSource is a loop-driven source pushing Count increasing integers, one
// per loop. A zero Count never ends.
type LoopSource struct {
	Count int

	next int
}

func (s *LoopSource) Loop(e *cosched.Element) {
	if s.Count > 0 && s.next >= s.Count {
		e.Finish()
		return
	}

	// a paused downstream drops the item
	if err := e.Port("src").Push(s.next); err != nil && !errors.Is(err, cosched.ErrPortInactive) {
		return
	}
	s.next++
}

// GetSource produces Count increasing integers on demand.
type GetSource struct {
	Count int

	next int
}

func (s *GetSource) Get(e *cosched.Element, p *cosched.Port) (any, error) {
	if s.Count > 0 && s.next >= s.Count {
		return nil, cosched.ErrEOS
	}

	n := s.next
	s.next++
	return n, nil
}

// Identity forwards every item it receives.
type Identity struct{}

func (Identity) Chain(e *cosched.Element, p *cosched.Port, item any) error {
	return e.Port("src").Push(item)
}

// LoopFilter is a loop-driven element pulling one item, passing it through
// Fn and pushing the result. Items pushed while downstream is paused are
// dropped.
type LoopFilter struct {
	Fn func(item any) any

	dropped int
}

func (f *LoopFilter) Loop(e *cosched.Element) {
	item, err := e.Port("sink").Pull()
	switch {
	case errors.Is(err, cosched.ErrEOS):
		e.Finish()
		return
	case errors.Is(err, cosched.ErrInterrupted):
		return
	case err != nil:
		e.Error(err)
		return
	}

	if f.Fn != nil {
		item = f.Fn(item)
	}

	// errors raised downstream are already reported by their element
	err = e.Port("src").Push(item)
	switch {
	case errors.Is(err, cosched.ErrPortInactive):
		f.dropped++
	case errors.Is(err, cosched.ErrNotLinked):
		e.Error(err)
	}
}

func (f *LoopFilter) Dropped() int {
	return f.dropped
}

// Sink records every item it receives.
type Sink struct {
	mu    sync.Mutex
	items []any
}

func (s *Sink) Chain(e *cosched.Element, p *cosched.Port, item any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, item)
	return nil
}

func (s *Sink) Items() []any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]any(nil), s.items...)
}

// Queue is a decoupled element buffering up to Capacity items between a
// producer and the chain it is the entry of. Items pushed into a full queue
// are dropped. It is safe to feed from another scheduler.
type Queue struct {
	Capacity int

	mu      sync.Mutex
	items   []any
	dropped int
}

func (q *Queue) Chain(e *cosched.Element, p *cosched.Port, item any) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.Capacity > 0 && len(q.items) >= q.Capacity {
		q.dropped++
		return nil
	}
	q.items = append(q.items, item)
	return nil
}

func (q *Queue) Get(e *cosched.Element, p *cosched.Port) (any, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, nil
	}

	item := q.items[0]
	q.items = q.items[1:]
	return item, nil
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.dropped
}
