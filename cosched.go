// Package cosched groups linked pipeline elements into chains and drives
// them cooperatively, giving every loop-driven element its own cothread.
package cosched

import (
	"context"
	"errors"
	"io"

	"github.com/AnatoleLucet/cosched/internal"
	"github.com/google/uuid"
)

// Looper is implemented by loop-driven elements. Loop runs inside the
// element's own cothread, once per scheduling quantum.
type Looper interface {
	Loop(e *Element)
}

// Chainer is implemented by reactive elements receiving pushed items.
type Chainer interface {
	Chain(e *Element, p *Port, item any) error
}

// Getter is implemented by elements that produce items on demand.
type Getter interface {
	Get(e *Element, p *Port) (any, error)
}

// Funcs builds an element behavior out of plain functions. Nil fields are
// left out.
type Funcs struct {
	Loop  func(e *Element)
	Chain func(e *Element, p *Port, item any) error
	Get   func(e *Element, p *Port) (any, error)
}

func behaviorOf(v any) internal.Behavior {
	var loop func(*Element)
	var chain func(*Element, *Port, any) error
	var get func(*Element, *Port) (any, error)

	switch b := v.(type) {
	case Funcs:
		loop, chain, get = b.Loop, b.Chain, b.Get
	case *Funcs:
		loop, chain, get = b.Loop, b.Chain, b.Get
	default:
		if l, ok := v.(Looper); ok {
			loop = l.Loop
		}
		if c, ok := v.(Chainer); ok {
			chain = c.Chain
		}
		if g, ok := v.(Getter); ok {
			get = g.Get
		}
	}

	var behavior internal.Behavior
	if loop != nil {
		behavior.Loop = func(e *internal.Element) { loop(wrapElement(e)) }
	}
	if chain != nil {
		behavior.Chain = func(e *internal.Element, p *internal.Port, item any) error {
			return chain(wrapElement(e), wrapPort(p), item)
		}
	}
	if get != nil {
		behavior.Get = func(e *internal.Element, p *internal.Port) (any, error) {
			return get(wrapElement(e), wrapPort(p))
		}
	}

	return behavior
}

type Arena struct {
	arena *internal.Arena
}

// NewArena creates the store elements and ports live in.
func NewArena() *Arena {
	return &Arena{internal.NewArena()}
}

type ElementOption func(e *internal.Element)

// Decoupled makes the element a chain entry even when it has sink ports.
func Decoupled() ElementOption {
	return func(e *internal.Element) { e.SetDecoupled(true) }
}

// NewElement creates an element whose behavior is resolved from the
// Looper, Chainer and Getter interfaces, or taken from a Funcs value.
func (a *Arena) NewElement(name string, behavior any, opts ...ElementOption) *Element {
	e := a.arena.NewElement(name, behaviorOf(behavior))
	for _, opt := range opts {
		opt(e)
	}
	return wrapElement(e)
}

// Lookup finds an element by name.
func (a *Arena) Lookup(name string) *Element {
	return wrapElement(a.arena.Lookup(name))
}

type Element struct {
	element *internal.Element
}

func wrapElement(e *internal.Element) *Element {
	if e == nil {
		return nil
	}
	return &Element{e}
}

func (e *Element) ID() ElementID { return e.element.ID() }
func (e *Element) Name() string { return e.element.Name() }
func (e *Element) String() string { return e.element.String() }
func (e *Element) IsLoopDriven() bool { return e.element.IsLoopDriven() }
func (e *Element) IsDecoupled() bool { return e.element.IsDecoupled() }
func (e *Element) Enabled() bool { return e.element.Enabled() }
func (e *Element) Finished() bool { return e.element.Finished() }

// Err returns the last activation failure of the element.
func (e *Element) Err() error { return e.element.Err() }

// AddSrc adds an output port.
func (e *Element) AddSrc(name string) *Port {
	return wrapPort(e.element.AddPort(name, internal.DirSrc))
}

// AddSink adds an input port.
func (e *Element) AddSink(name string) *Port {
	return wrapPort(e.element.AddPort(name, internal.DirSink))
}

func (e *Element) Port(name string) *Port {
	return wrapPort(e.element.Port(name))
}

func (e *Element) Ports() []*Port {
	ports := make([]*Port, 0)
	for p := range e.element.Ports() {
		ports = append(ports, wrapPort(p))
	}
	return ports
}

// Error reports a runtime failure. The scheduler stops and control goes back
// to whoever called Iterate.
func (e *Element) Error(err error) {
	e.element.Error(err)
}

// Interrupt hands control back to the driving context when called from the
// element's own loop and returns false once resumed. Otherwise it flags the
// element as interrupted and returns true.
func (e *Element) Interrupt() bool {
	return e.element.Interrupt()
}

// Yield hands control back to the driving context when called from the
// element's own loop.
func (e *Element) Yield() bool {
	return e.element.Yield()
}

// SetBehavior replaces the behavior of the element, resolved the same way
// NewElement resolves it. Its scheduler regroups it right away.
func (e *Element) SetBehavior(behavior any) error {
	return e.element.SetBehavior(behaviorOf(behavior))
}

// Finish disables the element after the end of its stream.
func (e *Element) Finish() {
	e.element.Finish()
}

type Port struct {
	port *internal.Port
}

func wrapPort(p *internal.Port) *Port {
	if p == nil {
		return nil
	}
	return &Port{p}
}

func (p *Port) Name() string { return p.port.Name() }
func (p *Port) String() string { return p.port.String() }
func (p *Port) Direction() Direction { return p.port.Direction() }
func (p *Port) Element() *Element { return wrapElement(p.port.Owner()) }
func (p *Port) Peer() *Port { return wrapPort(p.port.Peer()) }

// Pending reports whether an item waits in the handoff slot of the link.
func (p *Port) Pending() bool { return p.port.Pending() }

// Push sends item downstream through a src port.
func (p *Port) Push(item any) error {
	return p.port.Push(item)
}

// Pull takes one item from upstream through a sink port.
func (p *Port) Pull() (any, error) {
	return p.port.Pull()
}

type Chain struct {
	chain *internal.Chain
	arena *internal.Arena
}

func (c *Chain) elements(ids []ElementID) []*Element {
	elements := make([]*Element, 0, len(ids))
	for _, id := range ids {
		elements = append(elements, wrapElement(c.arena.Element(id)))
	}
	return elements
}

func (c *Chain) ID() uuid.UUID { return c.chain.ID() }
func (c *Chain) Cothreaded() int { return c.chain.Cothreaded() }
func (c *Chain) Len() int { return c.chain.Len() }
func (c *Chain) Destroyed() bool { return c.chain.Destroyed() }
func (c *Chain) Has(e *Element) bool { return c.chain.Has(e.ID()) }

// Elements returns every member, enabled or not, sorted by ID.
func (c *Chain) Elements() []*Element { return c.elements(c.chain.Members()) }
func (c *Chain) Active() []*Element { return c.elements(c.chain.Active()) }
func (c *Chain) Disabled() []*Element { return c.elements(c.chain.Disabled()) }

// Entry returns the element a reactive pass starts from, or nil.
func (c *Chain) Entry() *Element {
	return wrapElement(c.arena.Element(c.chain.Entry()))
}

type Scheduler struct {
	sched *internal.Scheduler
}

// NewScheduler creates a scheduler for the elements of arena. The scheduler
// creates its own root element, named after the scheduler.
func NewScheduler(arena *Arena, opts ...Option) (*Scheduler, error) {
	sched, err := internal.NewScheduler(arena.arena, opts...)
	if err != nil {
		return nil, err
	}
	return &Scheduler{sched}, nil
}

func (s *Scheduler) wrapChain(c *internal.Chain) *Chain {
	if c == nil {
		return nil
	}
	return &Chain{c, s.sched.Arena()}
}

func (s *Scheduler) Name() string { return s.sched.Name() }
func (s *Scheduler) State() State { return s.sched.State() }
func (s *Scheduler) Root() *Element { return wrapElement(s.sched.Root()) }
func (s *Scheduler) ElementCount() int { return s.sched.ElementCount() }

// Err returns the error that put the scheduler in StateError.
func (s *Scheduler) Err() error { return s.sched.Err() }

// Add makes the scheduler own the given elements. Adding an element it
// already owns does nothing.
func (s *Scheduler) Add(elements ...*Element) error {
	for _, e := range elements {
		if err := s.sched.AddElement(e.element); err != nil {
			return err
		}
	}
	return nil
}

// Remove releases an element. Its links stay in place.
func (s *Scheduler) Remove(e *Element) error {
	return s.sched.RemoveElement(e.element)
}

// Connect links src to sink.
func (s *Scheduler) Connect(src, sink *Port) error {
	return s.sched.PadConnect(src.port, sink.port)
}

// Disconnect unlinks src from sink.
func (s *Scheduler) Disconnect(src, sink *Port) error {
	return s.sched.PadDisconnect(src.port, sink.port)
}

// StateTransition notifies the scheduler that e changes state. Transitions
// of the root element drive the scheduler itself.
func (s *Scheduler) StateTransition(e *Element, t Transition) error {
	return s.sched.StateTransition(e.element, t)
}

func (s *Scheduler) owned() []*Element {
	elements := make([]*Element, 0, s.sched.ElementCount())
	for _, e := range s.sched.Arena().Elements() {
		if e.Scheduler() == s.sched {
			elements = append(elements, wrapElement(e))
		}
	}
	return elements
}

// Play brings the root element to playing, then enables every owned
// element. Elements that fail to activate are reported together and stay
// disabled.
func (s *Scheduler) Play() error {
	root := s.Root()
	for _, t := range []Transition{NullToReady, ReadyToPaused, PausedToPlaying} {
		if err := s.StateTransition(root, t); err != nil {
			return err
		}
	}

	var errs []error
	for _, e := range s.owned() {
		if err := s.StateTransition(e, PausedToPlaying); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Pause disables every owned element, then pauses the root element.
func (s *Scheduler) Pause() error {
	for _, e := range s.owned() {
		if err := s.StateTransition(e, PlayingToPaused); err != nil {
			return err
		}
	}
	return s.StateTransition(s.Root(), PlayingToPaused)
}

// Setup allocates the cothread context ahead of the first Iterate.
func (s *Scheduler) Setup() {
	s.sched.Setup()
}

// Reset tears every cothread down and regroups the owned elements into
// fresh disabled chains. It is the only way out of StateError.
func (s *Scheduler) Reset() error {
	return s.sched.Reset()
}

// Close tears every cothread down. A scheduler keeps one parked goroutine
// per enabled loop-driven element until Close or Reset is called. A closed
// scheduler can be played again.
func (s *Scheduler) Close() error {
	return s.sched.Reset()
}

// Iterate runs one scheduling quantum.
func (s *Scheduler) Iterate() State {
	return s.sched.Iterate()
}

// Run iterates until a quantum schedules nothing, the scheduler fails or ctx
// is done.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch s.Iterate() {
		case StateStopped:
			return nil
		case StateError:
			return s.Err()
		}
	}
}

// Running returns the element whose behavior is executing on the calling
// goroutine, or nil.
func (s *Scheduler) Running() *Element {
	return wrapElement(s.sched.Running())
}

func (s *Scheduler) Interrupt(e *Element) bool {
	return s.sched.Interrupt(e.element)
}

func (s *Scheduler) Yield(e *Element) bool {
	return s.sched.Yield(e.element)
}

func (s *Scheduler) Error(e *Element, err error) {
	s.sched.Error(e.element, err)
}

func (s *Scheduler) Chains() []*Chain {
	chains := make([]*Chain, 0)
	for _, c := range s.sched.Chains() {
		chains = append(chains, s.wrapChain(c))
	}
	return chains
}

// ChainOf returns the chain e belongs to, or nil when s does not own e.
func (s *Scheduler) ChainOf(e *Element) *Chain {
	return s.wrapChain(s.sched.ChainOf(e.element))
}

// Show writes a human readable dump of the scheduler.
func (s *Scheduler) Show(w io.Writer) error {
	return s.sched.Show(w)
}
