package internal

import (
	"fmt"
	"log/slog"
)

// Scheduler groups the elements it owns into chains and runs one scheduling
// quantum per Iterate call. Everything but the arena is only touched by the
// driving context or by the one cothread it switched to, so nothing here is
// locked.
type Scheduler struct {
	cfg    *config
	logger *slog.Logger

	arena *Arena
	root  *Element

	ctx          *CothreadContext
	chains       []*Chain
	elementCount int

	state State
	err   error
}

func NewScheduler(arena *Arena, opts ...Option) (*Scheduler, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCfg, err)
		}
	}

	s := &Scheduler{
		cfg:    cfg,
		arena:  arena,
		chains: make([]*Chain, 0),
		state:  StateNone,
	}

	if cfg.logHandler != nil {
		s.logger = slog.New(cfg.logHandler)
	} else {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(LabelScheduler.L(cfg.name))

	s.root = arena.NewElement(cfg.name, Behavior{})

	return s, nil
}

func (s *Scheduler) Name() string { return s.cfg.name }
func (s *Scheduler) Arena() *Arena { return s.arena }
func (s *Scheduler) Root() *Element { return s.root }
func (s *Scheduler) State() State { return s.state }
func (s *Scheduler) Err() error { return s.err }
func (s *Scheduler) ElementCount() int { return s.elementCount }

func (s *Scheduler) Chains() []*Chain {
	return append([]*Chain(nil), s.chains...)
}

func (s *Scheduler) ChainOf(e *Element) *Chain {
	if e.sched != s {
		return nil
	}
	return e.priv.chain
}

func (s *Scheduler) Context() *CothreadContext {
	return s.ctx
}

// Running returns the element whose callback executes on the calling
// goroutine, or nil outside of any callback.
func (s *Scheduler) Running() *Element {
	if s.ctx == nil {
		return nil
	}
	return s.ctx.Running().tracker.Current()
}

func (s *Scheduler) setState(state State) {
	if s.state == state {
		return
	}

	s.logger.Info("state changed", slog.String("from", s.state.String()), LabelState.L(state.String()))
	s.state = state
}

// fail latches the scheduler into StateError.
func (s *Scheduler) fail(err error) State {
	if s.err == nil {
		s.err = err
	}

	s.logger.Error("scheduling failed", LabelError.L(err))
	s.setState(StateError)

	return StateError
}

func (s *Scheduler) ensureContext() {
	if s.ctx == nil {
		s.ctx = NewCothreadContext(s.cfg.maxCothreads)
	}
}

// Setup allocates the cothread context and leaves StateNone.
func (s *Scheduler) Setup() {
	s.ensureContext()

	if s.state == StateNone {
		s.setState(StateStopped)
	}
}

// AddElement makes the scheduler own e. Adding an element twice is a no-op.
func (s *Scheduler) AddElement(e *Element) error {
	if e.sched == s || e == s.root {
		return nil
	}
	if e.sched != nil {
		return fmt.Errorf("%w: %s", ErrElementOwned, e)
	}

	e.sched = s
	e.priv = schedPrivate{}
	s.elementCount++

	c := s.newChain()
	c.add(e)

	for peer := range e.Peers() {
		if peer.sched != s {
			continue
		}
		if peer.priv.chain != e.priv.chain {
			s.mergeChains(peer.priv.chain, e.priv.chain)
		}
		rewire(peer)
	}

	s.logger.Debug("element added", LabelElement.L(e.name), LabelChain.L(e.priv.chain.id))
	return nil
}

// RemoveElement releases e. Its links are kept, the rest of its chain is
// regrouped as if those links had been cut.
func (s *Scheduler) RemoveElement(e *Element) error {
	if e.sched != s {
		return fmt.Errorf("%w: %s", ErrNotOwned, e)
	}

	co := e.priv.cothread
	if co != nil && s.ctx.Current() == co {
		return fmt.Errorf("%w: %s is running", ErrBusy, e)
	}

	s.unwire(e)
	s.clearSlots(e)

	c := e.priv.chain
	c.remove(e)
	e.sched = nil

	for peer := range e.Peers() {
		if peer.sched == s {
			rewire(peer)
		}
	}

	if !c.destroyed {
		s.rebuild(c)
	}

	if co != nil {
		if err := s.ctx.Destroy(co); err != nil {
			return err
		}
		s.gauge(MetricCothreads, float32(s.ctx.Count()))
	}

	e.priv = schedPrivate{}
	s.elementCount--

	s.logger.Debug("element removed", LabelElement.L(e.name))
	return nil
}

// PadConnect links src to sink and groups their owners into one chain when
// both belong to this scheduler.
func (s *Scheduler) PadConnect(src, sink *Port) error {
	if err := s.arena.Link(src, sink); err != nil {
		return err
	}

	a, b := src.Owner(), sink.Owner()
	rewire(a)
	rewire(b)

	if a.sched != s || b.sched != s {
		return nil
	}

	ca, cb := a.priv.chain, b.priv.chain
	switch {
	case ca == cb:
	case ca == nil:
		cb.add(a)
	case cb == nil:
		ca.add(b)
	default:
		merged := s.mergeChains(ca, cb)
		if merged.cothreaded > 1 {
			s.logger.Warn("chain has more than one cothread-driven element",
				LabelChain.L(merged.id), slog.Int("cothreaded", merged.cothreaded))
		}
	}

	return nil
}

// PadDisconnect unlinks src from sink, then rebuilds their chain from both
// endpoints.
func (s *Scheduler) PadDisconnect(src, sink *Port) error {
	if err := s.arena.Unlink(src, sink); err != nil {
		return err
	}

	a, b := src.Owner(), sink.Owner()
	rewire(a)
	rewire(b)

	if a.sched != s || b.sched != s {
		return nil
	}

	c := a.priv.chain
	if c == nil || c != b.priv.chain {
		return nil
	}

	s.rebuild(c, a, b)
	return nil
}

func (s *Scheduler) StateTransition(e *Element, t Transition) error {
	if e == s.root {
		switch t {
		case NullToReady:
			s.Setup()
		case PausedToPlaying:
			if s.state != StateError {
				s.Setup()
				s.setState(StateRunning)
			}
		case PlayingToPaused:
			if s.state != StateError {
				s.setState(StateStopped)
			}
		case ReadyToNull:
			return s.Reset()
		}
		return nil
	}

	if e.sched != s {
		return fmt.Errorf("%w: %s", ErrNotOwned, e)
	}

	switch t {
	case PausedToPlaying:
		return s.enableElement(e)
	case PlayingToPaused:
		s.disableElement(e)
	case PausedToReady:
		s.clearSlots(e)
		e.priv.finished = false
		e.priv.eos = false
		e.priv.interrupted = false
	}

	return nil
}

func (s *Scheduler) enableElement(e *Element) error {
	if e.priv.enabled {
		return nil
	}

	if err := e.priv.chain.enable(e); err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrActivation, e, err)
		e.priv.err = err

		s.incr(MetricActivationFailedCount, 1, LabelElement.M(e.name))
		s.logger.Warn("could not enable element", LabelElement.L(e.name), LabelError.L(err))
		return err
	}

	e.priv.err = nil
	return nil
}

func (s *Scheduler) disableElement(e *Element) {
	if e.priv.enabled {
		e.priv.chain.disable(e)
	}
}

// SchedulingChange installs a new behavior on e. The element is disabled,
// loses its cothread, and its chain is rebuilt so the cothreaded count and
// the entry follow the new behavior. An enabled element is enabled again.
func (s *Scheduler) SchedulingChange(e *Element, b Behavior) error {
	if e.sched != s {
		return fmt.Errorf("%w: %s", ErrNotOwned, e)
	}

	co := e.priv.cothread
	if co != nil && s.ctx.IsCurrent(co) {
		return fmt.Errorf("%w: %s is running", ErrBusy, e)
	}

	enabled := e.priv.enabled
	s.disableElement(e)

	if co != nil {
		s.clearSlots(e)
		if err := s.ctx.Destroy(co); err != nil {
			return err
		}
		e.priv.cothread = nil
		e.priv.waiting = nil
		e.priv.stopping = false
		e.priv.yielded = false
		s.gauge(MetricCothreads, float32(s.ctx.Count()))
	}

	e.behavior = b
	s.rebuild(e.priv.chain)

	for peer := range e.Peers() {
		if peer.sched == s {
			rewire(peer)
		}
	}

	s.logger.Debug("element scheduling changed", LabelElement.L(e.name), slog.Bool("loop", e.IsLoopDriven()))

	if enabled {
		return s.enableElement(e)
	}
	return nil
}

// Finish disables an element that reached the end of its stream.
func (s *Scheduler) Finish(e *Element) {
	if e.sched != s || e.priv.finished {
		return
	}

	e.priv.finished = true
	s.disableElement(e)
	s.logger.Debug("element finished", LabelElement.L(e.name))
}

// Interrupt called from inside e's own cothread switches back to the driving
// context and returns false once e is resumed. Called from anywhere else it
// flags e as interrupted and returns true: the caller is still running.
func (s *Scheduler) Interrupt(e *Element) bool {
	co := e.priv.cothread
	if s.ctx != nil && s.ctx.IsCurrent(co) {
		s.ctx.SwitchTo(s.ctx.Main())
		return false
	}

	e.priv.interrupted = true
	return true
}

// Yield behaves like Interrupt without raising the interrupted flag.
func (s *Scheduler) Yield(e *Element) bool {
	co := e.priv.cothread
	if s.ctx != nil && s.ctx.IsCurrent(co) {
		s.ctx.SwitchTo(s.ctx.Main())
		return false
	}

	return true
}

// Error latches the scheduler into StateError, disables the chain of e and
// forces control back to the driving context.
func (s *Scheduler) Error(e *Element, err error) {
	err = fmt.Errorf("%w: %s: %w", ErrElementRuntime, e, err)
	if s.err == nil {
		s.err = err
	}

	s.incr(MetricElementErrorCount, 1, LabelElement.M(e.name))
	s.logger.Error("element error", LabelElement.L(e.name), LabelError.L(err))
	s.setState(StateError)

	c := e.priv.chain
	if c != nil {
		s.disableChain(c)
	}

	// a reactive element pushed to from a loop-driven one runs on the
	// cothread of the latter, which is the one to leave
	if s.ctx != nil {
		if running := s.ctx.Running(); running != s.ctx.Main() {
			if owner := s.arena.Element(running.owner); owner != nil && owner != e && owner.priv.chain == c {
				s.Interrupt(owner)
				return
			}
		}
	}

	s.Interrupt(e)
}

// Reset tears every cothread down and regroups all owned elements into
// fresh, disabled chains. The scheduler goes back to StateNone.
func (s *Scheduler) Reset() error {
	if s.ctx != nil && (s.ctx.Current() != s.ctx.Main() || s.ctx.Running() != s.ctx.Main()) {
		return fmt.Errorf("%w: reset", ErrBusy)
	}

	owned := make([]*Element, 0, s.elementCount)
	for _, e := range s.arena.Elements() {
		if e.sched == s {
			owned = append(owned, e)
		}
	}

	if s.ctx != nil {
		if err := s.ctx.Close(); err != nil {
			return err
		}
		s.ctx = nil
	}

	for _, c := range s.Chains() {
		for _, id := range c.Members() {
			c.element(id).priv.chain = nil
		}
		clear(c.active)
		clear(c.disabled)
		c.cothreaded = 0
		s.destroyChain(c)
	}

	for _, e := range owned {
		s.unwire(e)
		s.clearSlots(e)
		e.priv = schedPrivate{}
	}

	for _, e := range owned {
		if e.priv.chain == nil {
			s.recursiveAdd(s.newChain(), e)
		}
	}

	s.err = nil
	s.setState(StateNone)
	s.gauge(MetricCothreads, 0)

	return nil
}
