package internal

import (
	"fmt"
	"runtime"
	"sync"
)

// Cothread is a goroutine that only runs while every other cothread of its
// context is parked. Control moves between cothreads with SwitchTo.
type Cothread struct {
	id    int
	gid   int64
	owner ElementID

	fn      func()
	tracker *Tracker

	wake chan struct{}
	kill chan struct{}
	done chan struct{}

	destroyed bool
}

func (co *Cothread) ID() int { return co.id }

func (co *Cothread) park() {
	select {
	case <-co.wake:
	case <-co.kill:
		runtime.Goexit()
	}
}

type CothreadContext struct {
	main    *Cothread
	current *Cothread

	// gid -> *Cothread
	threads sync.Map

	limit  int
	count  int
	nextID int
}

func NewCothreadContext(limit int) *CothreadContext {
	main := &Cothread{
		owner:   NoElement,
		tracker: NewTracker(),
		wake:    make(chan struct{}),
	}

	return &CothreadContext{
		main:    main,
		current: main,
		limit:   limit,
		nextID:  1,
	}
}

func (ctx *CothreadContext) Main() *Cothread { return ctx.main }
func (ctx *CothreadContext) Current() *Cothread { return ctx.current }
func (ctx *CothreadContext) Count() int { return ctx.count }

// IsCurrent reports whether the caller is running inside co.
func (ctx *CothreadContext) IsCurrent(co *Cothread) bool {
	return co != nil && ctx.Running() == co
}

// Create starts a parked cothread. It fails when the context already holds
// as many cothreads as its limit allows.
func (ctx *CothreadContext) Create(owner ElementID) (*Cothread, error) {
	if ctx.limit > 0 && ctx.count >= ctx.limit {
		return nil, fmt.Errorf("%w: limit of %d reached", ErrCothreadExhausted, ctx.limit)
	}

	co := &Cothread{
		id:      ctx.nextID,
		owner:   owner,
		tracker: NewTracker(),
		wake:    make(chan struct{}),
		kill:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	ctx.nextID++

	gids := make(chan int64)
	go func() {
		defer close(co.done)

		gids <- getGID()
		co.park()

		co.fn()

		// the bound function returned, hand control back for good
		for {
			ctx.SwitchTo(ctx.main)
		}
	}()

	co.gid = <-gids
	ctx.threads.Store(co.gid, co)
	ctx.count++

	return co, nil
}

// Bind installs the function a cothread runs the first time it is switched to.
func (ctx *CothreadContext) Bind(co *Cothread, fn func()) {
	co.fn = fn
}

// SwitchTo transfers control to target and returns once something switches
// back to the caller.
func (ctx *CothreadContext) SwitchTo(target *Cothread) {
	from := ctx.current
	if from == target {
		return
	}
	if target.destroyed || (target != ctx.main && target.fn == nil) {
		panic(fmt.Errorf("%w: switch to unbound cothread %d", ErrTopologyInvariant, target.id))
	}

	if from == ctx.main {
		from.gid = getGID()
	}

	ctx.current = target
	target.wake <- struct{}{}
	from.park()
}

// Destroy stops a parked cothread, unwinding whatever it was running.
func (ctx *CothreadContext) Destroy(co *Cothread) error {
	if co == nil || co == ctx.main || co.destroyed {
		return nil
	}
	if co == ctx.current {
		return ErrCothreadBusy
	}

	co.destroyed = true
	close(co.kill)
	<-co.done

	ctx.threads.Delete(co.gid)
	ctx.count--

	return nil
}

// Close destroys every cothread of the context.
func (ctx *CothreadContext) Close() error {
	if ctx.current != ctx.main {
		return ErrCothreadBusy
	}

	var all []*Cothread
	ctx.threads.Range(func(_, v any) bool {
		all = append(all, v.(*Cothread))
		return true
	})

	for _, co := range all {
		if err := ctx.Destroy(co); err != nil {
			return err
		}
	}

	return nil
}
