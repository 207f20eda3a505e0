package cosched

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, opts ...Option) (*Arena, *Scheduler) {
	t.Helper()

	arena := NewArena()
	opts = append([]Option{WithLog(slog.NewTextHandler(io.Discard, nil))}, opts...)

	s, err := NewScheduler(arena, opts...)
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Reset() })
	return arena, s
}

type looper struct{ log *[]string }

func (l looper) Loop(e *Element) {
	*l.log = append(*l.log, "loop "+e.Name())
}

type both struct{}

func (both) Chain(e *Element, p *Port, item any) error { return nil }
func (both) Get(e *Element, p *Port) (any, error) { return nil, nil }

func TestBehavior(t *testing.T) {
	t.Run("resolves interfaces", func(t *testing.T) {
		arena := NewArena()
		log := []string{}

		l := arena.NewElement("l", looper{&log})
		b := arena.NewElement("b", both{})

		assert.True(t, l.IsLoopDriven())
		assert.False(t, b.IsLoopDriven())
	})

	t.Run("takes funcs by value or pointer", func(t *testing.T) {
		arena := NewArena()
		loop := func(e *Element) {}

		assert.True(t, arena.NewElement("a", Funcs{Loop: loop}).IsLoopDriven())
		assert.True(t, arena.NewElement("b", &Funcs{Loop: loop}).IsLoopDriven())
		assert.False(t, arena.NewElement("c", Funcs{}).IsLoopDriven())
	})

	t.Run("decoupled option", func(t *testing.T) {
		arena := NewArena()

		e := arena.NewElement("q", both{}, Decoupled())
		assert.True(t, e.IsDecoupled())
		assert.Same(t, e.element, arena.Lookup("q").element)
		assert.Nil(t, arena.Lookup("missing"))
	})
}

func TestScheduler(t *testing.T) {
	t.Run("runs a pipeline to its end", func(t *testing.T) {
		arena, s := newTestScheduler(t)
		log := []string{}

		n := 0
		src := arena.NewElement("src", Funcs{Get: func(e *Element, p *Port) (any, error) {
			if n == 3 {
				return nil, ErrEOS
			}
			n++
			log = append(log, fmt.Sprintf("get %d", n))
			return n, nil
		}})
		src.AddSrc("src")

		double := arena.NewElement("double", Funcs{Chain: func(e *Element, p *Port, item any) error {
			return e.Port("src").Push(item.(int) * 2)
		}})
		double.AddSink("sink")
		double.AddSrc("src")

		out := arena.NewElement("out", Funcs{Chain: func(e *Element, p *Port, item any) error {
			log = append(log, fmt.Sprintf("out %d", item))
			return nil
		}})
		out.AddSink("sink")

		require.NoError(t, s.Add(src, double, out))
		require.NoError(t, s.Connect(src.Port("src"), double.Port("sink")))
		require.NoError(t, s.Connect(double.Port("src"), out.Port("sink")))
		require.NoError(t, s.Play())

		require.Len(t, s.Chains(), 1)
		assert.Equal(t, "src", s.ChainOf(out).Entry().Name())

		require.NoError(t, s.Run(context.Background()))
		assert.Equal(t, StateStopped, s.State())
		assert.Equal(t, []string{
			"get 1",
			"out 2",
			"get 2",
			"out 4",
			"get 3",
			"out 6",
		}, log)
		assert.True(t, src.Finished())
	})

	t.Run("run reports the element error", func(t *testing.T) {
		arena, s := newTestScheduler(t)
		boom := errors.New("boom")

		e := arena.NewElement("e", Funcs{Loop: func(e *Element) { e.Error(boom) }})
		e.AddSrc("src")

		require.NoError(t, s.Add(e))
		require.NoError(t, s.Play())

		err := s.Run(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, err, ErrElementRuntime)
		assert.Equal(t, StateError, s.State())
	})

	t.Run("run stops with its context", func(t *testing.T) {
		arena, s := newTestScheduler(t)
		log := []string{}

		e := arena.NewElement("e", looper{&log})
		e.AddSrc("src")
		require.NoError(t, s.Add(e))
		require.NoError(t, s.Play())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, s.Run(ctx), context.Canceled)
		assert.Empty(t, log)

		assert.Equal(t, StateRunning, s.Iterate())
		assert.Equal(t, []string{"loop e"}, log)
	})

	t.Run("play reports elements that could not start", func(t *testing.T) {
		arena, s := newTestScheduler(t, WithMaxCothreads(1))
		log := []string{}

		a := arena.NewElement("a", looper{&log})
		b := arena.NewElement("b", looper{&log})
		require.NoError(t, s.Add(a, b))

		err := s.Play()
		assert.ErrorIs(t, err, ErrActivation)
		assert.ErrorIs(t, err, ErrCothreadExhausted)
		assert.True(t, a.Enabled())
		assert.False(t, b.Enabled())
		assert.ErrorIs(t, b.Err(), ErrActivation)

		assert.Equal(t, StateRunning, s.Iterate())
		assert.Equal(t, []string{"loop a"}, log)
	})

	t.Run("pause disables everything", func(t *testing.T) {
		arena, s := newTestScheduler(t)
		log := []string{}

		e := arena.NewElement("e", looper{&log})
		require.NoError(t, s.Add(e))
		require.NoError(t, s.Play())
		require.Equal(t, StateRunning, s.Iterate())

		require.NoError(t, s.Pause())
		assert.False(t, e.Enabled())
		assert.Equal(t, StateStopped, s.State())

		assert.Equal(t, StateStopped, s.Iterate())
		assert.Equal(t, []string{"loop e"}, log)
	})

	t.Run("close releases cothreads", func(t *testing.T) {
		arena, s := newTestScheduler(t)
		log := []string{}

		e := arena.NewElement("e", looper{&log})
		require.NoError(t, s.Add(e))
		require.NoError(t, s.Play())
		require.Equal(t, StateRunning, s.Iterate())
		require.Equal(t, 1, s.sched.Context().Count())

		require.NoError(t, s.Close())
		assert.Nil(t, s.sched.Context())
		assert.False(t, e.Enabled())
		assert.Equal(t, StateNone, s.State())

		require.NoError(t, s.Play())
		assert.Equal(t, StateRunning, s.Iterate())
		assert.Equal(t, []string{"loop e", "loop e"}, log)
	})

	t.Run("behavior can change while playing", func(t *testing.T) {
		arena, s := newTestScheduler(t)
		log := []string{}

		e := arena.NewElement("e", Funcs{Chain: func(e *Element, p *Port, item any) error { return nil }})
		require.NoError(t, s.Add(e))
		require.NoError(t, s.Play())
		assert.Equal(t, 0, s.ChainOf(e).Cothreaded())

		require.NoError(t, e.SetBehavior(looper{&log}))
		assert.True(t, e.IsLoopDriven())
		assert.Equal(t, 1, s.ChainOf(e).Cothreaded())

		assert.Equal(t, StateRunning, s.Iterate())
		assert.Equal(t, []string{"loop e"}, log)
	})

	t.Run("elements belong to one scheduler", func(t *testing.T) {
		arena, s1 := newTestScheduler(t, WithName("one"))
		s2, err := NewScheduler(arena, WithName("two"), WithLog(slog.NewTextHandler(io.Discard, nil)))
		require.NoError(t, err)

		e := arena.NewElement("e", both{})
		require.NoError(t, s1.Add(e))

		assert.ErrorIs(t, s2.Add(e), ErrElementOwned)
		assert.Nil(t, s2.ChainOf(e))
		assert.ErrorIs(t, s2.Remove(e), ErrNotOwned)

		require.NoError(t, s1.Remove(e))
		require.NoError(t, s2.Add(e))
		assert.Equal(t, 0, s1.ElementCount())
		assert.Equal(t, 1, s2.ElementCount())
	})

	t.Run("rejects invalid options", func(t *testing.T) {
		_, err := NewScheduler(NewArena(), WithIterations(0))
		assert.ErrorIs(t, err, ErrInvalidCfg)
	})
}

func TestChains(t *testing.T) {
	t.Run("follow the links", func(t *testing.T) {
		arena, s := newTestScheduler(t)

		a := arena.NewElement("a", both{})
		a.AddSrc("src")
		b := arena.NewElement("b", both{})
		b.AddSink("sink")
		b.AddSrc("src")
		c := arena.NewElement("c", both{})
		c.AddSink("sink")

		require.NoError(t, s.Add(a, b, c))
		assert.Len(t, s.Chains(), 3)

		require.NoError(t, s.Connect(a.Port("src"), b.Port("sink")))
		require.NoError(t, s.Connect(b.Port("src"), c.Port("sink")))
		require.Len(t, s.Chains(), 1)

		chain := s.ChainOf(a)
		assert.Equal(t, 3, chain.Len())
		assert.True(t, chain.Has(c))
		assert.Equal(t, []string{"a", "b", "c"}, names(chain.Elements()))
		assert.Empty(t, chain.Active())
		assert.Len(t, chain.Disabled(), 3)
		assert.Equal(t, 0, chain.Cothreaded())
		assert.Equal(t, "a", chain.Entry().Name())

		require.NoError(t, s.Disconnect(b.Port("src"), c.Port("sink")))
		require.Len(t, s.Chains(), 2)
		assert.True(t, chain.Destroyed())
		assert.NotSame(t, s.ChainOf(a).chain, s.ChainOf(c).chain)
		assert.Nil(t, s.ChainOf(c).Entry())
	})

	t.Run("a decoupled element is an entry", func(t *testing.T) {
		arena, s := newTestScheduler(t)

		q := arena.NewElement("q", both{}, Decoupled())
		q.AddSink("sink")
		q.AddSrc("src")

		require.NoError(t, s.Add(q))
		assert.Equal(t, "q", s.ChainOf(q).Entry().Name())
	})

	t.Run("show lists every chain", func(t *testing.T) {
		arena, s := newTestScheduler(t, WithName("shown"))

		a := arena.NewElement("a", both{})
		a.AddSrc("src")
		require.NoError(t, s.Add(a))

		var buf bytes.Buffer
		require.NoError(t, s.Show(&buf))
		assert.Contains(t, buf.String(), `scheduler "shown" state=none elements=1`)
		assert.Contains(t, buf.String(), "element a [disabled]")
		assert.Contains(t, buf.String(), "src src -> -")
	})
}

func names(elements []*Element) []string {
	out := make([]string, 0, len(elements))
	for _, e := range elements {
		out = append(out, e.Name())
	}
	return out
}
