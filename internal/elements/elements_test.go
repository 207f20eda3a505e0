package elements

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/AnatoleLucet/cosched"
	"github.com/AnatoleLucet/cosched/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.NewTextHandler(io.Discard, nil)

func build(t *testing.T, description string) *Pipeline {
	t.Helper()

	p, err := config.Parse([]byte(description))
	require.NoError(t, err)

	built, err := Build(p, discard)
	require.NoError(t, err)

	t.Cleanup(func() { _ = built.Scheduler.Close() })
	return built
}

func TestBuild(t *testing.T) {
	t.Run("runs a pull pipeline", func(t *testing.T) {
		p := build(t, `
scheduler:
  name: pull
elements:
  - {name: counter, kind: getsrc, params: {count: 5}}
  - {name: tee, kind: identity}
  - {name: doubler, kind: loopfilter, params: {scale: 2}}
  - {name: out, kind: sink}
links:
  - {from: counter.src, to: tee.sink}
  - {from: tee.src, to: doubler.sink}
  - {from: doubler.src, to: out.sink}
`)

		assert.Equal(t, "pull", p.Scheduler.Name())
		require.Len(t, p.Scheduler.Chains(), 1)
		assert.Equal(t, 1, p.Scheduler.Chains()[0].Cothreaded())

		require.NoError(t, p.Scheduler.Play())
		require.NoError(t, p.Scheduler.Run(context.Background()))

		assert.Equal(t, map[string][]any{"out": {0, 2, 4, 6, 8}}, p.Sinks())
		assert.True(t, p.Elements["counter"].Finished())
		assert.True(t, p.Elements["doubler"].Finished())
	})

	t.Run("runs a push pipeline", func(t *testing.T) {
		p := build(t, `
elements:
  - {name: src, kind: loopsrc, params: {count: 3}}
  - {name: tee, kind: identity}
  - {name: out, kind: sink}
links:
  - {from: src.src, to: tee.sink}
  - {from: tee.src, to: out.sink}
`)

		require.NoError(t, p.Scheduler.Play())
		require.NoError(t, p.Scheduler.Run(context.Background()))

		assert.Equal(t, []any{0, 1, 2}, p.Sinks()["out"])
	})

	t.Run("a filter without downstream fails", func(t *testing.T) {
		p := build(t, `
elements:
  - {name: counter, kind: getsrc, params: {count: 3}}
  - {name: doubler, kind: loopfilter, params: {scale: 2}}
links:
  - {from: counter.src, to: doubler.sink}
`)

		require.NoError(t, p.Scheduler.Play())
		err := p.Scheduler.Run(context.Background())
		assert.ErrorIs(t, err, cosched.ErrNotLinked)
		assert.ErrorIs(t, err, cosched.ErrElementRuntime)
	})

	t.Run("a filter drops items while downstream is paused", func(t *testing.T) {
		p := build(t, `
elements:
  - {name: counter, kind: getsrc, params: {count: 3}}
  - {name: doubler, kind: loopfilter, params: {scale: 2}}
  - {name: out, kind: sink}
links:
  - {from: counter.src, to: doubler.sink}
  - {from: doubler.src, to: out.sink}
`)

		require.NoError(t, p.Scheduler.Play())
		require.NoError(t, p.Scheduler.StateTransition(p.Elements["out"], cosched.PlayingToPaused))

		assert.Equal(t, cosched.StateRunning, p.Scheduler.Iterate())
		assert.NoError(t, p.Scheduler.Err())
		assert.Empty(t, p.Sinks()["out"])
		assert.Equal(t, 1, p.Behaviors["doubler"].(*LoopFilter).Dropped())
	})

	t.Run("queues are chain entries", func(t *testing.T) {
		p := build(t, `
elements:
  - {name: q, kind: queue}
  - {name: out, kind: sink}
links:
  - {from: q.src, to: out.sink}
`)

		q := p.Elements["q"]
		assert.True(t, q.IsDecoupled())
		assert.Equal(t, "q", p.Scheduler.ChainOf(q).Entry().Name())
	})

	t.Run("rejects unknown kinds", func(t *testing.T) {
		p, err := config.Parse([]byte(`
elements:
  - {name: x, kind: teleporter}
`))
		require.NoError(t, err)

		_, err = Build(p, discard)
		assert.ErrorContains(t, err, `unknown kind "teleporter"`)
	})

	t.Run("rejects unknown ports", func(t *testing.T) {
		p, err := config.Parse([]byte(`
elements:
  - {name: a, kind: getsrc}
  - {name: b, kind: sink}
links:
  - {from: a.out, to: b.sink}
`))
		require.NoError(t, err)

		_, err = Build(p, discard)
		assert.ErrorContains(t, err, `a has no port "out"`)
	})

	t.Run("rejects links in the wrong direction", func(t *testing.T) {
		p, err := config.Parse([]byte(`
elements:
  - {name: a, kind: getsrc}
  - {name: b, kind: sink}
links:
  - {from: b.sink, to: a.src}
`))
		require.NoError(t, err)

		_, err = Build(p, discard)
		assert.ErrorIs(t, err, cosched.ErrPortDirection)
	})

	t.Run("knows its kinds", func(t *testing.T) {
		kinds := Kinds()
		slices.Sort(kinds)
		assert.Equal(t, []string{"getsrc", "identity", "loopfilter", "loopsrc", "queue", "sink"}, kinds)
	})
}

func TestQueue(t *testing.T) {
	newScheduler := func(t *testing.T, arena *cosched.Arena, name string) *cosched.Scheduler {
		s, err := cosched.NewScheduler(arena, cosched.WithName(name), cosched.WithLog(discard))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Reset() })
		return s
	}

	arena := cosched.NewArena()
	producer := newScheduler(t, arena, "producer")
	consumer := newScheduler(t, arena, "consumer")

	src := arena.NewElement("src", &LoopSource{Count: 3})
	src.AddSrc("src")

	queue := &Queue{Capacity: 2}
	q := arena.NewElement("q", queue, cosched.Decoupled())
	q.AddSink("sink")
	q.AddSrc("src")

	sink := &Sink{}
	out := arena.NewElement("out", sink)
	out.AddSink("sink")

	require.NoError(t, producer.Add(src))
	require.NoError(t, consumer.Add(q, out))
	require.NoError(t, producer.Connect(src.Port("src"), q.Port("sink")))
	require.NoError(t, consumer.Connect(q.Port("src"), out.Port("sink")))

	assert.Len(t, producer.Chains(), 1)
	assert.Len(t, consumer.Chains(), 1)

	require.NoError(t, consumer.Play())
	require.NoError(t, producer.Play())

	require.NoError(t, producer.Run(context.Background()))
	assert.Equal(t, 2, queue.Len())
	assert.Equal(t, 1, queue.Dropped())
	assert.Empty(t, sink.Items())

	require.NoError(t, consumer.Run(context.Background()))
	assert.Equal(t, []any{0, 1}, sink.Items())
	assert.Equal(t, 0, queue.Len())
}
