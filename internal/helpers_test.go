package internal

import (
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

// newElement creates an element with one port per direction given, named
// "sink", "src", "sink1", "src1"... in order.
func newElement(a *Arena, name string, b Behavior, dirs ...Direction) *Element {
	e := a.NewElement(name, b)

	seen := map[Direction]int{}
	for _, dir := range dirs {
		port := dir.String()
		if n := seen[dir]; n > 0 {
			port = port + string(rune('0'+n))
		}
		seen[dir]++
		e.AddPort(port, dir)
	}

	return e
}

func play(t *testing.T, s *Scheduler, elements ...*Element) {
	t.Helper()

	require.NoError(t, s.StateTransition(s.Root(), NullToReady))
	require.NoError(t, s.StateTransition(s.Root(), PausedToPlaying))
	for _, e := range elements {
		require.NoError(t, s.StateTransition(e, PausedToPlaying))
	}
}

func connect(t *testing.T, s *Scheduler, from *Element, src string, to *Element, sink string) {
	t.Helper()
	require.NoError(t, s.PadConnect(from.Port(src), to.Port(sink)))
}

// assertChainInvariants checks that every owned element sits in exactly one
// chain and that linked owned elements share it.
func assertChainInvariants(t *testing.T, s *Scheduler) {
	t.Helper()

	count := map[ElementID]int{}
	for _, c := range s.Chains() {
		assert.False(t, c.Destroyed())
		assert.NotZero(t, c.Len(), "empty chain %s", c.ID())
		for _, id := range c.Members() {
			count[id]++
			assert.Same(t, c, s.arena.Element(id).priv.chain)
		}
	}

	owned := 0
	for _, e := range s.arena.Elements() {
		if e.sched != s {
			continue
		}
		owned++
		assert.Equal(t, 1, count[e.id], "%s is in %d chains", e, count[e.id])

		for peer := range e.Peers() {
			if peer.sched == s {
				assert.Same(t, e.priv.chain, peer.priv.chain, "%s and %s are linked", e, peer)
			}
		}
	}
	assert.Equal(t, s.ElementCount(), owned)
}

func reactive(chain func(e *Element, p *Port, item any) error) Behavior {
	return Behavior{Chain: chain}
}

func forward(e *Element, p *Port, item any) error {
	return e.Port("src").Push(item)
}

func discard(e *Element, p *Port, item any) error {
	return nil
}
