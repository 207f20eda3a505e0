package internal

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counters(sink *metrics.InmemSink) map[string]float64 {
	sums := map[string]float64{}
	for _, interval := range sink.Data() {
		for _, v := range interval.Counters {
			sums[v.Name] += v.Sum
		}
	}
	return sums
}

func gauges(sink *metrics.InmemSink) map[string]float32 {
	last := map[string]float32{}
	for _, interval := range sink.Data() {
		for _, v := range interval.Gauges {
			last[v.Name] = v.Value
		}
	}
	return last
}

func TestMetrics(t *testing.T) {
	sink := metrics.NewInmemSink(time.Minute, 5*time.Minute)
	a, s := newTestScheduler(t, WithMetricSink(sink), WithName("metered"))

	key := func(parts []string) string { return strings.Join(parts, ".") }

	e1 := newElement(a, "e1", Behavior{Loop: func(e *Element) {
		_ = e.Port("src").Push(1)
	}}, DirSrc)
	e2 := newElement(a, "e2", Behavior{Loop: func(e *Element) {
		item, err := e.Port("sink").Pull()
		if err != nil {
			return
		}
		_ = e.Port("src").Push(item)
	}}, DirSink, DirSrc)
	e3 := newElement(a, "e3", reactive(discard), DirSink)

	for _, e := range []*Element{e1, e2, e3} {
		require.NoError(t, s.AddElement(e))
	}
	connect(t, s, e2, "src", e3, "sink")
	require.Len(t, s.Chains(), 2)

	play(t, s, e1, e2, e3)
	for range 3 {
		require.Equal(t, StateRunning, s.Iterate())
	}

	got := counters(sink)
	assert.Equal(t, float64(3), got[key(MetricIterateCount)])
	assert.Equal(t, float64(3), got[key(MetricChainCreatedCount)])
	assert.Equal(t, float64(1), got[key(MetricChainMergedCount)])
	assert.Equal(t, float64(6), got[key(MetricScheduledUnits)])
	assert.Zero(t, got[key(MetricElementErrorCount)])

	assert.Equal(t, float32(2), gauges(sink)[key(MetricCothreads)])
}

func TestMetricsErrors(t *testing.T) {
	sink := metrics.NewInmemSink(time.Minute, 5*time.Minute)
	a, s := newTestScheduler(t, WithMetricSink(sink), WithMaxCothreads(1))

	key := func(parts []string) string { return strings.Join(parts, ".") }

	e1 := newElement(a, "e1", Behavior{Get: func(e *Element, p *Port) (any, error) { return 1, nil }}, DirSrc)
	e2 := newElement(a, "e2", reactive(func(e *Element, p *Port, item any) error { return errors.New("boom") }), DirSink)
	e3 := newElement(a, "e3", Behavior{Loop: func(e *Element) {}}, DirSrc)
	e4 := newElement(a, "e4", Behavior{Loop: func(e *Element) {}}, DirSrc)
	for _, e := range []*Element{e1, e2, e3, e4} {
		require.NoError(t, s.AddElement(e))
	}
	connect(t, s, e1, "src", e2, "sink")

	play(t, s, e1, e2, e3)
	assert.ErrorIs(t, s.StateTransition(e4, PausedToPlaying), ErrActivation)

	require.Equal(t, StateError, s.Iterate())

	got := counters(sink)
	assert.Equal(t, float64(1), got[key(MetricElementErrorCount)])
	assert.Equal(t, float64(1), got[key(MetricActivationFailedCount)])
}
