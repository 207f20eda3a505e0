package internal

import (
	"errors"
	"log/slog"

	"github.com/hashicorp/go-metrics"
)

const (
	DefaultName         = "pipeline"
	DefaultIterations   = 1
	DefaultMaxRecursion = 100
)

type config struct {
	name         string
	logHandler   slog.Handler
	metricSink   metrics.MetricSink
	metricLabels []metrics.Label

	// passes per Iterate call, negative means until nothing is scheduled
	iterations int

	// how many switches a handoff may take before it is declared deadlocked
	maxRecursion int

	// live cothread limit, 0 means unbounded
	maxCothreads int
}

func defaultConfig() *config {
	return &config{
		name:         DefaultName,
		metricSink:   &metrics.BlackholeSink{},
		iterations:   DefaultIterations,
		maxRecursion: DefaultMaxRecursion,
	}
}

// Option to pass to NewScheduler.
type Option func(*config) error

// WithName sets the name of the scheduler and of its root element.
func WithName(name string) Option {
	return func(c *config) error {
		if name == "" {
			return errors.New("name must not be empty")
		}
		c.name = name
		return nil
	}
}

// WithLog specifies which slog.Handler to use.
func WithLog(handler slog.Handler) Option {
	return func(c *config) error {
		c.logHandler = handler
		return nil
	}
}

// WithMetricSink allows you to chose how to collect the metrics emitted by
// the scheduler.
func WithMetricSink(ms metrics.MetricSink) Option {
	return func(c *config) error {
		if ms == nil {
			ms = &metrics.BlackholeSink{}
		}
		c.metricSink = ms
		return nil
	}
}

// WithMetricLabels adds static labels to all metrics produced by the scheduler.
func WithMetricLabels(labels []metrics.Label) Option {
	return func(c *config) error {
		c.metricLabels = labels
		return nil
	}
}

// WithIterations sets how many scheduling passes a single Iterate call runs.
// A negative value keeps running passes until one schedules nothing.
func WithIterations(n int) Option {
	return func(c *config) error {
		if n == 0 {
			return errors.New("iterations must not be 0")
		}
		c.iterations = n
		return nil
	}
}

// WithMaxRecursion bounds how many times a handoff switches to its peer
// before the link is considered deadlocked.
func WithMaxRecursion(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return errors.New("max recursion must be positive")
		}
		c.maxRecursion = n
		return nil
	}
}

// WithMaxCothreads limits how many cothreads may be alive at once.
// Activating a loop-driven element past the limit fails for that element only.
func WithMaxCothreads(n int) Option {
	return func(c *config) error {
		if n < 0 {
			return errors.New("max cothreads must not be negative")
		}
		c.maxCothreads = n
		return nil
	}
}
