package cosched

import (
	"log/slog"

	"github.com/AnatoleLucet/cosched/internal"
	"github.com/hashicorp/go-metrics"
)

type (
	ElementID  = internal.ElementID
	State      = internal.State
	Transition = internal.Transition
	Direction  = internal.Direction
	Option     = internal.Option
)

const (
	StateNone    = internal.StateNone
	StateStopped = internal.StateStopped
	StateError   = internal.StateError
	StateRunning = internal.StateRunning
)

const (
	NullToReady     = internal.NullToReady
	ReadyToPaused   = internal.ReadyToPaused
	PausedToPlaying = internal.PausedToPlaying
	PlayingToPaused = internal.PlayingToPaused
	PausedToReady   = internal.PausedToReady
	ReadyToNull     = internal.ReadyToNull
)

const (
	DirSrc  = internal.DirSrc
	DirSink = internal.DirSink
)

var (
	ErrInvalidCfg            = internal.ErrInvalidCfg
	ErrActivation            = internal.ErrActivation
	ErrTopologyConfiguration = internal.ErrTopologyConfiguration
	ErrEntryMissing          = internal.ErrEntryMissing
	ErrElementRuntime        = internal.ErrElementRuntime
	ErrElementPanic          = internal.ErrElementPanic
	ErrElementOwned          = internal.ErrElementOwned
	ErrNotOwned              = internal.ErrNotOwned
	ErrBusy                  = internal.ErrBusy
	ErrTopologyInvariant     = internal.ErrTopologyInvariant
	ErrDeadlock              = internal.ErrDeadlock
	ErrCothreadExhausted     = internal.ErrCothreadExhausted
	ErrPortDirection         = internal.ErrPortDirection
	ErrPortLinked            = internal.ErrPortLinked
	ErrNotLinked             = internal.ErrNotLinked
	ErrPortInactive          = internal.ErrPortInactive
	ErrInterrupted           = internal.ErrInterrupted
	ErrEOS                   = internal.ErrEOS
)

// WithName sets the name of the scheduler and of its root element.
func WithName(name string) Option { return internal.WithName(name) }

// WithLog specifies which slog.Handler to use.
func WithLog(handler slog.Handler) Option { return internal.WithLog(handler) }

// WithMetricSink allows you to chose how to collect the metrics emitted by
// the scheduler.
func WithMetricSink(ms metrics.MetricSink) Option { return internal.WithMetricSink(ms) }

// WithMetricLabels adds static labels to all metrics produced by the scheduler.
func WithMetricLabels(labels []metrics.Label) Option { return internal.WithMetricLabels(labels) }

// WithIterations sets how many scheduling passes a single Iterate call runs.
// A negative value keeps running passes until one schedules nothing.
func WithIterations(n int) Option { return internal.WithIterations(n) }

// WithMaxRecursion bounds how many times a handoff switches to its peer
// before the link is considered deadlocked.
func WithMaxRecursion(n int) Option { return internal.WithMaxRecursion(n) }

// WithMaxCothreads limits how many cothreads may be alive at once.
func WithMaxCothreads(n int) Option { return internal.WithMaxCothreads(n) }
