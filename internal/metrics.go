package internal

import (
	"log/slog"
	"time"

	"github.com/hashicorp/go-metrics"
)

var (
	MetricIterateCount          = []string{"cosched", "iterate", "count"}
	MetricIterateDuration       = []string{"cosched", "iterate", "duration", "ms"}
	MetricScheduledUnits        = []string{"cosched", "scheduled", "units"}
	MetricChainCreatedCount     = []string{"cosched", "chain", "created", "count"}
	MetricChainDestroyedCount   = []string{"cosched", "chain", "destroyed", "count"}
	MetricChainMergedCount      = []string{"cosched", "chain", "merged", "count"}
	MetricChainRebuiltCount     = []string{"cosched", "chain", "rebuilt", "count"}
	MetricChains                = []string{"cosched", "chains"}
	MetricHandoffCount          = []string{"cosched", "handoff", "count"}
	MetricElementErrorCount     = []string{"cosched", "element", "error", "count"}
	MetricActivationFailedCount = []string{"cosched", "element", "activation", "failed", "count"}
	MetricCothreads             = []string{"cosched", "cothreads"}
)

type TelemetryLabel string

var (
	LabelScheduler TelemetryLabel = "scheduler"
	LabelChain     TelemetryLabel = "chain"
	LabelElement   TelemetryLabel = "element"
	LabelPort      TelemetryLabel = "port"
	LabelState     TelemetryLabel = "state"
	LabelError     TelemetryLabel = "error"
)

func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

func (lab TelemetryLabel) L(val any) slog.Attr {
	return slog.Attr{
		Key:   string(lab),
		Value: slog.AnyValue(val),
	}
}

func (s *Scheduler) labels(extra ...metrics.Label) []metrics.Label {
	labels := make([]metrics.Label, 0, len(s.cfg.metricLabels)+len(extra)+1)
	labels = append(labels, s.cfg.metricLabels...)
	labels = append(labels, LabelScheduler.M(s.cfg.name))
	return append(labels, extra...)
}

func (s *Scheduler) incr(key []string, val float32, extra ...metrics.Label) {
	s.cfg.metricSink.IncrCounterWithLabels(key, val, s.labels(extra...))
}

func (s *Scheduler) gauge(key []string, val float32) {
	s.cfg.metricSink.SetGaugeWithLabels(key, val, s.labels())
}

func (s *Scheduler) measureSince(key []string, start time.Time) {
	elapsed := float32(time.Since(start).Seconds() * 1000)
	s.cfg.metricSink.AddSampleWithLabels(key, elapsed, s.labels())
}
