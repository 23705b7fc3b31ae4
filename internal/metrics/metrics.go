// Package metrics exposes the Prometheus counters and summaries tracked by
// the trace assembly buffer and the agent writer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SpansDiscarded counts spans that FinishSpan dropped because no
	// matching registration was found.
	SpansDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "traceband_spans_discarded_total",
		Help: "Number of finished spans discarded for lacking a registerSpan call.",
	})

	// TracesDropped counts traces the agent writer never delivered,
	// labeled by the reason they were dropped.
	TracesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "traceband_traces_dropped_total",
		Help: "Number of traces dropped by the agent writer, by reason.",
	}, []string{"reason"})

	// QueueDepth reports the number of traces currently queued for the
	// next flush.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "traceband_writer_queue_depth",
		Help: "Number of traces currently queued in the agent writer.",
	})

	// FlushDuration measures how long sending one batch took, across all
	// of its Perform attempts and retry waits.
	FlushDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Name: "traceband_writer_flush_duration_seconds",
		Help: "Time taken to send one batch of traces to the agent, including retries.",
	})

	// PerformAttempts counts every Perform call, including retries.
	PerformAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "traceband_writer_perform_attempts_total",
		Help: "Number of HTTP POST attempts made to the trace agent, including retries.",
	})
)

func init() {
	prometheus.MustRegister(SpansDiscarded)
	prometheus.MustRegister(TracesDropped)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(FlushDuration)
	prometheus.MustRegister(PerformAttempts)
}
