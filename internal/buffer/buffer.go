// Package buffer implements the trace assembly buffer: a thread-safe
// in-memory registry that groups spans into traces, holds partial traces
// until every registered span in the trace has finished, and then hands
// completed traces to a sink.
package buffer

import (
	"fmt"
	"sync"

	"github.com/arwalker/traceband"
	"github.com/arwalker/traceband/internal/metrics"
)

// pendingTrace is the buffer's per-trace bookkeeping. Invariant A: a
// pendingTrace exists in Buffer.traces iff at least one span with its
// trace ID has been registered and not yet released in a completed batch.
// Invariant B: registered and the set of span IDs already present in
// finished are disjoint.
type pendingTrace struct {
	registered map[uint64]struct{}
	finished   []*traceband.Span
}

// Buffer groups spans by trace ID and releases a trace to its sink once
// every span registered against that trace ID has finished. Buffer never
// fails its own operations: unmatched finishes are logged and discarded,
// since the buffer is not the source of truth for delivery.
type Buffer struct {
	mu     sync.Mutex
	traces map[uint64]*pendingTrace

	sink   traceband.Sink
	logger traceband.Logger
}

// New returns a Buffer that releases completed traces to sink and reports
// diagnostics through logger.
func New(sink traceband.Sink, logger traceband.Logger) *Buffer {
	return &Buffer{
		traces: make(map[uint64]*pendingTrace),
		sink:   sink,
		logger: logger,
	}
}

// RegisterSpan declares that a span with ctx.SpanID under ctx.TraceID is
// in-flight. The test suite registers each span exactly once; whether a
// second registration of the same (trace ID, span ID) pair is idempotent is
// unspecified and callers should not rely on either outcome.
func (b *Buffer) RegisterSpan(ctx traceband.SpanContext) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pt, ok := b.traces[ctx.TraceID]
	if !ok {
		pt = &pendingTrace{registered: make(map[uint64]struct{})}
		b.traces[ctx.TraceID] = pt
	}
	pt.registered[ctx.SpanID] = struct{}{}
}

// FinishSpan deposits a completed span, transferring its ownership to the
// buffer. If no pendingTrace exists for span.TraceID, or span.SpanID was
// never registered against it, the span is discarded and a diagnostic is
// logged; the remaining registered spans continue to gate release. Once the
// registered set empties, the pendingTrace is atomically removed and its
// finished spans are handed to the sink as one completed Trace. A later
// RegisterSpan for the same trace ID starts a fresh pendingTrace.
func (b *Buffer) FinishSpan(span *traceband.Span) {
	b.mu.Lock()

	pt, ok := b.traces[span.TraceID]
	if !ok {
		b.mu.Unlock()
		b.discard(span, "no pending trace")
		return
	}
	if _, ok := pt.registered[span.SpanID]; !ok {
		b.mu.Unlock()
		b.discard(span, "span was not registered")
		return
	}

	delete(pt.registered, span.SpanID)
	pt.finished = append(pt.finished, span)

	if len(pt.registered) > 0 {
		b.mu.Unlock()
		return
	}

	delete(b.traces, span.TraceID)
	trace := traceband.Trace(pt.finished)
	b.mu.Unlock()

	b.sink.WriteTrace(trace)
}

func (b *Buffer) discard(span *traceband.Span, reason string) {
	metrics.SpansDiscarded.Inc()
	if b.logger != nil {
		b.logger.Log(traceband.LogWarn, fmt.Sprintf(
			"dropping span %d of trace %d: %s", span.SpanID, span.TraceID, reason))
	}
}
