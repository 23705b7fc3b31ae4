package traceband

// Span is an immutable record of a finished unit of work. It is created by
// the application, handed to the trace assembly buffer on finish, owned by
// the buffer until it is included in a released Trace, and finally owned by
// the agent writer until it is shipped.
type Span struct {
	TraceID  uint64            `msg:"trace_id"`
	SpanID   uint64            `msg:"span_id"`
	ParentID uint64            `msg:"parent_id"`
	Service  string            `msg:"service"`
	Name     string            `msg:"name"`
	Resource string            `msg:"resource"`
	Type     string            `msg:"type"`
	Start    int64             `msg:"start"`
	Duration int64             `msg:"duration"`
	Error    int32             `msg:"error"`
	Meta     map[string]string `msg:"meta,omitempty"`
}

// SpanContext is the lightweight handle an application carries to register a
// span against the trace assembly buffer before it is finished. Multiple
// SpanContexts may share a TraceID.
type SpanContext struct {
	TraceID uint64
	SpanID  uint64

	// baggage holds opaque propagated key/value pairs. It is not
	// inspected by the buffer or the writer.
	baggage map[string]string
}

// NewSpanContext returns a SpanContext for the given trace and span IDs.
func NewSpanContext(traceID, spanID uint64) SpanContext {
	return SpanContext{TraceID: traceID, SpanID: spanID}
}

// WithBaggageItem returns a copy of ctx with the given baggage item set.
func (ctx SpanContext) WithBaggageItem(key, val string) SpanContext {
	baggage := make(map[string]string, len(ctx.baggage)+1)
	for k, v := range ctx.baggage {
		baggage[k] = v
	}
	baggage[key] = val
	ctx.baggage = baggage
	return ctx
}

// ForeachBaggageItem iterates over the baggage held by ctx, stopping early if
// handler returns false.
func (ctx SpanContext) ForeachBaggageItem(handler func(k, v string) bool) {
	for k, v := range ctx.baggage {
		if !handler(k, v) {
			return
		}
	}
}

// Trace is the unit handed to the agent writer: an unordered collection of
// completed spans sharing a TraceID. Order of spans within a trace is not
// specified and need not be stable.
type Trace []*Span
