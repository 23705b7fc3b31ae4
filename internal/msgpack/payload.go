// Package msgpack streams the agent writer's batch of traces into a
// MessagePack request body, hand-encoding with msgp's low-level Writer
// field by field rather than relying on generated Encode/Decode methods.
package msgpack

import (
	"bytes"
	"io"

	"github.com/tinylib/msgp/msgp"

	"github.com/arwalker/traceband"
)

// Payload accumulates traces as an array-of-traces / array-of-spans /
// map-of-fields MessagePack body. It is not safe for concurrent use, and is
// meant to be built once and read (possibly more than once, across retry
// attempts) before being discarded.
type Payload struct {
	count int
	buf   bytes.Buffer
}

// NewPayload returns an empty Payload.
func NewPayload() *Payload {
	return &Payload{}
}

// Push appends trace to the payload as one more element of the outer array.
func (p *Payload) Push(trace traceband.Trace) error {
	w := msgp.NewWriter(&p.buf)
	if err := encodeTrace(w, trace); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	p.count++
	return nil
}

// ItemCount returns the number of traces pushed so far; it is the value
// the agent writer reports in the X-Datadog-Trace-Count header.
func (p *Payload) ItemCount() int {
	return p.count
}

// Size returns the total encoded size of the payload, including the outer
// array header, as reported in the Content-Length header.
func (p *Payload) Size() int {
	return len(arrayHeader(p.count)) + p.buf.Len()
}

// Reader returns a fresh io.Reader over the full encoded payload. Each call
// returns an independent reader starting from the beginning, so a failed
// Perform attempt can be retried by requesting a new Reader rather than
// re-encoding.
func (p *Payload) Reader() io.Reader {
	return io.MultiReader(bytes.NewReader(arrayHeader(p.count)), bytes.NewReader(p.buf.Bytes()))
}

func arrayHeader(count int) []byte {
	return msgp.AppendArrayHeader(nil, uint32(count))
}

func encodeTrace(w *msgp.Writer, trace traceband.Trace) error {
	if err := w.WriteArrayHeader(uint32(len(trace))); err != nil {
		return err
	}
	for _, span := range trace {
		if err := encodeSpan(w, span); err != nil {
			return err
		}
	}
	return nil
}

func encodeSpan(w *msgp.Writer, span *traceband.Span) error {
	fields := uint32(10)
	if len(span.Meta) > 0 {
		fields++
	}
	if err := w.WriteMapHeader(fields); err != nil {
		return err
	}

	pairs := []struct {
		key   string
		write func() error
	}{
		{"trace_id", func() error { return w.WriteUint64(span.TraceID) }},
		{"span_id", func() error { return w.WriteUint64(span.SpanID) }},
		{"parent_id", func() error { return w.WriteUint64(span.ParentID) }},
		{"service", func() error { return w.WriteString(span.Service) }},
		{"name", func() error { return w.WriteString(span.Name) }},
		{"resource", func() error { return w.WriteString(span.Resource) }},
		{"type", func() error { return w.WriteString(span.Type) }},
		{"start", func() error { return w.WriteInt64(span.Start) }},
		{"duration", func() error { return w.WriteInt64(span.Duration) }},
		{"error", func() error { return w.WriteInt32(span.Error) }},
	}
	for _, pair := range pairs {
		if err := w.WriteString(pair.key); err != nil {
			return err
		}
		if err := pair.write(); err != nil {
			return err
		}
	}

	if len(span.Meta) > 0 {
		if err := w.WriteString("meta"); err != nil {
			return err
		}
		if err := w.WriteMapHeader(uint32(len(span.Meta))); err != nil {
			return err
		}
		for k, v := range span.Meta {
			if err := w.WriteString(k); err != nil {
				return err
			}
			if err := w.WriteString(v); err != nil {
				return err
			}
		}
	}
	return nil
}
