// Package writer implements the agent writer: a bounded queue, a single
// background worker, and the retry and response-handling policy that ships
// batches of traces to a local collector agent.
package writer

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arwalker/traceband"
	"github.com/arwalker/traceband/internal/metrics"
	"github.com/arwalker/traceband/internal/msgpack"
	"github.com/arwalker/traceband/internal/version"
)

// DefaultMaxQueuedTraces is the documented default queue capacity.
const DefaultMaxQueuedTraces = 100

// defaultFlushInterval is how often the worker ships whatever has queued,
// absent an explicit Flush call.
const defaultFlushInterval = 2 * time.Second

// requestTimeout is the fixed per-request timeout passed to the transport.
const requestTimeout = 2000 * time.Millisecond

// Config carries the agent writer's construction parameters.
type Config struct {
	Host         string
	Port         uint16
	URLOverride  string
	Transport    traceband.Transport
	Sampler      traceband.Sampler
	Logger       traceband.Logger
	FlushInterval    time.Duration
	MaxQueuedTraces  int
	RetryPeriods     []time.Duration
}

// AgentWriter batches, encodes and ships traces to a collector agent over a
// single background worker goroutine.
type AgentWriter struct {
	transport traceband.Transport
	sampler   traceband.Sampler
	logger    traceband.Logger

	flushInterval   time.Duration
	maxQueuedTraces int
	retryPeriods    []time.Duration

	mu    sync.Mutex
	queue []traceband.Trace

	flushCh chan chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	stopOnce sync.Once
}

// New constructs an AgentWriter. It resolves the effective URL from
// cfg.Host, cfg.Port and cfg.URLOverride, performs a single validation
// probe on cfg.Transport by calling Configure, and starts the background
// worker. An unsupported URL scheme or a failing probe fails construction;
// no worker is started in that case.
func New(cfg Config) (*AgentWriter, error) {
	effectiveURL, unixSocketPath, err := resolveEndpoint(cfg.Host, cfg.Port, cfg.URLOverride)
	if err != nil {
		return nil, err
	}
	if err := cfg.Transport.Configure(effectiveURL, unixSocketPath, requestTimeout); err != nil {
		return nil, fmt.Errorf("traceband: transport probe failed: %w", err)
	}

	maxQueued := cfg.MaxQueuedTraces
	if maxQueued <= 0 {
		maxQueued = DefaultMaxQueuedTraces
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	w := &AgentWriter{
		transport:       cfg.Transport,
		sampler:         cfg.Sampler,
		logger:          cfg.Logger,
		flushInterval:   flushInterval,
		maxQueuedTraces: maxQueued,
		retryPeriods:    cfg.RetryPeriods,
		flushCh:         make(chan chan struct{}),
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
	go w.run()
	return w, nil
}

var _ traceband.Sink = (*AgentWriter)(nil)

// WriteTrace implements traceband.Sink, letting an AgentWriter be handed
// straight to buffer.New as the Buffer's release target.
func (w *AgentWriter) WriteTrace(trace traceband.Trace) {
	w.Write(trace)
}

// Write enqueues trace for the next flush. If the queue is already at
// maxQueuedTraces, trace is dropped silently. Write is a no-op after Stop.
func (w *AgentWriter) Write(trace traceband.Trace) {
	select {
	case <-w.stopCh:
		return
	default:
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) >= w.maxQueuedTraces {
		metrics.TracesDropped.WithLabelValues("queue_full").Inc()
		return
	}
	w.queue = append(w.queue, trace)
	metrics.QueueDepth.Set(float64(len(w.queue)))
}

// Flush asks the worker to ship whatever is queued right now and waits up
// to timeout for it to finish. If timeout elapses first, Flush returns
// anyway; the worker keeps working (including any retry backoff) in the
// background. Flush is a no-op after Stop.
func (w *AgentWriter) Flush(timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	req := make(chan struct{})
	select {
	case w.flushCh <- req:
	case <-w.doneCh:
		return
	case <-timer.C:
		return
	}
	select {
	case <-req:
	case <-timer.C:
	}
}

// Stop signals the worker to stop accepting further sends, performs one
// final best-effort send of whatever remains queued, and releases the
// transport. Stop is idempotent and safe to call more than once.
func (w *AgentWriter) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.doneCh
	})
}

func (w *AgentWriter) run() {
	defer func() {
		w.transport.Close()
		close(w.doneCh)
	}()

	timer := time.NewTimer(w.flushInterval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			w.cycle(true)
			timer.Reset(w.flushInterval)
		case req := <-w.flushCh:
			w.cycle(true)
			close(req)
			timer.Reset(w.flushInterval)
		case <-w.stopCh:
			w.cycle(false)
			return
		}
	}
}

// cycle swaps the queue into a local batch and, if non-empty, encodes and
// sends it. withRetry selects whether transport-level failures are retried
// per retryPeriods (the normal path) or attempted once (the shutdown path).
func (w *AgentWriter) cycle(withRetry bool) {
	batch := w.swap()
	if len(batch) == 0 {
		return
	}

	payload := msgpack.NewPayload()
	for _, trace := range batch {
		if err := payload.Push(trace); err != nil {
			w.logger.Log(traceband.LogError, fmt.Sprintf("traceband: failed to encode batch: %s", err))
			metrics.TracesDropped.WithLabelValues("encode_error").Inc()
			return
		}
	}

	start := time.Now()
	result, ok := w.send(payload, withRetry)
	metrics.FlushDuration.Observe(time.Since(start).Seconds())
	if !ok {
		w.logger.Log(traceband.LogError, fmt.Sprintf("Error sending traces to agent: %s", result.Err))
		metrics.TracesDropped.WithLabelValues("send_failed").Inc()
		return
	}
	w.handleResult(result)
}

func (w *AgentWriter) swap() []traceband.Trace {
	w.mu.Lock()
	defer w.mu.Unlock()
	batch := w.queue
	w.queue = nil
	metrics.QueueDepth.Set(0)
	return batch
}

func (w *AgentWriter) send(payload *msgpack.Payload, withRetry bool) (traceband.TransportResult, bool) {
	w.transport.SetHeaders(w.headers(payload.ItemCount()))

	attempt := func() traceband.TransportResult {
		metrics.PerformAttempts.Inc()
		return w.transport.Perform(payload.Reader(), payload.Size())
	}

	result := attempt()
	if result.Err == nil {
		return result, true
	}
	if !withRetry {
		return result, false
	}

	for _, period := range w.retryPeriods {
		select {
		case <-time.After(period):
		case <-w.stopCh:
			return result, false
		}
		result = attempt()
		if result.Err == nil {
			return result, true
		}
	}
	return result, false
}

func (w *AgentWriter) headers(traceCount int) map[string]string {
	return map[string]string{
		"Content-Type":                "application/msgpack",
		"Datadog-Meta-Lang":           "go",
		"Datadog-Meta-Tracer-Version": version.Tag,
		"Datadog-Meta-Lang-Version":   strings.TrimPrefix(runtime.Version(), "go"),
		"X-Datadog-Trace-Count":       strconv.Itoa(traceCount),
	}
}

// agentResponse is the shape of a successful agent response body.
type agentResponse struct {
	RateByService map[string]float64 `json:"rate_by_service"`
}

func (w *AgentWriter) handleResult(result traceband.TransportResult) {
	if result.StatusCode == 0 {
		w.logger.Log(traceband.LogError, "response without an HTTP status")
		metrics.TracesDropped.WithLabelValues("no_status").Inc()
		return
	}

	var body []byte
	if result.Body != nil {
		body, _ = io.ReadAll(result.Body)
		result.Body.Close()
	}

	if result.StatusCode != 200 {
		w.logger.Log(traceband.LogError, fmt.Sprintf("agent responded with status %d ", result.StatusCode))
		metrics.TracesDropped.WithLabelValues("bad_status").Inc()
		return
	}

	if len(body) == 0 {
		w.logger.Log(traceband.LogError, "response without a body")
		metrics.TracesDropped.WithLabelValues("empty_body").Inc()
		return
	}

	var parsed agentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		w.logger.Log(traceband.LogError, parseErrorMessage(body, err))
		metrics.TracesDropped.WithLabelValues("bad_json").Inc()
		return
	}

	rates, err := json.Marshal(parsed.RateByService)
	if err != nil {
		w.logger.Log(traceband.LogError, parseErrorMessage(body, err))
		return
	}
	w.sampler.Configure(string(rates))
}

// parseErrorMessage formats the "malformed JSON" diagnostic, windowing the
// offending body around the parser's reported byte offset when available.
func parseErrorMessage(body []byte, err error) string {
	return fmt.Sprintf("Unable to parse response from agent.\nError was: %s\nError near: %s", err, errorWindow(body, err))
}

func errorWindow(body []byte, err error) string {
	const radius = 32
	offset := len(body)
	if se, ok := err.(*json.SyntaxError); ok {
		offset = int(se.Offset)
	}
	start := offset - radius
	if start < 0 {
		start = 0
	}
	end := offset + radius
	if end > len(body) {
		end = len(body)
	}
	return string(body[start:end])
}
