package writer

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/arwalker/traceband"
)

// scriptedResponse is one entry of a fakeTransport's scripted Perform
// results, consumed in call order; the last entry repeats once exhausted.
type scriptedResponse struct {
	statusCode int
	body       string
	hasBody    bool
	err        error
}

// fakeTransport is an in-process stand-in for traceband.Transport, modeled
// on the reference suite's MockHandle: it records every Configure/
// SetHeaders/Perform call and returns pre-scripted results.
type fakeTransport struct {
	mu sync.Mutex

	configureErr    error
	configuredURL   string
	configuredSock  string
	configuredTimeout time.Duration
	configureCalls  int

	headerCalls  []map[string]string
	bodies       [][]byte
	performCalls int

	script []scriptedResponse

	closeCalls int
}

var _ traceband.Transport = (*fakeTransport)(nil)

func (f *fakeTransport) Configure(url, unixSocketPath string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configureCalls++
	f.configuredURL = url
	f.configuredSock = unixSocketPath
	f.configuredTimeout = timeout
	return f.configureErr
}

func (f *fakeTransport) SetHeaders(headers map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make(map[string]string, len(headers))
	for k, v := range headers {
		copied[k] = v
	}
	f.headerCalls = append(f.headerCalls, copied)
}

func (f *fakeTransport) Perform(body io.Reader, size int) traceband.TransportResult {
	b, _ := io.ReadAll(body)

	f.mu.Lock()
	f.bodies = append(f.bodies, b)
	idx := f.performCalls
	f.performCalls++
	resp := f.scriptAt(idx)
	f.mu.Unlock()

	if resp.err != nil {
		return traceband.TransportResult{Err: resp.err}
	}
	var rc io.ReadCloser
	if resp.hasBody {
		rc = io.NopCloser(strings.NewReader(resp.body))
	}
	return traceband.TransportResult{StatusCode: resp.statusCode, Body: rc}
}

func (f *fakeTransport) scriptAt(idx int) scriptedResponse {
	if len(f.script) == 0 {
		return scriptedResponse{}
	}
	if idx < len(f.script) {
		return f.script[idx]
	}
	return f.script[len(f.script)-1]
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *fakeTransport) performCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.performCalls
}

func (f *fakeTransport) headerCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.headerCalls)
}

func (f *fakeTransport) lastHeaders() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.headerCalls) == 0 {
		return nil
	}
	return f.headerCalls[len(f.headerCalls)-1]
}

// fakeSampler records every Configure call.
type fakeSampler struct {
	mu    sync.Mutex
	calls []string
}

func (s *fakeSampler) Configure(ratesJSON string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, ratesJSON)
}

func (s *fakeSampler) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// fakeLogger records every message logged, regardless of level.
type fakeLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *fakeLogger) Log(level traceband.LogLevel, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, message)
}

func (l *fakeLogger) last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.messages) == 0 {
		return ""
	}
	return l.messages[len(l.messages)-1]
}

func (l *fakeLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

func newTrace(traceID uint64) traceband.Trace {
	return traceband.Trace{{TraceID: traceID, SpanID: traceID, Service: "svc", Name: "op", Resource: "res"}}
}
