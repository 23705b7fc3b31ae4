package writer

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	aia "github.com/fcjr/aia-transport-go"

	"github.com/arwalker/traceband"
)

// httpTransport implements traceband.Transport over net/http. It is the
// concrete transport the agent writer uses outside of tests: a single
// *http.Client reused across requests, with headers replaced (never
// appended) between sends to avoid the documented header-duplication
// regression.
type httpTransport struct {
	url     string
	client  *http.Client
	headers map[string]string
}

var _ traceband.Transport = (*httpTransport)(nil)

// NewHTTPTransport returns an unconfigured traceband.Transport backed by
// net/http. Call Configure (done automatically by writer.New) before using
// it.
func NewHTTPTransport() traceband.Transport {
	return &httpTransport{}
}

// Configure implements traceband.Transport.
func (t *httpTransport) Configure(url, unixSocketPath string, timeout time.Duration) error {
	transport, err := baseTransport(url)
	if err != nil {
		return err
	}
	transport.Proxy = http.ProxyFromEnvironment
	transport.DialContext = (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.MaxIdleConns = 100
	transport.IdleConnTimeout = 90 * time.Second
	transport.TLSHandshakeTimeout = 10 * time.Second
	transport.ExpectContinueTimeout = 1 * time.Second
	if unixSocketPath != "" {
		dialer := &net.Dialer{Timeout: 30 * time.Second}
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", unixSocketPath)
		}
	}

	t.url = url
	t.client = &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
	return nil
}

// baseTransport returns the *http.Transport to customize for the agent
// connection. For https:// endpoints it starts from an AIA-chasing
// transport so a collector behind a TLS proxy presenting an incomplete
// chain (missing intermediates) still verifies, rather than failing the
// handshake; every other scheme gets a plain transport.
func baseTransport(url string) (*http.Transport, error) {
	if !strings.HasPrefix(url, "https://") {
		return &http.Transport{}, nil
	}
	transport, err := aia.NewTransport()
	if err != nil {
		return nil, fmt.Errorf("traceband: failed to build AIA-chasing TLS transport: %w", err)
	}
	return transport, nil
}

// SetHeaders implements traceband.Transport.
func (t *httpTransport) SetHeaders(headers map[string]string) {
	copied := make(map[string]string, len(headers))
	for k, v := range headers {
		copied[k] = v
	}
	t.headers = copied
}

// Perform implements traceband.Transport.
func (t *httpTransport) Perform(body io.Reader, size int) traceband.TransportResult {
	req, err := http.NewRequest(http.MethodPost, t.url, body)
	if err != nil {
		return traceband.TransportResult{Err: err}
	}
	for header, value := range t.headers {
		req.Header.Set(header, value)
	}
	req.ContentLength = int64(size)

	resp, err := t.client.Do(req)
	if err != nil {
		return traceband.TransportResult{Err: err}
	}
	return traceband.TransportResult{StatusCode: resp.StatusCode, Body: resp.Body}
}

// Close implements traceband.Transport.
func (t *httpTransport) Close() error {
	if t.client != nil {
		t.client.CloseIdleConnections()
	}
	return nil
}
