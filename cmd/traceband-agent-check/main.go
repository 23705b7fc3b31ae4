// traceband-agent-check is a smoke-test tool: it constructs an agent
// writer against a real collector, sends one synthetic trace, flushes, and
// prints the sampling rate the collector's rate_by_service response left for
// this tool's own service.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arwalker/traceband"
	"github.com/arwalker/traceband/internal/buffer"
	tblog "github.com/arwalker/traceband/internal/log"
	"github.com/arwalker/traceband/internal/sampler"
	"github.com/arwalker/traceband/internal/writer"
	"github.com/arwalker/traceband/third_party/envy"
)

var (
	host      = flag.String("host", "localhost", "trace agent host")
	port      = flag.Int("port", 8126, "trace agent port")
	urlFlag   = flag.String("url", "", "override the agent URL (http(s)://host:port, unix:///path, or a bare socket path)")
	debugAddr = flag.String("debug-addr", "", "address to serve Prometheus metrics on (empty disables)")
)

func main() {
	envy.Parse("TRACEBAND")
	flag.Parse()

	if *debugAddr != "" {
		go serveDebug(*debugAddr)
	}

	rates := sampler.New(nil, 100)
	w, err := writer.New(writer.Config{
		Host:        *host,
		Port:        uint16(*port),
		URLOverride: *urlFlag,
		Transport:   writer.NewHTTPTransport(),
		Sampler:     rates,
		Logger:      tblog.Default,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "traceband-agent-check:", err)
		os.Exit(1)
	}
	defer w.Stop()

	buf := buffer.New(w, tblog.Default)

	ctx := traceband.NewSpanContext(1, 1)
	buf.RegisterSpan(ctx)
	buf.FinishSpan(&traceband.Span{
		TraceID:  ctx.TraceID,
		SpanID:   ctx.SpanID,
		Service:  "traceband-agent-check",
		Name:     "check.ping",
		Resource: "ping",
		Start:    time.Now().UnixNano(),
		Duration: int64(time.Millisecond),
	})
	w.Flush(5 * time.Second)

	fmt.Printf("sample rate (service=traceband-agent-check, env=): %g\n",
		rates.Rate("traceband-agent-check", ""))
}

func serveDebug(addr string) {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	glog.Infof("debug server listening on %s", addr)
	glog.Fatal(http.ListenAndServe(addr, r))
}
