package sampler

import (
	"testing"

	"github.com/arwalker/traceband"
)

func TestConfigureStoresRates(t *testing.T) {
	s := New(nil, 100)
	s.Configure(`{"service:web,env:prod":0.5,"service:,env:":0.1}`)

	if got := s.Rate("web", "prod"); got != 0.5 {
		t.Errorf("Rate(web,prod) = %v, want 0.5", got)
	}
	if got := s.Rate("unknown", "unknown"); got != 0.1 {
		t.Errorf("Rate(unknown,unknown) = %v, want 0.1 (default)", got)
	}
}

func TestConfigureIgnoresMalformedJSON(t *testing.T) {
	s := New(nil, 100)
	s.Configure(`{"service:web,env:prod":0.5}`)
	s.Configure(`not json`)

	if got := s.Rate("web", "prod"); got != 0.5 {
		t.Errorf("Rate(web,prod) = %v, want 0.5 (unchanged after malformed update)", got)
	}
}

func TestRuleMatchByServiceAndTagGlob(t *testing.T) {
	s := New([]Rule{
		{Service: "checkout", TagGlobs: map[string]string{"http.route": "/cart/*"}, Rate: 1},
	}, 100)

	match := &traceband.Span{Service: "checkout", Meta: map[string]string{"http.route": "/cart/123"}}
	if !s.Sample(match) {
		t.Errorf("expected matching span to be sampled")
	}

	noRoute := &traceband.Span{Service: "checkout", Meta: map[string]string{"http.route": "/pay"}}
	if s.Sample(noRoute) {
		t.Errorf("expected non-matching tag glob to reject")
	}

	wrongService := &traceband.Span{Service: "billing", Meta: map[string]string{"http.route": "/cart/1"}}
	if s.Sample(wrongService) {
		t.Errorf("expected non-matching service to reject")
	}
}

func TestNoRulesNeverSamples(t *testing.T) {
	s := New(nil, 100)
	if s.Sample(&traceband.Span{Service: "anything"}) {
		t.Errorf("expected Sample to report false with no rules configured")
	}
}

func TestRateLimiterBoundsThroughput(t *testing.T) {
	s := New([]Rule{{Service: "hot", Rate: 1}}, 1)

	allowed := 0
	for i := 0; i < 10; i++ {
		if s.Sample(&traceband.Span{Service: "hot", TraceID: uint64(i)}) {
			allowed++
		}
	}
	if allowed == 0 {
		t.Errorf("expected at least one span allowed through the rate limiter")
	}
	if allowed > 1 {
		t.Errorf("allowed %d of 10 back-to-back spans at 1/s with burst 1, want 1", allowed)
	}
}
