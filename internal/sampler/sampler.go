// Package sampler implements a rules-based sampling decision on top of the
// glob matcher, together with the per-service rate table fed back from the
// agent's response. It is the concrete traceband.Sampler used outside of
// tests: an ordered list of rules matched against a span's service, name,
// and tag values (via glob.Match rather than regexp), backed by a rate
// limiter that caps the volume of rule-matched spans.
package sampler

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/arwalker/traceband"
	"github.com/arwalker/traceband/internal/glob"
)

// defaultRateKey is the sentinel rate_by_service key the agent uses to carry
// the fallback rate when no more specific key matches.
const defaultRateKey = "service:,env:"

// Rule matches spans by exact service name, exact operation name, and any
// number of tag-value glob patterns. A zero-value field in Service or Name
// matches anything; TagGlobs is matched against traceband.Span.Meta.
type Rule struct {
	Service  string
	Name     string
	TagGlobs map[string]string
	Rate     float64
}

func (r Rule) match(span *traceband.Span) bool {
	if r.Service != "" && r.Service != span.Service {
		return false
	}
	if r.Name != "" && r.Name != span.Name {
		return false
	}
	for tag, pattern := range r.TagGlobs {
		val, ok := span.Meta[tag]
		if !ok || !glob.Match(pattern, val) {
			return false
		}
	}
	return true
}

// RulesSampler holds an ordered list of Rules, a rate limiter capping the
// volume of rule-matched spans, and the per-service rate table the agent
// writer populates from the collector's response. It implements
// traceband.Sampler and is safe for concurrent use.
type RulesSampler struct {
	rules   []Rule
	limiter *rateLimiter

	mu             sync.RWMutex
	ratesByService map[string]float64
	defaultRate    float64
}

// New returns a RulesSampler evaluating rules in order, capping rule-matched
// throughput at rateLimit spans per second.
func New(rules []Rule, rateLimit float64) *RulesSampler {
	return &RulesSampler{
		rules:          rules,
		limiter:        newRateLimiter(rateLimit),
		ratesByService: make(map[string]float64),
		defaultRate:    1,
	}
}

var _ traceband.Sampler = (*RulesSampler)(nil)

// Configure implements traceband.Sampler. ratesJSON is the compact
// rate_by_service JSON object the agent writer extracts from the
// collector's response.
func (rs *RulesSampler) Configure(ratesJSON string) {
	var rates map[string]float64
	if err := json.Unmarshal([]byte(ratesJSON), &rates); err != nil {
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.ratesByService = rates
	if v, ok := rs.ratesByService[defaultRateKey]; ok {
		rs.defaultRate = v
		delete(rs.ratesByService, defaultRateKey)
	}
}

// Rate returns the current sampling rate the agent has assigned to the
// given service/env pair, falling back to the default rate.
func (rs *RulesSampler) Rate(service, env string) float64 {
	key := "service:" + service + ",env:" + env
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	if r, ok := rs.ratesByService[key]; ok {
		return r
	}
	return rs.defaultRate
}

// Sample reports whether span should be kept. A matching rule's rate is
// combined with the rate limiter; spans matching no rule fall through to
// the caller's own priority-sampling decision (Sample reports false and
// leaves span untouched in that case).
func (rs *RulesSampler) Sample(span *traceband.Span) bool {
	var matched bool
	var samplingRate float64
	for _, r := range rs.rules {
		if r.match(span) {
			matched = true
			samplingRate = r.Rate
			break
		}
	}
	if !matched {
		return false
	}

	if !sampledByRate(span.TraceID, samplingRate) {
		return false
	}
	allowed, _ := rs.limiter.allowOne(time.Now())
	return allowed
}

// knuthFactor matches the collector's own deterministic sampling hash.
const knuthFactor = uint64(1111111111111111111)

func sampledByRate(traceID uint64, rate float64) bool {
	if rate >= 1 {
		return true
	}
	if rate <= 0 {
		return false
	}
	return traceID*knuthFactor < uint64(rate*math.MaxUint64)
}

// rateLimiter wraps golang.org/x/time/rate.Limiter, additionally tracking
// the effective allow rate over the previous one-second window.
type rateLimiter struct {
	limiter *rate.Limiter

	mu       sync.Mutex
	prevTime time.Time
	prevRate float64
	allowed  int
	seen     int
}

func newRateLimiter(limit float64) *rateLimiter {
	if limit <= 0 {
		limit = 100
	}
	return &rateLimiter{
		limiter:  rate.NewLimiter(rate.Limit(limit), int(math.Ceil(limit))),
		prevTime: time.Now(),
	}
}

func (r *rateLimiter) allowOne(now time.Time) (bool, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d := now.Sub(r.prevTime); d >= time.Second {
		if d.Truncate(time.Second) == time.Second && r.seen > 0 {
			r.prevRate = float64(r.allowed) / float64(r.seen)
		} else {
			r.prevRate = 0
		}
		r.prevTime = now
		r.allowed = 0
		r.seen = 0
	}

	r.seen++
	var sampled bool
	if r.limiter.AllowN(now, 1) {
		r.allowed++
		sampled = true
	}
	effective := (r.prevRate + float64(r.allowed)/float64(r.seen)) / 2
	return sampled, effective
}
