// Package ratelimit spaces outbound requests per domain with a sliding window
// and slows down domains that keep rejecting us.
package ratelimit

import (
	"context"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"catalystbot/config"

	"github.com/rs/zerolog"
)

// Rule is a request budget for one domain.
type Rule struct {
	MaxRequests int           `json:"max_requests"`
	Window      time.Duration `json:"window"`
}

// Config controls window sizes and failure backoff.
type Config struct {
	Default          Rule
	Rules            map[string]Rule
	FailureThreshold int
	BaseBackoff      time.Duration
	MaxBackoff       time.Duration
	MaxJitter        time.Duration
}

// KnownDomains are conservative budgets for sites that block aggressively.
var KnownDomains = map[string]Rule{
	"finance.yahoo.com":       {MaxRequests: 6, Window: time.Minute},
	"feeds.finance.yahoo.com": {MaxRequests: 6, Window: time.Minute},
	"seekingalpha.com":        {MaxRequests: 3, Window: time.Minute},
	"cnbc.com":                {MaxRequests: 6, Window: time.Minute},
	"marketwatch.com":         {MaxRequests: 6, Window: time.Minute},
	"dowjones.io":             {MaxRequests: 6, Window: time.Minute},
	"nasdaq.com":              {MaxRequests: 5, Window: time.Minute},
	"reuters.com":             {MaxRequests: 5, Window: time.Minute},
	"bloomberg.com":           {MaxRequests: 2, Window: time.Minute},
}

// DefaultConfig returns the built-in limits merged with overrides.
func DefaultConfig(overrides map[string]config.RateRule) Config {
	rules := make(map[string]Rule, len(KnownDomains)+len(overrides))
	for d, r := range KnownDomains {
		rules[d] = r
	}
	for d, r := range overrides {
		rules[d] = Rule{MaxRequests: r.MaxRequests, Window: r.Window}
	}
	return Config{
		Default:          Rule{MaxRequests: config.DefaultRateRequests, Window: config.DefaultRateWindow},
		Rules:            rules,
		FailureThreshold: config.FailureThreshold,
		BaseBackoff:      config.BaseBackoff,
		MaxBackoff:       config.MaxBackoff,
		MaxJitter:        config.MaxJitter,
	}
}

type domainState struct {
	mu       sync.Mutex
	stamps   []time.Time
	failures int
}

// prune drops timestamps that have left the window. Caller holds mu.
func (s *domainState) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(s.stamps) && !s.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		s.stamps = append(s.stamps[:0], s.stamps[i:]...)
	}
}

// Limiter hands out per-domain permission to make a request. State for each
// domain lives in its own slot with its own lock; the arena lock only guards
// slot creation.
type Limiter struct {
	cfg Config
	log zerolog.Logger

	mu      sync.Mutex
	domains map[string]*domainState

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration
}

// New creates a limiter.
func New(cfg Config, logger zerolog.Logger) *Limiter {
	if cfg.Default.MaxRequests <= 0 {
		cfg.Default.MaxRequests = config.DefaultRateRequests
	}
	if cfg.Default.Window <= 0 {
		cfg.Default.Window = config.DefaultRateWindow
	}
	return &Limiter{
		cfg:     cfg,
		log:     logger.With().Str("component", "ratelimit").Logger(),
		domains: make(map[string]*domainState),
		now:     time.Now,
		sleep:   sleepContext,
		jitter:  randomJitter,
	}
}

// Acquire blocks until a request to domain may proceed. It never rejects;
// the only error is the context's.
func (l *Limiter) Acquire(ctx context.Context, domain string) error {
	domain = normalizeDomain(domain)
	st := l.state(domain)
	rule := l.RuleFor(domain)

	st.mu.Lock()
	failures := st.failures
	st.mu.Unlock()

	if d := l.backoff(failures); d > 0 {
		l.log.Debug().Str("domain", domain).Int("failures", failures).Dur("backoff", d).Msg("backing off")
		if err := l.sleep(ctx, d); err != nil {
			return err
		}
	}

	for {
		st.mu.Lock()
		now := l.now()
		st.prune(now, rule.Window)
		if len(st.stamps) < rule.MaxRequests {
			st.stamps = append(st.stamps, now)
			st.mu.Unlock()
			return nil
		}
		wait := st.stamps[0].Add(rule.Window).Sub(now) + l.jitter(l.cfg.MaxJitter)
		st.mu.Unlock()

		l.log.Debug().Str("domain", domain).Dur("wait", wait).Msg("window full")
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// RecordFailure counts a blocked or failed request against domain.
func (l *Limiter) RecordFailure(domain string) {
	domain = normalizeDomain(domain)
	st := l.state(domain)
	st.mu.Lock()
	st.failures++
	n := st.failures
	st.mu.Unlock()
	if n > l.cfg.FailureThreshold {
		l.log.Warn().Str("domain", domain).Int("failures", n).Msg("domain over failure threshold")
	}
}

// RecordSuccess decays the failure counter by one.
func (l *Limiter) RecordSuccess(domain string) {
	st := l.state(normalizeDomain(domain))
	st.mu.Lock()
	if st.failures > 0 {
		st.failures--
	}
	st.mu.Unlock()
}

// Stats is a point-in-time view of one domain.
type Stats struct {
	Domain   string `json:"domain"`
	InWindow int    `json:"in_window"`
	Failures int    `json:"failures"`
	Rule     Rule   `json:"rule"`
	Backoff  string `json:"backoff"`
}

// Snapshot reports the current state for domain.
func (l *Limiter) Snapshot(domain string) Stats {
	domain = normalizeDomain(domain)
	st := l.state(domain)
	rule := l.RuleFor(domain)

	st.mu.Lock()
	defer st.mu.Unlock()
	st.prune(l.now(), rule.Window)
	return Stats{
		Domain:   domain,
		InWindow: len(st.stamps),
		Failures: st.failures,
		Rule:     rule,
		Backoff:  l.backoff(st.failures).String(),
	}
}

// RuleFor resolves the budget for domain: exact match, then the closest
// parent domain, then the default.
func (l *Limiter) RuleFor(domain string) Rule {
	domain = normalizeDomain(domain)
	for d := domain; d != ""; {
		if r, ok := l.cfg.Rules[d]; ok && r.MaxRequests > 0 && r.Window > 0 {
			return r
		}
		_, rest, ok := strings.Cut(d, ".")
		if !ok || !strings.Contains(rest, ".") {
			break
		}
		d = rest
	}
	return l.cfg.Default
}

func (l *Limiter) backoff(failures int) time.Duration {
	over := failures - l.cfg.FailureThreshold
	if over <= 0 || l.cfg.BaseBackoff <= 0 {
		return 0
	}
	d := l.cfg.BaseBackoff
	for i := 1; i < over; i++ {
		d *= 2
		if l.cfg.MaxBackoff > 0 && d >= l.cfg.MaxBackoff {
			return l.cfg.MaxBackoff
		}
	}
	if l.cfg.MaxBackoff > 0 && d > l.cfg.MaxBackoff {
		return l.cfg.MaxBackoff
	}
	return d
}

func (l *Limiter) state(domain string) *domainState {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.domains[domain]
	if !ok {
		st = &domainState{}
		l.domains[domain] = st
	}
	return st
}

// ExtractDomain returns the lowercased host of rawURL without a leading "www.".
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return normalizeDomain(rawURL)
	}
	return normalizeDomain(u.Hostname())
}

func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	return strings.TrimPrefix(d, "www.")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
