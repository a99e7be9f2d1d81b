package httpx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/clubhouse/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig allows Requests per Window, with up to Burst requests at
// once.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Burst    int
}

func (c RateLimitConfig) limit() rate.Limit {
	return rate.Limit(float64(c.Requests) / c.Window.Seconds())
}

// refill is how long an idle bucket takes to fill completely.
func (c RateLimitConfig) refill() time.Duration {
	return time.Duration(float64(c.Burst) / float64(c.limit()) * float64(time.Second))
}

func (c RateLimitConfig) String() string {
	if c.Burst == c.Requests {
		return fmt.Sprintf("%d/%s", c.Requests, c.Window)
	}
	return fmt.Sprintf("%d/%s:%d", c.Requests, c.Window, c.Burst)
}

// ParseRateLimit parses "requests/window[:burst]", for example "5/1m" or
// "100/30s:200". Burst defaults to requests.
func ParseRateLimit(s string) (RateLimitConfig, error) {
	head, burstPart, hasBurst := strings.Cut(strings.TrimSpace(s), ":")
	reqPart, windowPart, ok := strings.Cut(head, "/")
	if !ok {
		return RateLimitConfig{}, fmt.Errorf("rate limit %q: want requests/window[:burst]", s)
	}

	requests, err := strconv.Atoi(reqPart)
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("rate limit %q: requests must be a positive integer", s)
	}
	window, err := time.ParseDuration(windowPart)
	if err != nil || window <= 0 {
		return RateLimitConfig{}, fmt.Errorf("rate limit %q: window must be a positive duration", s)
	}

	cfg := RateLimitConfig{Requests: requests, Window: window, Burst: requests}
	if hasBurst {
		cfg.Burst, err = strconv.Atoi(burstPart)
		if err != nil || cfg.Burst <= 0 {
			return RateLimitConfig{}, fmt.Errorf("rate limit %q: burst must be a positive integer", s)
		}
	}
	return cfg, nil
}

// RateLimits groups the profiles the identity router applies per endpoint.
type RateLimits struct {
	// Strict guards credential endpoints against guessing.
	Strict RateLimitConfig
	// Moderate covers authenticated writes.
	Moderate RateLimitConfig
	// Lenient covers session checks and health probes.
	Lenient RateLimitConfig
}

func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   RateLimitConfig{Requests: 5, Window: time.Minute, Burst: 5},
		Moderate: RateLimitConfig{Requests: 20, Window: time.Minute, Burst: 20},
		Lenient:  RateLimitConfig{Requests: 100, Window: time.Minute, Burst: 100},
	}
}

// RateLimitsFromEnv reads RATELIMIT_STRICT, RATELIMIT_MODERATE and
// RATELIMIT_LENIENT in ParseRateLimit syntax. Unset or malformed values keep
// the default.
func RateLimitsFromEnv(getenv func(string) string) RateLimits {
	limits := DefaultRateLimits()
	for name, dst := range map[string]*RateLimitConfig{
		"RATELIMIT_STRICT":   &limits.Strict,
		"RATELIMIT_MODERATE": &limits.Moderate,
		"RATELIMIT_LENIENT":  &limits.Lenient,
	} {
		if v := getenv(name); v != "" {
			if cfg, err := ParseRateLimit(v); err == nil {
				*dst = cfg
			}
		}
	}
	return limits
}

// KeyFunc picks the bucket a request is counted against. An empty key
// exempts the request.
type KeyFunc func(*http.Request) string

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// UserKey returns the authenticated user ID, or "" before authentication.
func UserKey(r *http.Request) string {
	return UserIDFromCtx(r.Context())
}

// JoinKeys concatenates the non-empty keys of every fn with sep.
func JoinKeys(sep string, fns ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(fns))
		for _, fn := range fns {
			if k := fn(r); k != "" {
				parts = append(parts, k)
			}
		}
		return strings.Join(parts, sep)
	}
}

// JSONFieldKey keys by a top-level string field of a JSON body, lowercased.
// The body is buffered and restored for the handler.
func JSONFieldKey(field string) KeyFunc {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			return ""
		}

		var fields map[string]json.RawMessage
		if json.Unmarshal(body, &fields) != nil {
			return ""
		}
		for name, raw := range fields {
			if !strings.EqualFold(name, field) {
				continue
			}
			var v string
			if json.Unmarshal(raw, &v) != nil {
				return ""
			}
			return strings.ToLower(strings.TrimSpace(v))
		}
		return ""
	}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// buckets holds one token bucket per key. Buckets idle long enough to have
// refilled completely are dropped, since a fresh one behaves identically.
type buckets struct {
	cfg RateLimitConfig
	now func() time.Time

	mu        sync.Mutex
	byKey     map[string]*bucket
	lastSweep time.Time
}

func newBuckets(cfg RateLimitConfig) *buckets {
	return &buckets{
		cfg:       cfg,
		now:       time.Now,
		byKey:     make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

// take consumes a token for key. When none is available it reports how long
// until one will be.
func (b *buckets) take(key string) (bool, time.Duration) {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.sweep(now)

	bk, ok := b.byKey[key]
	if !ok {
		bk = &bucket{lim: rate.NewLimiter(b.cfg.limit(), b.cfg.Burst)}
		b.byKey[key] = bk
	}
	bk.lastSeen = now

	if bk.lim.AllowN(now, 1) {
		return true, 0
	}
	missing := 1 - bk.lim.TokensAt(now)
	return false, time.Duration(missing / float64(b.cfg.limit()) * float64(time.Second))
}

func (b *buckets) sweep(now time.Time) {
	idle := b.cfg.refill()
	if now.Sub(b.lastSweep) < max(idle, time.Minute) {
		return
	}
	b.lastSweep = now
	for key, bk := range b.byKey {
		if now.Sub(bk.lastSeen) >= idle {
			delete(b.byKey, key)
		}
	}
}

// RateLimitMiddleware limits requests per key. Rejected requests get 429
// with Retry-After in whole seconds.
func RateLimitMiddleware(cfg RateLimitConfig, key KeyFunc) Middleware {
	set := newBuckets(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				slogx.FromContext(r.Context()).Debug("rate limit skipped, no key", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := set.take(k)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := max(int((wait+time.Second-1)/time.Second), 1)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())

			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"key", k,
				"path", r.URL.Path,
				"retry_after", retryAfter,
			)

			WriteJSON(w, http.StatusTooManyRequests, map[string]any{
				"success": false,
				"error":   "rate_limit_exceeded",
				"message": "Too many requests. Please wait a moment and try again.",
			})
		})
	}
}

// RateLimitByIP limits by client address.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, ClientIP)
}

// RateLimitByUser limits by authenticated user and address. It must run
// after AuthnMiddleware.
func RateLimitByUser(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, JoinKeys(":", UserKey, ClientIP))
}

// RateLimitByIPAndJSONField limits by address plus a JSON body field, such
// as the email of a login attempt.
func RateLimitByIPAndJSONField(cfg RateLimitConfig, field string) Middleware {
	return RateLimitMiddleware(cfg, JoinKeys(":", ClientIP, JSONFieldKey(field)))
}
