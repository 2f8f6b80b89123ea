// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/insurance-backend/internal/core"
)

const (
	ScopeGlobal = "global"
	ScopeRole   = "role"
	ScopeWrite  = "write"
)

var (
	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insurance",
		Subsystem: "ratelimit",
		Name:      "rejected_total",
		Help:      "Requests rejected by a rate limiter, by scope.",
	}, []string{"scope"})

	rateLimitFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insurance",
		Subsystem: "ratelimit",
		Name:      "local_fallback_total",
		Help:      "Decisions taken by the in-process limiter after a Redis failure.",
	}, []string{"scope"})
)

type RateLimitConfig struct {
	Scope    string
	Limit    redis_rate.Limit
	KeyFunc  func(*http.Request) string
	FailOpen bool
	Skip     func(*http.Request) bool
}

// RateLimiter counts requests in Redis when a client is configured and
// in process otherwise. A Redis failure degrades to the local counter
// for that decision.
type RateLimiter struct {
	store  *limitStore
	config RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	if cfg.Scope == "" {
		cfg.Scope = ScopeGlobal
	}
	return &RateLimiter{
		store:  newLimitStore(rdb, cfg.Scope),
		config: cfg,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.config.Skip != nil && rl.config.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.config.KeyFunc(r)
		res, err := rl.store.allow(r.Context(), key, rl.config.Limit)
		if err != nil {
			if rl.config.FailOpen {
				slog.WarnContext(r.Context(), "rate limiter error, failing open",
					"scope", rl.config.Scope,
					"key", key,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			core.JSONError(w, core.TimeoutError("rate limit", err))
			return
		}

		if !admit(w, res, rl.config.Limit, rl.config.Scope) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RoleRateLimiter gives each verified user a budget picked by role. It
// runs after Authenticator; anonymous callers are keyed by IP and get
// defaultLimit.
func RoleRateLimiter(
	rdb *redis.Client,
	limits map[string]redis_rate.Limit,
	defaultLimit redis_rate.Limit,
) func(http.Handler) http.Handler {
	store := newLimitStore(rdb, ScopeRole)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit, ok := limits[GetUserRole(r.Context())]
			if !ok {
				limit = defaultLimit
			}

			res, err := store.allow(r.Context(), KeyByUser(r), limit)
			if err != nil {
				core.JSONError(w, core.TimeoutError("rate limit", err))
				return
			}

			if !admit(w, res, limit, ScopeRole) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteRateLimiter budgets state-changing requests per user and
// resource, so one caller cannot flood claim submissions or payment
// records. Safe methods pass through untouched.
func WriteRateLimiter(rdb *redis.Client, limit redis_rate.Limit) func(http.Handler) http.Handler {
	return NewRateLimiter(rdb, RateLimitConfig{
		Scope:   ScopeWrite,
		Limit:   limit,
		KeyFunc: KeyByUserAndEndpoint,
		Skip:    isSafeMethod,
	}).Handler
}

func isSafeMethod(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// admit writes the rate-limit headers and, for a rejected request, the
// 429 envelope. It reports whether the request may proceed.
func admit(
	w http.ResponseWriter,
	res *redis_rate.Result,
	limit redis_rate.Limit,
	scope string,
) bool {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))
	h.Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d", limit.Rate, int(limit.Period.Seconds())))

	if res.Allowed > 0 {
		return true
	}

	rateLimited.WithLabelValues(scope).Inc()

	retryAfter := max(int(res.RetryAfter.Seconds()), 1)
	h.Set("Retry-After", strconv.Itoa(retryAfter))

	core.JSON(w, http.StatusTooManyRequests, core.Response{
		Success: false,
		Error: &core.ErrorBody{
			Code:    "RATE_LIMITED",
			Message: fmt.Sprintf("rate limit exceeded, retry after %d seconds", retryAfter),
		},
	})
	return false
}

func KeyByIP(r *http.Request) string {
	return "ratelimit:ip:" + clientIP(r)
}

func KeyByUser(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return "ratelimit:user:" + userID
	}
	return KeyByIP(r)
}

func KeyByUserAndEndpoint(r *http.Request) string {
	return KeyByUser(r) + ":" + r.Method + ":" + routeLabel(r)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func normalizeEndpoint(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		if isUUID(part) || isNumeric(part) || isBusinessNumber(part) {
			parts[i] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	return s[8] == '-' && s[13] == '-' && s[18] == '-' && s[23] == '-'
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}

// isBusinessNumber matches generated policy, claim and transaction
// numbers such as POL-123456-0042.
func isBusinessNumber(s string) bool {
	prefix, rest, ok := strings.Cut(s, "-")
	if !ok || prefix == "" || strings.ToUpper(prefix) != prefix {
		return false
	}
	millis, random, ok := strings.Cut(rest, "-")
	return ok && isNumeric(millis) && isNumeric(random)
}

// limitStore decides one request against Redis, falling back to an
// in-process token bucket per key.
type limitStore struct {
	redis *redis_rate.Limiter
	local *localLimiter
	scope string
}

func newLimitStore(rdb *redis.Client, scope string) *limitStore {
	s := &limitStore{local: newLocalLimiter(), scope: scope}
	if rdb != nil {
		s.redis = redis_rate.NewLimiter(rdb)
	}
	return s
}

func (s *limitStore) allow(
	ctx context.Context,
	key string,
	limit redis_rate.Limit,
) (*redis_rate.Result, error) {
	if s.redis == nil {
		return s.local.allow(key, limit), nil
	}

	res, err := s.redis.Allow(ctx, key, limit)
	if err != nil {
		rateLimitFallbacks.WithLabelValues(s.scope).Inc()
		return s.local.allow(key, limit), nil
	}
	return res, nil
}

const (
	localSweepEvery = 5 * time.Minute
	localEntryTTL   = 10 * time.Minute
)

type localEntry struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

type localLimiter struct {
	mu        sync.Mutex
	entries   map[string]*localEntry
	lastSweep time.Time
}

func newLocalLimiter() *localLimiter {
	return &localLimiter{
		entries:   make(map[string]*localEntry),
		lastSweep: time.Now(),
	}
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) *redis_rate.Result {
	now := time.Now()
	perSecond := float64(limit.Rate) / limit.Period.Seconds()
	interval := time.Duration(float64(time.Second) / perSecond)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > localSweepEvery {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > localEntryTTL {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{bucket: rate.NewLimiter(rate.Limit(perSecond), limit.Burst)}
		l.entries[key] = e
	}
	e.lastSeen = now

	res := &redis_rate.Result{
		Limit:      limit,
		RetryAfter: -1,
		ResetAfter: interval,
	}
	if e.bucket.AllowN(now, 1) {
		res.Allowed = 1
	} else {
		res.RetryAfter = interval
	}
	res.Remaining = max(int(e.bucket.TokensAt(now)), 0)

	return res
}

func PerMinute(requests, burst int) redis_rate.Limit {
	return redis_rate.Limit{Rate: requests, Burst: burst, Period: time.Minute}
}
