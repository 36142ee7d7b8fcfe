package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	"presentia/pkg/platform/circuit"
	"presentia/pkg/platform/httputil"
	"presentia/pkg/platform/middleware/metadata"
)

// Middleware enforces per-IP budgets in front of the API. Store failures
// never take the API down: a circuit breaker flips checks onto an in-memory
// fallback and flags responses as degraded until the primary recovers.
type Middleware struct {
	store    BucketStore
	fallback *InMemoryStore
	breaker  *circuit.Breaker
	limits   map[Class]Limit
	metrics  *Metrics
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithLimits overrides the default per-class budgets.
func WithLimits(limits map[Class]Limit) Option {
	return func(m *Middleware) { m.limits = limits }
}

// WithMetrics enables rejection and degradation counters.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Middleware) { m.metrics = metrics }
}

// WithDisabled turns enforcement off entirely.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) { m.disabled = disabled }
}

func New(store BucketStore, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:    store,
		fallback: NewInMemoryStore(),
		breaker:  circuit.New("ratelimit-store"),
		limits:   DefaultLimits,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit returns a middleware enforcing the budget for the given class.
func (m *Middleware) Limit(class Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}
			ip := metadata.GetClientIP(r.Context())
			if ip == "" {
				next.ServeHTTP(w, r)
				return
			}

			result := m.check(r, string(class)+":"+ip, class, w)
			writeLimitHeaders(w, result)
			if !result.Allowed {
				if m.metrics != nil {
					m.metrics.Rejections.WithLabelValues(string(class)).Inc()
				}
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
					"error":       "rate_limit_exceeded",
					"retry_after": result.RetryAfter,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// check runs the primary store through the breaker, falling back to the
// in-memory store on errors or while the circuit is open. Fail-open is
// deliberate for the fallback itself: a limiter bug must not lock everyone
// out of attendance marking.
func (m *Middleware) check(r *http.Request, key string, class Class, w http.ResponseWriter) *Result {
	limit, ok := m.limits[class]
	if !ok {
		limit = DefaultLimits[ClassRead]
	}
	ctx := r.Context()

	if !m.breaker.IsOpen() {
		result, err := m.store.Allow(ctx, key, limit.Requests, limit.Window)
		if err == nil {
			if _, change := m.breaker.RecordSuccess(); change.Closed {
				m.logger.InfoContext(ctx, "rate limit store recovered, circuit closed")
			}
			return result
		}
		if _, change := m.breaker.RecordFailure(); change.Opened {
			m.logger.ErrorContext(ctx, "rate limit store failing, circuit opened", "error", err.Error())
		}
		if m.metrics != nil {
			m.metrics.StoreFailures.Inc()
		}
	}

	w.Header().Set("X-RateLimit-Status", "degraded")
	result, err := m.fallback.Allow(ctx, key, limit.Requests, limit.Window)
	if err != nil {
		return &Result{Allowed: true, Limit: limit.Requests}
	}
	return result
}

func writeLimitHeaders(w http.ResponseWriter, result *Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	if !result.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	}
}
