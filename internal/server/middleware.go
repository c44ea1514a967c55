package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lealre/natours-backend/internal/api"
	"github.com/lealre/natours-backend/internal/auth"
	"github.com/lealre/natours-backend/internal/logx"
	"github.com/lealre/natours-backend/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const RequestIdHeader = "X-Request-Id"

// responseRecorder wraps http.ResponseWriter to capture status code
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rr *responseRecorder) WriteHeader(statusCode int) {
	rr.statusCode = statusCode
	rr.ResponseWriter.WriteHeader(statusCode)
}

////////////////////////////////////////////////////////////////////////////
//  LOGGER MIDDLEWARE
////////////////////////////////////////////////////////////////////////////

/*
RequestIdMiddleware gives every request an id and a child of base carrying
request_id, method and path. The id is echoed in the X-Request-Id header.

Handlers can retrieve the logger using logx.FromContext(r.Context()).
*/
func RequestIdMiddleware(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestId := uuid.NewString()
			startTime := time.Now()

			logger := base.With().
				Str("request_id", requestId).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()

			logger.Debug().Msg("request received")

			w.Header().Set(RequestIdHeader, requestId)
			r = r.WithContext(logx.WithLogger(r.Context(), logger))

			recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(recorder, r)

			logger.Info().
				Int("status", recorder.statusCode).
				Dur("duration", time.Since(startTime)).
				Msg("request completed")
		})
	}
}

////////////////////////////////////////////////////////////////////////////
//  METRICS MIDDLEWARE
////////////////////////////////////////////////////////////////////////////

// MetricsMiddleware records request count and latency per chi route pattern,
// so /tours/{tourId} is one series and not one per id.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := strconv.Itoa(recorder.statusCode)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

////////////////////////////////////////////////////////////////////////////
//  RATE LIMIT MIDDLEWARE
////////////////////////////////////////////////////////////////////////////

const visitorTTL = time.Hour

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorStore keeps one token bucket per client IP and forgets IPs not
// seen for ttl.
type visitorStore struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

func newVisitorStore(perHour int, ttl time.Duration) *visitorStore {
	return &visitorStore{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(time.Hour / time.Duration(perHour)),
		burst:    perHour,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *visitorStore) allow(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	v, ok := s.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[ip] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1)
}

func (s *visitorStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *visitorStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for ip, v := range s.visitors {
		if now.Sub(v.lastSeen) > s.ttl {
			delete(s.visitors, ip)
		}
	}
}

/*
RateLimit allows perHour requests per client IP with a token bucket that
refills continuously. Zero disables the limit.

Stale visitors are evicted until ctx is done.
*/
func RateLimit(ctx context.Context, perHour int) func(http.Handler) http.Handler {
	if perHour <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	store := newVisitorStore(perHour, visitorTTL)
	go store.cleanupLoop(ctx)

	return rateLimitWith(store)
}

func rateLimitWith(store *visitorStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !store.allow(ip) {
				metrics.RateLimitedTotal.Inc()
				logx.FromContext(r.Context()).Warn().Str("ip", ip).Msg("rate limit exceeded")

				w.Header().Set("Retry-After", strconv.Itoa(int(visitorTTL.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(api.ErrorResponse{
					Status:  "error",
					Kind:    "TooManyRequests",
					Message: "Too many requests from this IP, please try again in an hour",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr. Proxy headers are folded into
// RemoteAddr by chi's RealIP middleware ahead of this one.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

////////////////////////////////////////////////////////////////////////////
//  BODY LIMIT MIDDLEWARE
////////////////////////////////////////////////////////////////////////////

func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

////////////////////////////////////////////////////////////////////////////
//  AUTHENTICATION MIDDLEWARE
////////////////////////////////////////////////////////////////////////////

// Protect rejects requests without a valid session and puts the resolved user
// into the context.
func Protect(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := gate.Protect(r)
			if err != nil {
				api.RespondWithError(w, r, err)
				return
			}

			logger := logx.FromContext(r.Context()).With().Str("user_id", user.Id).Logger()
			ctx := logx.WithLogger(auth.WithUser(r.Context(), user), logger)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RestrictTo must run after Protect.
func RestrictTo(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := auth.GetUserFromContext(r.Context())
			if user == nil {
				api.RespondWithError(w, r, auth.ErrNotLoggedIn)
				return
			}

			if err := auth.RestrictTo(auth.Role(user.Role), roles...); err != nil {
				metrics.RecordAuthFailure(auth.StateForbidden)
				api.RespondWithError(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
