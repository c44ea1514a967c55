package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lealre/natours-backend/internal/api"
	"github.com/lealre/natours-backend/internal/auth"
	"github.com/lealre/natours-backend/internal/logx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
)

type Options struct {
	Logger           zerolog.Logger
	RateLimitPerHour int
	MaxBodyBytes     int64
}

/*
NewRouter wires every route under /api/v1 plus /healthz and /metrics.

ctx bounds the rate limiter's background cleanup.
*/
func NewRouter(ctx context.Context, a *api.API, gate *auth.Gate, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIdMiddleware(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.NotFound(api.NotFound)
	r.MethodNotAllowed(api.MethodNotAllowed)

	r.Get("/healthz", a.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	protect := Protect(gate)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(ctx, opts.RateLimitPerHour))
		r.Use(BodyLimit(opts.MaxBodyBytes))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", a.Signup)
			r.Post("/login", a.Login)
			r.Post("/logout", a.Logout)
		})

		r.Route("/tours", func(r chi.Router) {
			r.Get("/", a.GetTours)
			r.Get("/top-5-cheap", a.GetTopCheapTours)
			r.Get("/stats", a.GetTourStats)
			r.Get("/within/{distance}/center/{latlng}/unit/{unit}", a.GetToursWithin)
			r.Get("/distances/{latlng}/unit/{unit}", a.GetDistances)

			r.Group(func(r chi.Router) {
				r.Use(protect)

				r.With(RestrictTo(auth.RoleAdmin, auth.RoleLeadGuide, auth.RoleGuide)).
					Get("/monthly-plan/{year}", a.GetMonthlyPlan)

				r.Get("/{tourId}", a.GetTour)
				r.With(RestrictTo(auth.RoleAdmin, auth.RoleLeadGuide)).Post("/", a.CreateTour)
				r.With(RestrictTo(auth.RoleAdmin, auth.RoleLeadGuide)).Patch("/{tourId}", a.UpdateTour)
				r.With(RestrictTo(auth.RoleAdmin, auth.RoleLeadGuide)).Delete("/{tourId}", a.DeleteTour)

				r.Get("/{tourId}/reviews", a.GetReviews)
				r.With(RestrictTo(auth.RoleUser)).Post("/{tourId}/reviews", a.CreateReview)
			})
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Use(protect)

			r.Get("/", a.GetReviews)
			r.Get("/{id}", a.GetReview)
			r.With(RestrictTo(auth.RoleUser, auth.RoleAdmin)).Patch("/{id}", a.UpdateReview)
			r.With(RestrictTo(auth.RoleUser, auth.RoleAdmin)).Delete("/{id}", a.DeleteReview)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(protect)

			r.Get("/me", a.GetMe)
			r.Patch("/me", a.UpdateMe)
			r.Delete("/me", a.DeleteMe)
			r.Patch("/update-password", a.UpdatePassword)

			r.Group(func(r chi.Router) {
				r.Use(RestrictTo(auth.RoleAdmin))
				r.Get("/", a.GetUsers)
				r.Get("/{id}", a.GetUser)
			})
		})
	})

	return r
}

func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// ListenAndServe serves until ctx is done, then drains in-flight requests for
// at most shutdownTimeout.
func ListenAndServe(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	logger := logx.FromContext(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server is running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
