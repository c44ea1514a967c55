package server

import (
	"context"
	"net/http"

	"github.com/lealre/natours-backend/internal/api"
	"github.com/lealre/natours-backend/internal/auth"
	"github.com/lealre/natours-backend/internal/config"
	"github.com/lealre/natours-backend/internal/mongodb"
	"github.com/lealre/natours-backend/internal/services/reviews"
	"github.com/lealre/natours-backend/internal/services/tours"
	"github.com/lealre/natours-backend/internal/services/users"
	"github.com/rs/zerolog"
)

// NewHandler builds the services on top of db and returns the routed handler.
func NewHandler(ctx context.Context, db *mongodb.DB, cfg config.Config, logger zerolog.Logger) http.Handler {
	recomputer := reviews.NewRecomputer(db, cfg.RecomputeMaxRetries, cfg.RecomputeTimeout)
	reviewService := reviews.NewService(db, recomputer)

	cascade := tours.NewCascadeDeleter(db, cfg.RecomputeMaxRetries, cfg.RecomputeTimeout)
	tourService := tours.NewService(db, reviewService, cascade)

	userService := users.NewService(db, cfg.JWTSecret, cfg.JWTExpiresIn)

	a := api.NewAPI(tourService, reviewService, userService, db, api.CookieOptions{
		Name:   cfg.JWTCookieName,
		Secure: cfg.CookieSecure,
	})
	gate := auth.NewGate(cfg.JWTSecret, cfg.JWTCookieName, db)

	return NewRouter(ctx, a, gate, Options{
		Logger:           logger,
		RateLimitPerHour: cfg.RateLimitPerHour,
		MaxBodyBytes:     cfg.MaxBodyBytes,
	})
}
