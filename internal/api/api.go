package api

import (
	"context"

	"github.com/lealre/natours-backend/internal/generics"
	"github.com/lealre/natours-backend/internal/mongodb"
	"github.com/lealre/natours-backend/internal/query"
	"github.com/lealre/natours-backend/internal/services/reviews"
	"github.com/lealre/natours-backend/internal/services/tours"
	"github.com/lealre/natours-backend/internal/services/users"
)

type TourService interface {
	GetTours(ctx context.Context, params query.Params) (generics.Page[tours.Tour], error)
	GetTour(ctx context.Context, tourId string) (tours.Tour, error)
	CreateTour(ctx context.Context, req tours.CreateTourRequest) (tours.Tour, error)
	UpdateTour(ctx context.Context, tourId string, req tours.UpdateTourRequest) (tours.Tour, error)
	DeleteTour(ctx context.Context, tourId string) error
	TourStats(ctx context.Context) ([]mongodb.TourStats, error)
	MonthlyPlan(ctx context.Context, rawYear string) ([]mongodb.MonthlyPlan, error)
	ToursWithin(ctx context.Context, rawDistance, latlng, unit string, params query.Params) (generics.Page[tours.Tour], error)
	Distances(ctx context.Context, latlng, unit string) ([]mongodb.TourDistance, error)
}

type ReviewService interface {
	GetReviews(ctx context.Context, params query.Params, tourId string) (generics.Page[reviews.Review], error)
	GetReview(ctx context.Context, reviewId string) (reviews.Review, error)
	CreateReview(ctx context.Context, principal mongodb.UserDb, tourId string, req reviews.CreateReviewRequest) (reviews.Review, error)
	UpdateReview(ctx context.Context, principal mongodb.UserDb, reviewId string, req reviews.UpdateReviewRequest) (reviews.Review, error)
	DeleteReview(ctx context.Context, principal mongodb.UserDb, reviewId string) error
}

type UserService interface {
	Signup(ctx context.Context, req users.SignupRequest) (users.AuthResult, error)
	Login(ctx context.Context, req users.LoginRequest) (users.AuthResult, error)
	GetMe(principal mongodb.UserDb) users.User
	UpdateMe(ctx context.Context, principal mongodb.UserDb, req users.UpdateMeRequest) (users.User, error)
	DeleteMe(ctx context.Context, principal mongodb.UserDb) error
	UpdatePassword(ctx context.Context, principal mongodb.UserDb, req users.UpdatePasswordRequest) (users.AuthResult, error)
	GetUser(ctx context.Context, userId string) (users.User, error)
	ListUsers(ctx context.Context, params query.Params) (generics.Page[users.User], error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CookieOptions configures the session cookie set on login and signup.
type CookieOptions struct {
	Name   string
	Secure bool
}

type API struct {
	Tours   TourService
	Reviews ReviewService
	Users   UserService
	Db      Pinger
	Cookie  CookieOptions
}

func NewAPI(tours TourService, reviews ReviewService, users UserService, db Pinger, cookie CookieOptions) *API {
	return &API{Tours: tours, Reviews: reviews, Users: users, Db: db, Cookie: cookie}
}
