package tours

import (
	"context"

	"github.com/lealre/natours-backend/internal/mongodb"
	"github.com/lealre/natours-backend/internal/query"
	"github.com/lealre/natours-backend/internal/services/reviews"
	"go.mongodb.org/mongo-driver/bson"
)

type Store interface {
	AddTour(ctx context.Context, tour mongodb.TourDb) (mongodb.TourDb, error)
	GetTourById(ctx context.Context, id string) (mongodb.TourDb, error)
	GetTours(ctx context.Context, spec query.Spec) ([]mongodb.TourDb, error)
	CountTours(ctx context.Context, filter bson.M) (int64, error)
	UpdateTour(ctx context.Context, id string, fields bson.M) (int64, error)
	DeleteTour(ctx context.Context, id string) (int64, error)
	TourStats(ctx context.Context, minRating float64) ([]mongodb.TourStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]mongodb.MonthlyPlan, error)
	TourDistances(ctx context.Context, lng, lat, multiplier float64) ([]mongodb.TourDistance, error)
	GetUsersByIds(ctx context.Context, ids []string) ([]mongodb.UserSummary, error)
}

// ReviewRemover deletes every review of a tour.
type ReviewRemover interface {
	DeleteReviewsByTourId(ctx context.Context, tourId string) (int64, error)
}

type ReviewLister interface {
	GetTourReviews(ctx context.Context, tourId string) ([]reviews.Review, error)
}
