package reviews

import (
	"context"

	"github.com/lealre/natours-backend/internal/mongodb"
	"github.com/lealre/natours-backend/internal/query"
	"go.mongodb.org/mongo-driver/bson"
)

// RatingStore is what the recomputer needs: read the reviews' aggregate and
// write it onto the tour.
type RatingStore interface {
	AggregateTourRatings(ctx context.Context, tourId string) (mongodb.RatingStats, error)
	SetTourRatingStats(ctx context.Context, tourId string, stats mongodb.RatingStats) error
}

type Store interface {
	RatingStore
	TourExists(ctx context.Context, id string) (bool, error)
	AddReview(ctx context.Context, review mongodb.ReviewDb) (mongodb.ReviewDb, error)
	GetReviewById(ctx context.Context, id string) (mongodb.ReviewDb, error)
	GetReviews(ctx context.Context, spec query.Spec) ([]mongodb.ReviewDb, error)
	CountReviews(ctx context.Context, filter bson.M) (int64, error)
	UpdateReview(ctx context.Context, id string, fields bson.M) (int64, error)
	DeleteReview(ctx context.Context, id string) (int64, error)
	GetUsersByIds(ctx context.Context, ids []string) ([]mongodb.UserSummary, error)
}
