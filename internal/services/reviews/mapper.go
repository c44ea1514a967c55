package reviews

import (
	"time"

	"github.com/lealre/natours-backend/internal/mongodb"
)

func MapDbReviewToApiReview(reviewDb mongodb.ReviewDb) Review {
	return Review{
		Id:        reviewDb.Id,
		Review:    reviewDb.Review,
		Rating:    reviewDb.Rating,
		TourId:    reviewDb.TourId,
		UserId:    reviewDb.UserId,
		CreatedAt: timestamp(reviewDb.CreatedAt),
		UpdatedAt: timestamp(reviewDb.UpdatedAt),
	}
}

// timestamp is nil for a zero time, which only happens when a projection
// left the field out.
func timestamp(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
