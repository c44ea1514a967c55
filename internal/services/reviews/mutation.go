package reviews

import (
	"context"
	"errors"
	"fmt"

	"github.com/lealre/natours-backend/internal/apperrors"
	"github.com/lealre/natours-backend/internal/auth"
	"github.com/lealre/natours-backend/internal/logx"
	"github.com/lealre/natours-backend/internal/mongodb"
)

// mutation is what an update or delete needs to know about the review before
// it is written. The tourId is read here because after a delete the review
// can no longer tell which tour to recompute.
type mutation struct {
	reviewId string
	tourId   string
	authorId string
}

func (s *Service) capture(ctx context.Context, reviewId string) (mutation, error) {
	review, err := s.store.GetReviewById(ctx, reviewId)
	if err != nil {
		if errors.Is(err, mongodb.ErrRecordNotFound) {
			return mutation{}, ErrReviewNotFound
		}
		return mutation{}, apperrors.InternalError(fmt.Errorf("look up review %s: %w", reviewId, err))
	}

	return mutation{
		reviewId: review.Id,
		tourId:   review.TourId,
		authorId: review.UserId,
	}, nil
}

// authorize lets the author or an admin change a review.
func (m mutation) authorize(principal mongodb.UserDb) error {
	if principal.Id == m.authorId || auth.Role(principal.Role) == auth.RoleAdmin {
		return nil
	}
	return ErrNotReviewAuthor
}

// afterWrite recomputes the captured tour when the write changed something.
// A failed recompute leaves the tour stale until the next recompute of it; the
// write itself has already succeeded and is not reported as failed.
func (s *Service) afterWrite(ctx context.Context, m mutation, affected int64) {
	if affected == 0 {
		return
	}
	s.recompute(ctx, m.tourId)
}

func (s *Service) recompute(ctx context.Context, tourId string) {
	if _, err := s.recomputer.Recompute(ctx, tourId); err != nil {
		logger := logx.FromContext(ctx)
		logger.Error().Err(err).Str("tour_id", tourId).Msg("tour ratings left stale")
	}
}
