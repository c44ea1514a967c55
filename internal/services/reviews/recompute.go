package reviews

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lealre/natours-backend/internal/logx"
	"github.com/lealre/natours-backend/internal/metrics"
	"github.com/lealre/natours-backend/internal/mongodb"
)

const (
	DefaultRecomputeRetries = 3
	DefaultRecomputeTimeout = 5 * time.Second
)

// Recomputer rebuilds a tour's ratingsQuantity and ratingsAverage from its
// reviews. Every attempt aggregates from scratch, so concurrent or repeated
// runs converge on the current review set.
type Recomputer struct {
	store      RatingStore
	maxRetries uint64
	timeout    time.Duration
	newBackOff func() backoff.BackOff
}

func NewRecomputer(store RatingStore, maxRetries uint64, timeout time.Duration) *Recomputer {
	if timeout <= 0 {
		timeout = DefaultRecomputeTimeout
	}
	return &Recomputer{
		store:      store,
		maxRetries: maxRetries,
		timeout:    timeout,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = time.Second
			b.MaxElapsedTime = timeout
			return b
		},
	}
}

// Recompute aggregates the tour's reviews and stores the result on the tour.
// It outlives the caller's cancellation but not its own timeout. A tour that no
// longer exists is not an error: there is nothing to keep consistent.
func (r *Recomputer) Recompute(ctx context.Context, tourId string) (mongodb.RatingStats, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	logger := logx.FromContext(ctx)

	var stats mongodb.RatingStats
	operation := func() error {
		metrics.RecomputeAttempts.Inc()

		aggregated, err := r.store.AggregateTourRatings(ctx, tourId)
		if err != nil {
			return fmt.Errorf("aggregate ratings: %w", err)
		}

		if err := r.store.SetTourRatingStats(ctx, tourId, aggregated); err != nil {
			if errors.Is(err, mongodb.ErrRecordNotFound) {
				return backoff.Permanent(err)
			}
			return fmt.Errorf("write rating stats: %w", err)
		}

		stats = aggregated
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.maxRetries), ctx)
	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		logger.Warn().Err(err).Str("tour_id", tourId).Dur("retry_in", wait).Msg("rating recompute attempt failed")
	})

	switch {
	case err == nil:
		metrics.RecordRecompute(metrics.RecomputeSucceeded)
		logger.Debug().
			Str("tour_id", tourId).
			Int("ratings_quantity", stats.Quantity).
			Float64("ratings_average", stats.Average).
			Msg("tour ratings recomputed")
		return stats, nil
	case errors.Is(err, mongodb.ErrRecordNotFound):
		metrics.RecordRecompute(metrics.RecomputeSkipped)
		logger.Debug().Str("tour_id", tourId).Msg("tour gone, skipping rating recompute")
		return mongodb.RatingStats{}, nil
	default:
		metrics.RecordRecompute(metrics.RecomputeFailed)
		return mongodb.RatingStats{}, fmt.Errorf("recompute ratings of tour %s: %w", tourId, err)
	}
}
