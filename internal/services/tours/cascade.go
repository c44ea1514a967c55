package tours

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lealre/natours-backend/internal/logx"
	"github.com/lealre/natours-backend/internal/metrics"
)

// CascadeDeleter removes the reviews of a deleted tour. It runs only after the
// tour itself was deleted and never recomputes: there is no tour left to update.
type CascadeDeleter struct {
	reviews    ReviewRemover
	maxRetries uint64
	timeout    time.Duration
	newBackOff func() backoff.BackOff
}

func NewCascadeDeleter(reviews ReviewRemover, maxRetries uint64, timeout time.Duration) *CascadeDeleter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CascadeDeleter{
		reviews:    reviews,
		maxRetries: maxRetries,
		timeout:    timeout,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxElapsedTime = timeout
			return b
		},
	}
}

// Run deletes every review of tourId and returns how many were removed.
func (c *CascadeDeleter) Run(ctx context.Context, tourId string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	logger := logx.FromContext(ctx)

	var deleted int64
	operation := func() error {
		n, err := c.reviews.DeleteReviewsByTourId(ctx, tourId)
		if err != nil {
			return err
		}
		deleted = n
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		logger.Warn().Err(err).Str("tour_id", tourId).Dur("retry_in", wait).Msg("review cascade attempt failed")
	})
	if err != nil {
		metrics.CascadeFailures.Inc()
		return 0, fmt.Errorf("delete reviews of tour %s: %w", tourId, err)
	}

	metrics.RecordCascade(deleted)
	logger.Info().Str("tour_id", tourId).Int64("deleted_reviews", deleted).Msg("tour reviews removed")

	return deleted, nil
}
