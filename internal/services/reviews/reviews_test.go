package reviews

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lealre/natours-backend/internal/apperrors"
	"github.com/lealre/natours-backend/internal/mongodb"
	"github.com/lealre/natours-backend/internal/query"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

// memStore keeps tours, reviews and users in memory and counts the calls the
// recompute path makes.
type memStore struct {
	mu sync.Mutex

	tours   map[string]mongodb.RatingStats
	reviews map[string]mongodb.ReviewDb
	users   map[string]mongodb.UserSummary
	seq     int

	aggregateCalls int
	setCalls       int

	aggregateErr      error
	aggregateFailures int
	lookupErr         error
	vanishOnWrite     bool
}

func newMemStore() *memStore {
	return &memStore{
		tours:   map[string]mongodb.RatingStats{},
		reviews: map[string]mongodb.ReviewDb{},
		users:   map[string]mongodb.UserSummary{},
	}
}

func (m *memStore) seedReview(tourId, userId string, rating int) mongodb.ReviewDb {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	review := mongodb.ReviewDb{
		Id:     "r" + string(rune('a'+m.seq)),
		Review: "seeded review text",
		Rating: rating,
		TourId: tourId,
		UserId: userId,
	}
	m.reviews[review.Id] = review
	return review
}

func (m *memStore) stats(tourId string) mongodb.RatingStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tours[tourId]
}

func (m *memStore) AggregateTourRatings(ctx context.Context, tourId string) (mongodb.RatingStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregateCalls++

	if m.aggregateErr != nil {
		return mongodb.RatingStats{}, m.aggregateErr
	}
	if m.aggregateFailures > 0 {
		m.aggregateFailures--
		return mongodb.RatingStats{}, errors.New("transient store failure")
	}

	var stats mongodb.RatingStats
	sum := 0
	for _, review := range m.reviews {
		if review.TourId == tourId {
			stats.Quantity++
			sum += review.Rating
		}
	}
	if stats.Quantity > 0 {
		stats.Average = float64(sum) / float64(stats.Quantity)
	}
	return stats, nil
}

func (m *memStore) SetTourRatingStats(ctx context.Context, tourId string, stats mongodb.RatingStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++

	if _, ok := m.tours[tourId]; !ok {
		return mongodb.ErrRecordNotFound
	}
	m.tours[tourId] = stats
	return nil
}

func (m *memStore) TourExists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tours[id]
	return ok, nil
}

func (m *memStore) AddReview(ctx context.Context, review mongodb.ReviewDb) (mongodb.ReviewDb, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.reviews {
		if existing.UserId == review.UserId && existing.TourId == review.TourId {
			return mongodb.ReviewDb{}, errors.Join(mongodb.ErrDuplicateKey, errors.New("E11000"))
		}
	}

	m.seq++
	review.Id = "r" + string(rune('a'+m.seq))
	review.CreatedAt = time.Now()
	review.UpdatedAt = review.CreatedAt
	m.reviews[review.Id] = review
	return review, nil
}

func (m *memStore) GetReviewById(ctx context.Context, id string) (mongodb.ReviewDb, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lookupErr != nil {
		return mongodb.ReviewDb{}, m.lookupErr
	}
	review, ok := m.reviews[id]
	if !ok {
		return mongodb.ReviewDb{}, mongodb.ErrRecordNotFound
	}
	return review, nil
}

func (m *memStore) matching(filter bson.M) []mongodb.ReviewDb {
	var out []mongodb.ReviewDb
	for _, review := range m.reviews {
		if tourId, ok := filter["tourId"]; ok && review.TourId != tourId {
			continue
		}
		out = append(out, review)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

func (m *memStore) GetReviews(ctx context.Context, spec query.Spec) ([]mongodb.ReviewDb, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.matching(spec.Filter)
	start := int(spec.Skip)
	if start > len(all) {
		start = len(all)
	}
	end := len(all)
	if spec.Limit > 0 && start+int(spec.Limit) < end {
		end = start + int(spec.Limit)
	}
	return all[start:end], nil
}

func (m *memStore) CountReviews(ctx context.Context, filter bson.M) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.matching(filter))), nil
}

func (m *memStore) UpdateReview(ctx context.Context, id string, fields bson.M) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	review, ok := m.reviews[id]
	if !ok || m.vanishOnWrite {
		return 0, nil
	}
	if text, ok := fields["review"].(string); ok {
		review.Review = text
	}
	if rating, ok := fields["rating"].(int); ok {
		review.Rating = rating
	}
	m.reviews[id] = review
	return 1, nil
}

func (m *memStore) DeleteReview(ctx context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reviews[id]; !ok || m.vanishOnWrite {
		return 0, nil
	}
	delete(m.reviews, id)
	return 1, nil
}

func (m *memStore) GetUsersByIds(ctx context.Context, ids []string) ([]mongodb.UserSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []mongodb.UserSummary
	for _, id := range ids {
		if user, ok := m.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func newTestService(store *memStore) *Service {
	recomputer := NewRecomputer(store, DefaultRecomputeRetries, time.Second)
	recomputer.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return NewService(store, recomputer)
}

var (
	alice = mongodb.UserDb{Id: "alice", Name: "Alice", Role: "user"}
	bob   = mongodb.UserDb{Id: "bob", Name: "Bob", Role: "user"}
	admin = mongodb.UserDb{Id: "root", Name: "Root", Role: "admin"}
)

func intPtr(v int) *int { return &v }

func TestRecomputeMeanAndCount(t *testing.T) {
	store := newMemStore()
	store.tours["t1"] = mongodb.RatingStats{}
	store.seedReview("t1", "u1", 4)
	store.seedReview("t1", "u2", 5)
	store.seedReview("t1", "u3", 3)

	stats, err := newTestService(store).recomputer.Recompute(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, mongodb.RatingStats{Quantity: 3, Average: 4.0}, stats)
	require.Equal(t, stats, store.stats("t1"))
}

func TestRecomputeWithoutReviewsIsZero(t *testing.T) {
	store := newMemStore()
	store.tours["t1"] = mongodb.RatingStats{Quantity: 7, Average: 2.5}

	stats, err := newTestService(store).recomputer.Recompute(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, mongodb.RatingStats{}, stats)
	require.Equal(t, mongodb.RatingStats{}, store.stats("t1"))
}

func TestRecomputeIsIdempotent(t *testing.T) {
	store := newMemStore()
	store.tours["t1"] = mongodb.RatingStats{}
	store.seedReview("t1", "u1", 2)
	store.seedReview("t1", "u2", 5)

	recomputer := newTestService(store).recomputer
	first, err := recomputer.Recompute(context.Background(), "t1")
	require.NoError(t, err)
	second, err := recomputer.Recompute(context.Background(), "t1")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 3.5, store.stats("t1").Average)
}

func TestRecomputeRetriesTransientFailures(t *testing.T) {
	store := newMemStore()
	store.tours["t1"] = mongodb.RatingStats{}
	store.seedReview("t1", "u1", 4)
	store.aggregateFailures = 2

	stats, err := newTestService(store).recomputer.Recompute(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, mongodb.RatingStats{Quantity: 1, Average: 4}, stats)
	require.Equal(t, 3, store.aggregateCalls)
}

func TestRecomputeMissingTourIsNoop(t *testing.T) {
	store := newMemStore()

	stats, err := newTestService(store).recomputer.Recompute(context.Background(), "gone")
	require.NoError(t, err)
	require.Equal(t, mongodb.RatingStats{}, stats)
	require.Equal(t, 1, store.setCalls)
}

func TestRecomputeOutlivesCanceledRequest(t *testing.T) {
	store := newMemStore()
	store.tours["t1"] = mongodb.RatingStats{}
	store.seedReview("t1", "u1", 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestService(store).recomputer.Recompute(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, mongodb.RatingStats{Quantity: 1, Average: 5}, store.stats("t1"))
}

func TestCreateReviewRecomputesOnce(t *testing.T) {
	store := newMemStore()
	store.tours["t1"] = mongodb.RatingStats{}
	store.seedReview("t1", "u1", 4)
	store.seedReview("t1", "u2", 5)

	review, err := newTestService(store).CreateReview(context.Background(), alice, "t1", CreateReviewRequest{
		Review: "Wonderful tour, would go again",
		Rating: 3,
	})
	require.NoError(t, err)
	require.Equal(t, "t1", review.TourId)
	require.Equal(t, "alice", review.UserId)

	require.Equal(t, 1, store.aggregateCalls)
	require.Equal(t, mongodb.RatingStats{Quantity: 3, Average: 4.0}, store.stats("t1"))
}

func TestCreateReviewValidation(t *testing.T) {
	store := newMemStore()
	store.tours["t1"] = mongodb.RatingStats{}
	svc := newTestService(store)

	_, err := svc.CreateReview(context.Background(), alice, "t1", CreateReviewRequest{Review: "short", Rating: 3})
	require.Equal(t, apperrors.InvalidRequest, apperrors.KindOf(err))

	_, err = svc.CreateReview(context.Background(), alice, "t1", CreateReviewRequest{Review: "long enough text", Rating: 6})
	require.Equal(t, apperrors.InvalidRequest, apperrors.KindOf(err))

	require.Equal(t, 0, store.aggregateCalls)
}

func TestCreateReviewForMissingTour(t *testing.T) {
	store := newMemStore()

	_, err := newTestService(store).CreateReview(context.Background(), alice, "nope", CreateReviewRequest{
		Review: "A review of nothing",
		Rating: 4,
	})
	require.ErrorIs(t, err, ErrTourNotFound)
	require.Equal(t, 0, store.aggregateCalls)
	require.Empty(t, store.reviews)
}

func TestCreateDuplicateReviewConflicts(t *testing.T) {
	store := newMemStore()
	store.tours["t1"] = mongodb.RatingStats{}
	store.seedReview("t1", "alice", 5)

	_, err := newTestService(store).CreateReview(context.Background(), alice, "t1", CreateReviewRequest{
		Review: "Reviewing it a second time",
		Rating: 1,
	})
	require.ErrorIs(t, err, ErrReviewAlreadyExists)
	require.Equal(t, apperrors.Conflict, apperrors.KindOf(err))
	require.Equal(t, 0, store.aggregateCalls)
	require.Len(t, store.reviews, 1)
}

func TestRecomputeFailureDoesNotFailTheWrite(t *testing.T) {
	store := newMemStore()
	store.tours["t1"] = mongodb.RatingStats{}
	store.aggregateErr = errors.New("aggregation unavailable")

	review, err := newTestService(store).CreateReview(context.Background(), alice, "t1", CreateReviewRequest{
		Review: "Still stored even if stats lag",
		Rating: 2,
	})
	require.NoError(t, err)
	require.NotEmpty(t, review.Id)
	require.Len(t, store.reviews, 1)

	require.Equal(t, DefaultRecomputeRetries+1, store.aggregateCalls)
	require.Equal(t, mongodb.RatingStats{}, store.stats("t1"))
}

func TestUpdateReviewRecomputesCapturedTour(t *testing.T) {
	store := newMemStore()
	store.tours["t1"] = mongodb.RatingStats{}
	store.seedReview("t1", "bob", 5)
	own := store.seedReview("t1", "alice", 5)

	updated, err := newTestService(store).UpdateReview(context.Background(), alice, own.Id, UpdateReviewRequest{Rating: intPtr(1)})
	require.NoError(t, err)
	require.Equal(t, 1, updated.Rating)

	require.Equal(t, 1, store.aggregateCalls)
	require.Equal(t, mongodb.RatingStats{Quantity: 2, Average: 3}, store.stats("t1"))
}

func TestUpdateMissingReview(t *testing.T) {
	store := newMemStore()

	_, err := newTestService(store).UpdateReview(context.Background(), alice, "missing", UpdateReviewRequest{Rating: intPtr(4)})
	require.ErrorIs(t, err, ErrReviewNotFound)
	require.Equal(t, apperrors.NotFound, apperrors.KindOf(err))
	require.Equal(t, 0, store.aggregateCalls)
}

func TestUpdateReviewNeedsAFieldAndValidValues(t *testing.T) {
	store := newMemStore()
	store.tours["t1"] = mongodb.RatingStats{}
	own := store.seedReview("t1", "alice", 5)
	svc := newTestService(store)

	_, err := svc.UpdateReview(context.Background(), alice, own.Id, UpdateReviewRequest{})
	require.ErrorIs(t, err, ErrEmptyUpdate)

	_, err = svc.UpdateReview(context.Background(), alice, own.Id, UpdateReviewRequest{Rating: intPtr(0)})
	require.Equal(t, apperrors.InvalidRequest, apperrors.KindOf(err))

	require.Equal(t, 0, store.aggregateCalls)
}

func TestOnlyAuthorOrAdminMayChangeAReview(t *testing.T) {
	store := newMemStore()
	store.tours["t1"] = mongodb.RatingStats{}
	own := store.seedReview("t1", "alice", 5)
	svc := newTestService(store)

	_, err := svc.UpdateReview(context.Background(), bob, own.Id, UpdateReviewRequest{Rating: intPtr(1)})
	require.ErrorIs(t, err, ErrNotReviewAuthor)
	require.Equal(t, apperrors.Forbidden, apperrors.KindOf(err))

	err = svc.DeleteReview(context.Background(), bob, own.Id)
	require.ErrorIs(t, err, ErrNotReviewAuthor)
	require.Equal(t, 0, store.aggregateCalls)

	_, err = svc.UpdateReview(context.Background(), admin, own.Id, UpdateReviewRequest{Rating: intPtr(2)})
	require.NoError(t, err)
	require.Equal(t, 2.0, store.stats("t1").Average)
}

func TestDeleteReviewRecomputesCapturedTour(t *testing.T) {
	store := newMemStore()
	store.tours["t1"] = mongodb.RatingStats{Quantity: 1, Average: 4}
	own := store.seedReview("t1", "alice", 4)

	err := newTestService(store).DeleteReview(context.Background(), alice, own.Id)
	require.NoError(t, err)

	require.Empty(t, store.reviews)
	require.Equal(t, 1, store.aggregateCalls)
	require.Equal(t, mongodb.RatingStats{}, store.stats("t1"))
}

func TestDeleteMissingReview(t *testing.T) {
	store := newMemStore()

	err := newTestService(store).DeleteReview(context.Background(), alice, "missing")
	require.ErrorIs(t, err, ErrReviewNotFound)
	require.Equal(t, 0, store.aggregateCalls)
}

func TestLookupFailureAbortsTheMutation(t *testing.T) {
	store := newMemStore()
	store.tours["t1"] = mongodb.RatingStats{}
	own := store.seedReview("t1", "alice", 4)
	store.lookupErr = errors.New("connection reset")

	err := newTestService(store).DeleteReview(context.Background(), alice, own.Id)
	require.Equal(t, apperrors.Internal, apperrors.KindOf(err))
	require.Len(t, store.reviews, 1)
	require.Equal(t, 0, store.aggregateCalls)
}

func TestZeroAffectedWriteSkipsRecompute(t *testing.T) {
	store := newMemStore()
	store.tours["t1"] = mongodb.RatingStats{}
	own := store.seedReview("t1", "alice", 4)
	store.vanishOnWrite = true
	svc := newTestService(store)

	err := svc.DeleteReview(context.Background(), alice, own.Id)
	require.ErrorIs(t, err, ErrReviewNotFound)

	_, err = svc.UpdateReview(context.Background(), alice, own.Id, UpdateReviewRequest{Rating: intPtr(1)})
	require.ErrorIs(t, err, ErrReviewNotFound)

	require.Equal(t, 0, store.aggregateCalls)
}

func TestGetReviewsOfTourPopulatesAuthors(t *testing.T) {
	store := newMemStore()
	store.users["alice"] = mongodb.UserSummary{Id: "alice", Name: "Alice", Email: "alice@example.com"}
	store.seedReview("t1", "alice", 4)
	store.seedReview("t2", "alice", 2)

	page, err := newTestService(store).GetReviews(context.Background(), query.Params{}, "t1")
	require.NoError(t, err)
	require.Equal(t, int64(1), page.TotalResults)
	require.Len(t, page.Content, 1)
	require.Equal(t, "t1", page.Content[0].TourId)
	require.NotNil(t, page.Content[0].Author)
	require.Equal(t, "Alice", page.Content[0].Author.Name)
	require.Empty(t, page.Content[0].Author.Email)
}

func TestGetReviewsRejectsInjectedOperators(t *testing.T) {
	store := newMemStore()

	_, err := newTestService(store).GetReviews(context.Background(), query.Params{
		"rating": map[string]string{"$ne": "1"},
	}, "")
	require.Equal(t, apperrors.InvalidRequest, apperrors.KindOf(err))
}

func TestProjectedReviewOmitsMissingTimestamps(t *testing.T) {
	raw, err := json.Marshal(MapDbReviewToApiReview(mongodb.ReviewDb{Id: "r1", Rating: 4}))
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"r1","rating":4}`, string(raw))

	now := time.Now()
	review := MapDbReviewToApiReview(mongodb.ReviewDb{Id: "r1", Rating: 4, CreatedAt: now, UpdatedAt: now})
	require.NotNil(t, review.CreatedAt)
	require.True(t, now.Equal(*review.CreatedAt))
}
