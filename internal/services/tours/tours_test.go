package tours

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lealre/natours-backend/internal/apperrors"
	"github.com/lealre/natours-backend/internal/mongodb"
	"github.com/lealre/natours-backend/internal/query"
	"github.com/lealre/natours-backend/internal/services/reviews"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type memStore struct {
	mu sync.Mutex

	tours   map[string]mongodb.TourDb
	reviews map[string]mongodb.ReviewDb
	users   map[string]mongodb.UserSummary

	lastSpec     query.Spec
	cascadeCalls int
	cascadeErr   error
	cascadeFails int
}

func newMemStore() *memStore {
	return &memStore{
		tours:   map[string]mongodb.TourDb{},
		reviews: map[string]mongodb.ReviewDb{},
		users:   map[string]mongodb.UserSummary{},
	}
}

func (m *memStore) reviewsOf(tourId string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, review := range m.reviews {
		if review.TourId == tourId {
			n++
		}
	}
	return n
}

func (m *memStore) AddTour(ctx context.Context, tour mongodb.TourDb) (mongodb.TourDb, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tours {
		if existing.Name == tour.Name {
			return mongodb.TourDb{}, errors.Join(mongodb.ErrDuplicateKey, errors.New("E11000"))
		}
	}
	tour.Id = "tour-" + tour.Name
	tour.CreatedAt = time.Now()
	m.tours[tour.Id] = tour
	return tour, nil
}

func (m *memStore) GetTourById(ctx context.Context, id string) (mongodb.TourDb, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tour, ok := m.tours[id]
	if !ok {
		return mongodb.TourDb{}, mongodb.ErrRecordNotFound
	}
	return tour, nil
}

func (m *memStore) GetTours(ctx context.Context, spec query.Spec) ([]mongodb.TourDb, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSpec = spec
	var out []mongodb.TourDb
	for _, tour := range m.tours {
		out = append(out, tour)
	}
	return out, nil
}

func (m *memStore) CountTours(ctx context.Context, filter bson.M) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.tours)), nil
}

func (m *memStore) UpdateTour(ctx context.Context, id string, fields bson.M) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tour, ok := m.tours[id]
	if !ok {
		return 0, nil
	}
	if price, ok := fields["price"].(float64); ok {
		tour.Price = price
	}
	if discount, ok := fields["priceDiscount"].(float64); ok {
		tour.PriceDiscount = discount
	}
	if name, ok := fields["name"].(string); ok {
		tour.Name = name
	}
	m.tours[id] = tour
	return 1, nil
}

func (m *memStore) DeleteTour(ctx context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tours[id]; !ok {
		return 0, nil
	}
	delete(m.tours, id)
	return 1, nil
}

func (m *memStore) DeleteReviewsByTourId(ctx context.Context, tourId string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cascadeCalls++

	if m.cascadeErr != nil {
		return 0, m.cascadeErr
	}
	if m.cascadeFails > 0 {
		m.cascadeFails--
		return 0, errors.New("transient store failure")
	}

	var deleted int64
	for id, review := range m.reviews {
		if review.TourId == tourId {
			delete(m.reviews, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memStore) TourStats(ctx context.Context, minRating float64) ([]mongodb.TourStats, error) {
	return []mongodb.TourStats{{Difficulty: "EASY", NumTours: 1}}, nil
}

func (m *memStore) MonthlyPlan(ctx context.Context, year int) ([]mongodb.MonthlyPlan, error) {
	return []mongodb.MonthlyPlan{{Month: 7, NumTourStarts: 2, Tours: []string{"a", "b"}}}, nil
}

func (m *memStore) TourDistances(ctx context.Context, lng, lat, multiplier float64) ([]mongodb.TourDistance, error) {
	return []mongodb.TourDistance{{Id: "t1", Name: "near", Distance: 1000 * multiplier}}, nil
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

func (m *memStore) GetTourReviews(ctx context.Context, tourId string) ([]reviews.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []reviews.Review{}
	for _, review := range m.reviews {
		if review.TourId == tourId {
			out = append(out, reviews.MapDbReviewToApiReview(review))
		}
	}
	return out, nil
}

const testRetries = 2

func newTestService(store *memStore) *Service {
	cascade := NewCascadeDeleter(store, testRetries, time.Second)
	cascade.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return NewService(store, store, cascade)
}

func seedTourWithReviews(store *memStore, tourId string, n int) {
	store.tours[tourId] = mongodb.TourDb{Id: tourId, Name: "Tour " + tourId, Price: 500}
	for i := 0; i < n; i++ {
		id := tourId + "-r" + string(rune('a'+i))
		store.reviews[id] = mongodb.ReviewDb{Id: id, TourId: tourId, UserId: "u" + string(rune('a'+i)), Rating: 4}
	}
}

func TestDeleteTourCascadesToReviews(t *testing.T) {
	store := newMemStore()
	seedTourWithReviews(store, "t1", 3)
	seedTourWithReviews(store, "t2", 2)

	err := newTestService(store).DeleteTour(context.Background(), "t1")
	require.NoError(t, err)

	require.NotContains(t, store.tours, "t1")
	require.Equal(t, 0, store.reviewsOf("t1"))
	require.Equal(t, 2, store.reviewsOf("t2"))
	require.Equal(t, 1, store.cascadeCalls)
}

func TestDeleteTourWithoutReviews(t *testing.T) {
	store := newMemStore()
	seedTourWithReviews(store, "t1", 0)

	err := newTestService(store).DeleteTour(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, 1, store.cascadeCalls)
}

func TestDeleteMissingTourSkipsCascade(t *testing.T) {
	store := newMemStore()
	seedTourWithReviews(store, "t2", 2)

	err := newTestService(store).DeleteTour(context.Background(), "t1")
	require.ErrorIs(t, err, ErrTourNotFound)
	require.Equal(t, apperrors.NotFound, apperrors.KindOf(err))
	require.Equal(t, 0, store.cascadeCalls)
	require.Equal(t, 2, store.reviewsOf("t2"))
}

func TestCascadeRetriesTransientFailures(t *testing.T) {
	store := newMemStore()
	seedTourWithReviews(store, "t1", 2)
	store.cascadeFails = 1

	err := newTestService(store).DeleteTour(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, 2, store.cascadeCalls)
	require.Equal(t, 0, store.reviewsOf("t1"))
}

func TestCascadeFailureIsReported(t *testing.T) {
	store := newMemStore()
	seedTourWithReviews(store, "t1", 2)
	store.cascadeErr = errors.New("store unavailable")

	err := newTestService(store).DeleteTour(context.Background(), "t1")
	require.ErrorIs(t, err, ErrCascadeFailed)
	require.Equal(t, apperrors.Internal, apperrors.KindOf(err))

	require.Equal(t, testRetries+1, store.cascadeCalls)
	require.NotContains(t, store.tours, "t1")
	require.Equal(t, 2, store.reviewsOf("t1"))
}

func TestCascadeOutlivesCanceledRequest(t *testing.T) {
	store := newMemStore()
	seedTourWithReviews(store, "t1", 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	deleted, err := newTestService(store).cascade.Run(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)
}

func validCreateRequest() CreateTourRequest {
	return CreateTourRequest{
		Name:         "The Forest Hiker",
		Duration:     5,
		MaxGroupSize: 25,
		Difficulty:   "easy",
		Price:        397,
		Summary:      "Breathtaking hike through the Canadian Banff National Park",
		ImageCover:   "tour-1-cover.jpg",
	}
}

func TestCreateTour(t *testing.T) {
	store := newMemStore()
	store.users["g1"] = mongodb.UserSummary{Id: "g1", Name: "Guide", Role: "guide"}

	req := validCreateRequest()
	req.Guides = []string{"g1"}
	req.StartLocation = &mongodb.Location{Type: "Point", Coordinates: []float64{-115.57, 51.17}}

	tour, err := newTestService(store).CreateTour(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "The Forest Hiker", tour.Name)
	require.NotNil(t, tour.RatingsQuantity)
	require.Equal(t, 0, *tour.RatingsQuantity)
	require.InDelta(t, 5.0/7, tour.DurationWeeks, 1e-9)
	require.Len(t, tour.Guides, 1)
	require.Equal(t, "Guide", tour.Guides[0].Name)
}

func TestCreateTourRejectsInvalidInput(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	discount := validCreateRequest()
	discount.PriceDiscount = 500
	_, err := svc.CreateTour(context.Background(), discount)
	require.Equal(t, apperrors.InvalidRequest, apperrors.KindOf(err))

	difficulty := validCreateRequest()
	difficulty.Difficulty = "extreme"
	_, err = svc.CreateTour(context.Background(), difficulty)
	require.Equal(t, apperrors.InvalidRequest, apperrors.KindOf(err))

	guide := validCreateRequest()
	guide.Guides = []string{"ghost"}
	_, err = svc.CreateTour(context.Background(), guide)
	require.ErrorIs(t, err, ErrUnknownGuide)

	location := validCreateRequest()
	location.StartLocation = &mongodb.Location{Type: "Point", Coordinates: []float64{200, 10}}
	_, err = svc.CreateTour(context.Background(), location)
	require.ErrorIs(t, err, ErrInvalidLocation)

	require.Empty(t, store.tours)
}

func TestCreateDuplicateTour(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	_, err := svc.CreateTour(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = svc.CreateTour(context.Background(), validCreateRequest())
	require.ErrorIs(t, err, ErrTourAlreadyExists)
	require.Equal(t, apperrors.Conflict, apperrors.KindOf(err))
}

func TestUpdateTourChecksDiscountAgainstStoredPrice(t *testing.T) {
	store := newMemStore()
	seedTourWithReviews(store, "t1", 0)
	svc := newTestService(store)

	tooHigh := 600.0
	_, err := svc.UpdateTour(context.Background(), "t1", UpdateTourRequest{PriceDiscount: &tooHigh})
	require.ErrorIs(t, err, ErrInvalidDiscount)

	ok := 100.0
	tour, err := svc.UpdateTour(context.Background(), "t1", UpdateTourRequest{PriceDiscount: &ok})
	require.NoError(t, err)
	require.Equal(t, 100.0, tour.PriceDiscount)

	_, err = svc.UpdateTour(context.Background(), "t1", UpdateTourRequest{})
	require.ErrorIs(t, err, ErrEmptyUpdate)

	_, err = svc.UpdateTour(context.Background(), "missing", UpdateTourRequest{PriceDiscount: &ok})
	require.ErrorIs(t, err, ErrTourNotFound)
}

func TestGetTourPopulatesGuidesAndReviews(t *testing.T) {
	store := newMemStore()
	seedTourWithReviews(store, "t1", 2)
	tour := store.tours["t1"]
	tour.Guides = []string{"g1", "gone"}
	store.tours["t1"] = tour
	store.users["g1"] = mongodb.UserSummary{Id: "g1", Name: "Lead", Role: "lead-guide"}

	got, err := newTestService(store).GetTour(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, got.Reviews, 2)
	require.Len(t, got.Guides, 1)
	require.Equal(t, "Lead", got.Guides[0].Name)

	_, err = newTestService(store).GetTour(context.Background(), "missing")
	require.ErrorIs(t, err, ErrTourNotFound)
}

func TestToursWithinBuildsGeoFilter(t *testing.T) {
	store := newMemStore()
	seedTourWithReviews(store, "t1", 0)
	svc := newTestService(store)

	_, err := svc.ToursWithin(context.Background(), "396.32", "34.11,-118.11", "mi", query.Params{"difficulty": "easy"})
	require.NoError(t, err)

	require.Equal(t, "easy", store.lastSpec.Filter["difficulty"])
	within := store.lastSpec.Filter["startLocation"].(bson.M)["$geoWithin"].(bson.M)["$centerSphere"].(bson.A)
	require.Equal(t, bson.A{-118.11, 34.11}, within[0])
	require.InDelta(t, 0.1, within[1], 1e-6)
}

func TestGeoParameterValidation(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()

	_, err := svc.ToursWithin(ctx, "-1", "34.1,-118.1", "mi", nil)
	require.ErrorIs(t, err, ErrInvalidDistance)

	_, err = svc.ToursWithin(ctx, "10", "34.1", "mi", nil)
	require.ErrorIs(t, err, ErrInvalidLatLng)

	_, err = svc.ToursWithin(ctx, "10", "34.1,-118.1", "ly", nil)
	require.ErrorIs(t, err, ErrInvalidUnit)

	_, err = svc.Distances(ctx, "134.1,-118.1", "km")
	require.ErrorIs(t, err, ErrInvalidLatLng)

	distances, err := svc.Distances(ctx, "34.1,-118.1", "km")
	require.NoError(t, err)
	require.InDelta(t, 1.0, distances[0].Distance, 1e-9)
}

func TestMonthlyPlanYear(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.MonthlyPlan(context.Background(), "twenty")
	require.ErrorIs(t, err, ErrInvalidYear)

	plan, err := svc.MonthlyPlan(context.Background(), "2021")
	require.NoError(t, err)
	require.Equal(t, 7, plan[0].Month)
}

func TestGetToursOmitsProjectedOutRatings(t *testing.T) {
	store := newMemStore()
	store.tours["t1"] = mongodb.TourDb{Id: "t1", Name: "The Forest Hiker", Price: 397, RatingsAverage: 4.8, RatingsQuantity: 12}
	svc := newTestService(store)

	page, err := svc.GetTours(context.Background(), query.Params{"fields": "name,price"})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	require.Nil(t, page.Content[0].RatingsAverage)
	require.Nil(t, page.Content[0].RatingsQuantity)

	raw, err := json.Marshal(page.Content[0])
	require.NoError(t, err)
	require.NotContains(t, string(raw), "ratingsAverage")
	require.NotContains(t, string(raw), "ratingsQuantity")

	page, err = svc.GetTours(context.Background(), query.Params{})
	require.NoError(t, err)
	require.InDelta(t, 4.8, *page.Content[0].RatingsAverage, 1e-9)
	require.Equal(t, 12, *page.Content[0].RatingsQuantity)
}
