package tours

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lealre/natours-backend/internal/apperrors"
	"github.com/lealre/natours-backend/internal/generics"
	"github.com/lealre/natours-backend/internal/logx"
	"github.com/lealre/natours-backend/internal/mongodb"
	"github.com/lealre/natours-backend/internal/query"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	// StatsMinRating is the ratingsAverage a tour needs to count in TourStats.
	StatsMinRating = 4.5

	earthRadiusMi = 3963.2
	earthRadiusKm = 6378.1

	metersToMiles = 0.000621371
	metersToKm    = 0.001
)

// TopCheapParams is the preset behind the top-5-cheap alias.
var TopCheapParams = query.Params{
	"limit":  "5",
	"sort":   "-ratingsAverage,price",
	"fields": "name,price,ratingsAverage,summary,difficulty",
}

type Service struct {
	store   Store
	reviews ReviewLister
	cascade *CascadeDeleter
}

func NewService(store Store, reviews ReviewLister, cascade *CascadeDeleter) *Service {
	return &Service{store: store, reviews: reviews, cascade: cascade}
}

func (s *Service) GetTours(ctx context.Context, params query.Params) (generics.Page[Tour], error) {
	return s.listTours(ctx, query.New(params))
}

func (s *Service) listTours(ctx context.Context, builder *query.Builder) (generics.Page[Tour], error) {
	spec, err := builder.Filter().Sort().LimitFields().Paginate(ctx, s.store.CountTours)
	if err != nil {
		return generics.Page[Tour]{}, apperrors.Ensure(err)
	}

	toursDb, err := s.store.GetTours(ctx, spec)
	if err != nil {
		return generics.Page[Tour]{}, apperrors.InternalError(fmt.Errorf("get tours: %w", err))
	}

	tours := mapProjectedTours(toursDb, spec)
	if err := s.populateGuides(ctx, tours); err != nil {
		return generics.Page[Tour]{}, err
	}

	return generics.NewPage(spec, tours), nil
}

// GetTour returns one tour with its guides and reviews.
func (s *Service) GetTour(ctx context.Context, tourId string) (Tour, error) {
	tourDb, err := s.store.GetTourById(ctx, tourId)
	if err != nil {
		if errors.Is(err, mongodb.ErrRecordNotFound) {
			return Tour{}, ErrTourNotFound
		}
		return Tour{}, apperrors.InternalError(fmt.Errorf("get tour %s: %w", tourId, err))
	}

	tours := []Tour{MapDbTourToApiTour(tourDb)}
	if err := s.populateGuides(ctx, tours); err != nil {
		return Tour{}, err
	}

	tourReviews, err := s.reviews.GetTourReviews(ctx, tourId)
	if err != nil {
		return Tour{}, err
	}
	tours[0].Reviews = tourReviews

	return tours[0], nil
}

func (s *Service) CreateTour(ctx context.Context, req CreateTourRequest) (Tour, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Summary = strings.TrimSpace(req.Summary)
	if err := generics.Validate(req); err != nil {
		return Tour{}, err
	}
	if err := validateLocations(req.StartLocation, req.Locations); err != nil {
		return Tour{}, err
	}
	if err := s.checkGuides(ctx, req.Guides); err != nil {
		return Tour{}, err
	}

	created, err := s.store.AddTour(ctx, mapCreateRequestToDbTour(req))
	if err != nil {
		if errors.Is(err, mongodb.ErrDuplicateKey) {
			return Tour{}, apperrors.Wrap(ErrTourAlreadyExists, err)
		}
		return Tour{}, apperrors.InternalError(fmt.Errorf("add tour: %w", err))
	}

	logx.FromContext(ctx).Info().Str("tour_id", created.Id).Msg("tour created")

	tours := []Tour{MapDbTourToApiTour(created)}
	if err := s.populateGuides(ctx, tours); err != nil {
		return Tour{}, err
	}
	return tours[0], nil
}

func (s *Service) UpdateTour(ctx context.Context, tourId string, req UpdateTourRequest) (Tour, error) {
	if err := generics.Validate(req); err != nil {
		return Tour{}, err
	}

	current, err := s.store.GetTourById(ctx, tourId)
	if err != nil {
		if errors.Is(err, mongodb.ErrRecordNotFound) {
			return Tour{}, ErrTourNotFound
		}
		return Tour{}, apperrors.InternalError(fmt.Errorf("get tour %s: %w", tourId, err))
	}

	fields, err := s.updateFields(ctx, current, req)
	if err != nil {
		return Tour{}, err
	}

	affected, err := s.store.UpdateTour(ctx, tourId, fields)
	if err != nil {
		if errors.Is(err, mongodb.ErrDuplicateKey) {
			return Tour{}, apperrors.Wrap(ErrTourAlreadyExists, err)
		}
		return Tour{}, apperrors.InternalError(fmt.Errorf("update tour %s: %w", tourId, err))
	}
	if affected == 0 {
		return Tour{}, ErrTourNotFound
	}

	updated, err := s.store.GetTourById(ctx, tourId)
	if err != nil {
		if errors.Is(err, mongodb.ErrRecordNotFound) {
			return Tour{}, ErrTourNotFound
		}
		return Tour{}, apperrors.InternalError(fmt.Errorf("reload tour %s: %w", tourId, err))
	}

	tours := []Tour{MapDbTourToApiTour(updated)}
	if err := s.populateGuides(ctx, tours); err != nil {
		return Tour{}, err
	}
	return tours[0], nil
}

func (s *Service) updateFields(ctx context.Context, current mongodb.TourDb, req UpdateTourRequest) (bson.M, error) {
	fields := bson.M{}

	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Duration != nil {
		fields["duration"] = *req.Duration
	}
	if req.MaxGroupSize != nil {
		fields["maxGroupSize"] = *req.MaxGroupSize
	}
	if req.Difficulty != nil {
		fields["difficulty"] = *req.Difficulty
	}
	if req.Summary != nil {
		fields["summary"] = strings.TrimSpace(*req.Summary)
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.ImageCover != nil {
		fields["imageCover"] = *req.ImageCover
	}
	if req.Images != nil {
		fields["images"] = *req.Images
	}
	if req.StartDates != nil {
		fields["startDates"] = *req.StartDates
	}

	price, discount := current.Price, current.PriceDiscount
	if req.Price != nil {
		price = *req.Price
		fields["price"] = price
	}
	if req.PriceDiscount != nil {
		discount = *req.PriceDiscount
		fields["priceDiscount"] = discount
	}
	if discount > 0 && discount >= price {
		return nil, ErrInvalidDiscount
	}

	var locations []mongodb.Location
	if req.Locations != nil {
		locations = *req.Locations
		fields["locations"] = locations
	}
	if req.StartLocation != nil {
		fields["startLocation"] = req.StartLocation
	}
	if err := validateLocations(req.StartLocation, locations); err != nil {
		return nil, err
	}

	if req.Guides != nil {
		if err := s.checkGuides(ctx, *req.Guides); err != nil {
			return nil, err
		}
		fields["guides"] = *req.Guides
	}

	if len(fields) == 0 {
		return nil, ErrEmptyUpdate
	}
	return fields, nil
}

// DeleteTour deletes the tour and then every review of it. A failed cascade is
// reported even though the tour itself is gone.
func (s *Service) DeleteTour(ctx context.Context, tourId string) error {
	affected, err := s.store.DeleteTour(ctx, tourId)
	if err != nil {
		return apperrors.InternalError(fmt.Errorf("delete tour %s: %w", tourId, err))
	}
	if affected == 0 {
		return ErrTourNotFound
	}

	if _, err := s.cascade.Run(ctx, tourId); err != nil {
		logger := logx.FromContext(ctx)
		logger.Error().Err(err).Str("tour_id", tourId).Msg("orphan reviews left behind")
		return apperrors.Wrap(ErrCascadeFailed, err)
	}

	return nil
}

func (s *Service) TourStats(ctx context.Context) ([]mongodb.TourStats, error) {
	stats, err := s.store.TourStats(ctx, StatsMinRating)
	if err != nil {
		return nil, apperrors.InternalError(fmt.Errorf("tour stats: %w", err))
	}
	return stats, nil
}

func (s *Service) MonthlyPlan(ctx context.Context, rawYear string) ([]mongodb.MonthlyPlan, error) {
	year, err := strconv.Atoi(rawYear)
	if err != nil || year < 1000 || year > 9999 {
		return nil, ErrInvalidYear
	}

	plan, err := s.store.MonthlyPlan(ctx, year)
	if err != nil {
		return nil, apperrors.InternalError(fmt.Errorf("monthly plan %d: %w", year, err))
	}
	return plan, nil
}

// ToursWithin lists tours starting within distance (mi or km) of latlng. The
// other query parameters filter, sort and paginate as usual.
func (s *Service) ToursWithin(ctx context.Context, rawDistance, latlng, unit string, params query.Params) (generics.Page[Tour], error) {
	distance, err := strconv.ParseFloat(rawDistance, 64)
	if err != nil || distance <= 0 {
		return generics.Page[Tour]{}, ErrInvalidDistance
	}
	lat, lng, err := parseLatLng(latlng)
	if err != nil {
		return generics.Page[Tour]{}, err
	}

	var radius float64
	switch unit {
	case "mi":
		radius = distance / earthRadiusMi
	case "km":
		radius = distance / earthRadiusKm
	default:
		return generics.Page[Tour]{}, ErrInvalidUnit
	}

	builder := query.New(params).Where(mongodb.WithinRadius(lng, lat, radius))
	return s.listTours(ctx, builder)
}

// Distances returns each tour's distance from latlng in unit, nearest first.
func (s *Service) Distances(ctx context.Context, latlng, unit string) ([]mongodb.TourDistance, error) {
	lat, lng, err := parseLatLng(latlng)
	if err != nil {
		return nil, err
	}

	var multiplier float64
	switch unit {
	case "mi":
		multiplier = metersToMiles
	case "km":
		multiplier = metersToKm
	default:
		return nil, ErrInvalidUnit
	}

	distances, err := s.store.TourDistances(ctx, lng, lat, multiplier)
	if err != nil {
		return nil, apperrors.InternalError(fmt.Errorf("tour distances: %w", err))
	}
	return distances, nil
}

func (s *Service) checkGuides(ctx context.Context, guides []string) error {
	if len(guides) == 0 {
		return nil
	}

	unique := map[string]bool{}
	for _, id := range guides {
		unique[id] = true
	}
	ids := make([]string, 0, len(unique))
	for id := range unique {
		ids = append(ids, id)
	}

	found, err := s.store.GetUsersByIds(ctx, ids)
	if err != nil {
		return apperrors.InternalError(fmt.Errorf("check guides: %w", err))
	}
	if len(found) != len(ids) {
		return ErrUnknownGuide
	}
	return nil
}

func (s *Service) populateGuides(ctx context.Context, tours []Tour) error {
	seen := map[string]bool{}
	var ids []string
	for _, tour := range tours {
		for _, id := range tour.guideIds {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	guides, err := s.store.GetUsersByIds(ctx, ids)
	if err != nil {
		return apperrors.InternalError(fmt.Errorf("get tour guides: %w", err))
	}

	byId := make(map[string]mongodb.UserSummary, len(guides))
	for _, guide := range guides {
		byId[guide.Id] = guide
	}

	for i := range tours {
		for _, id := range tours[i].guideIds {
			if guide, ok := byId[id]; ok {
				tours[i].Guides = append(tours[i].Guides, guide)
			}
		}
	}

	return nil
}

func parseLatLng(latlng string) (lat, lng float64, err error) {
	parts := strings.Split(latlng, ",")
	if len(parts) != 2 {
		return 0, 0, ErrInvalidLatLng
	}

	lat, latErr := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, lngErr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if latErr != nil || lngErr != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, ErrInvalidLatLng
	}

	return lat, lng, nil
}

func validateLocations(start *mongodb.Location, locations []mongodb.Location) error {
	if start != nil && !validPoint(*start) {
		return ErrInvalidLocation
	}
	for _, location := range locations {
		if !validPoint(location) {
			return ErrInvalidLocation
		}
	}
	return nil
}

func validPoint(location mongodb.Location) bool {
	if location.Type != "Point" || len(location.Coordinates) != 2 {
		return false
	}
	lng, lat := location.Coordinates[0], location.Coordinates[1]
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}
