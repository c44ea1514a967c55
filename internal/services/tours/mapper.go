package tours

import (
	"github.com/lealre/natours-backend/internal/generics"
	"github.com/lealre/natours-backend/internal/mongodb"
	"github.com/lealre/natours-backend/internal/query"
)

func MapDbTourToApiTour(tourDb mongodb.TourDb) Tour {
	tour := Tour{
		Id:              tourDb.Id,
		Name:            tourDb.Name,
		Duration:        tourDb.Duration,
		MaxGroupSize:    tourDb.MaxGroupSize,
		Difficulty:      tourDb.Difficulty,
		Price:           tourDb.Price,
		PriceDiscount:   tourDb.PriceDiscount,
		RatingsAverage:  &tourDb.RatingsAverage,
		RatingsQuantity: &tourDb.RatingsQuantity,
		Summary:         tourDb.Summary,
		Description:     tourDb.Description,
		ImageCover:      tourDb.ImageCover,
		Images:          tourDb.Images,
		StartDates:      tourDb.StartDates,
		StartLocation:   tourDb.StartLocation,
		Locations:       tourDb.Locations,
		guideIds:        tourDb.Guides,
	}

	if tourDb.Duration > 0 {
		tour.DurationWeeks = float64(tourDb.Duration) / 7
	}
	if !tourDb.CreatedAt.IsZero() {
		createdAt := tourDb.CreatedAt
		tour.CreatedAt = &createdAt
	}
	if !tourDb.UpdatedAt.IsZero() {
		updatedAt := tourDb.UpdatedAt
		tour.UpdatedAt = &updatedAt
	}

	return tour
}

// mapProjectedTours maps tours fetched with spec. Rating statistics the
// projection left out are omitted instead of rendered as zero.
func mapProjectedTours(toursDb []mongodb.TourDb, spec query.Spec) []Tour {
	tours := generics.Map(toursDb, MapDbTourToApiTour)
	for i := range tours {
		if !spec.Includes("ratingsAverage") {
			tours[i].RatingsAverage = nil
		}
		if !spec.Includes("ratingsQuantity") {
			tours[i].RatingsQuantity = nil
		}
	}
	return tours
}

func mapCreateRequestToDbTour(req CreateTourRequest) mongodb.TourDb {
	return mongodb.TourDb{
		Name:          req.Name,
		Duration:      req.Duration,
		MaxGroupSize:  req.MaxGroupSize,
		Difficulty:    req.Difficulty,
		Price:         req.Price,
		PriceDiscount: req.PriceDiscount,
		Summary:       req.Summary,
		Description:   req.Description,
		ImageCover:    req.ImageCover,
		Images:        req.Images,
		StartDates:    req.StartDates,
		StartLocation: req.StartLocation,
		Locations:     req.Locations,
		Guides:        req.Guides,
	}
}
