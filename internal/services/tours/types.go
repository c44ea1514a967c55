package tours

import (
	"time"

	"github.com/lealre/natours-backend/internal/mongodb"
	"github.com/lealre/natours-backend/internal/services/reviews"
)

type Tour struct {
	Id              string                `json:"id"`
	Name            string                `json:"name,omitempty"`
	Duration        int                   `json:"duration,omitempty"`
	DurationWeeks   float64               `json:"durationWeeks,omitempty"`
	MaxGroupSize    int                   `json:"maxGroupSize,omitempty"`
	Difficulty      string                `json:"difficulty,omitempty"`
	Price           float64               `json:"price,omitempty"`
	PriceDiscount   float64               `json:"priceDiscount,omitempty"`
	RatingsAverage  *float64              `json:"ratingsAverage,omitempty"`
	RatingsQuantity *int                  `json:"ratingsQuantity,omitempty"`
	Summary         string                `json:"summary,omitempty"`
	Description     string                `json:"description,omitempty"`
	ImageCover      string                `json:"imageCover,omitempty"`
	Images          []string              `json:"images,omitempty"`
	StartDates      []time.Time           `json:"startDates,omitempty"`
	StartLocation   *mongodb.Location     `json:"startLocation,omitempty"`
	Locations       []mongodb.Location    `json:"locations,omitempty"`
	Guides          []mongodb.UserSummary `json:"guides,omitempty"`
	Reviews         []reviews.Review      `json:"reviews,omitempty"`
	CreatedAt       *time.Time            `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time            `json:"updatedAt,omitempty"`

	guideIds []string
}

type CreateTourRequest struct {
	Name          string             `json:"name" validate:"required,min=8,max=50"`
	Duration      int                `json:"duration" validate:"required,gt=0"`
	MaxGroupSize  int                `json:"maxGroupSize" validate:"required,gt=0"`
	Difficulty    string             `json:"difficulty" validate:"required,oneof=easy medium difficult"`
	Price         float64            `json:"price" validate:"required,gt=0"`
	PriceDiscount float64            `json:"priceDiscount" validate:"omitempty,gte=0,ltfield=Price"`
	Summary       string             `json:"summary" validate:"required"`
	Description   string             `json:"description"`
	ImageCover    string             `json:"imageCover" validate:"required"`
	Images        []string           `json:"images"`
	StartDates    []time.Time        `json:"startDates"`
	StartLocation *mongodb.Location  `json:"startLocation"`
	Locations     []mongodb.Location `json:"locations"`
	Guides        []string           `json:"guides"`
}

// UpdateTourRequest carries only the fields to change. Rating statistics are
// derived from reviews and cannot be set here.
type UpdateTourRequest struct {
	Name          *string             `json:"name" validate:"omitempty,min=8,max=50"`
	Duration      *int                `json:"duration" validate:"omitempty,gt=0"`
	MaxGroupSize  *int                `json:"maxGroupSize" validate:"omitempty,gt=0"`
	Difficulty    *string             `json:"difficulty" validate:"omitempty,oneof=easy medium difficult"`
	Price         *float64            `json:"price" validate:"omitempty,gt=0"`
	PriceDiscount *float64            `json:"priceDiscount" validate:"omitempty,gte=0"`
	Summary       *string             `json:"summary" validate:"omitempty,min=1"`
	Description   *string             `json:"description"`
	ImageCover    *string             `json:"imageCover" validate:"omitempty,min=1"`
	Images        *[]string           `json:"images"`
	StartDates    *[]time.Time        `json:"startDates"`
	StartLocation *mongodb.Location   `json:"startLocation"`
	Locations     *[]mongodb.Location `json:"locations"`
	Guides        *[]string           `json:"guides"`
}
