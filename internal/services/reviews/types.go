package reviews

import (
	"time"

	"github.com/lealre/natours-backend/internal/mongodb"
)

type Review struct {
	Id        string               `json:"id"`
	Review    string               `json:"review,omitempty"`
	Rating    int                  `json:"rating,omitempty"`
	TourId    string               `json:"tourId,omitempty"`
	UserId    string               `json:"userId,omitempty"`
	Author    *mongodb.UserSummary `json:"author,omitempty"`
	CreatedAt *time.Time           `json:"createdAt,omitempty"`
	UpdatedAt *time.Time           `json:"updatedAt,omitempty"`
}

type CreateReviewRequest struct {
	Review string `json:"review" validate:"required,min=8,max=100"`
	Rating int    `json:"rating" validate:"required,gte=1,lte=5"`
}

type UpdateReviewRequest struct {
	Review *string `json:"review" validate:"omitempty,min=8,max=100"`
	Rating *int    `json:"rating" validate:"omitempty,gte=1,lte=5"`
}
