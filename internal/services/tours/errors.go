package tours

import "github.com/lealre/natours-backend/internal/apperrors"

var (
	ErrTourNotFound      = apperrors.New(apperrors.NotFound, "no tour found with that id")
	ErrTourAlreadyExists = apperrors.New(apperrors.Conflict, "a tour with that name already exists")
	ErrUnknownGuide      = apperrors.New(apperrors.InvalidRequest, "every guide must be an existing user")
	ErrInvalidLocation   = apperrors.New(apperrors.InvalidRequest, "locations must be GeoJSON points with [longitude, latitude] coordinates")
	ErrInvalidDiscount   = apperrors.New(apperrors.InvalidRequest, "discount price must be below the regular price")
	ErrInvalidLatLng     = apperrors.New(apperrors.InvalidRequest, "please provide latitude and longitude in the format lat,lng")
	ErrInvalidUnit       = apperrors.New(apperrors.InvalidRequest, "unit must be mi or km")
	ErrInvalidDistance   = apperrors.New(apperrors.InvalidRequest, "distance must be a positive number")
	ErrInvalidYear       = apperrors.New(apperrors.InvalidRequest, "year must be a four digit year")
	ErrEmptyUpdate       = apperrors.New(apperrors.InvalidRequest, "nothing to update")
	ErrCascadeFailed     = apperrors.New(apperrors.Internal, "tour deleted but its reviews could not be removed")
)
