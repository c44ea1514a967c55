package reviews

import "github.com/lealre/natours-backend/internal/apperrors"

var (
	ErrReviewNotFound      = apperrors.New(apperrors.NotFound, "no review found with that id")
	ErrTourNotFound        = apperrors.New(apperrors.NotFound, "no tour found with that id")
	ErrReviewAlreadyExists = apperrors.New(apperrors.Conflict, "you have already reviewed this tour")
	ErrNotReviewAuthor     = apperrors.New(apperrors.Forbidden, "you can only change your own reviews")
	ErrEmptyUpdate         = apperrors.New(apperrors.InvalidRequest, "nothing to update, send review and/or rating")
)
