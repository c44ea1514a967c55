package users

import "github.com/lealre/natours-backend/internal/apperrors"

var (
	ErrUserNotFound         = apperrors.New(apperrors.NotFound, "no user found with that id")
	ErrEmailTaken           = apperrors.New(apperrors.Conflict, "an account with that email already exists")
	ErrInvalidEmail         = apperrors.New(apperrors.InvalidRequest, "please provide a valid email")
	ErrMissingCredentials   = apperrors.New(apperrors.InvalidRequest, "please provide email and password")
	ErrWrongCurrentPassword = apperrors.New(apperrors.Unauthenticated, "your current password is wrong")
	ErrPasswordNotAllowed   = apperrors.New(apperrors.InvalidRequest, "this route is not for password updates, please use /update-password")
	ErrRoleNotAllowed       = apperrors.New(apperrors.InvalidRequest, "the role cannot be changed here")
	ErrSensitiveFilter      = apperrors.New(apperrors.InvalidRequest, "users cannot be filtered or sorted by password fields")
	ErrEmptyUpdate          = apperrors.New(apperrors.InvalidRequest, "nothing to update, send name and/or email")
)
