package auth

import "github.com/lealre/natours-backend/internal/apperrors"

var (
	ErrTokenSigningMethod    = apperrors.New(apperrors.Unauthenticated, "unexpected signing method")
	ErrInvalidToken          = apperrors.New(apperrors.Unauthenticated, "invalid token, please log in again")
	ErrTokenExpired          = apperrors.New(apperrors.Unauthenticated, "token has expired, please log in again")
	ErrTokenWithNoSubject    = apperrors.New(apperrors.Unauthenticated, "token has no subject")
	ErrNoAuthorizationHeader = apperrors.New(apperrors.Unauthenticated, "no 'Authorization' header found")
	ErrMalformedAuthHeader   = apperrors.New(apperrors.Unauthenticated, "token must start with 'Bearer '")
	ErrNoTokenInAuthHeader   = apperrors.New(apperrors.Unauthenticated, "no token after 'Bearer '")
	ErrNotLoggedIn           = apperrors.New(apperrors.Unauthenticated, "you are not logged in, please log in to get access")
	ErrUserNoLongerExists    = apperrors.New(apperrors.Unauthenticated, "the user belonging to this token no longer exists")
	ErrPasswordChanged       = apperrors.New(apperrors.Unauthenticated, "password was recently changed, please log in again")
	ErrInvalidCredentials    = apperrors.New(apperrors.Unauthenticated, "incorrect email or password")
	ErrForbidden             = apperrors.New(apperrors.Forbidden, "you do not have permission to perform this action")
)
