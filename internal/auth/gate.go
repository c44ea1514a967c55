package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lealre/natours-backend/internal/apperrors"
	"github.com/lealre/natours-backend/internal/metrics"
	"github.com/lealre/natours-backend/internal/mongodb"
)

// LoggedOutCookieValue replaces the token in the cookie on logout.
const LoggedOutCookieValue = "loggedout"

// States a request passes through on its way to a resolved principal.
const (
	StateUnauthenticated     = "unauthenticated"
	StateCredentialPresented = "credential_presented"
	StateCredentialVerified  = "credential_verified"
	StatePrincipalResolved   = "principal_resolved"
	StateForbidden           = "forbidden"
)

type PrincipalStore interface {
	GetUserById(ctx context.Context, id string) (mongodb.UserDb, error)
}

// Gate resolves the user behind a request's token.
type Gate struct {
	secret     string
	cookieName string
	users      PrincipalStore
}

func NewGate(secret, cookieName string, users PrincipalStore) *Gate {
	return &Gate{secret: secret, cookieName: cookieName, users: users}
}

/*
Protect authenticates r:

  - the token comes from "Authorization: Bearer" or the session cookie
  - signature and expiry are checked against the shared secret
  - the subject must still exist
  - a password change after the token was issued invalidates it
*/
func (g *Gate) Protect(r *http.Request) (mongodb.UserDb, error) {
	token, err := TokenFromRequest(r, g.cookieName)
	if err != nil {
		metrics.RecordAuthFailure(StateUnauthenticated)
		return mongodb.UserDb{}, err
	}

	claims, err := ValidateJWT(token, g.secret)
	if err != nil {
		metrics.RecordAuthFailure(StateCredentialPresented)
		return mongodb.UserDb{}, err
	}

	user, err := g.users.GetUserById(r.Context(), claims.Subject)
	if err != nil {
		metrics.RecordAuthFailure(StateCredentialVerified)
		if errors.Is(err, mongodb.ErrRecordNotFound) {
			return mongodb.UserDb{}, ErrUserNoLongerExists
		}
		return mongodb.UserDb{}, apperrors.InternalError(fmt.Errorf("resolve token subject: %w", err))
	}

	if ChangedPasswordAfter(user.PasswordChangedAt, claims.IssuedAt) {
		metrics.RecordAuthFailure(StatePrincipalResolved)
		return mongodb.UserDb{}, ErrPasswordChanged
	}

	return user, nil
}

// ChangedPasswordAfter compares at second precision, the precision of a token's iat.
func ChangedPasswordAfter(changedAt *time.Time, issuedAt time.Time) bool {
	if changedAt == nil {
		return false
	}
	return changedAt.Unix() > issuedAt.Unix()
}
