package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lealre/natours-backend/internal/mongodb"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const UserKey contextKey = "user"

const tokenIssuer = "natours"

// Claims is what a verified token tells about its bearer.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func MakeJWT(userID string, tokenSecret string, expiresIn time.Duration) (string, error) {
	return makeJWT(userID, tokenSecret, time.Now(), expiresIn)
}

func makeJWT(userID, tokenSecret string, issuedAt time.Time, expiresIn time.Duration) (string, error) {
	claim := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(expiresIn)),
		Subject:   userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claim)

	return token.SignedString([]byte(tokenSecret))
}

// ValidateJWT checks the HS256 signature and expiry and returns the claims.
func ValidateJWT(tokenString, tokenSecret string) (Claims, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrTokenSigningMethod
			}
			return []byte(tokenSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrInvalidToken
	}

	if !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	if claims.Subject == "" {
		return Claims{}, ErrTokenWithNoSubject
	}

	if claims.IssuedAt == nil {
		return Claims{}, ErrInvalidToken
	}

	return Claims{
		Subject:   claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func GetBearerToken(headers http.Header) (string, error) {
	bearerToken := headers.Get("Authorization")

	if bearerToken == "" {
		return "", ErrNoAuthorizationHeader
	}

	if !strings.HasPrefix(bearerToken, "Bearer ") {
		return "", ErrMalformedAuthHeader
	}

	token := strings.TrimPrefix(bearerToken, "Bearer ")
	token = strings.TrimSpace(token) // clean up any accidental space

	if token == "" {
		return "", ErrNoTokenInAuthHeader
	}

	return token, nil
}

// TokenFromRequest reads the bearer token, falling back to the session cookie
// when there is no Authorization header at all.
func TokenFromRequest(r *http.Request, cookieName string) (string, error) {
	token, err := GetBearerToken(r.Header)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, ErrNoAuthorizationHeader) {
		return "", err
	}

	cookie, cookieErr := r.Cookie(cookieName)
	if cookieErr != nil || cookie.Value == "" || cookie.Value == LoggedOutCookieValue {
		return "", ErrNotLoggedIn
	}

	return cookie.Value, nil
}

func GetUserFromContext(ctx context.Context) *mongodb.UserDb {
	if user, ok := ctx.Value(UserKey).(mongodb.UserDb); ok {
		return &user
	}
	return nil
}

func WithUser(ctx context.Context, user mongodb.UserDb) context.Context {
	return context.WithValue(ctx, UserKey, user)
}
