package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	notFound := New(NotFound, "tour not found")

	require.Equal(t, NotFound, KindOf(notFound))
	require.Equal(t, NotFound, KindOf(fmt.Errorf("handler: %w", notFound)))
	require.Equal(t, Internal, KindOf(errors.New("boom")))
	require.Equal(t, Internal, KindOf(InternalError(errors.New("boom"))))
}

func TestWrapKeepsSentinelAndCause(t *testing.T) {
	sentinel := New(Conflict, "review already exists")
	cause := errors.New("E11000 duplicate key")

	err := Wrap(sentinel, cause)

	require.ErrorIs(t, err, sentinel)
	require.ErrorIs(t, err, cause)
	require.Equal(t, Conflict, KindOf(err))
	require.Equal(t, "review already exists", PublicMessage(err))
}

func TestPublicMessageHidesInternals(t *testing.T) {
	err := InternalError(errors.New("connection reset by peer"))

	require.Equal(t, "an unexpected error occurred", PublicMessage(err))
	require.Equal(t, "an unexpected error occurred", PublicMessage(errors.New("raw")))
	require.Contains(t, err.Error(), "connection reset by peer")
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		InvalidRequest:  http.StatusBadRequest,
		NotFound:        http.StatusNotFound,
		Unauthenticated: http.StatusUnauthorized,
		Forbidden:       http.StatusForbidden,
		Conflict:        http.StatusConflict,
		Internal:        http.StatusInternalServerError,
	}

	for kind, status := range cases {
		require.Equal(t, status, kind.HTTPStatus(), kind.String())
	}
}

func TestEnsure(t *testing.T) {
	require.NoError(t, Ensure(nil))

	conflict := New(Conflict, "duplicate")
	require.Same(t, conflict, Ensure(conflict))

	raw := errors.New("boom")
	ensured := Ensure(raw)
	require.ErrorIs(t, ensured, raw)
	require.Equal(t, Internal, KindOf(ensured))
}
