package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lealre/natours-backend/internal/apperrors"
	"github.com/lealre/natours-backend/internal/auth"
	"github.com/lealre/natours-backend/internal/generics"
	"github.com/lealre/natours-backend/internal/logx"
	"github.com/lealre/natours-backend/internal/mongodb"
	"github.com/lealre/natours-backend/internal/query"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

type SuccessResponse struct {
	Status  string `json:"status"`
	Results *int   `json:"results,omitempty"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

var (
	ErrInvalidJSON      = apperrors.New(apperrors.InvalidRequest, "invalid JSON in request body")
	ErrBodyTooLarge     = apperrors.New(apperrors.InvalidRequest, "request body too large")
	ErrEmptyBody        = apperrors.New(apperrors.InvalidRequest, "request body is empty")
	ErrMethodNotAllowed = apperrors.New(apperrors.InvalidRequest, "method not allowed on this route")
)

func respondWithJSON(w http.ResponseWriter, code int, payload any) error {
	response, err := json.Marshal(&payload)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)

	return nil
}

func respondWithData(w http.ResponseWriter, code int, data any) error {
	return respondWithJSON(w, code, SuccessResponse{Status: statusSuccess, Data: data})
}

func respondWithList[T any](w http.ResponseWriter, items []T) error {
	if items == nil {
		items = []T{}
	}
	results := len(items)
	return respondWithJSON(w, http.StatusOK, SuccessResponse{Status: statusSuccess, Results: &results, Data: items})
}

func respondWithPage[T any](w http.ResponseWriter, page generics.Page[T]) error {
	if page.Content == nil {
		page.Content = []T{}
	}
	results := len(page.Content)
	return respondWithJSON(w, http.StatusOK, SuccessResponse{Status: statusSuccess, Results: &results, Data: page})
}

func respondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

/*
RespondWithError renders err with the status of its kind.

Internal errors never leak their cause: the client gets a generic message and
the cause is logged with the request logger.
*/
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) error {
	kind := apperrors.KindOf(err)
	if kind == apperrors.Internal {
		logx.FromContext(r.Context()).Error().Err(err).Msg("request failed")
	}

	return respondWithJSON(w, kind.HTTPStatus(), ErrorResponse{
		Status:  statusError,
		Kind:    kind.String(),
		Message: formatErrorMessage(apperrors.PublicMessage(err)),
	})
}

func formatErrorMessage(errorMsg string) string {
	if len(errorMsg) > 0 {
		return strings.ToUpper(errorMsg[:1]) + errorMsg[1:]
	}
	return ""
}

// decodeJSON decodes a single JSON object, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return ErrBodyTooLarge
		case errors.Is(err, io.EOF):
			return ErrEmptyBody
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return apperrors.Newf(apperrors.InvalidRequest, "unknown field %s", field)
		default:
			return apperrors.Wrap(ErrInvalidJSON, err)
		}
	}

	if decoder.More() {
		return apperrors.Wrap(ErrInvalidJSON, fmt.Errorf("trailing data after JSON object"))
	}
	return nil
}

func queryParams(r *http.Request) (query.Params, error) {
	return query.ParamsFromValues(r.URL.Query())
}

// principal returns the user Protect put in the context.
func principal(r *http.Request) (mongodb.UserDb, error) {
	user := auth.GetUserFromContext(r.Context())
	if user == nil {
		return mongodb.UserDb{}, auth.ErrNotLoggedIn
	}
	return *user, nil
}

// NotFound and MethodNotAllowed render router misses in the API's error shape.
func NotFound(w http.ResponseWriter, r *http.Request) {
	RespondWithError(w, r, apperrors.Newf(apperrors.NotFound, "can't find %s on this server", r.URL.Path))
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	RespondWithError(w, r, ErrMethodNotAllowed)
}
