package api

import (
	"net/http"
	"time"

	"github.com/lealre/natours-backend/internal/auth"
	"github.com/lealre/natours-backend/internal/services/users"
)

const loggedOutCookieTTL = 10 * time.Second

func (api *API) Signup(w http.ResponseWriter, r *http.Request) {
	var req users.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, r, err)
		return
	}

	result, err := api.Users.Signup(r.Context(), req)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	api.setTokenCookie(w, result.Token, result.ExpiresAt)
	respondWithData(w, http.StatusCreated, result)
}

func (api *API) Login(w http.ResponseWriter, r *http.Request) {
	var req users.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, r, err)
		return
	}

	result, err := api.Users.Login(r.Context(), req)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	api.setTokenCookie(w, result.Token, result.ExpiresAt)
	respondWithData(w, http.StatusOK, result)
}

// Logout overwrites the session cookie. Bearer tokens stay valid until they expire.
func (api *API) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     api.Cookie.Name,
		Value:    auth.LoggedOutCookieValue,
		Path:     "/",
		Expires:  time.Now().Add(loggedOutCookieTTL),
		HttpOnly: true,
		Secure:   api.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	respondWithJSON(w, http.StatusOK, SuccessResponse{Status: statusSuccess, Message: "Logged out"})
}

func (api *API) setTokenCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     api.Cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   api.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
