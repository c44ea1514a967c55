package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lealre/natours-backend/internal/services/users"
)

func (api *API) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := principal(r)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondWithData(w, http.StatusOK, api.Users.GetMe(user))
}

func (api *API) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, err := principal(r)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	var req users.UpdateMeRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, r, err)
		return
	}

	updated, err := api.Users.UpdateMe(r.Context(), user, req)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondWithData(w, http.StatusOK, updated)
}

func (api *API) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user, err := principal(r)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	if err := api.Users.DeleteMe(r.Context(), user); err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondNoContent(w)
}

func (api *API) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	user, err := principal(r)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	var req users.UpdatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, r, err)
		return
	}

	result, err := api.Users.UpdatePassword(r.Context(), user, req)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	api.setTokenCookie(w, result.Token, result.ExpiresAt)
	respondWithData(w, http.StatusOK, result)
}

func (api *API) GetUsers(w http.ResponseWriter, r *http.Request) {
	params, err := queryParams(r)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	page, err := api.Users.ListUsers(r.Context(), params)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondWithPage(w, page)
}

func (api *API) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := api.Users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondWithData(w, http.StatusOK, user)
}
