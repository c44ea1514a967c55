package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lealre/natours-backend/internal/services/reviews"
)

// GetReviews serves both /reviews and /tours/{tourId}/reviews.
func (api *API) GetReviews(w http.ResponseWriter, r *http.Request) {
	params, err := queryParams(r)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	page, err := api.Reviews.GetReviews(r.Context(), params, chi.URLParam(r, "tourId"))
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondWithPage(w, page)
}

func (api *API) GetReview(w http.ResponseWriter, r *http.Request) {
	review, err := api.Reviews.GetReview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondWithData(w, http.StatusOK, review)
}

func (api *API) CreateReview(w http.ResponseWriter, r *http.Request) {
	user, err := principal(r)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	var req reviews.CreateReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, r, err)
		return
	}

	review, err := api.Reviews.CreateReview(r.Context(), user, chi.URLParam(r, "tourId"), req)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondWithData(w, http.StatusCreated, review)
}

func (api *API) UpdateReview(w http.ResponseWriter, r *http.Request) {
	user, err := principal(r)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	var req reviews.UpdateReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, r, err)
		return
	}

	review, err := api.Reviews.UpdateReview(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondWithData(w, http.StatusOK, review)
}

func (api *API) DeleteReview(w http.ResponseWriter, r *http.Request) {
	user, err := principal(r)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	if err := api.Reviews.DeleteReview(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondNoContent(w)
}
