package api

import (
	"maps"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lealre/natours-backend/internal/services/tours"
)

func (api *API) GetTours(w http.ResponseWriter, r *http.Request) {
	params, err := queryParams(r)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	page, err := api.Tours.GetTours(r.Context(), params)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondWithPage(w, page)
}

// GetTopCheapTours is GetTours with the top-5-cheap preset forced over the
// request's own limit, sort and fields.
func (api *API) GetTopCheapTours(w http.ResponseWriter, r *http.Request) {
	params, err := queryParams(r)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}
	maps.Copy(params, tours.TopCheapParams)

	page, err := api.Tours.GetTours(r.Context(), params)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondWithPage(w, page)
}

func (api *API) GetTour(w http.ResponseWriter, r *http.Request) {
	tour, err := api.Tours.GetTour(r.Context(), chi.URLParam(r, "tourId"))
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondWithData(w, http.StatusOK, tour)
}

func (api *API) CreateTour(w http.ResponseWriter, r *http.Request) {
	var req tours.CreateTourRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, r, err)
		return
	}

	tour, err := api.Tours.CreateTour(r.Context(), req)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondWithData(w, http.StatusCreated, tour)
}

func (api *API) UpdateTour(w http.ResponseWriter, r *http.Request) {
	var req tours.UpdateTourRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondWithError(w, r, err)
		return
	}

	tour, err := api.Tours.UpdateTour(r.Context(), chi.URLParam(r, "tourId"), req)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondWithData(w, http.StatusOK, tour)
}

func (api *API) DeleteTour(w http.ResponseWriter, r *http.Request) {
	if err := api.Tours.DeleteTour(r.Context(), chi.URLParam(r, "tourId")); err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondNoContent(w)
}

func (api *API) GetTourStats(w http.ResponseWriter, r *http.Request) {
	stats, err := api.Tours.TourStats(r.Context())
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondWithList(w, stats)
}

func (api *API) GetMonthlyPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := api.Tours.MonthlyPlan(r.Context(), chi.URLParam(r, "year"))
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondWithList(w, plan)
}

// GetToursWithin serves /tours/within/{distance}/center/{latlng}/unit/{unit}.
func (api *API) GetToursWithin(w http.ResponseWriter, r *http.Request) {
	params, err := queryParams(r)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	page, err := api.Tours.ToursWithin(
		r.Context(),
		chi.URLParam(r, "distance"),
		chi.URLParam(r, "latlng"),
		chi.URLParam(r, "unit"),
		params,
	)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondWithPage(w, page)
}

func (api *API) GetDistances(w http.ResponseWriter, r *http.Request) {
	distances, err := api.Tours.Distances(r.Context(), chi.URLParam(r, "latlng"), chi.URLParam(r, "unit"))
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	respondWithList(w, distances)
}
