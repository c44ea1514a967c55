package api

import (
	"context"
	"net/http"
	"time"

	"github.com/lealre/natours-backend/internal/apperrors"
)

const healthTimeout = 2 * time.Second

var ErrDatabaseUnavailable = apperrors.New(apperrors.Internal, "database unavailable")

func (api *API) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := api.Db.Ping(ctx); err != nil {
		RespondWithError(w, r, apperrors.Wrap(ErrDatabaseUnavailable, err))
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{Status: statusSuccess, Message: "ok"})
}
