package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hobby-app/marketplace/internal/port/repository"
	"github.com/hobby-app/marketplace/internal/usecase"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	respondJSON(w, logger, status, errorResponse{Error: message})
}

// statusForError maps usecase and repository sentinels to HTTP statuses.
// Anything unrecognized is a 500; the underlying error is logged server-side
// and never echoed to the client.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, usecase.ErrInvalidListingData):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, usecase.ErrForbidden):
		return http.StatusForbidden, "action forbidden"
	case errors.Is(err, usecase.ErrNotAuction):
		return http.StatusConflict, "listing is not an auction"
	case errors.Is(err, usecase.ErrAuctionEnded):
		return http.StatusConflict, "auction has ended"
	case errors.Is(err, usecase.ErrAlreadySold):
		return http.StatusConflict, "listing is already sold"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// queryParam reads a query parameter, treating the literal string
// "undefined" as absent. The mobile client interpolates missing values into
// the query string as "undefined", so the server must not take it at face
// value.
func queryParam(r *http.Request, name string) string {
	v := r.URL.Query().Get(name)
	if v == "undefined" {
		return ""
	}
	return v
}
