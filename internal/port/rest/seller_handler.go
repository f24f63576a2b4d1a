package rest

import (
	"encoding/json"
	"net/http"

	"github.com/hobby-app/marketplace/internal/entity"
	"github.com/hobby-app/marketplace/internal/port/rest/middleware"
	"github.com/hobby-app/marketplace/internal/usecase"
	"go.uber.org/zap"
)

type SellerHandler struct {
	sellerUC *usecase.SellerUseCase
	logger   *zap.Logger
}

func NewSellerHandler(sellerUC *usecase.SellerUseCase, logger *zap.Logger) *SellerHandler {
	return &SellerHandler{
		sellerUC: sellerUC,
		logger:   logger,
	}
}

type sellerPayload struct {
	ID                string  `json:"id"`
	Username          string  `json:"username"`
	Name              string  `json:"name"`
	PFP               string  `json:"pfp"`
	Banner            string  `json:"banner"`
	Description       string  `json:"description"`
	Rating            float64 `json:"rating"`
	NumberOfFollowers int     `json:"numberOfFollowers"`
	ItemsSold         int     `json:"itemsSold"`
}

type fetchSellerResponse struct {
	Seller sellerPayload `json:"seller"`
}

func toSellerPayload(s *entity.Seller) sellerPayload {
	return sellerPayload{
		ID:                s.ID,
		Username:          s.Username,
		Name:              s.Name,
		PFP:               s.PFP,
		Banner:            s.Banner,
		Description:       s.Description,
		Rating:            s.Rating,
		NumberOfFollowers: s.NumberOfFollowers,
		ItemsSold:         s.ItemsSold,
	}
}

// HandleFetchSeller serves GET /sellers/fetch-seller?id=. A missing id (or
// the client's literal "undefined") is a validation error, not a lookup.
func (h *SellerHandler) HandleFetchSeller(w http.ResponseWriter, r *http.Request) {
	id := queryParam(r, "id")
	if id == "" {
		respondError(w, h.logger, http.StatusBadRequest, "missing seller id")
		return
	}

	seller, err := h.sellerUC.GetSeller(r.Context(), id)
	if err != nil {
		status, msg := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to fetch seller", zap.String("seller_id", id), zap.Error(err))
		}
		respondError(w, h.logger, status, msg)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, fetchSellerResponse{Seller: toSellerPayload(seller)})
}

type upsertSellerRequest struct {
	Username    string `json:"username"`
	Name        string `json:"name"`
	PFP         string `json:"pfp"`
	Banner      string `json:"banner"`
	Description string `json:"description"`
}

// HandleUpsertSeller lets an authenticated user refresh their own public
// profile; the profile ID always comes from the token, never the body.
func (h *SellerHandler) HandleUpsertSeller(w http.ResponseWriter, r *http.Request) {
	var req upsertSellerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	seller, err := h.sellerUC.UpsertSeller(r.Context(), usecase.UpsertSellerInput{
		ID:          middleware.UserIDFromContext(r.Context()),
		Username:    req.Username,
		Name:        req.Name,
		PFP:         req.PFP,
		Banner:      req.Banner,
		Description: req.Description,
	})
	if err != nil {
		status, msg := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to upsert seller", zap.Error(err))
		}
		respondError(w, h.logger, status, msg)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, fetchSellerResponse{Seller: toSellerPayload(seller)})
}
