package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hobby-app/marketplace/internal/port/rest/middleware"
	"github.com/hobby-app/marketplace/internal/usecase"
	"go.uber.org/zap"
)

const maxImageUploadBytes = 10 << 20

type ListingHandler struct {
	feedUC    *usecase.FeedUseCase
	listingUC *usecase.ListingUseCase
	logger    *zap.Logger
}

func NewListingHandler(feedUC *usecase.FeedUseCase, listingUC *usecase.ListingUseCase, logger *zap.Logger) *ListingHandler {
	return &ListingHandler{
		feedUC:    feedUC,
		listingUC: listingUC,
		logger:    logger,
	}
}

type fetchRandomListingsResponse struct {
	Message  string                      `json:"message"`
	Listings []usecase.ListingProjection `json:"listings"`
}

// HandleFetchRandomListings serves GET /listings/fetch-random-listings.
//
// Wire contract kept from the mobile app: numListings defaults to 1 on a
// missing or unparsable value, active=true selects unsold listings and any
// other value selects sold ones, and listingId names a listing to exclude
// from the page.
func (h *ListingHandler) HandleFetchRandomListings(w http.ResponseWriter, r *http.Request) {
	count := 1
	if raw := queryParam(r, "numListings"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			count = parsed
		}
	}

	input := usecase.SampleInput{
		Count:     count,
		SellerID:  queryParam(r, "sellerId"),
		Category:  queryParam(r, "category"),
		ExcludeID: queryParam(r, "listingId"),
		Active:    queryParam(r, "active") == "true",
	}

	listings, err := h.feedUC.SampleListings(r.Context(), input)
	if err != nil {
		h.logger.Error("Failed to fetch random listings", zap.Error(err))
		respondError(w, h.logger, http.StatusInternalServerError, "failed to fetch listings")
		return
	}

	respondJSON(w, h.logger, http.StatusOK, fetchRandomListingsResponse{
		Message:  "listings fetched successfully",
		Listings: listings,
	})
}

type createListingRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Images      []string `json:"images"`
	Quantity    int      `json:"quantity"`
	Condition   string   `json:"condition"`
	Category    string   `json:"category"`
	ListingType string   `json:"listingType"`
	Duration    int      `json:"duration"`
	Offerable   bool     `json:"offerable"`
}

type listingResponse struct {
	Message string                `json:"message"`
	Listing usecase.ListingDetail `json:"listing"`
}

func (h *ListingHandler) HandleCreateListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	listing, err := h.listingUC.CreateListing(r.Context(), usecase.CreateListingInput{
		OwnerUID:    middleware.UserIDFromContext(r.Context()),
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Images:      req.Images,
		Quantity:    req.Quantity,
		Condition:   req.Condition,
		Category:    req.Category,
		ListingType: req.ListingType,
		Duration:    req.Duration,
		Offerable:   req.Offerable,
	})
	if err != nil {
		h.logger.Error("Failed to create listing", zap.Error(err))
		status, msg := statusForError(err)
		respondError(w, h.logger, status, msg)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, listingResponse{
		Message: "listing created successfully",
		Listing: usecase.ProjectListingDetail(listing),
	})
}

type updateListingRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Images      []string `json:"images"`
	Quantity    *int     `json:"quantity"`
	Condition   *string  `json:"condition"`
	Category    *string  `json:"category"`
	Offerable   *bool    `json:"offerable"`
}

// HandleUpdateListing serves PATCH /listings/{id}. Fields absent from the
// body keep their current values.
func (h *ListingHandler) HandleUpdateListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, h.logger, http.StatusBadRequest, "missing listing id")
		return
	}

	var req updateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	listing, err := h.listingUC.UpdateListing(r.Context(), id, middleware.UserIDFromContext(r.Context()), usecase.UpdateListingInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Images:      req.Images,
		Quantity:    req.Quantity,
		Condition:   req.Condition,
		Category:    req.Category,
		Offerable:   req.Offerable,
	})
	if err != nil {
		status, msg := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to update listing", zap.String("listing_id", id), zap.Error(err))
		}
		respondError(w, h.logger, status, msg)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, listingResponse{
		Message: "listing updated successfully",
		Listing: usecase.ProjectListingDetail(listing),
	})
}

func (h *ListingHandler) HandleGetListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, h.logger, http.StatusBadRequest, "missing listing id")
		return
	}

	listing, err := h.listingUC.GetListing(r.Context(), id)
	if err != nil {
		status, msg := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to get listing", zap.String("listing_id", id), zap.Error(err))
		}
		respondError(w, h.logger, status, msg)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, listingResponse{
		Message: "listing fetched successfully",
		Listing: usecase.ProjectListingDetail(listing),
	})
}

func (h *ListingHandler) HandleLikeListing(w http.ResponseWriter, r *http.Request) {
	h.handleCounterAction(w, r, h.listingUC.LikeListing, "listing liked")
}

func (h *ListingHandler) HandleUnlikeListing(w http.ResponseWriter, r *http.Request) {
	h.handleCounterAction(w, r, h.listingUC.UnlikeListing, "listing unliked")
}

func (h *ListingHandler) HandlePlaceBid(w http.ResponseWriter, r *http.Request) {
	h.handleCounterAction(w, r, h.listingUC.PlaceBid, "bid placed")
}

func (h *ListingHandler) HandleMarkSold(w http.ResponseWriter, r *http.Request) {
	h.handleCounterAction(w, r, h.listingUC.MarkListingSold, "listing marked sold")
}

func (h *ListingHandler) handleCounterAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, id, actorUID string) error,
	successMessage string,
) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, h.logger, http.StatusBadRequest, "missing listing id")
		return
	}
	actorUID := middleware.UserIDFromContext(r.Context())

	if err := action(r.Context(), id, actorUID); err != nil {
		status, msg := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Listing action failed", zap.String("listing_id", id), zap.Error(err))
		}
		respondError(w, h.logger, status, msg)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]string{"message": successMessage})
}

func (h *ListingHandler) HandleUploadImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, h.logger, http.StatusBadRequest, "missing listing id")
		return
	}

	if err := r.ParseMultipartForm(maxImageUploadBytes); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "missing image file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageUploadBytes))
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "failed to read image file")
		return
	}

	actorUID := middleware.UserIDFromContext(r.Context())
	imageURL, err := h.listingUC.UploadListingImage(r.Context(), id, actorUID, header.Filename, data)
	if err != nil {
		status, msg := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to upload listing image", zap.String("listing_id", id), zap.Error(err))
		}
		respondError(w, h.logger, status, msg)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, map[string]string{
		"message": "image uploaded successfully",
		"url":     imageURL,
	})
}
