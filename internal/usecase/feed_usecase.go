package usecase

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hobby-app/marketplace/internal/entity"
	"github.com/hobby-app/marketplace/internal/platform/metrics"
	"github.com/hobby-app/marketplace/internal/port/repository"
	"go.uber.org/zap"
)

const DefaultMaxSampleCount = 50

// FeedUseCase serves pseudo-random pages of listings for the discover feed
// and the related-listings rails. It holds no cursor state: every call is an
// independent range probe against the uniform random key each listing gets
// at creation, so repeated calls may overlap. Deduplication across pages is
// the client's job.
type FeedUseCase struct {
	listingRepo repository.ListingRepository
	metrics     *metrics.MetricsManager
	logger      *zap.Logger
	maxCount    int
}

func NewFeedUseCase(
	lr repository.ListingRepository,
	mm *metrics.MetricsManager,
	log *zap.Logger,
	maxCount int,
) *FeedUseCase {
	if maxCount <= 0 {
		maxCount = DefaultMaxSampleCount
	}
	return &FeedUseCase{
		listingRepo: lr,
		metrics:     mm,
		logger:      log,
		maxCount:    maxCount,
	}
}

// SampleInput mirrors the fetch-random-listings query parameters after the
// HTTP layer has stripped wire quirks. Active selects unsold listings;
// ExcludeID drops one listing from the result (the one already on screen).
type SampleInput struct {
	Count     int
	SellerID  string
	Category  string
	ExcludeID string
	Active    bool
}

// ListingProjection is the public shape of a listing in feed responses.
// Internal fields (the random key, update timestamps) are not exposed.
type ListingProjection struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Images      []string  `json:"images"`
	Likes       int       `json:"likes"`
	ListingType string    `json:"listingType"`
	CreatedAt   time.Time `json:"createdAt"`
	Bids        int       `json:"bids"`
	Duration    int       `json:"duration"`
	OwnerUID    string    `json:"ownerUID"`
	Offerable   bool      `json:"offerable"`
}

func ProjectListing(l *entity.Listing) ListingProjection {
	return ListingProjection{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price,
		Images:      l.Images,
		Likes:       l.Likes,
		ListingType: string(l.ListingType),
		CreatedAt:   l.CreatedAt,
		Bids:        l.BidCount,
		Duration:    l.Duration,
		OwnerUID:    l.OwnerUID,
		Offerable:   l.Offerable,
	}
}

// SampleListings draws a uniform pivot and a random comparison direction,
// probes the store once, and retries once with the opposite direction if
// the first probe lands in an empty half of the keyspace. An empty result
// after both probes is a valid outcome, not an error.
//
// When both a category and a seller filter are supplied, category wins;
// only one filter is ever applied per query.
func (uc *FeedUseCase) SampleListings(ctx context.Context, input SampleInput) ([]ListingProjection, error) {
	count := input.Count
	if count <= 0 {
		count = 1
	}
	if count > uc.maxCount {
		count = uc.maxCount
	}

	q := repository.SampleQuery{
		Pivot:     rand.Float64(),
		Direction: repository.DirectionLTE,
		Count:     count,
		Sold:      !input.Active,
	}
	if rand.IntN(2) == 1 {
		q.Direction = repository.DirectionGTE
	}
	if input.Category != "" {
		q.Category = input.Category
	} else if input.SellerID != "" {
		q.SellerID = input.SellerID
	}

	if uc.metrics != nil {
		uc.metrics.FeedSamplesTotal.Inc()
	}

	listings, err := uc.listingRepo.SampleByRandomKey(ctx, q)
	if err != nil {
		uc.logger.Error("Failed to sample listings from repository", zap.Error(err), zap.Float64("pivot", q.Pivot))
		return nil, fmt.Errorf("FeedUseCase.SampleListings: first probe failed: %w", err)
	}

	if len(listings) == 0 {
		if uc.metrics != nil {
			uc.metrics.FeedSampleFallbacks.Inc()
		}
		retry := q
		retry.Direction = q.Direction.Opposite()

		listings, err = uc.listingRepo.SampleByRandomKey(ctx, retry)
		if err != nil {
			uc.logger.Error("Failed to sample listings on fallback probe", zap.Error(err), zap.Float64("pivot", q.Pivot))
			return nil, fmt.Errorf("FeedUseCase.SampleListings: fallback probe failed: %w", err)
		}
	}

	if len(listings) == 0 && uc.metrics != nil {
		uc.metrics.FeedEmptyPages.Inc()
	}

	result := make([]ListingProjection, 0, len(listings))
	for _, l := range listings {
		if input.ExcludeID != "" && l.ID == input.ExcludeID {
			continue
		}
		result = append(result, ProjectListing(l))
	}

	uc.logger.Debug("Sampled listing page",
		zap.Int("requested", count),
		zap.Int("returned", len(result)),
		zap.String("category", input.Category),
		zap.String("seller_id", input.SellerID),
	)
	return result, nil
}
