package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hobby-app/marketplace/internal/entity"
	"github.com/hobby-app/marketplace/internal/platform/metrics"
	"github.com/hobby-app/marketplace/internal/port/cache"
	"github.com/hobby-app/marketplace/internal/port/repository"
	"go.uber.org/zap"
)

type EventPublisher interface {
	PublishListingCreated(ctx context.Context, listing *entity.Listing) error
	PublishListingSold(ctx context.Context, listingID, ownerUID string) error
	PublishListingLiked(ctx context.Context, listingID, actorUID string) error
	PublishListingBid(ctx context.Context, listingID, actorUID string) error
}

type ImageStorage interface {
	Upload(ctx context.Context, fileName string, data []byte) (string, error)
}

type ListingUseCase struct {
	listingRepo repository.ListingRepository
	sellerRepo  repository.SellerRepository
	cacheRepo   cache.CacheRepository
	publisher   EventPublisher
	storage     ImageStorage
	metrics     *metrics.MetricsManager
	logger      *zap.Logger
}

func NewListingUseCase(
	lr repository.ListingRepository,
	sr repository.SellerRepository,
	cr cache.CacheRepository,
	pub EventPublisher,
	st ImageStorage,
	mm *metrics.MetricsManager,
	log *zap.Logger,
) *ListingUseCase {
	return &ListingUseCase{
		listingRepo: lr,
		sellerRepo:  sr,
		cacheRepo:   cr,
		publisher:   pub,
		storage:     st,
		metrics:     mm,
		logger:      log,
	}
}

func listingCacheKey(listingID string) string {
	return fmt.Sprintf("listing:%s", listingID)
}

const listingCacheTTL = 5 * time.Minute

type CreateListingInput struct {
	OwnerUID    string
	Title       string
	Description string
	Price       float64
	Images      []string
	Quantity    int
	Condition   string
	Category    string
	ListingType string
	Duration    int
	Offerable   bool
}

// ListingDetail extends the feed projection with the fields a listing
// detail page needs: stock, condition, category, sold state and, for
// auctions, the end date.
type ListingDetail struct {
	ListingProjection
	Quantity  int       `json:"quantity"`
	Condition string    `json:"condition"`
	Category  string    `json:"category"`
	Sold      bool      `json:"sold"`
	EndDate   time.Time `json:"endDate,omitzero"`
}

func ProjectListingDetail(l *entity.Listing) ListingDetail {
	return ListingDetail{
		ListingProjection: ProjectListing(l),
		Quantity:          l.Quantity,
		Condition:         l.Condition,
		Category:          l.Category,
		Sold:              l.Sold,
		EndDate:           l.EndDate,
	}
}

// CreateListing stores a new listing and stamps it with its sampling key:
// a uniform [0,1) value drawn exactly once here and never touched again.
func (uc *ListingUseCase) CreateListing(ctx context.Context, input CreateListingInput) (*entity.Listing, error) {
	if input.Title == "" || input.OwnerUID == "" {
		return nil, fmt.Errorf("%w: title and owner are required", ErrInvalidListingData)
	}
	if input.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidListingData)
	}

	listingType := entity.ListingType(input.ListingType)
	if listingType == "" {
		listingType = entity.ListingTypeFixed
	}
	if listingType != entity.ListingTypeFixed && listingType != entity.ListingTypeAuction {
		return nil, fmt.Errorf("%w: unknown listing type %q", ErrInvalidListingData, input.ListingType)
	}

	now := time.Now()
	listing := &entity.Listing{
		Title:       input.Title,
		Description: input.Description,
		Price:       input.Price,
		Images:      input.Images,
		Quantity:    input.Quantity,
		Condition:   input.Condition,
		Category:    input.Category,
		ListingType: listingType,
		Duration:    input.Duration,
		OwnerUID:    input.OwnerUID,
		Offerable:   input.Offerable,
		Random:      rand.Float64(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if listing.Quantity <= 0 {
		listing.Quantity = 1
	}

	if listingType == entity.ListingTypeAuction {
		if input.Duration <= 0 {
			return nil, fmt.Errorf("%w: auction listings require a positive duration", ErrInvalidListingData)
		}
		listing.EndDate = now.AddDate(0, 0, input.Duration)
	}

	createdID, err := uc.listingRepo.Create(ctx, listing)
	if err != nil {
		uc.logger.Error("Failed to create listing in repository", zap.Error(err), zap.String("owner_uid", input.OwnerUID))
		return nil, fmt.Errorf("ListingUseCase.CreateListing: failed to create listing in repo: %w", err)
	}
	listing.ID = createdID

	if uc.metrics != nil {
		uc.metrics.ListingsCreated.Inc()
	}

	uc.cacheListing(ctx, listing)

	if uc.publisher != nil {
		if errPub := uc.publisher.PublishListingCreated(ctx, listing); errPub != nil {
			uc.logger.Warn("Failed to publish listing created event",
				zap.Error(errPub),
				zap.String("listing_id", listing.ID),
			)
		}
	}

	return listing, nil
}

func (uc *ListingUseCase) GetListing(ctx context.Context, id string) (*entity.Listing, error) {
	if uc.cacheRepo != nil {
		key := listingCacheKey(id)
		cachedBytes, err := uc.cacheRepo.Get(ctx, key)
		if err == nil {
			var fromCache entity.Listing
			if unmarshalErr := json.Unmarshal(cachedBytes, &fromCache); unmarshalErr == nil {
				uc.logger.Debug("Listing fetched from cache", zap.String("key", key))
				return &fromCache, nil
			}
			if delErr := uc.cacheRepo.Delete(ctx, key); delErr != nil {
				uc.logger.Warn("Failed to delete corrupted data from cache", zap.String("key", key), zap.Error(delErr))
			}
		} else if !errors.Is(err, cache.ErrNotFound) {
			uc.logger.Warn("Failed to get listing from cache (not a cache miss)", zap.Error(err), zap.String("key", key))
		}
	}

	listing, err := uc.listingRepo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			uc.logger.Error("Failed to get listing by ID from repository", zap.Error(err), zap.String("listing_id", id))
		}
		return nil, fmt.Errorf("ListingUseCase.GetListing: failed to get listing from repo: %w", err)
	}

	uc.cacheListing(ctx, listing)
	return listing, nil
}

// UpdateListingInput carries a partial edit. Nil pointers mean "leave the
// field alone"; a nil Images slice likewise keeps the current images.
type UpdateListingInput struct {
	Title       *string
	Description *string
	Price       *float64
	Images      []string
	Quantity    *int
	Condition   *string
	Category    *string
	Offerable   *bool
}

// UpdateListing applies a partial edit to a listing. Only the owner may
// edit, sold listings are frozen, and the random sampling key is never
// touched.
func (uc *ListingUseCase) UpdateListing(ctx context.Context, id, actorUID string, input UpdateListingInput) (*entity.Listing, error) {
	listing, err := uc.listingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ListingUseCase.UpdateListing: %w", err)
	}
	if listing.OwnerUID != actorUID {
		return nil, ErrForbidden
	}
	if listing.Sold {
		return nil, ErrAlreadySold
	}

	if input.Title != nil {
		if *input.Title == "" {
			return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidListingData)
		}
		listing.Title = *input.Title
	}
	if input.Description != nil {
		listing.Description = *input.Description
	}
	if input.Price != nil {
		if *input.Price < 0 {
			return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidListingData)
		}
		listing.Price = *input.Price
	}
	if input.Images != nil {
		listing.Images = input.Images
	}
	if input.Quantity != nil {
		if *input.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidListingData)
		}
		listing.Quantity = *input.Quantity
	}
	if input.Condition != nil {
		listing.Condition = *input.Condition
	}
	if input.Category != nil {
		listing.Category = *input.Category
	}
	if input.Offerable != nil {
		listing.Offerable = *input.Offerable
	}
	listing.UpdatedAt = time.Now()

	if err := uc.listingRepo.Update(ctx, listing); err != nil {
		uc.logger.Error("Failed to update listing", zap.Error(err), zap.String("listing_id", id))
		return nil, fmt.Errorf("ListingUseCase.UpdateListing: %w", err)
	}

	uc.invalidateListing(ctx, id)
	return listing, nil
}

// LikeListing bumps the likes counter. The increment is atomic at the
// store, so concurrent likes from different users never lose updates.
func (uc *ListingUseCase) LikeListing(ctx context.Context, id, actorUID string) error {
	if err := uc.listingRepo.IncrementLikes(ctx, id, 1); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			uc.logger.Error("Failed to increment likes", zap.Error(err), zap.String("listing_id", id))
		}
		return fmt.Errorf("ListingUseCase.LikeListing: %w", err)
	}

	uc.invalidateListing(ctx, id)

	if uc.publisher != nil {
		if errPub := uc.publisher.PublishListingLiked(ctx, id, actorUID); errPub != nil {
			uc.logger.Warn("Failed to publish listing liked event",
				zap.Error(errPub),
				zap.String("listing_id", id),
			)
		}
	}
	return nil
}

func (uc *ListingUseCase) UnlikeListing(ctx context.Context, id, actorUID string) error {
	if err := uc.listingRepo.IncrementLikes(ctx, id, -1); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			uc.logger.Error("Failed to decrement likes", zap.Error(err), zap.String("listing_id", id))
		}
		return fmt.Errorf("ListingUseCase.UnlikeListing: %w", err)
	}

	uc.invalidateListing(ctx, id)
	return nil
}

// PlaceBid records a bid on an auction listing. Only the count is tracked
// here; bid amounts and winner resolution live in the payments flow.
func (uc *ListingUseCase) PlaceBid(ctx context.Context, id, actorUID string) error {
	listing, err := uc.listingRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ListingUseCase.PlaceBid: %w", err)
	}
	if !listing.IsAuction() {
		return ErrNotAuction
	}
	if listing.Sold {
		return ErrAlreadySold
	}
	if listing.AuctionEnded(time.Now()) {
		return ErrAuctionEnded
	}

	if err := uc.listingRepo.IncrementBidCount(ctx, id); err != nil {
		uc.logger.Error("Failed to increment bid count", zap.Error(err), zap.String("listing_id", id))
		return fmt.Errorf("ListingUseCase.PlaceBid: %w", err)
	}

	uc.invalidateListing(ctx, id)

	if uc.publisher != nil {
		if errPub := uc.publisher.PublishListingBid(ctx, id, actorUID); errPub != nil {
			uc.logger.Warn("Failed to publish listing bid event",
				zap.Error(errPub),
				zap.String("listing_id", id),
			)
		}
	}
	return nil
}

// MarkListingSold transitions a listing to sold. Only the owner may do
// this, and a sold listing stays sold.
func (uc *ListingUseCase) MarkListingSold(ctx context.Context, id, actorUID string) error {
	listing, err := uc.listingRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ListingUseCase.MarkListingSold: %w", err)
	}
	if listing.OwnerUID != actorUID {
		return ErrForbidden
	}
	if listing.Sold {
		return ErrAlreadySold
	}

	if err := uc.listingRepo.MarkSold(ctx, id); err != nil {
		uc.logger.Error("Failed to mark listing sold", zap.Error(err), zap.String("listing_id", id))
		return fmt.Errorf("ListingUseCase.MarkListingSold: %w", err)
	}

	if uc.sellerRepo != nil {
		if incErr := uc.sellerRepo.IncrementItemsSold(ctx, listing.OwnerUID); incErr != nil {
			uc.logger.Warn("Failed to increment seller items sold",
				zap.Error(incErr),
				zap.String("seller_id", listing.OwnerUID),
			)
		}
	}

	uc.invalidateListing(ctx, id)

	if uc.publisher != nil {
		if errPub := uc.publisher.PublishListingSold(ctx, id, listing.OwnerUID); errPub != nil {
			uc.logger.Warn("Failed to publish listing sold event",
				zap.Error(errPub),
				zap.String("listing_id", id),
			)
		}
	}
	return nil
}

// UploadListingImage stores an image and appends its URL to the listing.
func (uc *ListingUseCase) UploadListingImage(ctx context.Context, id, actorUID, fileName string, data []byte) (string, error) {
	if uc.storage == nil {
		return "", fmt.Errorf("ListingUseCase.UploadListingImage: image storage is not configured")
	}

	listing, err := uc.listingRepo.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("ListingUseCase.UploadListingImage: %w", err)
	}
	if listing.OwnerUID != actorUID {
		return "", ErrForbidden
	}

	imageURL, err := uc.storage.Upload(ctx, fileName, data)
	if err != nil {
		uc.logger.Error("Failed to upload listing image", zap.Error(err), zap.String("listing_id", id))
		return "", fmt.Errorf("ListingUseCase.UploadListingImage: upload failed: %w", err)
	}

	if err := uc.listingRepo.AppendImage(ctx, id, imageURL); err != nil {
		uc.logger.Error("Failed to append image URL to listing", zap.Error(err), zap.String("listing_id", id))
		return "", fmt.Errorf("ListingUseCase.UploadListingImage: %w", err)
	}

	uc.invalidateListing(ctx, id)
	return imageURL, nil
}

func (uc *ListingUseCase) cacheListing(ctx context.Context, listing *entity.Listing) {
	if uc.cacheRepo == nil || listing == nil {
		return
	}
	listingBytes, err := json.Marshal(listing)
	if err != nil {
		uc.logger.Warn("Failed to marshal listing for caching", zap.Error(err), zap.String("listing_id", listing.ID))
		return
	}
	key := listingCacheKey(listing.ID)
	if setErr := uc.cacheRepo.Set(ctx, key, listingBytes, listingCacheTTL); setErr != nil {
		uc.logger.Warn("Failed to set listing in cache", zap.Error(setErr), zap.String("key", key))
	}
}

func (uc *ListingUseCase) invalidateListing(ctx context.Context, id string) {
	if uc.cacheRepo == nil {
		return
	}
	key := listingCacheKey(id)
	if delErr := uc.cacheRepo.Delete(ctx, key); delErr != nil {
		uc.logger.Warn("Failed to delete listing from cache", zap.Error(delErr), zap.String("key", key))
	}
}
