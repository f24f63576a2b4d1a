package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hobby-app/marketplace/internal/entity"
	"github.com/hobby-app/marketplace/internal/port/cache"
	"github.com/hobby-app/marketplace/internal/port/repository"
	"go.uber.org/zap"
)

type SellerUseCase struct {
	sellerRepo repository.SellerRepository
	cacheRepo  cache.CacheRepository
	logger     *zap.Logger
}

func NewSellerUseCase(sr repository.SellerRepository, cr cache.CacheRepository, log *zap.Logger) *SellerUseCase {
	return &SellerUseCase{
		sellerRepo: sr,
		cacheRepo:  cr,
		logger:     log,
	}
}

func sellerCacheKey(sellerID string) string {
	return fmt.Sprintf("seller:%s", sellerID)
}

const sellerCacheTTL = 5 * time.Minute

// GetSeller returns the public profile for a listing owner. Profiles are
// read-mostly, so a short cache keeps the per-listing fan-out from the feed
// client off the store.
func (uc *SellerUseCase) GetSeller(ctx context.Context, id string) (*entity.Seller, error) {
	if uc.cacheRepo != nil {
		key := sellerCacheKey(id)
		cachedBytes, err := uc.cacheRepo.Get(ctx, key)
		if err == nil {
			var fromCache entity.Seller
			if unmarshalErr := json.Unmarshal(cachedBytes, &fromCache); unmarshalErr == nil {
				return &fromCache, nil
			}
			if delErr := uc.cacheRepo.Delete(ctx, key); delErr != nil {
				uc.logger.Warn("Failed to delete corrupted seller from cache", zap.String("key", key), zap.Error(delErr))
			}
		} else if !errors.Is(err, cache.ErrNotFound) {
			uc.logger.Warn("Failed to get seller from cache (not a cache miss)", zap.Error(err), zap.String("key", key))
		}
	}

	seller, err := uc.sellerRepo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			uc.logger.Error("Failed to get seller by ID from repository", zap.Error(err), zap.String("seller_id", id))
		}
		return nil, fmt.Errorf("SellerUseCase.GetSeller: failed to get seller from repo: %w", err)
	}

	if uc.cacheRepo != nil {
		sellerBytes, marshalErr := json.Marshal(seller)
		if marshalErr != nil {
			uc.logger.Warn("Failed to marshal seller for caching", zap.Error(marshalErr), zap.String("seller_id", seller.ID))
		} else {
			key := sellerCacheKey(seller.ID)
			if setErr := uc.cacheRepo.Set(ctx, key, sellerBytes, sellerCacheTTL); setErr != nil {
				uc.logger.Warn("Failed to set seller in cache", zap.Error(setErr), zap.String("key", key))
			}
		}
	}
	return seller, nil
}

type UpsertSellerInput struct {
	ID          string
	Username    string
	Name        string
	PFP         string
	Banner      string
	Description string
}

// UpsertSeller refreshes the denormalized public profile. Rating, follower
// and items-sold counters are maintained by their own flows and preserved
// when present.
func (uc *SellerUseCase) UpsertSeller(ctx context.Context, input UpsertSellerInput) (*entity.Seller, error) {
	if input.ID == "" || input.Username == "" {
		return nil, fmt.Errorf("%w: seller id and username are required", ErrInvalidListingData)
	}

	seller := &entity.Seller{
		ID:          input.ID,
		Username:    input.Username,
		Name:        input.Name,
		PFP:         input.PFP,
		Banner:      input.Banner,
		Description: input.Description,
	}

	if existing, err := uc.sellerRepo.GetByID(ctx, input.ID); err == nil {
		seller.Rating = existing.Rating
		seller.NumberOfFollowers = existing.NumberOfFollowers
		seller.ItemsSold = existing.ItemsSold
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("SellerUseCase.UpsertSeller: failed to read existing seller: %w", err)
	}

	if err := uc.sellerRepo.Upsert(ctx, seller); err != nil {
		uc.logger.Error("Failed to upsert seller in repository", zap.Error(err), zap.String("seller_id", input.ID))
		return nil, fmt.Errorf("SellerUseCase.UpsertSeller: %w", err)
	}

	if uc.cacheRepo != nil {
		if delErr := uc.cacheRepo.Delete(ctx, sellerCacheKey(input.ID)); delErr != nil {
			uc.logger.Warn("Failed to invalidate seller cache after upsert", zap.Error(delErr), zap.String("seller_id", input.ID))
		}
	}
	return seller, nil
}
