package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hobby-app/marketplace/internal/entity"
	"github.com/hobby-app/marketplace/internal/port/cache"
	"github.com/hobby-app/marketplace/internal/port/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newListingUC(lr *MockListingRepository, sr *MockSellerRepository, cr *MockCacheRepository, pub *MockEventPublisher, st *MockImageStorage) *ListingUseCase {
	var (
		sellerRepo repository.SellerRepository
		cacheRepo  cache.CacheRepository
		publisher  EventPublisher
		storage    ImageStorage
	)
	if sr != nil {
		sellerRepo = sr
	}
	if cr != nil {
		cacheRepo = cr
	}
	if pub != nil {
		publisher = pub
	}
	if st != nil {
		storage = st
	}
	return NewListingUseCase(lr, sellerRepo, cacheRepo, publisher, storage, nil, zap.NewNop())
}

func TestCreateListing_AssignsStableRandomKey(t *testing.T) {
	repo := new(MockListingRepository)
	pub := new(MockEventPublisher)
	uc := newListingUC(repo, nil, nil, pub, nil)

	var created *entity.Listing
	repo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*entity.Listing)
		}).
		Return("listing-1", nil).Once()
	pub.On("PublishListingCreated", mock.Anything, mock.Anything).Return(nil).Once()

	listing, err := uc.CreateListing(context.Background(), CreateListingInput{
		OwnerUID: "seller-1",
		Title:    "Vintage stamp sheet",
		Price:    35,
	})
	require.NoError(t, err)
	assert.Equal(t, "listing-1", listing.ID)

	require.NotNil(t, created)
	assert.GreaterOrEqual(t, created.Random, 0.0)
	assert.Less(t, created.Random, 1.0)
	assert.False(t, created.Sold)
	assert.Equal(t, entity.ListingTypeFixed, created.ListingType)
	pub.AssertExpectations(t)
}

func TestCreateListing_AuctionRequiresDurationAndGetsEndDate(t *testing.T) {
	repo := new(MockListingRepository)
	uc := newListingUC(repo, nil, nil, nil, nil)

	_, err := uc.CreateListing(context.Background(), CreateListingInput{
		OwnerUID:    "seller-1",
		Title:       "Graded rookie card",
		ListingType: "auction",
	})
	assert.ErrorIs(t, err, ErrInvalidListingData)

	var created *entity.Listing
	repo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*entity.Listing)
		}).
		Return("listing-2", nil).Once()

	before := time.Now()
	_, err = uc.CreateListing(context.Background(), CreateListingInput{
		OwnerUID:    "seller-1",
		Title:       "Graded rookie card",
		ListingType: "auction",
		Duration:    7,
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.WithinDuration(t, before.AddDate(0, 0, 7), created.EndDate, 2*time.Second)
}

func TestCreateListing_Validation(t *testing.T) {
	uc := newListingUC(new(MockListingRepository), nil, nil, nil, nil)

	_, err := uc.CreateListing(context.Background(), CreateListingInput{OwnerUID: "u", Price: 1})
	assert.ErrorIs(t, err, ErrInvalidListingData)

	_, err = uc.CreateListing(context.Background(), CreateListingInput{OwnerUID: "u", Title: "t", Price: -1})
	assert.ErrorIs(t, err, ErrInvalidListingData)

	_, err = uc.CreateListing(context.Background(), CreateListingInput{OwnerUID: "u", Title: "t", ListingType: "raffle"})
	assert.ErrorIs(t, err, ErrInvalidListingData)
}

func TestGetListing_CacheHitSkipsRepository(t *testing.T) {
	repo := new(MockListingRepository)
	cacheRepo := new(MockCacheRepository)
	uc := newListingUC(repo, nil, cacheRepo, nil, nil)

	cached := &entity.Listing{ID: "listing-1", Title: "Cached card"}
	cachedBytes, err := json.Marshal(cached)
	require.NoError(t, err)
	cacheRepo.On("Get", mock.Anything, "listing:listing-1").Return(cachedBytes, nil).Once()

	got, err := uc.GetListing(context.Background(), "listing-1")
	require.NoError(t, err)
	assert.Equal(t, "Cached card", got.Title)
	repo.AssertNotCalled(t, "GetByID")
}

func TestGetListing_CacheMissFallsBackAndPopulates(t *testing.T) {
	repo := new(MockListingRepository)
	cacheRepo := new(MockCacheRepository)
	uc := newListingUC(repo, nil, cacheRepo, nil, nil)

	cacheRepo.On("Get", mock.Anything, "listing:listing-1").Return(nil, cache.ErrNotFound).Once()
	repo.On("GetByID", mock.Anything, "listing-1").Return(&entity.Listing{ID: "listing-1"}, nil).Once()
	cacheRepo.On("Set", mock.Anything, "listing:listing-1", mock.Anything, listingCacheTTL).Return(nil).Once()

	_, err := uc.GetListing(context.Background(), "listing-1")
	require.NoError(t, err)
	cacheRepo.AssertExpectations(t)
}

func ptr[T any](v T) *T { return &v }

func TestUpdateListing_AppliesPartialEdit(t *testing.T) {
	repo := new(MockListingRepository)
	cacheRepo := new(MockCacheRepository)
	uc := newListingUC(repo, nil, cacheRepo, nil, nil)

	existing := &entity.Listing{
		ID:          "listing-1",
		Title:       "Vintage stamp sheet",
		Description: "1952 full sheet",
		Price:       35,
		Quantity:    2,
		Condition:   "good",
		OwnerUID:    "owner",
		Random:      0.42,
	}
	repo.On("GetByID", mock.Anything, "listing-1").Return(existing, nil).Once()

	var updated *entity.Listing
	repo.On("Update", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			updated = args.Get(1).(*entity.Listing)
		}).
		Return(nil).Once()
	cacheRepo.On("Delete", mock.Anything, "listing:listing-1").Return(nil).Once()

	listing, err := uc.UpdateListing(context.Background(), "listing-1", "owner", UpdateListingInput{
		Price:     ptr(29.0),
		Condition: ptr("very good"),
	})
	require.NoError(t, err)

	require.NotNil(t, updated)
	assert.Equal(t, 29.0, updated.Price)
	assert.Equal(t, "very good", updated.Condition)
	// Untouched fields and the sampling key survive the edit.
	assert.Equal(t, "Vintage stamp sheet", updated.Title)
	assert.Equal(t, 2, updated.Quantity)
	assert.Equal(t, 0.42, updated.Random)
	assert.Equal(t, listing, updated)
	cacheRepo.AssertExpectations(t)
}

func TestUpdateListing_OwnerOnlyAndSoldFrozen(t *testing.T) {
	repo := new(MockListingRepository)
	uc := newListingUC(repo, nil, nil, nil, nil)

	repo.On("GetByID", mock.Anything, "listing-1").
		Return(&entity.Listing{ID: "listing-1", OwnerUID: "owner"}, nil).Once()
	_, err := uc.UpdateListing(context.Background(), "listing-1", "stranger", UpdateListingInput{Title: ptr("hijacked")})
	assert.ErrorIs(t, err, ErrForbidden)

	repo.On("GetByID", mock.Anything, "listing-1").
		Return(&entity.Listing{ID: "listing-1", OwnerUID: "owner", Sold: true}, nil).Once()
	_, err = uc.UpdateListing(context.Background(), "listing-1", "owner", UpdateListingInput{Title: ptr("relist")})
	assert.ErrorIs(t, err, ErrAlreadySold)

	repo.AssertNotCalled(t, "Update")
}

func TestUpdateListing_Validation(t *testing.T) {
	repo := new(MockListingRepository)
	uc := newListingUC(repo, nil, nil, nil, nil)

	repo.On("GetByID", mock.Anything, "listing-1").
		Return(&entity.Listing{ID: "listing-1", OwnerUID: "owner"}, nil).Times(3)

	_, err := uc.UpdateListing(context.Background(), "listing-1", "owner", UpdateListingInput{Title: ptr("")})
	assert.ErrorIs(t, err, ErrInvalidListingData)

	_, err = uc.UpdateListing(context.Background(), "listing-1", "owner", UpdateListingInput{Price: ptr(-1.0)})
	assert.ErrorIs(t, err, ErrInvalidListingData)

	_, err = uc.UpdateListing(context.Background(), "listing-1", "owner", UpdateListingInput{Quantity: ptr(0)})
	assert.ErrorIs(t, err, ErrInvalidListingData)

	repo.AssertNotCalled(t, "Update")
}

func TestLikeListing_IncrementsAndInvalidates(t *testing.T) {
	repo := new(MockListingRepository)
	cacheRepo := new(MockCacheRepository)
	pub := new(MockEventPublisher)
	uc := newListingUC(repo, nil, cacheRepo, pub, nil)

	repo.On("IncrementLikes", mock.Anything, "listing-1", 1).Return(nil).Once()
	cacheRepo.On("Delete", mock.Anything, "listing:listing-1").Return(nil).Once()
	pub.On("PublishListingLiked", mock.Anything, "listing-1", "user-7").Return(nil).Once()

	require.NoError(t, uc.LikeListing(context.Background(), "listing-1", "user-7"))
	repo.AssertExpectations(t)
	cacheRepo.AssertExpectations(t)
}

func TestUnlikeListing_DecrementsWithoutEvent(t *testing.T) {
	repo := new(MockListingRepository)
	cacheRepo := new(MockCacheRepository)
	pub := new(MockEventPublisher)
	uc := newListingUC(repo, nil, cacheRepo, pub, nil)

	repo.On("IncrementLikes", mock.Anything, "listing-1", -1).Return(nil).Once()
	cacheRepo.On("Delete", mock.Anything, "listing:listing-1").Return(nil).Once()

	require.NoError(t, uc.UnlikeListing(context.Background(), "listing-1", "user-7"))
	pub.AssertNotCalled(t, "PublishListingLiked")
}

func TestPlaceBid_RejectsNonAuctionAndEnded(t *testing.T) {
	repo := new(MockListingRepository)
	uc := newListingUC(repo, nil, nil, nil, nil)

	repo.On("GetByID", mock.Anything, "fixed-1").
		Return(&entity.Listing{ID: "fixed-1", ListingType: entity.ListingTypeFixed}, nil).Once()
	assert.ErrorIs(t, uc.PlaceBid(context.Background(), "fixed-1", "bidder"), ErrNotAuction)

	repo.On("GetByID", mock.Anything, "ended-1").
		Return(&entity.Listing{
			ID:          "ended-1",
			ListingType: entity.ListingTypeAuction,
			EndDate:     time.Now().Add(-time.Hour),
		}, nil).Once()
	assert.ErrorIs(t, uc.PlaceBid(context.Background(), "ended-1", "bidder"), ErrAuctionEnded)

	repo.On("GetByID", mock.Anything, "sold-1").
		Return(&entity.Listing{
			ID:          "sold-1",
			ListingType: entity.ListingTypeAuction,
			Sold:        true,
			EndDate:     time.Now().Add(time.Hour),
		}, nil).Once()
	assert.ErrorIs(t, uc.PlaceBid(context.Background(), "sold-1", "bidder"), ErrAlreadySold)
}

func TestPlaceBid_IncrementsBidCount(t *testing.T) {
	repo := new(MockListingRepository)
	pub := new(MockEventPublisher)
	uc := newListingUC(repo, nil, nil, pub, nil)

	repo.On("GetByID", mock.Anything, "auction-1").
		Return(&entity.Listing{
			ID:          "auction-1",
			ListingType: entity.ListingTypeAuction,
			EndDate:     time.Now().Add(24 * time.Hour),
		}, nil).Once()
	repo.On("IncrementBidCount", mock.Anything, "auction-1").Return(nil).Once()
	pub.On("PublishListingBid", mock.Anything, "auction-1", "bidder").Return(nil).Once()

	require.NoError(t, uc.PlaceBid(context.Background(), "auction-1", "bidder"))
	repo.AssertExpectations(t)
}

func TestMarkListingSold_OwnerOnlyAndIdempotentError(t *testing.T) {
	repo := new(MockListingRepository)
	uc := newListingUC(repo, nil, nil, nil, nil)

	repo.On("GetByID", mock.Anything, "listing-1").
		Return(&entity.Listing{ID: "listing-1", OwnerUID: "owner"}, nil).Once()
	assert.ErrorIs(t, uc.MarkListingSold(context.Background(), "listing-1", "stranger"), ErrForbidden)

	repo.On("GetByID", mock.Anything, "listing-1").
		Return(&entity.Listing{ID: "listing-1", OwnerUID: "owner", Sold: true}, nil).Once()
	assert.ErrorIs(t, uc.MarkListingSold(context.Background(), "listing-1", "owner"), ErrAlreadySold)
}

func TestMarkListingSold_UpdatesSellerStats(t *testing.T) {
	repo := new(MockListingRepository)
	sellerRepo := new(MockSellerRepository)
	pub := new(MockEventPublisher)
	uc := newListingUC(repo, sellerRepo, nil, pub, nil)

	repo.On("GetByID", mock.Anything, "listing-1").
		Return(&entity.Listing{ID: "listing-1", OwnerUID: "owner"}, nil).Once()
	repo.On("MarkSold", mock.Anything, "listing-1").Return(nil).Once()
	sellerRepo.On("IncrementItemsSold", mock.Anything, "owner").Return(nil).Once()
	pub.On("PublishListingSold", mock.Anything, "listing-1", "owner").Return(nil).Once()

	require.NoError(t, uc.MarkListingSold(context.Background(), "listing-1", "owner"))
	sellerRepo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestUploadListingImage_OwnerCheckAndAppend(t *testing.T) {
	repo := new(MockListingRepository)
	storage := new(MockImageStorage)
	uc := newListingUC(repo, nil, nil, nil, storage)

	repo.On("GetByID", mock.Anything, "listing-1").
		Return(&entity.Listing{ID: "listing-1", OwnerUID: "owner"}, nil).Twice()

	_, err := uc.UploadListingImage(context.Background(), "listing-1", "stranger", "card.jpg", []byte("img"))
	assert.ErrorIs(t, err, ErrForbidden)

	storage.On("Upload", mock.Anything, "card.jpg", []byte("img")).
		Return("https://cdn.example.com/images/card.jpg", nil).Once()
	repo.On("AppendImage", mock.Anything, "listing-1", "https://cdn.example.com/images/card.jpg").Return(nil).Once()

	url, err := uc.UploadListingImage(context.Background(), "listing-1", "owner", "card.jpg", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/images/card.jpg", url)
}
