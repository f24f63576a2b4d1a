package usecase

import (
	"context"
	"time"

	"github.com/hobby-app/marketplace/internal/entity"
	"github.com/hobby-app/marketplace/internal/port/repository"
	"github.com/stretchr/testify/mock"
)

type MockListingRepository struct{ mock.Mock }

func (m *MockListingRepository) Create(ctx context.Context, listing *entity.Listing) (string, error) {
	args := m.Called(ctx, listing)
	return args.String(0), args.Error(1)
}
func (m *MockListingRepository) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Listing), args.Error(1)
}
func (m *MockListingRepository) Update(ctx context.Context, listing *entity.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}
func (m *MockListingRepository) SampleByRandomKey(ctx context.Context, q repository.SampleQuery) ([]*entity.Listing, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Listing), args.Error(1)
}
func (m *MockListingRepository) IncrementLikes(ctx context.Context, id string, delta int) error {
	args := m.Called(ctx, id, delta)
	return args.Error(0)
}
func (m *MockListingRepository) IncrementBidCount(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockListingRepository) MarkSold(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockListingRepository) AppendImage(ctx context.Context, id string, imageURL string) error {
	args := m.Called(ctx, id, imageURL)
	return args.Error(0)
}

type MockSellerRepository struct{ mock.Mock }

func (m *MockSellerRepository) GetByID(ctx context.Context, id string) (*entity.Seller, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Seller), args.Error(1)
}
func (m *MockSellerRepository) Upsert(ctx context.Context, seller *entity.Seller) error {
	args := m.Called(ctx, seller)
	return args.Error(0)
}
func (m *MockSellerRepository) IncrementItemsSold(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockCacheRepository struct{ mock.Mock }

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}
func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type MockEventPublisher struct{ mock.Mock }

func (m *MockEventPublisher) PublishListingCreated(ctx context.Context, listing *entity.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}
func (m *MockEventPublisher) PublishListingSold(ctx context.Context, listingID, ownerUID string) error {
	args := m.Called(ctx, listingID, ownerUID)
	return args.Error(0)
}
func (m *MockEventPublisher) PublishListingLiked(ctx context.Context, listingID, actorUID string) error {
	args := m.Called(ctx, listingID, actorUID)
	return args.Error(0)
}
func (m *MockEventPublisher) PublishListingBid(ctx context.Context, listingID, actorUID string) error {
	args := m.Called(ctx, listingID, actorUID)
	return args.Error(0)
}

type MockImageStorage struct{ mock.Mock }

func (m *MockImageStorage) Upload(ctx context.Context, fileName string, data []byte) (string, error) {
	args := m.Called(ctx, fileName, data)
	return args.String(0), args.Error(1)
}
