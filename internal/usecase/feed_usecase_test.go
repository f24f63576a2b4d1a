package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hobby-app/marketplace/internal/entity"
	"github.com/hobby-app/marketplace/internal/port/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func makeListing(id string, random float64) *entity.Listing {
	return &entity.Listing{
		ID:          id,
		Title:       "Charizard Holo",
		Description: "Base set, lightly played",
		Price:       120,
		Images:      []string{"https://img.example.com/" + id + ".jpg"},
		ListingType: entity.ListingTypeFixed,
		OwnerUID:    "seller-1",
		Random:      random,
		CreatedAt:   time.Now(),
	}
}

func TestSampleListings_ReturnsProjectedPage(t *testing.T) {
	repo := new(MockListingRepository)
	uc := NewFeedUseCase(repo, nil, zap.NewNop(), 0)

	stored := []*entity.Listing{makeListing("a", 0.1), makeListing("b", 0.5)}
	repo.On("SampleByRandomKey", mock.Anything, mock.Anything).Return(stored, nil).Once()

	got, err := uc.SampleListings(context.Background(), SampleInput{Count: 10, Active: true})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "Charizard Holo", got[0].Title)
	assert.Equal(t, "seller-1", got[0].OwnerUID)
	assert.Equal(t, "fixed", got[0].ListingType)
	repo.AssertExpectations(t)
}

func TestSampleListings_ActiveSelectsUnsold(t *testing.T) {
	repo := new(MockListingRepository)
	uc := NewFeedUseCase(repo, nil, zap.NewNop(), 0)

	var captured repository.SampleQuery
	repo.On("SampleByRandomKey", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(repository.SampleQuery)
		}).
		Return([]*entity.Listing{makeListing("a", 0.3)}, nil).Once()

	_, err := uc.SampleListings(context.Background(), SampleInput{Count: 5, Active: true})
	require.NoError(t, err)
	assert.False(t, captured.Sold, "active=true must query sold=false")

	repo.On("SampleByRandomKey", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(repository.SampleQuery)
		}).
		Return([]*entity.Listing{makeListing("b", 0.7)}, nil).Once()

	_, err = uc.SampleListings(context.Background(), SampleInput{Count: 5, Active: false})
	require.NoError(t, err)
	assert.True(t, captured.Sold, "active omitted/false must query sold=true")
}

func TestSampleListings_CategoryTakesPrecedenceOverSeller(t *testing.T) {
	repo := new(MockListingRepository)
	uc := NewFeedUseCase(repo, nil, zap.NewNop(), 0)

	var captured repository.SampleQuery
	repo.On("SampleByRandomKey", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(repository.SampleQuery)
		}).
		Return([]*entity.Listing{makeListing("a", 0.2)}, nil).Once()

	_, err := uc.SampleListings(context.Background(), SampleInput{
		Count:    3,
		Category: "Pokemon Cards",
		SellerID: "seller-9",
		Active:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Pokemon Cards", captured.Category)
	assert.Empty(t, captured.SellerID, "only one filter may reach the store")
}

func TestSampleListings_CountDefaultsAndCap(t *testing.T) {
	repo := new(MockListingRepository)
	uc := NewFeedUseCase(repo, nil, zap.NewNop(), 50)

	var counts []int
	repo.On("SampleByRandomKey", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			counts = append(counts, args.Get(1).(repository.SampleQuery).Count)
		}).
		Return([]*entity.Listing{makeListing("a", 0.4)}, nil).Times(3)

	for _, c := range []int{0, -7, 5000} {
		_, err := uc.SampleListings(context.Background(), SampleInput{Count: c, Active: true})
		require.NoError(t, err)
	}
	assert.Equal(t, []int{1, 1, 50}, counts)
}

func TestSampleListings_FallbackUsesOppositeDirectionSamePivot(t *testing.T) {
	repo := new(MockListingRepository)
	uc := NewFeedUseCase(repo, nil, zap.NewNop(), 0)

	var queries []repository.SampleQuery
	capture := func(args mock.Arguments) {
		queries = append(queries, args.Get(1).(repository.SampleQuery))
	}

	repo.On("SampleByRandomKey", mock.Anything, mock.Anything).
		Run(capture).Return([]*entity.Listing{}, nil).Once()
	repo.On("SampleByRandomKey", mock.Anything, mock.Anything).
		Run(capture).Return([]*entity.Listing{makeListing("x", 0.9)}, nil).Once()

	got, err := uc.SampleListings(context.Background(), SampleInput{Count: 4, Active: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].ID)

	require.Len(t, queries, 2)
	assert.Equal(t, queries[0].Direction.Opposite(), queries[1].Direction)
	assert.Equal(t, queries[0].Pivot, queries[1].Pivot, "retry must reuse the original pivot")
	assert.Equal(t, queries[0].Count, queries[1].Count)
	assert.Equal(t, queries[0].Sold, queries[1].Sold)
}

func TestSampleListings_EmptyAfterBothProbesIsNotAnError(t *testing.T) {
	repo := new(MockListingRepository)
	uc := NewFeedUseCase(repo, nil, zap.NewNop(), 0)

	repo.On("SampleByRandomKey", mock.Anything, mock.Anything).
		Return([]*entity.Listing{}, nil).Twice()

	got, err := uc.SampleListings(context.Background(), SampleInput{Count: 10, Category: "Stamps", Active: true})
	require.NoError(t, err)
	assert.Empty(t, got)
	repo.AssertNumberOfCalls(t, "SampleByRandomKey", 2)
}

func TestSampleListings_ExcludedListingNeverReturned(t *testing.T) {
	repo := new(MockListingRepository)
	uc := NewFeedUseCase(repo, nil, zap.NewNop(), 0)

	stored := []*entity.Listing{makeListing("keep-1", 0.1), makeListing("drop-me", 0.2), makeListing("keep-2", 0.3)}
	repo.On("SampleByRandomKey", mock.Anything, mock.Anything).Return(stored, nil).Once()

	got, err := uc.SampleListings(context.Background(), SampleInput{Count: 10, ExcludeID: "drop-me", Active: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, l := range got {
		assert.NotEqual(t, "drop-me", l.ID)
	}
}

func TestSampleListings_StoreFailurePropagates(t *testing.T) {
	repo := new(MockListingRepository)
	uc := NewFeedUseCase(repo, nil, zap.NewNop(), 0)

	storeErr := errors.New("connection reset")
	repo.On("SampleByRandomKey", mock.Anything, mock.Anything).Return(nil, storeErr).Once()

	_, err := uc.SampleListings(context.Background(), SampleInput{Count: 10, Active: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	// A genuine store failure is not retried; only the empty-result case is.
	repo.AssertNumberOfCalls(t, "SampleByRandomKey", 1)
}

func TestSampleListings_PageNeverExceedsRequestedCount(t *testing.T) {
	repo := new(MockListingRepository)
	uc := NewFeedUseCase(repo, nil, zap.NewNop(), 0)

	// The store honors the limit; the usecase must not inflate it.
	stored := []*entity.Listing{makeListing("a", 0.1), makeListing("b", 0.2), makeListing("c", 0.3)}
	repo.On("SampleByRandomKey", mock.Anything, mock.MatchedBy(func(q repository.SampleQuery) bool {
		return q.Count == 3
	})).Return(stored, nil).Once()

	got, err := uc.SampleListings(context.Background(), SampleInput{Count: 3, Active: true})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got), 3)
}
