package repository

import (
	"context"

	"github.com/hobby-app/marketplace/internal/entity"
)

// SampleDirection is the comparison applied to the random key range query.
type SampleDirection string

const (
	DirectionLTE SampleDirection = "lte"
	DirectionGTE SampleDirection = "gte"
)

// Opposite returns the other comparison direction, used for the one-shot
// retry when the first draw lands in an empty range.
func (d SampleDirection) Opposite() SampleDirection {
	if d == DirectionLTE {
		return DirectionGTE
	}
	return DirectionLTE
}

// SampleQuery describes one range probe against the listings' random key.
// At most one of SellerID / Category is applied; the usecase resolves
// precedence before the query reaches the repository.
type SampleQuery struct {
	Pivot     float64
	Direction SampleDirection
	Count     int
	SellerID  string
	Category  string
	Sold      bool
}

type ListingRepository interface {
	Create(ctx context.Context, listing *entity.Listing) (string, error)
	GetByID(ctx context.Context, id string) (*entity.Listing, error)
	Update(ctx context.Context, listing *entity.Listing) error
	SampleByRandomKey(ctx context.Context, q SampleQuery) ([]*entity.Listing, error)
	IncrementLikes(ctx context.Context, id string, delta int) error
	IncrementBidCount(ctx context.Context, id string) error
	MarkSold(ctx context.Context, id string) error
	AppendImage(ctx context.Context, id string, imageURL string) error
}
