package entity

import "time"

type ListingType string

const (
	ListingTypeFixed   ListingType = "fixed"
	ListingTypeAuction ListingType = "auction"
)

type Listing struct {
	ID          string
	Title       string
	Description string
	Price       float64
	Images      []string
	Quantity    int
	Condition   string
	Category    string
	ListingType ListingType
	Duration    int
	BidCount    int
	EndDate     time.Time
	Likes       int
	OwnerUID    string
	Sold        bool
	Offerable   bool
	Random      float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsAuction reports whether the listing accepts bids.
func (l *Listing) IsAuction() bool {
	return l.ListingType == ListingTypeAuction
}

// AuctionEnded reports whether an auction listing is past its end date.
// Fixed-price listings never end this way.
func (l *Listing) AuctionEnded(now time.Time) bool {
	return l.IsAuction() && !l.EndDate.IsZero() && now.After(l.EndDate)
}
