package entity

// Seller is the public, read-mostly profile shown next to a listing.
// It is denormalized from the user record and fetched by owner UID.
type Seller struct {
	ID                string
	Username          string
	Name              string
	PFP               string
	Banner            string
	Description       string
	Rating            float64
	NumberOfFollowers int
	ItemsSold         int
}
