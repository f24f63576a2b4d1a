package usecase

import "errors"

var (
	ErrInvalidListingData = errors.New("invalid listing data")
	ErrNotAuction         = errors.New("listing is not an auction")
	ErrAuctionEnded       = errors.New("auction has ended")
	ErrAlreadySold        = errors.New("listing is already sold")
	ErrForbidden          = errors.New("action forbidden")
)
