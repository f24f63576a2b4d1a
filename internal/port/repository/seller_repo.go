package repository

import (
	"context"

	"github.com/hobby-app/marketplace/internal/entity"
)

type SellerRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Seller, error)
	Upsert(ctx context.Context, seller *entity.Seller) error
	IncrementItemsSold(ctx context.Context, id string) error
}
