package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/hobby-app/marketplace/internal/entity"
	"github.com/hobby-app/marketplace/internal/port/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sellerCollectionName = "sellers"

type SellerMongoRepository struct {
	db *mongo.Database
}

func NewSellerMongoRepository(client *mongo.Client, dbName string) *SellerMongoRepository {
	return &SellerMongoRepository{
		db: client.Database(dbName),
	}
}

type sellerDocument struct {
	ID                string  `bson:"_id"`
	Username          string  `bson:"username"`
	Name              string  `bson:"name,omitempty"`
	PFP               string  `bson:"pfp,omitempty"`
	Banner            string  `bson:"banner,omitempty"`
	Description       string  `bson:"description,omitempty"`
	Rating            float64 `bson:"rating"`
	NumberOfFollowers int     `bson:"numberOfFollowers"`
	ItemsSold         int     `bson:"itemsSold"`
}

func toSellerDocument(s *entity.Seller) *sellerDocument {
	return &sellerDocument{
		ID:                s.ID,
		Username:          s.Username,
		Name:              s.Name,
		PFP:               s.PFP,
		Banner:            s.Banner,
		Description:       s.Description,
		Rating:            s.Rating,
		NumberOfFollowers: s.NumberOfFollowers,
		ItemsSold:         s.ItemsSold,
	}
}

func toSellerEntity(doc *sellerDocument) *entity.Seller {
	return &entity.Seller{
		ID:                doc.ID,
		Username:          doc.Username,
		Name:              doc.Name,
		PFP:               doc.PFP,
		Banner:            doc.Banner,
		Description:       doc.Description,
		Rating:            doc.Rating,
		NumberOfFollowers: doc.NumberOfFollowers,
		ItemsSold:         doc.ItemsSold,
	}
}

func (r *SellerMongoRepository) GetByID(ctx context.Context, id string) (*entity.Seller, error) {
	var doc sellerDocument
	err := r.db.Collection(sellerCollectionName).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get seller by id from mongo: %w", err)
	}
	return toSellerEntity(&doc), nil
}

func (r *SellerMongoRepository) Upsert(ctx context.Context, seller *entity.Seller) error {
	if seller.ID == "" {
		return fmt.Errorf("seller ID is required for upsert")
	}
	doc := toSellerDocument(seller)

	opts := options.Replace().SetUpsert(true)
	_, err := r.db.Collection(sellerCollectionName).ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert seller in mongo: %w", err)
	}
	return nil
}

func (r *SellerMongoRepository) IncrementItemsSold(ctx context.Context, id string) error {
	res, err := r.db.Collection(sellerCollectionName).UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"itemsSold": 1},
	})
	if err != nil {
		return fmt.Errorf("failed to increment items sold in mongo: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
