package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hobby-app/marketplace/internal/entity"
	"github.com/hobby-app/marketplace/internal/port/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const listingCollectionName = "listings"

type ListingMongoRepository struct {
	db *mongo.Database
}

func NewListingMongoRepository(client *mongo.Client, dbName string) *ListingMongoRepository {
	return &ListingMongoRepository{
		db: client.Database(dbName),
	}
}

type listingDocument struct {
	ID          string             `bson:"_id"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Price       float64            `bson:"price"`
	Images      []string           `bson:"images"`
	Quantity    int                `bson:"quantity"`
	Condition   string             `bson:"condition"`
	Category    string             `bson:"category"`
	ListingType string             `bson:"listingType"`
	Duration    int                `bson:"duration,omitempty"`
	BidCount    int                `bson:"bidCount"`
	EndDate     primitive.DateTime `bson:"endDate,omitempty"`
	Likes       int                `bson:"likes"`
	OwnerUID    string             `bson:"ownerUID"`
	Sold        bool               `bson:"sold"`
	Offerable   bool               `bson:"offerable"`
	Random      float64            `bson:"random"`
	CreatedAt   primitive.DateTime `bson:"created_at"`
	UpdatedAt   primitive.DateTime `bson:"updated_at"`
}

func toListingDocument(l *entity.Listing) *listingDocument {
	doc := &listingDocument{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price,
		Images:      l.Images,
		Quantity:    l.Quantity,
		Condition:   l.Condition,
		Category:    l.Category,
		ListingType: string(l.ListingType),
		Duration:    l.Duration,
		BidCount:    l.BidCount,
		Likes:       l.Likes,
		OwnerUID:    l.OwnerUID,
		Sold:        l.Sold,
		Offerable:   l.Offerable,
		Random:      l.Random,
		CreatedAt:   primitive.NewDateTimeFromTime(l.CreatedAt),
		UpdatedAt:   primitive.NewDateTimeFromTime(l.UpdatedAt),
	}
	if !l.EndDate.IsZero() {
		doc.EndDate = primitive.NewDateTimeFromTime(l.EndDate)
	}
	return doc
}

func toListingEntity(doc *listingDocument) *entity.Listing {
	l := &entity.Listing{
		ID:          doc.ID,
		Title:       doc.Title,
		Description: doc.Description,
		Price:       doc.Price,
		Images:      doc.Images,
		Quantity:    doc.Quantity,
		Condition:   doc.Condition,
		Category:    doc.Category,
		ListingType: entity.ListingType(doc.ListingType),
		Duration:    doc.Duration,
		BidCount:    doc.BidCount,
		Likes:       doc.Likes,
		OwnerUID:    doc.OwnerUID,
		Sold:        doc.Sold,
		Offerable:   doc.Offerable,
		Random:      doc.Random,
		CreatedAt:   doc.CreatedAt.Time(),
		UpdatedAt:   doc.UpdatedAt.Time(),
	}
	if doc.EndDate != 0 {
		l.EndDate = doc.EndDate.Time()
	}
	return l
}

func indexKeys(fields ...string) bson.D {
	keys := bson.D{}
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	return keys
}

func (r *ListingMongoRepository) Create(ctx context.Context, listing *entity.Listing) (string, error) {
	if listing.ID == "" {
		listing.ID = primitive.NewObjectID().Hex()
	}
	doc := toListingDocument(listing)

	if _, err := r.db.Collection(listingCollectionName).InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to create listing in mongo: %w", err)
	}
	return listing.ID, nil
}

func (r *ListingMongoRepository) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	var doc listingDocument
	err := r.db.Collection(listingCollectionName).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get listing by id from mongo: %w", err)
	}
	return toListingEntity(&doc), nil
}

// Update rewrites the mutable fields of a listing. The random key is
// deliberately left out of the $set: it is assigned at creation and must
// never change for the lifetime of the document.
func (r *ListingMongoRepository) Update(ctx context.Context, listing *entity.Listing) error {
	if listing.ID == "" {
		return fmt.Errorf("listing ID is required for update")
	}
	doc := toListingDocument(listing)

	updateFields := bson.M{
		"$set": bson.M{
			"title":       doc.Title,
			"description": doc.Description,
			"price":       doc.Price,
			"images":      doc.Images,
			"quantity":    doc.Quantity,
			"condition":   doc.Condition,
			"category":    doc.Category,
			"offerable":   doc.Offerable,
			"updated_at":  primitive.NewDateTimeFromTime(time.Now()),
		},
	}

	res, err := r.db.Collection(listingCollectionName).UpdateOne(ctx, bson.M{"_id": doc.ID}, updateFields)
	if err != nil {
		return fmt.Errorf("failed to update listing in mongo: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SampleByRandomKey runs one range probe against the uniform random key.
// The comparison direction and pivot come from the caller; the result is a
// store-ordered slice of at most q.Count listings. An empty slice is not an
// error: the caller decides whether to retry with the opposite direction.
func (r *ListingMongoRepository) SampleByRandomKey(ctx context.Context, q repository.SampleQuery) ([]*entity.Listing, error) {
	op := "$lte"
	if q.Direction == repository.DirectionGTE {
		op = "$gte"
	}

	mongoFilter := bson.M{
		"sold":   q.Sold,
		"random": bson.M{op: q.Pivot},
	}
	switch {
	case q.Category != "":
		mongoFilter["category"] = q.Category
	case q.SellerID != "":
		mongoFilter["ownerUID"] = q.SellerID
	}

	findOptions := options.Find().SetLimit(int64(q.Count))

	cursor, err := r.db.Collection(listingCollectionName).Find(ctx, mongoFilter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to sample listings from mongo: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []listingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode sampled listings from mongo: %w", err)
	}

	listings := make([]*entity.Listing, len(docs))
	for i, doc := range docs {
		listings[i] = toListingEntity(&doc)
	}
	return listings, nil
}

// IncrementLikes adjusts the likes counter atomically. A negative delta is
// floored at zero: unliking an unliked listing is a no-op rather than an
// error.
func (r *ListingMongoRepository) IncrementLikes(ctx context.Context, id string, delta int) error {
	mongoFilter := bson.M{"_id": id}
	if delta < 0 {
		mongoFilter["likes"] = bson.M{"$gt": 0}
	}

	res, err := r.db.Collection(listingCollectionName).UpdateOne(ctx, mongoFilter, bson.M{
		"$inc": bson.M{"likes": delta},
	})
	if err != nil {
		return fmt.Errorf("failed to increment likes in mongo: %w", err)
	}
	if res.MatchedCount == 0 {
		// Either the listing is missing or the floor guard filtered it out.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
	}
	return nil
}

func (r *ListingMongoRepository) IncrementBidCount(ctx context.Context, id string) error {
	res, err := r.db.Collection(listingCollectionName).UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"bidCount": 1},
	})
	if err != nil {
		return fmt.Errorf("failed to increment bid count in mongo: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ListingMongoRepository) MarkSold(ctx context.Context, id string) error {
	res, err := r.db.Collection(listingCollectionName).UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"sold":       true,
			"updated_at": primitive.NewDateTimeFromTime(time.Now()),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mark listing sold in mongo: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ListingMongoRepository) AppendImage(ctx context.Context, id string, imageURL string) error {
	res, err := r.db.Collection(listingCollectionName).UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"images": imageURL},
		"$set":  bson.M{"updated_at": primitive.NewDateTimeFromTime(time.Now())},
	})
	if err != nil {
		return fmt.Errorf("failed to append listing image in mongo: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
