package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jewel-store/internal/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoLineItem struct {
	ProductID        string            `bson:"productId"`
	VariantSignature string            `bson:"variantSignature"`
	Selection        map[string]string `bson:"selection"`
	Quantity         int               `bson:"quantity"`
	UnitPrice        int64             `bson:"unitPrice"`
	DisplayName      string            `bson:"displayName"`
	DisplayImage     string            `bson:"displayImage"`
}

type mongoCartDocument struct {
	SessionKey string          `bson:"_id"`
	Items      []mongoLineItem `bson:"items"`
	UpdatedAt  time.Time       `bson:"updatedAt"`
}

// MongoCartStore keeps one document per session key, replaced whole on every save.
type MongoCartStore struct {
	collection *mongo.Collection
}

// NewMongoCartStore creates a cart side-store backed by a MongoDB collection
func NewMongoCartStore(collection *mongo.Collection) *MongoCartStore {
	return &MongoCartStore{collection: collection}
}

func (s *MongoCartStore) LoadCart(ctx context.Context, key string) (*domain.Cart, error) {
	var doc mongoCartDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart from mongo: %w", err)
	}

	cart := &domain.Cart{Items: make([]domain.LineItem, 0, len(doc.Items))}
	for _, item := range doc.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to decode cart line product id %q: %w", item.ProductID, err)
		}
		cart.Items = append(cart.Items, domain.LineItem{
			ProductID:        productID,
			VariantSignature: item.VariantSignature,
			Selection:        domain.Selection(item.Selection),
			Quantity:         item.Quantity,
			UnitPrice:        domain.Money(item.UnitPrice),
			DisplayName:      item.DisplayName,
			DisplayImage:     item.DisplayImage,
		})
	}
	return cart, nil
}

func (s *MongoCartStore) SaveCart(ctx context.Context, key string, cart *domain.Cart) error {
	doc := mongoCartDocument{
		SessionKey: key,
		Items:      make([]mongoLineItem, 0, len(cart.Items)),
		UpdatedAt:  time.Now().UTC(),
	}
	for _, item := range cart.Items {
		doc.Items = append(doc.Items, mongoLineItem{
			ProductID:        item.ProductID.String(),
			VariantSignature: item.VariantSignature,
			Selection:        item.Selection,
			Quantity:         item.Quantity,
			UnitPrice:        int64(item.UnitPrice),
			DisplayName:      item.DisplayName,
			DisplayImage:     item.DisplayImage,
		})
	}

	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save cart to mongo: %w", err)
	}
	return nil
}
