package mongostore

import (
	"context"
	"errors"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/usecase"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type ProductCatalog struct{ coll *mongo.Collection }

func NewProductCatalog(db *mongo.Database) *ProductCatalog {
	return &ProductCatalog{coll: db.Collection(productsColl)}
}

func (c *ProductCatalog) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// stockFilter matches the product only while enough stock remains for delta.
func stockFilter(id string, delta int) bson.M {
	f := bson.M{"_id": id}
	if delta < 0 {
		f["stock"] = bson.M{"$gte": -delta}
	}
	return f
}

func (c *ProductCatalog) AdjustStock(ctx context.Context, id string, delta int) error {
	res, err := c.coll.UpdateOne(ctx, stockFilter(id, delta), bson.M{"$inc": bson.M{"stock": delta}})
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := c.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrStockConflict
}

var _ usecase.ProductCatalog = (*ProductCatalog)(nil)
