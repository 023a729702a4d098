package mongostore

import (
	"context"
	"errors"
	"regexp"

	domain "github.com/aq2208/gorder-store/internal/entity"
	"github.com/aq2208/gorder-store/internal/usecase"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type OrderRepo struct{ coll *mongo.Collection }

func NewOrderRepo(db *mongo.Database) *OrderRepo {
	return &OrderRepo{coll: db.Collection(ordersColl)}
}

func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	o.Version = 1
	_, err := r.coll.InsertOne(ctx, o)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrDuplicateOrderNumber
	}
	return err
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) LastNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	var doc struct {
		Number string `bson:"orderNumber"`
	}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "orderNumber", Value: -1}}).
		SetProjection(bson.M{"orderNumber": 1})
	filter := bson.M{"orderNumber": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	err := r.coll.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	return doc.Number, err
}

func listFilter(f usecase.ListFilter) bson.M {
	filter := bson.M{}
	if f.UserID != "" {
		filter["user"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

func (r *OrderRepo) List(ctx context.Context, f usecase.ListFilter) ([]*domain.Order, int64, error) {
	filter := listFilter(f)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "orderNumber", Value: -1}}).
		SetSkip(int64(f.Offset))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*domain.Order, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Save replaces the document only if its version is unchanged since load.
func (r *OrderRepo) Save(ctx context.Context, o *domain.Order) error {
	expected := o.Version
	o.Version++
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": o.ID, "version": expected}, o)
	if err != nil {
		o.Version = expected
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	o.Version = expected
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": o.ID})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrVersionConflict
}

func (r *OrderRepo) CountByStatus(ctx context.Context) ([]usecase.StatusCount, error) {
	cur, err := r.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$status"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	})
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Status domain.Status `bson:"_id"`
		Count  int64         `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]usecase.StatusCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, usecase.StatusCount{Status: r.Status, Count: r.Count})
	}
	return out, nil
}

func (r *OrderRepo) Revenue(ctx context.Context, statuses []domain.Status) (usecase.RevenueSummary, error) {
	cur, err := r.coll.Aggregate(ctx, revenuePipeline(statuses))
	if err != nil {
		return usecase.RevenueSummary{}, err
	}
	var rows []struct {
		Total   decimal.Decimal `bson:"total"`
		Average decimal.Decimal `bson:"average"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return usecase.RevenueSummary{}, err
	}
	if len(rows) == 0 {
		return usecase.RevenueSummary{}, nil
	}
	return usecase.RevenueSummary{Total: rows[0].Total, Average: rows[0].Average}, nil
}

func revenuePipeline(statuses []domain.Status) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "status", Value: bson.D{{Key: "$in", Value: statuses}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$pricing.total"}}},
			{Key: "average", Value: bson.D{{Key: "$avg", Value: "$pricing.total"}}},
		}}},
	}
}

var _ usecase.OrderRepo = (*OrderRepo)(nil)
