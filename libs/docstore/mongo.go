package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoIDField = "_id"

// MongoCollection maps the "id" field onto MongoDB's _id. Struct types must carry
// bson:"_id,omitempty" on their id field.
type MongoCollection[T any] struct {
	coll *mongo.Collection
	name string
}

var _ Collection[struct{}] = (*MongoCollection[struct{}])(nil)

func NewMongoCollection[T any](database *mongo.Database, name string) *MongoCollection[T] {
	return &MongoCollection[T]{coll: database.Collection(name), name: name}
}

func (c *MongoCollection[T]) Name() string { return c.name }

func (c *MongoCollection[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	err := c.coll.FindOne(ctx, bson.M{mongoIDField: id}).Decode(&out)
	if err != nil {
		var zero T
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, fmt.Errorf("%s/%s: %w", c.name, id, ErrNotFound)
		}
		return zero, err
	}
	return out, nil
}

func (c *MongoCollection[T]) GetAll(ctx context.Context, q Query) ([]T, error) {
	filter, opts, err := buildMongoFind(q)
	if err != nil {
		return nil, err
	}
	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MongoCollection[T]) Create(ctx context.Context, doc T) (string, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return "", fmt.Errorf("decode document: %w", err)
	}
	id, _ := m[mongoIDField].(string)
	if id == "" {
		id = uuid.NewString()
	}
	m[mongoIDField] = id

	if _, err := c.coll.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("%s/%s: %w", c.name, id, ErrDuplicate)
		}
		return "", err
	}
	return id, nil
}

func (c *MongoCollection[T]) Update(ctx context.Context, id string, patch map[string]any) error {
	set := bson.M{}
	for k, v := range patch {
		if k == IDField || k == mongoIDField {
			continue
		}
		set[k] = v
	}
	if len(set) == 0 {
		return nil
	}
	res, err := c.coll.UpdateOne(ctx, bson.M{mongoIDField: id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s/%s: %w", c.name, id, ErrNotFound)
	}
	return nil
}

var mongoOps = map[Op]string{
	OpEq:  "$eq",
	OpNe:  "$ne",
	OpLt:  "$lt",
	OpLte: "$lte",
	OpGt:  "$gt",
	OpGte: "$gte",
	OpIn:  "$in",
}

func mongoField(field string) string {
	if field == IDField {
		return mongoIDField
	}
	return field
}

func buildMongoFind(q Query) (bson.D, *options.FindOptions, error) {
	if err := q.Validate(); err != nil {
		return nil, nil, err
	}
	// Range filters on one field share a single operator document.
	filter := bson.D{}
	index := map[string]int{}
	for _, f := range q.Filters {
		value := f.Value
		if f.Op == OpIn {
			value, _ = sliceValues(f.Value)
		}
		key := mongoField(f.Field)
		if i, ok := index[key]; ok {
			filter[i].Value.(bson.M)[mongoOps[f.Op]] = value
			continue
		}
		index[key] = len(filter)
		filter = append(filter, bson.E{Key: key, Value: bson.M{mongoOps[f.Op]: value}})
	}

	opts := options.Find()
	if len(q.OrderBy) > 0 {
		sort := bson.D{}
		for _, o := range q.OrderBy {
			dir := 1
			if o.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: mongoField(o.Field), Value: dir})
		}
		opts.SetSort(sort)
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	return filter, opts, nil
}
