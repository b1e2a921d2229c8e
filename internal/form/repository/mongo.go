package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fooforms/fooforms/backend/go-services/internal/form"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrDuplicate = errors.New("form already exists")
)

// MongoRepo stores forms in a MongoDB collection keyed by ObjectID.
// Single-document writes are atomic; concurrent saves of the same form are
// last-writer-wins since Update replaces by _id only.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col}
}

// EnsureIndexes creates the url uniqueness index and the postStream lookup
// index. Safe to call on every startup.
func (m *MongoRepo) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "url", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "postStream", Value: 1}}},
	}
	if _, err := m.col.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create form indexes: %w", err)
	}
	return nil
}

func (m *MongoRepo) Insert(ctx context.Context, f *form.Form) error {
	if _, err := m.col.InsertOne(ctx, f); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (m *MongoRepo) Update(ctx context.Context, f *form.Form) error {
	res, err := m.col.ReplaceOne(ctx, bson.M{"_id": f.ID}, f)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return form.ErrNotFound
	}
	return nil
}

func (m *MongoRepo) Get(ctx context.Context, id primitive.ObjectID) (*form.Form, error) {
	var f form.Form
	if err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&f); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, form.ErrNotFound
		}
		return nil, err
	}
	normalise(&f)
	return &f, nil
}

func (m *MongoRepo) List(ctx context.Context, filter form.Filter) ([]*form.Form, error) {
	q := bson.M{}
	if !filter.PostStream.IsZero() {
		q["postStream"] = filter.PostStream
	}
	opts := options.Find().SetSort(bson.D{{Key: "lastModified", Value: -1}, {Key: "_id", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	cur, err := m.col.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*form.Form{}
	for cur.Next(ctx) {
		var f form.Form
		if err := cur.Decode(&f); err != nil {
			return nil, err
		}
		normalise(&f)
		out = append(out, &f)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return form.ErrNotFound
	}
	return nil
}

// normalise restores the in-memory shape after a decode: fields is never nil
// and timestamps come back in UTC.
func normalise(f *form.Form) {
	if f.Fields == nil {
		f.Fields = []map[string]interface{}{}
	}
	f.Created = f.Created.UTC()
	f.LastModified = f.LastModified.UTC()
}
