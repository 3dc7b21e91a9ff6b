package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/vanshika/tunetraits/internal/domain"
)

const (
	defaultMongoDatabase    = "PersonalityAndMusic"
	defaultMongoCollection  = "users"
	defaultSelectionTimeout = 5 * time.Second
)

// MongoStore keeps one document per identity in a single collection and
// writes sections with $set/$setOnInsert upserts.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoClient connects, pings and ensures the unique id index. The server
// selection timeout bounds the connection check only.
func NewMongoClient(ctx context.Context, opts Options) (*MongoStore, error) {
	if opts.URI == "" {
		return nil, ErrMissingURI
	}
	timeout := opts.ServerSelectionTimeout
	if timeout <= 0 {
		timeout = defaultSelectionTimeout
	}

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetServerSelectionTimeout(timeout)
	if opts.Username != "" {
		clientOpts.SetAuth(options.Credential{Username: opts.Username, Password: opts.Password})
	}
	if opts.MaxConnections > 0 {
		clientOpts.SetMaxPoolSize(uint64(opts.MaxConnections))
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	database := opts.Database
	if database == "" {
		database = defaultMongoDatabase
	}
	collection := opts.Collection
	if collection == "" {
		collection = defaultMongoCollection
	}
	coll := client.Database(database).Collection(collection)

	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: domain.FieldID, Value: 1}},
		Options: options.Index().SetUnique(true).SetName("id_unique"),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ensure id index: %w", err)
	}

	return &MongoStore{client: client, coll: coll}, nil
}

func (s *MongoStore) UpsertSection(ctx context.Context, id domain.Identity, path domain.SectionPath, payload any, now time.Time) error {
	filter := bson.D{{Key: domain.FieldID, Value: string(id)}}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: path.String(), Value: payload}}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: domain.FieldID, Value: string(id)},
			{Key: domain.FieldCreatedAt, Value: now.UTC()},
		}},
	}

	_, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return classifyMongoError(fmt.Errorf("upsert %s for %s: %w", path, id, err))
	}
	return nil
}

func (s *MongoStore) FindRecord(ctx context.Context, id domain.Identity) (domain.UnifiedUserRecord, error) {
	var doc bson.M
	err := s.coll.FindOne(ctx, bson.D{{Key: domain.FieldID, Value: string(id)}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.UnifiedUserRecord{}, ErrNotFound
	}
	if err != nil {
		return domain.UnifiedUserRecord{}, classifyMongoError(fmt.Errorf("find record %s: %w", id, err))
	}

	rec := domain.UnifiedUserRecord{ID: id, Sections: map[string]any{}}
	for key, value := range doc {
		switch key {
		case "_id", domain.FieldID:
		case domain.FieldCreatedAt:
			if dt, ok := value.(primitive.DateTime); ok {
				rec.CreatedAt = dt.Time().UTC()
			}
		default:
			rec.Sections[key] = fromBSON(value)
		}
	}
	return rec, nil
}

func (s *MongoStore) VerifyConnectivity(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// A duplicate key error means a concurrent upsert for the same identity won
// the insert; retrying turns this call into an update.
func classifyMongoError(err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || mongo.IsDuplicateKeyError(err) {
		return Unavailable(err)
	}
	return err
}

// fromBSON converts decoded BSON values to the plain JSON shapes used
// everywhere else.
func fromBSON(value any) any {
	switch v := value.(type) {
	case bson.M:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = fromBSON(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = fromBSON(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(v))
		for _, e := range v {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = fromBSON(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = fromBSON(item)
		}
		return out
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case primitive.DateTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}
