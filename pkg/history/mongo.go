package history

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	t2berrors "github.com/matzehuels/text2block/pkg/errors"
)

// MongoConfig configures a [MongoStore].
type MongoConfig struct {
	URI        string `toml:"uri" yaml:"uri" json:"-"`
	Database   string `toml:"database" yaml:"database" json:"database"`
	Collection string `toml:"collection" yaml:"collection" json:"collection"`
}

// Defaults for MongoConfig.
const (
	DefaultMongoDatabase   = "text2block"
	DefaultMongoCollection = "history"
)

// MongoStore keeps records in a MongoDB collection indexed on id and created_at.
type MongoStore struct {
	client *mongo.Client
	col    *mongo.Collection
}

// NewMongoStore connects, pings and ensures the collection indexes.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo history store requires a uri")
	}
	if cfg.Database == "" {
		cfg.Database = DefaultMongoDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultMongoCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	col := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{bson.E{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create history indexes: %w", err)
	}
	return &MongoStore{client: client, col: col}, nil
}

// Save upserts r by its ID.
func (s *MongoStore) Save(ctx context.Context, r *Record) error {
	_, err := s.col.ReplaceOne(ctx, bson.M{"id": r.ID}, r, options.Replace().SetUpsert(true))
	return err
}

// Get returns the record with the given ID, or a NOT_FOUND error.
func (s *MongoStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := t2berrors.ValidateRecordID(id); err != nil {
		return nil, err
	}
	var r Record
	err := s.col.FindOne(ctx, bson.M{"id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns up to limit records, newest first.
func (s *MongoStore) List(ctx context.Context, limit int) ([]*Record, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "created_at", Value: -1}}).
		SetLimit(int64(listLimit(limit)))
	cur, err := s.col.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var records []*Record
	for cur.Next(ctx) {
		var r Record
		if err := cur.Decode(&r); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}
	return records, cur.Err()
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

var _ Store = (*MongoStore)(nil)
