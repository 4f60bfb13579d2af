package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const mongoCollection = "kv_store"

type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Mongo stores each document as {_id: key, value: json}.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type mongoDocument struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewMongo(cfg MongoConfig) (*Mongo, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(20)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Mongo{
		client:     client,
		collection: client.Database(cfg.Database).Collection(mongoCollection),
	}, nil
}

func (m *Mongo) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	var doc mongoDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": key.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(doc.Value), true, nil
}

func (m *Mongo) Set(ctx context.Context, key Key, value []byte) error {
	_, err := m.collection.UpdateOne(ctx,
		bson.M{"_id": key.String()},
		bson.M{"$set": bson.M{
			"value":      string(value),
			"updated_at": time.Now(),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (m *Mongo) Remove(ctx context.Context, key Key) error {
	_, err := m.collection.DeleteOne(ctx, bson.M{"_id": key.String()})
	return err
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
