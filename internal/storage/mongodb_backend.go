package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskboard-go/internal/constants"
)

// MongoDBBackend stores records in the session_records collection keyed by _id.
type MongoDBBackend struct {
	uri        string
	dbName     string
	client     *mongo.Client
	collection *mongo.Collection
}

type mongoRecord struct {
	Key       string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoDBBackend creates a MongoDB storage backend; Initialize connects.
func NewMongoDBBackend(uri, dbName string) *MongoDBBackend {
	if dbName == "" {
		dbName = "taskboard"
	}
	return &MongoDBBackend{uri: uri, dbName: dbName}
}

func (m *MongoDBBackend) Name() string { return "mongodb" }

// Initialize connects to MongoDB
func (m *MongoDBBackend) Initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.StorageTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(m.uri)
	clientOptions.SetMaxPoolSize(4)
	clientOptions.SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	m.client = client
	m.collection = client.Database(m.dbName).Collection("session_records")
	return nil
}

func (m *MongoDBBackend) Close() error {
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), constants.StorageTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoDBBackend) Health(ctx context.Context) error {
	if m.client == nil {
		return fmt.Errorf("mongodb storage not initialized")
	}
	return m.client.Ping(ctx, nil)
}

func (m *MongoDBBackend) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.StorageTimeout)
	defer cancel()

	var rec mongoRecord
	if err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &ErrNotFound{Key: key}
		}
		return nil, fmt.Errorf("get record %s: %w", key, err)
	}
	return rec.Data, nil
}

func (m *MongoDBBackend) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, constants.StorageTimeout)
	defer cancel()

	rec := mongoRecord{Key: key, Data: value, UpdatedAt: time.Now().UTC()}
	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": key}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set record %s: %w", key, err)
	}
	return nil
}

func (m *MongoDBBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, constants.StorageTimeout)
	defer cancel()

	if _, err := m.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": keys}}); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}
