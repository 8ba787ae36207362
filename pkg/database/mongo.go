package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/enrollment-kpi/pkg/config"
)

// Collection names of the document-store backend.
const (
	CollectionStudents  = "students"
	CollectionSnapshots = "snapshots"
	CollectionTimeline  = "enrollmentTimeline"
	CollectionConfig    = "config"
)

// NewMongo connects to MongoDB and returns the configured database handle.
func NewMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	if cfg.URI == "" {
		return nil, nil, fmt.Errorf("mongo uri is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().ApplyURI(cfg.URI).
		SetMaxPoolSize(20).
		SetConnectTimeout(timeout).
		SetSocketTimeout(2 * timeout)

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}

// EnsureMongoIndexes creates the secondary indexes the read paths rely on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		CollectionStudents: {
			{Keys: bson.D{{Key: "schoolYear", Value: 1}}},
		},
		CollectionSnapshots: {
			{Keys: bson.D{{Key: "schoolYear", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		CollectionTimeline: {
			{Keys: bson.D{{Key: "schoolYear", Value: 1}, {Key: "weekNumber", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}
