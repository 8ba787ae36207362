package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/enrollment-kpi/internal/models"
	"github.com/noah-isme/enrollment-kpi/pkg/database"
)

// MongoConfigurationRepository keeps settings and the source layout as named
// documents of the config collection.
type MongoConfigurationRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoConfigurationRepository constructs the repository.
func NewMongoConfigurationRepository(db *mongo.Database) *MongoConfigurationRepository {
	return &MongoConfigurationRepository{coll: db.Collection(database.CollectionConfig), now: time.Now}
}

// GetSettings loads the settings document.
func (r *MongoConfigurationRepository) GetSettings(ctx context.Context) (*models.AppSettings, error) {
	var settings models.AppSettings
	if err := r.get(ctx, models.ConfigKeySettings, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// SaveSettings upserts the settings document.
func (r *MongoConfigurationRepository) SaveSettings(ctx context.Context, settings *models.AppSettings) error {
	settings.UpdatedAt = r.now().UTC()
	return r.put(ctx, models.ConfigKeySettings, settings)
}

// GetSources loads the stored source layout.
func (r *MongoConfigurationRepository) GetSources(ctx context.Context) (*models.SourceLayout, error) {
	var layout models.SourceLayout
	if err := r.get(ctx, models.ConfigKeySources, &layout); err != nil {
		return nil, err
	}
	return &layout, nil
}

// SaveSources upserts the source layout.
func (r *MongoConfigurationRepository) SaveSources(ctx context.Context, layout *models.SourceLayout) error {
	return r.put(ctx, models.ConfigKeySources, layout)
}

func (r *MongoConfigurationRepository) get(ctx context.Context, key string, dest interface{}) error {
	if err := r.coll.FindOne(ctx, bson.M{"_id": key}).Decode(dest); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return fmt.Errorf("get config %s: %w", key, err)
	}
	return nil
}

func (r *MongoConfigurationRepository) put(ctx context.Context, key string, value interface{}) error {
	raw, err := bson.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode config %s: %w", key, err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("encode config %s: %w", key, err)
	}
	doc["_id"] = key
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("upsert config %s: %w", key, err)
	}
	return nil
}
