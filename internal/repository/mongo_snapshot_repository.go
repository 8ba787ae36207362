package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/enrollment-kpi/internal/models"
	"github.com/noah-isme/enrollment-kpi/pkg/database"
)

// MongoSnapshotRepository persists KPI snapshots in MongoDB.
type MongoSnapshotRepository struct {
	coll *mongo.Collection
}

// NewMongoSnapshotRepository constructs the repository.
func NewMongoSnapshotRepository(db *mongo.Database) *MongoSnapshotRepository {
	return &MongoSnapshotRepository{coll: db.Collection(database.CollectionSnapshots)}
}

// Save replaces an unlocked snapshot or inserts a new one.
func (r *MongoSnapshotRepository) Save(ctx context.Context, snapshot *models.Snapshot) error {
	filter := bson.M{"_id": snapshot.ID, "lockedAt": bson.M{"$exists": false}}
	_, err := r.coll.ReplaceOne(ctx, filter, snapshot, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// a locked document already owns this id
			return nil
		}
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// CreateCountDay inserts the count-day snapshot unless its id is already taken.
func (r *MongoSnapshotRepository) CreateCountDay(ctx context.Context, snapshot *models.Snapshot) (bool, error) {
	if _, err := r.coll.InsertOne(ctx, snapshot); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("create count-day snapshot: %w", err)
	}
	return true, nil
}

// CountDay returns the locked count-day snapshot of a year.
func (r *MongoSnapshotRepository) CountDay(ctx context.Context, schoolYear string) (*models.Snapshot, error) {
	return r.findOne(ctx, bson.M{"_id": models.CountDaySnapshotID(schoolYear)}, nil)
}

// Latest returns the most recently created snapshot of a year.
func (r *MongoSnapshotRepository) Latest(ctx context.Context, schoolYear string) (*models.Snapshot, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.findOne(ctx, bson.M{"schoolYear": schoolYear}, opts)
}

// DeleteUnlockedExcept removes a year's unlocked snapshots other than keepID.
func (r *MongoSnapshotRepository) DeleteUnlockedExcept(ctx context.Context, schoolYear, keepID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{
		"schoolYear": schoolYear,
		"_id":        bson.M{"$ne": keepID},
		"lockedAt":   bson.M{"$exists": false},
	})
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *MongoSnapshotRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	var findOpts []*options.FindOneOptions
	if opts != nil {
		findOpts = append(findOpts, opts)
	}
	if err := r.coll.FindOne(ctx, filter, findOpts...).Decode(&snapshot); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find snapshot: %w", err)
	}
	if snapshot.ByCampus == nil {
		snapshot.ByCampus = models.CampusMetricsMap{}
	}
	return &snapshot, nil
}
