package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/enrollment-kpi/internal/models"
	"github.com/noah-isme/enrollment-kpi/pkg/database"
)

// MongoTimelineRepository persists the weekly enrollment curve in MongoDB.
type MongoTimelineRepository struct {
	coll      *mongo.Collection
	batchSize int
}

// NewMongoTimelineRepository constructs the repository. Inserts are chunked by batchSize.
func NewMongoTimelineRepository(db *mongo.Database, batchSize int) *MongoTimelineRepository {
	if batchSize <= 0 {
		batchSize = 499
	}
	return &MongoTimelineRepository{coll: db.Collection(database.CollectionTimeline), batchSize: batchSize}
}

// ReplaceYear deletes a year's weeks then inserts the new set in chunks.
func (r *MongoTimelineRepository) ReplaceYear(ctx context.Context, schoolYear string, weeks []models.EnrollmentWeek) error {
	if _, err := r.coll.DeleteMany(ctx, bson.M{"schoolYear": schoolYear}); err != nil {
		return fmt.Errorf("clear timeline: %w", err)
	}
	for start := 0; start < len(weeks); start += r.batchSize {
		end := start + r.batchSize
		if end > len(weeks) {
			end = len(weeks)
		}
		docs := make([]interface{}, 0, end-start)
		for i := start; i < end; i++ {
			docs = append(docs, weeks[i])
		}
		if _, err := r.coll.InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("insert timeline weeks: %w", err)
		}
	}
	return nil
}

// ListByYear returns a year's weeks in order.
func (r *MongoTimelineRepository) ListByYear(ctx context.Context, schoolYear string) ([]models.EnrollmentWeek, error) {
	cur, err := r.coll.Find(ctx, bson.M{"schoolYear": schoolYear}, options.Find().SetSort(bson.D{{Key: "weekNumber", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find timeline: %w", err)
	}
	var weeks []models.EnrollmentWeek
	if err := cur.All(ctx, &weeks); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	return weeks, nil
}
