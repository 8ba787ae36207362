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

// MongoStudentRepository persists ledger documents in MongoDB.
type MongoStudentRepository struct {
	coll *mongo.Collection
}

// NewMongoStudentRepository constructs the repository.
func NewMongoStudentRepository(db *mongo.Database) *MongoStudentRepository {
	return &MongoStudentRepository{coll: db.Collection(database.CollectionStudents)}
}

// UpsertBatch writes one batch as an ordered bulk of $set upserts. Fields not
// produced by the sync are left untouched on existing documents.
func (r *MongoStudentRepository) UpsertBatch(ctx context.Context, records []models.StudentRecord) error {
	if len(records) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(records))
	for i := range records {
		rec := records[i]
		set := bson.M{
			"studentKey":          rec.StudentKey,
			"firstName":           rec.FirstName,
			"lastName":            rec.LastName,
			"dob":                 rec.DOB,
			"schoolYear":          rec.SchoolYear,
			"campus":              rec.Campus,
			"mcLeader":            rec.MCLeader,
			"campusKey":           rec.CampusKey,
			"enrollmentStatus":    rec.EnrollmentStatus,
			"enrolledDate":        rec.EnrolledDate,
			"isReturningStudent":  rec.IsReturningStudent,
			"isReturningCampus":   rec.IsReturningCampus,
			"attendedAtLeastOnce": rec.AttendedAtLeastOnce,
			"withdrawalDate":      rec.WithdrawalDate,
			"syncedAt":            rec.SyncedAt,
		}
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": rec.ID}).
			SetUpdate(bson.M{
				"$set":         set,
				"$setOnInsert": bson.M{"isVerifiedTransfer": false, "isGraduate": false},
			}).
			SetUpsert(true))
	}
	if _, err := r.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true)); err != nil {
		return fmt.Errorf("bulk upsert students: %w", err)
	}
	return nil
}

// ListByYear returns a year's ledger documents ordered by id.
func (r *MongoStudentRepository) ListByYear(ctx context.Context, schoolYear string) ([]models.StudentRecord, error) {
	cur, err := r.coll.Find(ctx, bson.M{"schoolYear": schoolYear}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find students: %w", err)
	}
	var records []models.StudentRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode students: %w", err)
	}
	return records, nil
}
