package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-kpi/internal/models"
)

const studentColumns = `id, student_key, first_name, last_name, dob, school_year, campus, mc_leader, campus_key,
enrollment_status, enrolled_date, is_returning_student, is_returning_campus, attended_at_least_once,
withdrawal_date, is_verified_transfer, is_graduate, synced_at`

// StudentRepository persists ledger rows in Postgres.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// UpsertBatch writes one batch atomically. Existing rows are updated in place so
// operator-maintained flags (verified transfer, graduate) survive a resync.
func (r *StudentRepository) UpsertBatch(ctx context.Context, records []models.StudentRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin student batch tx: %w", err)
	}
	const query = `INSERT INTO students (` + studentColumns + `)
VALUES (:id, :student_key, :first_name, :last_name, :dob, :school_year, :campus, :mc_leader, :campus_key,
        :enrollment_status, :enrolled_date, :is_returning_student, :is_returning_campus, :attended_at_least_once,
        :withdrawal_date, :is_verified_transfer, :is_graduate, :synced_at)
ON CONFLICT (id) DO UPDATE SET
    student_key = EXCLUDED.student_key, first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
    dob = EXCLUDED.dob, school_year = EXCLUDED.school_year, campus = EXCLUDED.campus,
    mc_leader = EXCLUDED.mc_leader, campus_key = EXCLUDED.campus_key,
    enrollment_status = EXCLUDED.enrollment_status, enrolled_date = EXCLUDED.enrolled_date,
    is_returning_student = EXCLUDED.is_returning_student, is_returning_campus = EXCLUDED.is_returning_campus,
    attended_at_least_once = EXCLUDED.attended_at_least_once, withdrawal_date = EXCLUDED.withdrawal_date,
    synced_at = EXCLUDED.synced_at`
	for i := range records {
		if _, err := tx.NamedExecContext(ctx, query, records[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert student %s: %w", records[i].ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit student batch tx: %w", err)
	}
	return nil
}

// ListByYear returns every ledger row of a school year ordered by id.
func (r *StudentRepository) ListByYear(ctx context.Context, schoolYear string) ([]models.StudentRecord, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE school_year = $1 ORDER BY id ASC`
	var records []models.StudentRecord
	if err := r.db.SelectContext(ctx, &records, query, schoolYear); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return records, nil
}
