package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-kpi/internal/models"
)

// TimelineRepository persists the weekly enrollment curve in Postgres.
type TimelineRepository struct {
	db *sqlx.DB
}

// NewTimelineRepository constructs the repository.
func NewTimelineRepository(db *sqlx.DB) *TimelineRepository {
	return &TimelineRepository{db: db}
}

// ReplaceYear swaps a year's weeks for the provided set in one transaction.
func (r *TimelineRepository) ReplaceYear(ctx context.Context, schoolYear string, weeks []models.EnrollmentWeek) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin timeline tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM enrollment_timeline WHERE school_year = $1`, schoolYear); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear timeline: %w", err)
	}
	const insert = `INSERT INTO enrollment_timeline (id, school_year, week_start, week_number, new_enrollments, cumulative_enrollment, by_campus)
VALUES (:id, :school_year, :week_start, :week_number, :new_enrollments, :cumulative_enrollment, :by_campus)`
	for i := range weeks {
		if _, err := tx.NamedExecContext(ctx, insert, weeks[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert timeline week %s: %w", weeks[i].ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit timeline tx: %w", err)
	}
	return nil
}

// ListByYear returns a year's weeks in order.
func (r *TimelineRepository) ListByYear(ctx context.Context, schoolYear string) ([]models.EnrollmentWeek, error) {
	const query = `SELECT id, school_year, week_start, week_number, new_enrollments, cumulative_enrollment, by_campus
FROM enrollment_timeline WHERE school_year = $1 ORDER BY week_number ASC`
	var weeks []models.EnrollmentWeek
	if err := r.db.SelectContext(ctx, &weeks, query, schoolYear); err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	return weeks, nil
}
