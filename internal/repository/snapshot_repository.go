package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-kpi/internal/models"
)

const snapshotColumns = `id, school_year, snapshot_date, is_count_day, metrics, by_campus, created_at, locked_at`

// SnapshotRepository persists KPI snapshots in Postgres.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository constructs the repository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save inserts or replaces a snapshot. Locked rows are never overwritten.
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *models.Snapshot) error {
	const query = `INSERT INTO snapshots (` + snapshotColumns + `)
VALUES (:id, :school_year, :snapshot_date, :is_count_day, :metrics, :by_campus, :created_at, :locked_at)
ON CONFLICT (id) DO UPDATE SET snapshot_date = EXCLUDED.snapshot_date, metrics = EXCLUDED.metrics,
    by_campus = EXCLUDED.by_campus, created_at = EXCLUDED.created_at
WHERE snapshots.locked_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, snapshot); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// CreateCountDay inserts the count-day snapshot only if none exists for its id.
// created reports whether this call wrote it.
func (r *SnapshotRepository) CreateCountDay(ctx context.Context, snapshot *models.Snapshot) (bool, error) {
	const query = `INSERT INTO snapshots (` + snapshotColumns + `)
VALUES (:id, :school_year, :snapshot_date, :is_count_day, :metrics, :by_campus, :created_at, :locked_at)
ON CONFLICT (id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, snapshot)
	if err != nil {
		return false, fmt.Errorf("create count-day snapshot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("count-day rows affected: %w", err)
	}
	return affected > 0, nil
}

// CountDay returns the locked count-day snapshot of a year.
func (r *SnapshotRepository) CountDay(ctx context.Context, schoolYear string) (*models.Snapshot, error) {
	return r.getOne(ctx, `SELECT `+snapshotColumns+` FROM snapshots WHERE id = $1`, models.CountDaySnapshotID(schoolYear))
}

// Latest returns the most recently created snapshot of a year.
func (r *SnapshotRepository) Latest(ctx context.Context, schoolYear string) (*models.Snapshot, error) {
	return r.getOne(ctx, `SELECT `+snapshotColumns+` FROM snapshots WHERE school_year = $1 ORDER BY created_at DESC LIMIT 1`, schoolYear)
}

// DeleteUnlockedExcept removes a year's unlocked snapshots other than keepID.
func (r *SnapshotRepository) DeleteUnlockedExcept(ctx context.Context, schoolYear, keepID string) (int64, error) {
	const query = `DELETE FROM snapshots WHERE school_year = $1 AND id <> $2 AND locked_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, schoolYear, keepID)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune snapshots rows affected: %w", err)
	}
	return n, nil
}

func (r *SnapshotRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	if err := r.db.GetContext(ctx, &snapshot, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return &snapshot, nil
}
