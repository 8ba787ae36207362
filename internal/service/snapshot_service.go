package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-kpi/internal/models"
	"github.com/noah-isme/enrollment-kpi/internal/reconcile"
	"github.com/noah-isme/enrollment-kpi/internal/repository"
	appErrors "github.com/noah-isme/enrollment-kpi/pkg/errors"
)

type studentYearReader interface {
	ListByYear(ctx context.Context, schoolYear string) ([]models.StudentRecord, error)
}

type snapshotRepository interface {
	Save(ctx context.Context, snapshot *models.Snapshot) error
	CreateCountDay(ctx context.Context, snapshot *models.Snapshot) (bool, error)
	CountDay(ctx context.Context, schoolYear string) (*models.Snapshot, error)
	Latest(ctx context.Context, schoolYear string) (*models.Snapshot, error)
	DeleteUnlockedExcept(ctx context.Context, schoolYear, keepID string) (int64, error)
}

// BuildSnapshot aggregates one school year's KPIs from its ledger rows and the
// prior year's rows. It performs no I/O.
func BuildSnapshot(students, prior []models.StudentRecord) (models.SnapshotMetrics, models.CampusMetricsMap) {
	eligible := make(map[string]struct{})
	priorByCampus := make(map[string]int)
	priorCampusInfo := make(map[string]models.StudentRecord)
	for _, p := range prior {
		if p.CampusKey != "" {
			if _, seen := priorCampusInfo[p.CampusKey]; !seen {
				priorCampusInfo[p.CampusKey] = p
			}
		}
		if p.IsGraduate || !p.IsActive() {
			continue
		}
		eligible[p.StudentKey] = struct{}{}
		priorByCampus[p.CampusKey]++
	}

	var metrics models.SnapshotMetrics
	byCampus := make(models.CampusMetricsMap)
	attended := make(map[string]int)
	campusStudents := make(map[string]int)

	for _, st := range students {
		var campus *models.CampusMetrics
		if st.CampusKey != "" {
			c, ok := byCampus[st.CampusKey]
			if !ok {
				c = models.CampusMetrics{CampusName: st.Campus, MCLeader: st.MCLeader}
			}
			campus = &c
			campusStudents[st.CampusKey]++
			if st.AttendedAtLeastOnce {
				attended[st.CampusKey]++
			}
		}

		if st.IsActive() {
			metrics.TotalEnrollment++
			_, wasEligible := eligible[st.StudentKey]
			returning := st.IsReturningStudent && wasEligible
			switch {
			case returning:
				metrics.ReturningStudents++
			case st.IsReturningCampus:
				metrics.NewStudentsReturningCampuses++
				metrics.InternalGrowth++
			default:
				metrics.NewCampusGrowth++
			}
			if campus != nil {
				campus.TotalEnrollment++
				if returning {
					campus.ReturningStudents++
				} else {
					campus.NewStudents++
				}
			}
		}

		switch {
		case !st.AttendedAtLeastOnce && !st.IsVerifiedTransfer:
			metrics.NonStarters++
			if campus != nil {
				campus.NonStarters++
			}
		case st.WithdrawalDate != nil && *st.WithdrawalDate != "" && !st.IsVerifiedTransfer:
			metrics.MidYearWithdrawals++
			if campus != nil {
				campus.MidYearWithdrawals++
			}
		case st.IsVerifiedTransfer:
			metrics.VerifiedTransfers++
		}

		if campus != nil {
			byCampus[st.CampusKey] = *campus
		}
	}

	for key, info := range priorCampusInfo {
		if _, ok := byCampus[key]; !ok {
			byCampus[key] = models.CampusMetrics{CampusName: info.Campus, MCLeader: info.MCLeader}
		}
	}

	metrics.EligiblePriorYear = len(eligible)
	metrics.AttritionTotal = metrics.NonStarters + metrics.MidYearWithdrawals
	metrics.TotalNewGrowth = metrics.InternalGrowth + metrics.NewCampusGrowth
	metrics.NetGrowth = metrics.TotalNewGrowth - metrics.MidYearWithdrawals
	metrics.RetentionRate = retentionRate(metrics.ReturningStudents, metrics.EligiblePriorYear)

	for key, c := range byCampus {
		c.RetentionRate = retentionRate(c.ReturningStudents, priorByCampus[key])
		if n := campusStudents[key]; n > 0 {
			c.AttendanceRate = math.Round(float64(attended[key])/float64(n)*1000) / 10
		}
		byCampus[key] = c
	}
	return metrics, byCampus
}

// retentionRate is round-half-up percent clamped to [0, 100]; zero when the
// denominator is empty.
func retentionRate(returning, eligible int) int {
	if eligible <= 0 {
		return 0
	}
	rate := int(math.Floor(float64(returning)*100/float64(eligible) + 0.5))
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}

// SnapshotService computes and stores KPI snapshots, locking the count-day one.
type SnapshotService struct {
	students  studentYearReader
	snapshots snapshotRepository
	metrics   *MetricsService
	logger    *zap.Logger
	location  *time.Location
	now       func() time.Time
}

// SnapshotServiceParams groups constructor dependencies.
type SnapshotServiceParams struct {
	Students  studentYearReader
	Snapshots snapshotRepository
	Metrics   *MetricsService
	Logger    *zap.Logger
	Location  *time.Location
}

// NewSnapshotService constructs the service.
func NewSnapshotService(p SnapshotServiceParams) *SnapshotService {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	return &SnapshotService{
		students:  p.Students,
		snapshots: p.Snapshots,
		metrics:   p.Metrics,
		logger:    logger,
		location:  loc,
		now:       time.Now,
	}
}

// Calculate builds the year's snapshot and stores it. For the current school
// year on or after count day it is written once under the fixed count-day id
// and never replaced; every other call stores a timestamped snapshot and prunes
// the year's older unlocked ones.
func (s *SnapshotService) Calculate(ctx context.Context, schoolYear string, settings models.AppSettings) (*models.Snapshot, error) {
	prior, err := reconcile.PriorSchoolYear(schoolYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school year")
	}
	current, err := s.students.ListByYear(ctx, schoolYear)
	if err != nil {
		return nil, fmt.Errorf("load %s students: %w", schoolYear, err)
	}
	previous, err := s.students.ListByYear(ctx, prior)
	if err != nil {
		return nil, fmt.Errorf("load %s students: %w", prior, err)
	}

	metrics, byCampus := BuildSnapshot(current, previous)
	now := s.now().In(s.location)
	snapshot := &models.Snapshot{
		SchoolYear:   schoolYear,
		SnapshotDate: now.Format(reconcile.ISODate),
		Metrics:      metrics,
		ByCampus:     byCampus,
		CreatedAt:    now.UTC(),
	}

	lock, err := s.shouldLock(ctx, schoolYear, settings, now)
	if err != nil {
		return nil, err
	}
	if lock {
		lockedAt := now.UTC()
		snapshot.ID = models.CountDaySnapshotID(schoolYear)
		snapshot.IsCountDay = true
		snapshot.LockedAt = &lockedAt
		created, err := s.snapshots.CreateCountDay(ctx, snapshot)
		if err != nil {
			return nil, err
		}
		if created {
			s.metrics.RecordSnapshot(schoolYear, true)
			s.logger.Info("count-day snapshot locked",
				zap.String("school_year", schoolYear),
				zap.Int("total_enrollment", metrics.TotalEnrollment),
			)
			s.prune(ctx, schoolYear, snapshot.ID)
			return snapshot, nil
		}
		// another writer locked it between the check and the insert
		snapshot.IsCountDay = false
		snapshot.LockedAt = nil
	}

	snapshot.ID = fmt.Sprintf("%s-%s", schoolYear, now.Format("2006-01-02-150405"))
	if err := s.snapshots.Save(ctx, snapshot); err != nil {
		return nil, err
	}
	s.metrics.RecordSnapshot(schoolYear, false)
	s.prune(ctx, schoolYear, snapshot.ID)
	s.logger.Info("snapshot saved",
		zap.String("school_year", schoolYear),
		zap.String("snapshot_id", snapshot.ID),
		zap.Int("total_enrollment", metrics.TotalEnrollment),
		zap.Int("retention_rate", metrics.RetentionRate),
	)
	return snapshot, nil
}

func (s *SnapshotService) shouldLock(ctx context.Context, schoolYear string, settings models.AppSettings, now time.Time) (bool, error) {
	if schoolYear != settings.CurrentSchoolYear {
		return false, nil
	}
	countDay, err := CountDayDate(settings, schoolYear, s.location)
	if err != nil {
		s.logger.Warn("count day unavailable", zap.String("school_year", schoolYear), zap.Error(err))
		return false, nil
	}
	if now.Before(countDay) {
		return false, nil
	}
	existing, err := s.snapshots.CountDay(ctx, schoolYear)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	return existing.LockedAt == nil, nil
}

func (s *SnapshotService) prune(ctx context.Context, schoolYear, keepID string) {
	removed, err := s.snapshots.DeleteUnlockedExcept(ctx, schoolYear, keepID)
	if err != nil {
		s.logger.Warn("snapshot prune failed", zap.String("school_year", schoolYear), zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Debug("stale snapshots pruned", zap.String("school_year", schoolYear), zap.Int64("removed", removed))
	}
}
