package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-kpi/internal/models"
	"github.com/noah-isme/enrollment-kpi/internal/reconcile"
	appErrors "github.com/noah-isme/enrollment-kpi/pkg/errors"
	"github.com/noah-isme/enrollment-kpi/pkg/logger"
)

const dashboardCachePattern = "dashboard:*"

type syncRunner interface {
	Run(ctx context.Context, targetYear string) (*models.SyncResult, error)
}

type settingsReader interface {
	Get(ctx context.Context) (models.AppSettings, error)
}

type snapshotCalculator interface {
	Calculate(ctx context.Context, schoolYear string, settings models.AppSettings) (*models.Snapshot, error)
}

type timelineCalculator interface {
	Calculate(ctx context.Context, schoolYear string) ([]models.EnrollmentWeek, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// PipelineService chains a sync with the KPI recomputation it feeds.
type PipelineService struct {
	sync      syncRunner
	settings  settingsReader
	snapshots snapshotCalculator
	timeline  timelineCalculator
	cache     cacheInvalidator
	logger    *zap.Logger
}

// PipelineServiceParams groups constructor dependencies.
type PipelineServiceParams struct {
	Sync      syncRunner
	Settings  settingsReader
	Snapshots snapshotCalculator
	Timeline  timelineCalculator
	Cache     cacheInvalidator
	Logger    *zap.Logger
}

// NewPipelineService constructs the service.
func NewPipelineService(p PipelineServiceParams) *PipelineService {
	l := p.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return &PipelineService{
		sync:      p.Sync,
		settings:  p.Settings,
		snapshots: p.Snapshots,
		timeline:  p.Timeline,
		cache:     p.Cache,
		logger:    l,
	}
}

// Run syncs the ledger and, unless skipMetrics is set, recomputes snapshots and
// timelines for the target year or every active year. Recompute failures are
// reported per year in the result.
func (s *PipelineService) Run(ctx context.Context, targetYear string, skipMetrics bool) (*models.SyncResult, error) {
	result, err := s.sync.Run(ctx, targetYear)
	if err != nil {
		return result, err
	}
	if skipMetrics {
		s.invalidate(ctx)
		return result, nil
	}

	log := logger.ForRun(s.logger, result.RunID, targetYear)
	settings, err := s.settings.Get(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to load settings: %v", err))
		log.Error("settings load failed", zap.Error(err))
		return result, nil
	}

	years := settings.ActiveSchoolYears
	if targetYear != "" {
		years = []string{targetYear}
	}
	for _, year := range years {
		if _, err := s.recompute(ctx, year, settings); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to compute metrics for %s: %v", year, err))
			log.Error("metrics recompute failed", zap.String("school_year", year), zap.Error(err))
		}
	}
	s.invalidate(ctx)
	return result, nil
}

// RecomputeYear refreshes one year's snapshot and timeline with the current settings.
func (s *PipelineService) RecomputeYear(ctx context.Context, schoolYear string) (*models.Snapshot, error) {
	if !reconcile.IsCanonicalSchoolYear(schoolYear) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("school year %q must look like 2024-25", schoolYear))
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.recompute(ctx, schoolYear, settings)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return snapshot, nil
}

func (s *PipelineService) recompute(ctx context.Context, schoolYear string, settings models.AppSettings) (*models.Snapshot, error) {
	snapshot, err := s.snapshots.Calculate(ctx, schoolYear, settings)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if _, err := s.timeline.Calculate(ctx, schoolYear); err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	return snapshot, nil
}

func (s *PipelineService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCachePattern); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}
