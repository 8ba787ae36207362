package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/enrollment-kpi/internal/dto"
	"github.com/noah-isme/enrollment-kpi/internal/models"
	"github.com/noah-isme/enrollment-kpi/internal/reconcile"
	"github.com/noah-isme/enrollment-kpi/internal/repository"
	appErrors "github.com/noah-isme/enrollment-kpi/pkg/errors"
)

type snapshotReader interface {
	Latest(ctx context.Context, schoolYear string) (*models.Snapshot, error)
	CountDay(ctx context.Context, schoolYear string) (*models.Snapshot, error)
}

type timelineReader interface {
	ListByYear(ctx context.Context, schoolYear string) ([]models.EnrollmentWeek, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService serves the read side: snapshots, campus slices, year-over-year
// comparisons and timelines. Results are cached and concurrent misses for the
// same key share one store read.
type DashboardService struct {
	snapshots snapshotReader
	timeline  timelineReader
	settings  settingsReader
	cache     *CacheService
	group     singleflight.Group
	logger    *zap.Logger
	cfg       DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Snapshots snapshotReader
	Timeline  timelineReader
	Settings  settingsReader
	Cache     *CacheService
	Logger    *zap.Logger
	Config    DashboardServiceConfig
}

// NewDashboardService constructs the service.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		snapshots: params.Snapshots,
		timeline:  params.Timeline,
		settings:  params.Settings,
		cache:     params.Cache,
		logger:    logger,
		cfg:       cfg,
	}
}

// Overview returns the latest snapshot of a year. A year without snapshots
// yields a nil snapshot.
func (s *DashboardService) Overview(ctx context.Context, schoolYear string) (*dto.DashboardOverview, bool, error) {
	if err := requireSchoolYear(schoolYear); err != nil {
		return nil, false, err
	}
	return cachedView(ctx, s, fmt.Sprintf("dashboard:overview:%s", schoolYear), func(ctx context.Context) (*dto.DashboardOverview, error) {
		settings, err := s.settings.Get(ctx)
		if err != nil {
			return nil, err
		}
		snapshot, err := s.optional(s.snapshots.Latest(ctx, schoolYear))
		if err != nil {
			return nil, err
		}
		return &dto.DashboardOverview{Snapshot: snapshot, Settings: settings}, nil
	})
}

// Campus returns one campus of the latest snapshot alongside the overall metrics.
func (s *DashboardService) Campus(ctx context.Context, schoolYear, campusKey string) (*dto.CampusView, bool, error) {
	if err := requireSchoolYear(schoolYear); err != nil {
		return nil, false, err
	}
	if campusKey == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "campusKey required for campus view")
	}
	return cachedView(ctx, s, fmt.Sprintf("dashboard:campus:%s:%s", schoolYear, campusKey), func(ctx context.Context) (*dto.CampusView, error) {
		snapshot, err := s.optional(s.snapshots.Latest(ctx, schoolYear))
		if err != nil || snapshot == nil {
			return &dto.CampusView{}, err
		}
		return campusSlice(snapshot, campusKey), nil
	})
}

// YearOverYear returns, for every active year, the latest snapshot of the
// current year or the count-day snapshot of a past one. Years without a
// matching snapshot are omitted.
func (s *DashboardService) YearOverYear(ctx context.Context) (*dto.YearOverYear, bool, error) {
	return cachedView(ctx, s, "dashboard:yoy", func(ctx context.Context) (*dto.YearOverYear, error) {
		settings, err := s.settings.Get(ctx)
		if err != nil {
			return nil, err
		}
		out := &dto.YearOverYear{Snapshots: make(map[string]models.Snapshot), Settings: settings}
		for _, year := range settings.ActiveSchoolYears {
			snapshot, err := s.comparable(ctx, year, settings)
			if err != nil {
				return nil, err
			}
			if snapshot != nil {
				out.Snapshots[year] = *snapshot
			}
		}
		return out, nil
	})
}

// Timeline returns the stored weeks of a year ordered by week number.
func (s *DashboardService) Timeline(ctx context.Context, schoolYear string) (*dto.TimelineView, bool, error) {
	if err := requireSchoolYear(schoolYear); err != nil {
		return nil, false, err
	}
	return cachedView(ctx, s, fmt.Sprintf("dashboard:timeline:%s", schoolYear), func(ctx context.Context) (*dto.TimelineView, error) {
		weeks, err := s.timeline.ListByYear(ctx, schoolYear)
		if err != nil {
			return nil, err
		}
		if weeks == nil {
			weeks = []models.EnrollmentWeek{}
		}
		return &dto.TimelineView{Timeline: weeks}, nil
	})
}

// Campuses lists the campuses of the latest snapshot sorted by name.
func (s *DashboardService) Campuses(ctx context.Context, schoolYear string) (*dto.CampusList, bool, error) {
	if err := requireSchoolYear(schoolYear); err != nil {
		return nil, false, err
	}
	return cachedView(ctx, s, fmt.Sprintf("dashboard:campuses:%s", schoolYear), func(ctx context.Context) (*dto.CampusList, error) {
		snapshot, err := s.optional(s.snapshots.Latest(ctx, schoolYear))
		if err != nil {
			return nil, err
		}
		out := &dto.CampusList{Campuses: []dto.CampusSummary{}}
		if snapshot == nil {
			return out, nil
		}
		for key, c := range snapshot.ByCampus {
			out.Campuses = append(out.Campuses, dto.CampusSummary{Key: key, Name: c.CampusName, MCLeader: c.MCLeader})
		}
		sort.Slice(out.Campuses, func(i, j int) bool {
			if out.Campuses[i].Name != out.Campuses[j].Name {
				return out.Campuses[i].Name < out.Campuses[j].Name
			}
			return out.Campuses[i].Key < out.Campuses[j].Key
		})
		return out, nil
	})
}

// Snapshot returns the comparable snapshot of a year, narrowed to one campus
// when campusKey is set.
func (s *DashboardService) Snapshot(ctx context.Context, schoolYear, campusKey string) (*dto.SnapshotView, bool, error) {
	if err := requireSchoolYear(schoolYear); err != nil {
		return nil, false, err
	}
	key := fmt.Sprintf("dashboard:snapshot:%s:%s", schoolYear, campusKey)
	return cachedView(ctx, s, key, func(ctx context.Context) (*dto.SnapshotView, error) {
		settings, err := s.settings.Get(ctx)
		if err != nil {
			return nil, err
		}
		snapshot, err := s.comparable(ctx, schoolYear, settings)
		if err != nil || snapshot == nil {
			return &dto.SnapshotView{}, err
		}
		if campusKey != "" {
			view := campusSlice(snapshot, campusKey)
			return &dto.SnapshotView{Campus: view.Campus, Overall: view.Overall}, nil
		}
		return &dto.SnapshotView{Snapshot: snapshot}, nil
	})
}

func (s *DashboardService) comparable(ctx context.Context, schoolYear string, settings models.AppSettings) (*models.Snapshot, error) {
	if schoolYear == settings.CurrentSchoolYear {
		return s.optional(s.snapshots.Latest(ctx, schoolYear))
	}
	return s.optional(s.snapshots.CountDay(ctx, schoolYear))
}

func (s *DashboardService) optional(snapshot *models.Snapshot, err error) (*models.Snapshot, error) {
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot")
	}
	return snapshot, nil
}

func campusSlice(snapshot *models.Snapshot, campusKey string) *dto.CampusView {
	overall := snapshot.Metrics
	view := &dto.CampusView{Overall: &overall}
	if c, ok := snapshot.ByCampus[campusKey]; ok {
		view.Campus = &c
	}
	return view
}

func requireSchoolYear(schoolYear string) error {
	if !reconcile.IsCanonicalSchoolYear(schoolYear) {
		return appErrors.Clone(appErrors.ErrValidation, "schoolYear must look like 2024-25")
	}
	return nil
}

// cachedView reads key from the cache, falling back to compute. The bool
// reports a cache hit.
func cachedView[T any](ctx context.Context, s *DashboardService, key string, compute func(context.Context) (*T, error)) (*T, bool, error) {
	var cached T
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		out, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		s.cache.Set(ctx, key, out, s.cfg.CacheTTL)
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}
	if shared {
		s.logger.Debug("dashboard load shared", zap.String("key", key))
	}
	return v.(*T), false, nil
}
