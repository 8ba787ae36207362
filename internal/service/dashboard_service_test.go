package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-kpi/internal/models"
	appErrors "github.com/noah-isme/enrollment-kpi/pkg/errors"
)

func dashboardFixture(t *testing.T) (*fakeSnapshotStore, *fakeTimelineStore, *fakeSettingsReader) {
	t.Helper()
	ctx := context.Background()
	locked := time.Date(2023, 10, 1, 8, 0, 0, 0, time.UTC)
	snapshots := &fakeSnapshotStore{}
	require.NoError(t, snapshots.Save(ctx, &models.Snapshot{
		ID:         "2023-24-countday",
		SchoolYear: "2023-24",
		IsCountDay: true,
		LockedAt:   &locked,
		Metrics:    models.SnapshotMetrics{TotalEnrollment: 40},
	}))
	require.NoError(t, snapshots.Save(ctx, &models.Snapshot{
		ID:         "2023-24-2024-05-01-120000",
		SchoolYear: "2023-24",
		Metrics:    models.SnapshotMetrics{TotalEnrollment: 44},
	}))
	require.NoError(t, snapshots.Save(ctx, &models.Snapshot{
		ID:         "2024-25-2024-11-01-120000",
		SchoolYear: "2024-25",
		Metrics:    models.SnapshotMetrics{TotalEnrollment: 52, RetentionRate: 80},
		ByCampus: models.CampusMetricsMap{
			"west|ann":  {CampusName: "West", MCLeader: "Ann", TotalEnrollment: 30},
			"east|bo":   {CampusName: "East", MCLeader: "Bo", TotalEnrollment: 20},
			"micro|cal": {CampusName: "Micro", MCLeader: "Cal", TotalEnrollment: 2},
		},
	}))
	timeline := &fakeTimelineStore{weeks: map[string][]models.EnrollmentWeek{
		"2024-25": {{ID: "2024-25-2024-08-04", WeekNumber: 1, CumulativeEnrollment: 5}},
	}}
	settings := &fakeSettingsReader{settings: models.AppSettings{
		CurrentSchoolYear: "2024-25",
		ActiveSchoolYears: []string{"2022-23", "2023-24", "2024-25"},
	}}
	return snapshots, timeline, settings
}

func newTestDashboard(t *testing.T, cache *CacheService) (*DashboardService, *fakeSettingsReader) {
	snapshots, timeline, settings := dashboardFixture(t)
	return NewDashboardService(DashboardServiceParams{
		Snapshots: snapshots,
		Timeline:  timeline,
		Settings:  settings,
		Cache:     cache,
		Logger:    zap.NewNop(),
	}), settings
}

func TestDashboardServiceOverviewCaches(t *testing.T) {
	cache := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc, settings := newTestDashboard(t, cache)
	ctx := context.Background()

	overview, hit, err := svc.Overview(ctx, "2024-25")
	require.NoError(t, err)
	assert.False(t, hit)
	require.NotNil(t, overview.Snapshot)
	assert.Equal(t, 52, overview.Snapshot.Metrics.TotalEnrollment)
	assert.Equal(t, "2024-25", overview.Settings.CurrentSchoolYear)

	cached, hit, err := svc.Overview(ctx, "2024-25")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, overview.Snapshot.ID, cached.Snapshot.ID)
	assert.Equal(t, 1, settings.calls)
}

func TestDashboardServiceOverviewWithoutSnapshot(t *testing.T) {
	svc, _ := newTestDashboard(t, nil)

	overview, _, err := svc.Overview(context.Background(), "2025-26")
	require.NoError(t, err)
	assert.Nil(t, overview.Snapshot)
}

func TestDashboardServiceCampus(t *testing.T) {
	svc, _ := newTestDashboard(t, nil)
	ctx := context.Background()

	_, _, err := svc.Campus(ctx, "2024-25", "")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	view, _, err := svc.Campus(ctx, "2024-25", "west|ann")
	require.NoError(t, err)
	require.NotNil(t, view.Campus)
	assert.Equal(t, 30, view.Campus.TotalEnrollment)
	assert.Equal(t, 52, view.Overall.TotalEnrollment)

	missing, _, err := svc.Campus(ctx, "2024-25", "nowhere|x")
	require.NoError(t, err)
	assert.Nil(t, missing.Campus)
	assert.NotNil(t, missing.Overall)
}

func TestDashboardServiceYearOverYearUsesCountDayForPastYears(t *testing.T) {
	svc, _ := newTestDashboard(t, nil)

	yoy, _, err := svc.YearOverYear(context.Background())
	require.NoError(t, err)

	require.Len(t, yoy.Snapshots, 2)
	assert.Equal(t, "2023-24-countday", yoy.Snapshots["2023-24"].ID)
	assert.Equal(t, 40, yoy.Snapshots["2023-24"].Metrics.TotalEnrollment)
	assert.Equal(t, 52, yoy.Snapshots["2024-25"].Metrics.TotalEnrollment)
	assert.NotContains(t, yoy.Snapshots, "2022-23")
}

func TestDashboardServiceTimelineAndCampuses(t *testing.T) {
	svc, _ := newTestDashboard(t, nil)
	ctx := context.Background()

	timeline, _, err := svc.Timeline(ctx, "2024-25")
	require.NoError(t, err)
	require.Len(t, timeline.Timeline, 1)

	empty, _, err := svc.Timeline(ctx, "2023-24")
	require.NoError(t, err)
	assert.NotNil(t, empty.Timeline)
	assert.Empty(t, empty.Timeline)

	campuses, _, err := svc.Campuses(ctx, "2024-25")
	require.NoError(t, err)
	require.Len(t, campuses.Campuses, 3)
	assert.Equal(t, "East", campuses.Campuses[0].Name)
	assert.Equal(t, "east|bo", campuses.Campuses[0].Key)
	assert.Equal(t, "West", campuses.Campuses[2].Name)
}

func TestDashboardServiceSnapshot(t *testing.T) {
	svc, _ := newTestDashboard(t, nil)
	ctx := context.Background()

	past, _, err := svc.Snapshot(ctx, "2023-24", "")
	require.NoError(t, err)
	require.NotNil(t, past.Snapshot)
	assert.True(t, past.Snapshot.IsCountDay)

	campus, _, err := svc.Snapshot(ctx, "2024-25", "east|bo")
	require.NoError(t, err)
	assert.Nil(t, campus.Snapshot)
	require.NotNil(t, campus.Campus)
	assert.Equal(t, 20, campus.Campus.TotalEnrollment)

	_, _, err = svc.Snapshot(ctx, "24-25x", "")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestDashboardServiceStoreFailure(t *testing.T) {
	svc, settings := newTestDashboard(t, nil)
	settings.err = errors.New("store offline")

	_, _, err := svc.YearOverYear(context.Background())
	require.Error(t, err)
}
