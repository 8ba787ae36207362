package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-kpi/internal/models"
	"github.com/noah-isme/enrollment-kpi/internal/source"
	appErrors "github.com/noah-isme/enrollment-kpi/pkg/errors"
)

var (
	syncStudentFields = models.StudentFieldMap{
		FirstName:      "First",
		LastName:       "Last",
		DOB:            "DOB",
		SchoolYear:     "School Year",
		Status:         "Status",
		Campus:         "Campus",
		MCLeader:       "Leader",
		EnrollmentDate: "Enrollment Date",
	}
	syncTruthFields = models.TruthFieldMap{
		StudentLink:      "Student",
		DateEnrolled:     "Date Enrolled",
		EnrollmentStatus: "Status",
		SchoolYear:       "School Year",
		MCLeader:         "Staff",
		S1Present:        "S1 Present",
		S1Possible:       "S1 Possible",
	}
)

func syncBase(id string, years ...string) models.SourceBase {
	return models.SourceBase{
		BaseID:      id,
		Label:       "Base " + id,
		SchoolYears: years,
		Students:    models.StudentTable{Table: "Students", Fields: syncStudentFields},
		Truth:       &models.TruthTable{Table: "Truth", Fields: syncTruthFields},
	}
}

func syncRow(id, first, last, dob, years, status string) source.Record {
	return source.Record{
		ID:          id,
		CreatedTime: "2023-07-01T10:00:00.000Z",
		Fields: map[string]interface{}{
			"First":       first,
			"Last":        last,
			"DOB":         dob,
			"School Year": years,
			"Status":      status,
			"Campus":      "North",
			"Leader":      "Kim",
		},
	}
}

func twoYearFetcher() *fakeFetcher {
	return &fakeFetcher{tables: map[string][]source.Record{
		"appA/Students": {
			syncRow("rec1", "Ana", "Diaz", "2010-05-01", "2023-24, 2024-25", "Enrolled"),
			syncRow("rec2", "Ben", "Cole", "2011-02-03", "2024-25", "Non-Starter"),
			syncRow("rec3", "Cy", "Park", "", "2024-25", "Enrolled"),
		},
		"appA/Truth": {
			{ID: "t1", Fields: map[string]interface{}{
				"Student":       "Diaz, Ana",
				"School Year":   "2024-25",
				"Date Enrolled": "2024-08-12",
				"S1 Possible":   "80",
				"S1 Present":    "70",
			}},
		},
	}}
}

func newTestSyncService(fetcher *fakeFetcher, layout models.SourceLayout, store *fakeStudentStore, cfg SyncServiceConfig) *SyncService {
	svc := NewSyncService(SyncServiceParams{
		Source:   fetcher,
		Layout:   fakeLayout{layout: layout},
		Students: store,
		Logger:   zap.NewNop(),
		Config:   cfg,
	})
	svc.now = func() time.Time { return time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func findRecord(t *testing.T, rows map[string]models.StudentRecord, first, year string) models.StudentRecord {
	t.Helper()
	for _, r := range rows {
		if r.FirstName == first && r.SchoolYear == year {
			return r
		}
	}
	t.Fatalf("no %s record for %s", first, year)
	return models.StudentRecord{}
}

func TestSyncServiceRunReconcilesAndLinksYears(t *testing.T) {
	store := &fakeStudentStore{}
	layout := models.SourceLayout{Bases: []models.SourceBase{syncBase("appA", "2023-24", "2024-25")}}
	svc := newTestSyncService(twoYearFetcher(), layout, store, SyncServiceConfig{BatchSize: 2})

	result, err := svc.Run(context.Background(), "")
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Errors)
	assert.False(t, result.FallbackUsed)
	assert.Equal(t, []string{"2023-24", "2024-25"}, result.Years)

	require.Len(t, store.batches, 2)
	assert.Len(t, store.batches[0], 2)
	assert.Len(t, store.batches[1], 1)

	anaPrior := findRecord(t, store.rows, "Ana", "2023-24")
	assert.False(t, anaPrior.IsReturningStudent)
	assert.Equal(t, "2023-07-01", anaPrior.EnrolledDate)

	ana := findRecord(t, store.rows, "Ana", "2024-25")
	assert.True(t, ana.IsReturningStudent)
	assert.True(t, ana.IsReturningCampus)
	assert.True(t, ana.AttendedAtLeastOnce)
	assert.Equal(t, "2024-08-12", ana.EnrolledDate)
	assert.Equal(t, "north|kim", ana.CampusKey)

	ben := findRecord(t, store.rows, "Ben", "2024-25")
	assert.False(t, ben.IsReturningStudent)
	assert.True(t, ben.IsReturningCampus)
	assert.False(t, ben.AttendedAtLeastOnce)
	assert.Nil(t, ben.WithdrawalDate)
}

func TestSyncServiceRunTargetYearLoadsPriorForLookupOnly(t *testing.T) {
	store := &fakeStudentStore{}
	layout := models.SourceLayout{Bases: []models.SourceBase{syncBase("appA", "2023-24", "2024-25")}}
	svc := newTestSyncService(twoYearFetcher(), layout, store, SyncServiceConfig{})

	result, err := svc.Run(context.Background(), "2024-25")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, []string{"2024-25"}, result.Years)
	for _, r := range store.rows {
		assert.Equal(t, "2024-25", r.SchoolYear)
	}
	assert.True(t, findRecord(t, store.rows, "Ana", "2024-25").IsReturningStudent)
}

func TestSyncServiceRunRejectsMalformedTargetYear(t *testing.T) {
	svc := newTestSyncService(&fakeFetcher{}, models.SourceLayout{}, &fakeStudentStore{}, SyncServiceConfig{})

	_, err := svc.Run(context.Background(), "2024")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestSyncServiceRunRecordsFetchFailuresAndContinues(t *testing.T) {
	fetcher := twoYearFetcher()
	fetcher.errs = map[string]error{
		"appB/Students": errors.New("source API error: 503 - unavailable"),
		"appC/Truth":    errors.New("source API error: 404 - missing"),
	}
	fetcher.tables["appC/Students"] = []source.Record{syncRow("c1", "Dee", "Lu", "2012-01-01", "2024-25", "Enrolled")}
	layout := models.SourceLayout{Bases: []models.SourceBase{
		syncBase("appA", "2023-24", "2024-25"),
		syncBase("appB", "2025-26"),
		syncBase("appC", "2024-25"),
	}}
	metrics := NewMetricsService()
	store := &fakeStudentStore{}
	svc := newTestSyncService(fetcher, layout, store, SyncServiceConfig{})
	svc.metrics = metrics

	result, err := svc.Run(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Failed to fetch from Base appB")
	assert.Contains(t, result.Errors[1], "Failed to fetch from Base appC")
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.syncRuns.WithLabelValues(SyncOutcomePartial)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.fetchFailures.WithLabelValues("appB")))
}

func TestSyncServiceRunSingleYearBaseWithoutYearData(t *testing.T) {
	fetcher := &fakeFetcher{tables: map[string][]source.Record{
		"appS/Students": {
			syncRow("s1", "Eve", "Moss", "2013-03-03", "", "Enrolled"),
			syncRow("s2", "Fay", "Ng", "2013-04-04", "", "Waitlist"),
		},
	}}
	base := syncBase("appS", "2025-26")
	base.Truth = nil
	store := &fakeStudentStore{}
	svc := newTestSyncService(fetcher, models.SourceLayout{Bases: []models.SourceBase{base}}, store, SyncServiceConfig{})

	result, err := svc.Run(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.False(t, result.FallbackUsed)
	assert.Equal(t, []string{"2025-26"}, result.Years)
}

func TestSyncServiceRunYearlessFallback(t *testing.T) {
	rows := []source.Record{
		syncRow("y1", "Gus", "Orr", "2012-06-06", "next year", "Enrolled"),
		syncRow("y2", "Hal", "Poe", "2012-07-07", "", "Enrolled"),
	}
	base := syncBase("appY", "2025-26", "2026-27")
	base.Truth = nil
	layout := models.SourceLayout{Bases: []models.SourceBase{base}}

	t.Run("enabled", func(t *testing.T) {
		metrics := NewMetricsService()
		store := &fakeStudentStore{}
		svc := newTestSyncService(&fakeFetcher{tables: map[string][]source.Record{"appY/Students": rows}}, layout, store, SyncServiceConfig{YearlessFallback: true})
		svc.metrics = metrics

		result, err := svc.Run(context.Background(), "")
		require.NoError(t, err)

		assert.True(t, result.FallbackUsed)
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, 4, result.Processed)
		assert.Equal(t, []string{"2025-26", "2026-27"}, result.Years)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.fallbackRuns))
	})

	t.Run("disabled", func(t *testing.T) {
		store := &fakeStudentStore{}
		svc := newTestSyncService(&fakeFetcher{tables: map[string][]source.Record{"appY/Students": rows}}, layout, store, SyncServiceConfig{})

		result, err := svc.Run(context.Background(), "")
		require.NoError(t, err)

		assert.False(t, result.FallbackUsed)
		assert.Len(t, result.Warnings, 1)
		assert.Zero(t, result.Processed)
		assert.Empty(t, store.rows)
	})
}

func TestSyncServiceRunOnlyBases(t *testing.T) {
	fetcher := twoYearFetcher()
	layout := models.SourceLayout{Bases: []models.SourceBase{
		syncBase("appA", "2023-24", "2024-25"),
		syncBase("appZ", "2025-26"),
	}}
	svc := newTestSyncService(fetcher, layout, &fakeStudentStore{}, SyncServiceConfig{OnlyBases: []string{"appA"}})

	_, err := svc.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"appA/Students", "appA/Truth"}, fetcher.calls)
}

func TestSyncServiceRunIsIdempotent(t *testing.T) {
	store := &fakeStudentStore{}
	layout := models.SourceLayout{Bases: []models.SourceBase{syncBase("appA", "2023-24", "2024-25")}}
	svc := newTestSyncService(twoYearFetcher(), layout, store, SyncServiceConfig{})

	_, err := svc.Run(context.Background(), "")
	require.NoError(t, err)
	first := make(map[string]models.StudentRecord, len(store.rows))
	for k, v := range store.rows {
		first[k] = v
	}

	_, err = svc.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, first, store.rows)
}

func TestSyncServiceRunPersistenceFailureAborts(t *testing.T) {
	store := &fakeStudentStore{err: errors.New("connection reset")}
	layout := models.SourceLayout{Bases: []models.SourceBase{syncBase("appA", "2023-24", "2024-25")}}
	svc := newTestSyncService(twoYearFetcher(), layout, store, SyncServiceConfig{})

	result, err := svc.Run(context.Background(), "")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
	require.NotNil(t, result)
	assert.Zero(t, result.Processed)
}
