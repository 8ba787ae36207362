package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-kpi/internal/models"
)

func ledgerRow(year, key, status, campus, leader string) models.StudentRecord {
	r := models.StudentRecord{
		ID:                  year + "-" + key,
		StudentKey:          key,
		FirstName:           key,
		SchoolYear:          year,
		Campus:              campus,
		MCLeader:            leader,
		EnrollmentStatus:    status,
		AttendedAtLeastOnce: true,
	}
	if campus != "" {
		r.CampusKey = campus + "|" + leader
	}
	return r
}

func TestBuildSnapshotMetrics(t *testing.T) {
	graduate := ledgerRow("2023-24", "b", "Enrolled", "north", "kim")
	graduate.IsGraduate = true
	prior := []models.StudentRecord{
		ledgerRow("2023-24", "a", "Enrolled", "north", "kim"),
		graduate,
		ledgerRow("2023-24", "c", "Withdrawn", "north", "kim"),
		ledgerRow("2023-24", "d", "Enrolled", "south", "lee"),
	}

	returning := ledgerRow("2024-25", "a", "Enrolled", "north", "kim")
	returning.IsReturningStudent = true
	returning.IsReturningCampus = true
	formerGraduate := ledgerRow("2024-25", "b", "Enrolled", "north", "kim")
	formerGraduate.IsReturningStudent = true
	formerGraduate.IsReturningCampus = true
	nonStarter := ledgerRow("2024-25", "f", "Non-Starter", "north", "kim")
	nonStarter.AttendedAtLeastOnce = false
	withdrawn := ledgerRow("2024-25", "g", "Enrolled", "east", "roe")
	withdrawn.WithdrawalDate = strPtr("2024-12-01")
	transfer := ledgerRow("2024-25", "h", "Enrolled", "east", "roe")
	transfer.IsVerifiedTransfer = true
	transfer.AttendedAtLeastOnce = false

	students := []models.StudentRecord{
		returning,
		formerGraduate,
		ledgerRow("2024-25", "e", "Enrolled", "east", "roe"),
		nonStarter,
		withdrawn,
		transfer,
	}

	metrics, byCampus := BuildSnapshot(students, prior)

	assert.Equal(t, models.SnapshotMetrics{
		TotalEnrollment:              5,
		ReturningStudents:            1,
		NewStudentsReturningCampuses: 1,
		EligiblePriorYear:            2,
		RetentionRate:                50,
		NonStarters:                  1,
		MidYearWithdrawals:           1,
		VerifiedTransfers:            1,
		AttritionTotal:               2,
		InternalGrowth:               1,
		NewCampusGrowth:              3,
		TotalNewGrowth:               4,
		NetGrowth:                    3,
	}, metrics)

	require.Len(t, byCampus, 3)
	north := byCampus["north|kim"]
	assert.Equal(t, "north", north.CampusName)
	assert.Equal(t, 2, north.TotalEnrollment)
	assert.Equal(t, 1, north.ReturningStudents)
	assert.Equal(t, 1, north.NewStudents)
	assert.Equal(t, 1, north.NonStarters)
	assert.Equal(t, 100, north.RetentionRate)
	assert.InDelta(t, 66.7, north.AttendanceRate, 0.001)

	east := byCampus["east|roe"]
	assert.Equal(t, 3, east.TotalEnrollment)
	assert.Equal(t, 3, east.NewStudents)
	assert.Equal(t, 1, east.MidYearWithdrawals)
	assert.Zero(t, east.RetentionRate)

	assert.Equal(t, models.CampusMetrics{CampusName: "south", MCLeader: "lee"}, byCampus["south|lee"])
}

func TestBuildSnapshotRetentionIsBounded(t *testing.T) {
	prior := []models.StudentRecord{
		ledgerRow("2023-24", "a", "Enrolled", "south", "lee"),
		ledgerRow("2023-24", "b", "Enrolled", "south", "lee"),
		ledgerRow("2023-24", "x", "Enrolled", "north", "kim"),
	}
	var students []models.StudentRecord
	for _, key := range []string{"a", "b"} {
		r := ledgerRow("2024-25", key, "Enrolled", "north", "kim")
		r.IsReturningStudent = true
		students = append(students, r)
	}

	metrics, byCampus := BuildSnapshot(students, prior)

	assert.Equal(t, 67, metrics.RetentionRate)
	assert.Equal(t, 100, byCampus["north|kim"].RetentionRate)
	assert.Zero(t, byCampus["south|lee"].RetentionRate)
	for _, c := range byCampus {
		assert.GreaterOrEqual(t, c.RetentionRate, 0)
		assert.LessOrEqual(t, c.RetentionRate, 100)
	}
}

func TestRetentionRate(t *testing.T) {
	cases := []struct {
		returning, eligible, want int
	}{
		{1, 2, 50},
		{1, 3, 33},
		{2, 3, 67},
		{0, 0, 0},
		{3, 0, 0},
		{5, 4, 100},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, retentionRate(tc.returning, tc.eligible), "%d/%d", tc.returning, tc.eligible)
	}
}

func newTestSnapshotService(students *fakeStudentStore, snapshots *fakeSnapshotStore, now *time.Time) *SnapshotService {
	svc := NewSnapshotService(SnapshotServiceParams{
		Students:  students,
		Snapshots: snapshots,
		Logger:    zap.NewNop(),
	})
	svc.now = func() time.Time { return *now }
	return svc
}

func seedStudents(t *testing.T, store *fakeStudentStore, rows ...models.StudentRecord) {
	t.Helper()
	require.NoError(t, store.UpsertBatch(context.Background(), rows))
}

func TestSnapshotServiceCountDayLock(t *testing.T) {
	ctx := context.Background()
	settings := models.AppSettings{CountDayDate: "10-01", CurrentSchoolYear: "2024-25"}
	students := &fakeStudentStore{}
	seedStudents(t, students,
		ledgerRow("2024-25", "a", "Enrolled", "north", "kim"),
		ledgerRow("2024-25", "b", "Enrolled", "north", "kim"),
	)
	snapshots := &fakeSnapshotStore{}
	now := time.Date(2024, 10, 5, 9, 30, 0, 0, time.UTC)
	svc := newTestSnapshotService(students, snapshots, &now)

	first, err := svc.Calculate(ctx, "2024-25", settings)
	require.NoError(t, err)
	assert.Equal(t, "2024-25-countday", first.ID)
	assert.True(t, first.IsCountDay)
	require.NotNil(t, first.LockedAt)
	assert.Equal(t, "2024-10-05", first.SnapshotDate)

	now = now.Add(time.Hour)
	second, err := svc.Calculate(ctx, "2024-25", settings)
	require.NoError(t, err)
	assert.Equal(t, "2024-25-2024-10-05-103000", second.ID)
	assert.False(t, second.IsCountDay)
	assert.Nil(t, second.LockedAt)

	seedStudents(t, students, ledgerRow("2024-25", "c", "Enrolled", "north", "kim"))
	now = now.Add(time.Hour)
	third, err := svc.Calculate(ctx, "2024-25", settings)
	require.NoError(t, err)
	assert.Equal(t, 3, third.Metrics.TotalEnrollment)

	locked, err := snapshots.CountDay(ctx, "2024-25")
	require.NoError(t, err)
	assert.Equal(t, 2, locked.Metrics.TotalEnrollment)
	assert.Equal(t, first.LockedAt, locked.LockedAt)

	latest, err := snapshots.Latest(ctx, "2024-25")
	require.NoError(t, err)
	assert.Equal(t, third.ID, latest.ID)
	assert.Len(t, snapshots.docs, 2)
	assert.Equal(t, 1, snapshots.pruned)
}

func TestSnapshotServiceDoesNotLockBeforeCountDayOrForPastYears(t *testing.T) {
	ctx := context.Background()
	settings := models.AppSettings{CountDayDate: "10-01", CurrentSchoolYear: "2024-25"}
	students := &fakeStudentStore{}
	seedStudents(t, students, ledgerRow("2024-25", "a", "Enrolled", "north", "kim"))
	snapshots := &fakeSnapshotStore{}
	now := time.Date(2024, 9, 30, 23, 59, 0, 0, time.UTC)
	svc := newTestSnapshotService(students, snapshots, &now)

	before, err := svc.Calculate(ctx, "2024-25", settings)
	require.NoError(t, err)
	assert.False(t, before.IsCountDay)
	assert.Equal(t, "2024-25-2024-09-30-235900", before.ID)

	now = time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	past, err := svc.Calculate(ctx, "2023-24", settings)
	require.NoError(t, err)
	assert.False(t, past.IsCountDay)
	assert.Nil(t, past.LockedAt)

	_, err = snapshots.CountDay(ctx, "2024-25")
	assert.Error(t, err)
}
