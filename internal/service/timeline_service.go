package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-kpi/internal/models"
	"github.com/noah-isme/enrollment-kpi/internal/reconcile"
	appErrors "github.com/noah-isme/enrollment-kpi/pkg/errors"
)

type timelineRepository interface {
	ReplaceYear(ctx context.Context, schoolYear string, weeks []models.EnrollmentWeek) error
}

// BuildTimeline groups active students by the Sunday-start week of their
// enrolled date and accumulates totals overall and per campus. Dates outside
// the year's starting calendar year are clamped to its first or last day.
// Campuses stay in every later week once seen, with zero new enrollments.
func BuildTimeline(schoolYear string, students []models.StudentRecord) ([]models.EnrollmentWeek, error) {
	startYear, err := reconcile.StartCalendarYear(schoolYear)
	if err != nil {
		return nil, err
	}
	lower := time.Date(startYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	upper := time.Date(startYear, time.December, 31, 0, 0, 0, 0, time.UTC)

	type weekBucket struct {
		total    int
		byCampus map[string]int
	}
	buckets := make(map[string]*weekBucket)
	for _, st := range students {
		if !st.IsActive() || st.EnrolledDate == "" {
			continue
		}
		date, err := reconcile.ParseDate(st.EnrolledDate)
		if err != nil {
			continue
		}
		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
		if date.Before(lower) {
			date = lower
		} else if date.After(upper) {
			date = upper
		}
		week := weekStart(date).Format(reconcile.ISODate)
		b, ok := buckets[week]
		if !ok {
			b = &weekBucket{byCampus: make(map[string]int)}
			buckets[week] = b
		}
		b.total++
		if st.CampusKey != "" {
			b.byCampus[st.CampusKey]++
		}
	}

	starts := make([]string, 0, len(buckets))
	for week := range buckets {
		starts = append(starts, week)
	}
	sort.Strings(starts)

	weeks := make([]models.EnrollmentWeek, 0, len(starts))
	cumulative := 0
	campusTotals := make(map[string]int)
	for i, start := range starts {
		b := buckets[start]
		cumulative += b.total
		for key, n := range b.byCampus {
			campusTotals[key] += n
		}
		byCampus := make(models.WeekCampusMap, len(campusTotals))
		for key, total := range campusTotals {
			byCampus[key] = models.WeekCampusCounts{New: b.byCampus[key], Cumulative: total}
		}
		weeks = append(weeks, models.EnrollmentWeek{
			ID:                   reconcile.WeekDocumentID(schoolYear, start),
			SchoolYear:           schoolYear,
			WeekStart:            start,
			WeekNumber:           i + 1,
			NewEnrollments:       b.total,
			CumulativeEnrollment: cumulative,
			ByCampus:             byCampus,
		})
	}
	return weeks, nil
}

func weekStart(t time.Time) time.Time {
	return t.AddDate(0, 0, -int(t.Weekday()))
}

// TimelineService rebuilds the stored weekly timeline of a school year.
type TimelineService struct {
	students studentYearReader
	repo     timelineRepository
	logger   *zap.Logger
}

// NewTimelineService constructs the service.
func NewTimelineService(students studentYearReader, repo timelineRepository, logger *zap.Logger) *TimelineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimelineService{students: students, repo: repo, logger: logger}
}

// Calculate recomputes and replaces the year's weeks.
func (s *TimelineService) Calculate(ctx context.Context, schoolYear string) ([]models.EnrollmentWeek, error) {
	students, err := s.students.ListByYear(ctx, schoolYear)
	if err != nil {
		return nil, fmt.Errorf("load %s students: %w", schoolYear, err)
	}
	weeks, err := BuildTimeline(schoolYear, students)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school year")
	}
	if err := s.repo.ReplaceYear(ctx, schoolYear, weeks); err != nil {
		return nil, fmt.Errorf("store %s timeline: %w", schoolYear, err)
	}
	s.logger.Info("timeline rebuilt", zap.String("school_year", schoolYear), zap.Int("weeks", len(weeks)))
	return weeks, nil
}
