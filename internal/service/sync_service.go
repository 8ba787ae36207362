package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-kpi/internal/models"
	"github.com/noah-isme/enrollment-kpi/internal/reconcile"
	"github.com/noah-isme/enrollment-kpi/internal/source"
	appErrors "github.com/noah-isme/enrollment-kpi/pkg/errors"
	"github.com/noah-isme/enrollment-kpi/pkg/logger"
)

type tableFetcher interface {
	FetchAll(ctx context.Context, baseID, table string) ([]source.Record, error)
}

type sourceLayoutProvider interface {
	Sources(ctx context.Context) (models.SourceLayout, error)
}

type studentBatchWriter interface {
	UpsertBatch(ctx context.Context, records []models.StudentRecord) error
}

// SyncServiceConfig tunes the reconciliation run.
type SyncServiceConfig struct {
	BatchSize        int
	YearlessFallback bool
	OnlyBases        []string
}

// SyncService pulls every configured base, reconciles the students into the
// ledger and writes it in batches.
type SyncService struct {
	source   tableFetcher
	layout   sourceLayoutProvider
	students studentBatchWriter
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
	cfg      SyncServiceConfig
}

// SyncServiceParams groups constructor dependencies.
type SyncServiceParams struct {
	Source   tableFetcher
	Layout   sourceLayoutProvider
	Students studentBatchWriter
	Metrics  *MetricsService
	Logger   *zap.Logger
	Config   SyncServiceConfig
}

// NewSyncService constructs the service.
func NewSyncService(p SyncServiceParams) *SyncService {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := p.Config
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 499
	}
	return &SyncService{
		source:   p.Source,
		layout:   p.Layout,
		students: p.Students,
		metrics:  p.Metrics,
		logger:   logger,
		now:      time.Now,
		cfg:      cfg,
	}
}

type fetchedBase struct {
	base    models.SourceBase
	records []source.Record
}

// Run reconciles every configured year, or only targetYear when it is set. The
// prior year of a target is loaded for linking but not written. Fetch failures
// are collected in the result; only invalid input and persistence failures
// return an error.
func (s *SyncService) Run(ctx context.Context, targetYear string) (*models.SyncResult, error) {
	result := &models.SyncResult{RunID: uuid.NewString(), Errors: []string{}}
	log := logger.ForRun(s.logger, result.RunID, targetYear)

	var priorYear string
	if targetYear != "" {
		if !reconcile.IsCanonicalSchoolYear(targetYear) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("school year %q must look like 2024-25", targetYear))
		}
		priorYear, _ = reconcile.PriorSchoolYear(targetYear)
	}

	layout, err := s.layout.Sources(ctx)
	if err != nil {
		s.metrics.RecordSyncRun(SyncOutcomeFailed, 0, 0)
		return nil, err
	}
	bases := s.selectBases(layout.Bases)
	log.Info("sync started", zap.Int("bases", len(bases)))

	ledger := reconcile.NewLedger()
	truth := make(reconcile.TruthLookup)
	var fetched []fetchedBase

	for _, base := range bases {
		baseLog := log.With(zap.String("base", baseLabel(base)))

		records, err := s.fetch(ctx, base, base.Students.Table)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to fetch from %s: %v", baseLabel(base), err))
			baseLog.Error("student fetch failed", zap.Error(err))
			continue
		}

		var lookup reconcile.TruthLookup
		if base.Truth != nil {
			truthRecords, err := s.fetch(ctx, base, base.Truth.Table)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Failed to fetch from %s: %v", baseLabel(base), err))
				baseLog.Error("secondary fetch failed", zap.Error(err))
				continue
			}
			var stats reconcile.TruthStats
			lookup, stats = reconcile.BuildTruthLookup(truthRecords, base.Truth.Fields)
			truth.Merge(lookup)
			baseLog.Info("secondary lookup built",
				zap.Int("records", stats.Records),
				zap.Int("entries", len(lookup)),
				zap.Int("skipped_sandbox", stats.SkippedSandbox),
				zap.Int("skipped_no_year", stats.SkippedNoYear),
				zap.Int("skipped_no_date", stats.SkippedNoDate),
			)
		}
		fetched = append(fetched, fetchedBase{base: base, records: records})

		byYear, unmatched := groupByYear(records, base.Students.Fields.SchoolYear)
		if unmatched > 0 {
			baseLog.Info("records without a school year", zap.Int("records", unmatched))
		}

		for _, year := range base.SchoolYears {
			if targetYear != "" && year != targetYear && year != priorYear {
				continue
			}
			yearRecords := byYear[year]
			if len(yearRecords) == 0 {
				if len(base.SchoolYears) == 1 && len(byYear) == 0 {
					baseLog.Info("single-year base without year data, assigning every record",
						zap.String("school_year", year), zap.Int("records", len(records)))
					yearRecords = records
				} else {
					baseLog.Info("no records matched year", zap.String("school_year", year))
					continue
				}
			}
			batch := reconcile.NormalizeYear(yearRecords, base.Students.Fields, year, lookup)
			ledger.Merge(batch)
			result.Skipped += batch.Skipped
			baseLog.Info("year normalized",
				zap.String("school_year", year),
				zap.Int("records", len(batch.Records)),
				zap.Int("skipped", batch.Skipped),
				zap.Int("leaders_consolidated", batch.Consolidated),
				zap.Int("date_fallbacks", batch.DateFallbacks),
			)
		}
	}

	if ledger.Len() == 0 && len(fetched) > 0 {
		if s.cfg.YearlessFallback {
			s.applyYearlessFallback(ledger, fetched, targetYear, result, log)
		} else {
			msg := "no students matched any school year and the yearless fallback is disabled"
			result.Warnings = append(result.Warnings, msg)
			log.Warn(msg)
		}
	}

	lookupOnly := map[string]struct{}{}
	if priorYear != "" {
		lookupOnly[priorYear] = struct{}{}
	}
	linked := reconcile.Link(ledger, reconcile.LinkOptions{
		LookupOnly: lookupOnly,
		Truth:      truth.ByYear(),
		Now:        s.now(),
		OnInvalidYear: func(year string, err error) {
			log.Warn("cannot derive prior year", zap.String("school_year", year), zap.Error(err))
		},
	})
	result.Years = writtenYears(ledger.Years(), lookupOnly)

	if err := s.write(ctx, linked, log); err != nil {
		s.metrics.RecordSyncRun(SyncOutcomeFailed, result.Processed, result.Skipped)
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write ledger")
	}
	result.Processed = len(linked)

	outcome := SyncOutcomeSuccess
	if len(result.Errors) > 0 {
		outcome = SyncOutcomePartial
	}
	s.metrics.RecordSyncRun(outcome, result.Processed, result.Skipped)
	log.Info("sync complete",
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
		zap.Bool("fallback_used", result.FallbackUsed),
	)
	return result, nil
}

func (s *SyncService) applyYearlessFallback(ledger *reconcile.Ledger, fetched []fetchedBase, targetYear string, result *models.SyncResult, log *zap.Logger) {
	msg := "no students matched any school year; assigned every record of each base to all of its configured years"
	result.FallbackUsed = true
	result.Warnings = append(result.Warnings, msg)
	s.metrics.RecordFallback()
	log.Warn(msg)

	for _, fb := range fetched {
		for _, year := range fb.base.SchoolYears {
			if targetYear != "" && year != targetYear {
				continue
			}
			batch := reconcile.NormalizeYear(fb.records, fb.base.Students.Fields, year, nil)
			ledger.Merge(batch)
			result.Skipped += batch.Skipped
			log.Warn("fallback assignment",
				zap.String("base", baseLabel(fb.base)),
				zap.String("school_year", year),
				zap.Int("records", len(batch.Records)),
				zap.Int("date_fallbacks", batch.DateFallbacks),
			)
		}
	}
}

func (s *SyncService) fetch(ctx context.Context, base models.SourceBase, table string) ([]source.Record, error) {
	start := time.Now()
	records, err := s.source.FetchAll(ctx, base.BaseID, table)
	s.metrics.RecordFetch(base.BaseID, table, time.Since(start), err)
	return records, err
}

func (s *SyncService) write(ctx context.Context, records []models.StudentRecord, log *zap.Logger) error {
	for start := 0; start < len(records); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(records) {
			end = len(records)
		}
		began := time.Now()
		if err := s.students.UpsertBatch(ctx, records[start:end]); err != nil {
			return fmt.Errorf("batch %d: %w", start/s.cfg.BatchSize+1, err)
		}
		s.metrics.ObserveBatchCommit(time.Since(began))
		log.Debug("batch committed", zap.Int("batch", start/s.cfg.BatchSize+1), zap.Int("records", end-start))
	}
	return nil
}

func (s *SyncService) selectBases(bases []models.SourceBase) []models.SourceBase {
	if len(s.cfg.OnlyBases) == 0 {
		return bases
	}
	allowed := make(map[string]struct{}, len(s.cfg.OnlyBases))
	for _, id := range s.cfg.OnlyBases {
		allowed[id] = struct{}{}
	}
	var out []models.SourceBase
	for _, b := range bases {
		if _, ok := allowed[b.BaseID]; ok {
			out = append(out, b)
		}
	}
	return out
}

func groupByYear(records []source.Record, yearField string) (map[string][]source.Record, int) {
	byYear := make(map[string][]source.Record)
	unmatched := 0
	for _, rec := range records {
		years := reconcile.ExtractSchoolYears(rec.FieldValue(yearField))
		if len(years) == 0 {
			unmatched++
			continue
		}
		for _, y := range years {
			byYear[y] = append(byYear[y], rec)
		}
	}
	return byYear, unmatched
}

func writtenYears(years []string, skip map[string]struct{}) []string {
	out := make([]string, 0, len(years))
	for _, y := range years {
		if _, ok := skip[y]; !ok {
			out = append(out, y)
		}
	}
	return out
}

func baseLabel(b models.SourceBase) string {
	if b.Label != "" {
		return b.Label
	}
	return b.BaseID
}
