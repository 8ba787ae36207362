package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/enrollment-kpi/internal/models"
	"github.com/noah-isme/enrollment-kpi/internal/repository"
	"github.com/noah-isme/enrollment-kpi/internal/source"
	appErrors "github.com/noah-isme/enrollment-kpi/pkg/errors"
)

type stubCacheRepo struct {
	mu    sync.Mutex
	store map[string][]byte
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	removed := 0
	for key := range s.store {
		if strings.HasPrefix(key, prefix) {
			delete(s.store, key)
			removed++
		}
	}
	return removed, nil
}

type fakeFetcher struct {
	tables map[string][]source.Record
	errs   map[string]error
	calls  []string
}

func (f *fakeFetcher) FetchAll(_ context.Context, baseID, table string) ([]source.Record, error) {
	key := baseID + "/" + table
	f.calls = append(f.calls, key)
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	return f.tables[key], nil
}

type fakeLayout struct {
	layout models.SourceLayout
	err    error
}

func (f fakeLayout) Sources(context.Context) (models.SourceLayout, error) {
	return f.layout, f.err
}

// fakeStudentStore keeps ledger rows by id, honouring the upsert semantics.
type fakeStudentStore struct {
	rows    map[string]models.StudentRecord
	batches [][]models.StudentRecord
	err     error
}

func (f *fakeStudentStore) UpsertBatch(_ context.Context, records []models.StudentRecord) error {
	if f.err != nil {
		return f.err
	}
	if f.rows == nil {
		f.rows = make(map[string]models.StudentRecord)
	}
	f.batches = append(f.batches, append([]models.StudentRecord(nil), records...))
	for _, r := range records {
		f.rows[r.ID] = r
	}
	return nil
}

func (f *fakeStudentStore) ListByYear(_ context.Context, schoolYear string) ([]models.StudentRecord, error) {
	var out []models.StudentRecord
	for _, r := range f.rows {
		if r.SchoolYear == schoolYear {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeSnapshotStore mirrors the repository contract, including the
// write-once count-day document and the locked-row guard on Save.
type fakeSnapshotStore struct {
	docs    map[string]models.Snapshot
	order   []string
	pruned  int
	saveErr error
}

func (f *fakeSnapshotStore) Save(_ context.Context, s *models.Snapshot) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if existing, ok := f.docs[s.ID]; ok && existing.LockedAt != nil {
		return nil
	}
	f.put(*s)
	return nil
}

func (f *fakeSnapshotStore) CreateCountDay(_ context.Context, s *models.Snapshot) (bool, error) {
	if _, ok := f.docs[s.ID]; ok {
		return false, nil
	}
	f.put(*s)
	return true, nil
}

func (f *fakeSnapshotStore) CountDay(_ context.Context, schoolYear string) (*models.Snapshot, error) {
	s, ok := f.docs[models.CountDaySnapshotID(schoolYear)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (f *fakeSnapshotStore) Latest(_ context.Context, schoolYear string) (*models.Snapshot, error) {
	for i := len(f.order) - 1; i >= 0; i-- {
		if s, ok := f.docs[f.order[i]]; ok && s.SchoolYear == schoolYear {
			return &s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSnapshotStore) DeleteUnlockedExcept(_ context.Context, schoolYear, keepID string) (int64, error) {
	var removed int64
	for id, s := range f.docs {
		if s.SchoolYear == schoolYear && s.LockedAt == nil && id != keepID {
			delete(f.docs, id)
			removed++
		}
	}
	f.pruned += int(removed)
	return removed, nil
}

func (f *fakeSnapshotStore) put(s models.Snapshot) {
	if f.docs == nil {
		f.docs = make(map[string]models.Snapshot)
	}
	f.docs[s.ID] = s
	f.order = append(f.order, s.ID)
}

type fakeTimelineStore struct {
	weeks map[string][]models.EnrollmentWeek
	err   error
}

func (f *fakeTimelineStore) ReplaceYear(_ context.Context, schoolYear string, weeks []models.EnrollmentWeek) error {
	if f.err != nil {
		return f.err
	}
	if f.weeks == nil {
		f.weeks = make(map[string][]models.EnrollmentWeek)
	}
	f.weeks[schoolYear] = weeks
	return nil
}

func (f *fakeTimelineStore) ListByYear(_ context.Context, schoolYear string) ([]models.EnrollmentWeek, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.weeks[schoolYear], nil
}

type fakeSettingsReader struct {
	mu       sync.Mutex
	settings models.AppSettings
	err      error
	calls    int
}

func (f *fakeSettingsReader) Get(context.Context) (models.AppSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.settings, f.err
}

func strPtr(s string) *string { return &s }
