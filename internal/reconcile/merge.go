package reconcile

import (
	"sort"

	"github.com/noah-isme/enrollment-kpi/internal/models"
)

// Ledger accumulates normalized students per school year across bases.
type Ledger struct {
	years map[string]map[string]*models.StudentRecord
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{years: make(map[string]map[string]*models.StudentRecord)}
}

// Merge folds a batch into the ledger. When two bases produce the same student
// in the same year the later batch wins field by field; empty fields never
// overwrite populated ones.
func (l *Ledger) Merge(batch *YearBatch) {
	if batch == nil {
		return
	}
	existing, ok := l.years[batch.Year]
	if !ok {
		existing = make(map[string]*models.StudentRecord, len(batch.Records))
		l.years[batch.Year] = existing
	}
	for key, incoming := range batch.Records {
		current, found := existing[key]
		if !found {
			copied := *incoming
			existing[key] = &copied
			continue
		}
		mergeRecord(current, incoming)
	}
}

// Years returns the school years present, sorted.
func (l *Ledger) Years() []string {
	years := make([]string, 0, len(l.years))
	for y := range l.years {
		years = append(years, y)
	}
	sort.Strings(years)
	return years
}

// Year returns the records of one year sorted by student key.
func (l *Ledger) Year(year string) []*models.StudentRecord {
	bucket := l.years[year]
	keys := make([]string, 0, len(bucket))
	for k := range bucket {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*models.StudentRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, bucket[k])
	}
	return out
}

// Len returns the number of records across all years.
func (l *Ledger) Len() int {
	n := 0
	for _, bucket := range l.years {
		n += len(bucket)
	}
	return n
}

func mergeRecord(dst, src *models.StudentRecord) {
	overwrite := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	overwrite(&dst.FirstName, src.FirstName)
	overwrite(&dst.LastName, src.LastName)
	overwrite(&dst.EnrollmentStatus, src.EnrollmentStatus)
	overwrite(&dst.EnrolledDate, src.EnrolledDate)
	// Campus, leader and key move as one unit.
	if src.Campus != "" {
		dst.Campus = src.Campus
		dst.MCLeader = src.MCLeader
		dst.CampusKey = CampusKey(src.Campus, src.MCLeader)
	}
}
