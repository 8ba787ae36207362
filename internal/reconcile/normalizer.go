package reconcile

import (
	"sort"

	"github.com/noah-isme/enrollment-kpi/internal/models"
	"github.com/noah-isme/enrollment-kpi/internal/source"
)

// YearBatch holds the normalized students of one base for one school year.
type YearBatch struct {
	Year         string
	Records      map[string]*models.StudentRecord
	Skipped      int
	Consolidated int
	// DateFallbacks counts kept rows whose secondary or enrollment date did
	// not parse and fell through to a later candidate.
	DateFallbacks int
}

// Keys returns the student keys in sorted order.
func (b *YearBatch) Keys() []string {
	keys := make([]string, 0, len(b.Records))
	for k := range b.Records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NormalizeYear turns raw student rows into ledger records for one year. Rows
// without a first name, last name or parseable birth date are skipped. A nil
// lookup disables secondary enrichment. An unparseable enrollment date is not a
// skip; the row falls through to the next date candidate.
func NormalizeYear(records []source.Record, fields models.StudentFieldMap, year string, lookup TruthLookup) *YearBatch {
	batch := &YearBatch{Year: year, Records: make(map[string]*models.StudentRecord)}

	for _, rec := range records {
		student, dateFallback, ok := normalizeRecord(rec, fields, year, lookup)
		if !ok {
			batch.Skipped++
			continue
		}
		if dateFallback {
			batch.DateFallbacks++
		}
		batch.Records[student.StudentKey] = student
	}

	batch.Consolidated = ConsolidateLeaders(batch.Records)
	return batch
}

func normalizeRecord(rec source.Record, fields models.StudentFieldMap, year string, lookup TruthLookup) (*models.StudentRecord, bool, bool) {
	firstName := rec.FieldValue(fields.FirstName)
	lastName := rec.FieldValue(fields.LastName)
	rawDOB := rec.FieldValue(fields.DOB)
	if firstName == "" || lastName == "" || rawDOB == "" {
		return nil, false, false
	}
	dob, err := FormatDate(rawDOB)
	if err != nil {
		return nil, false, false
	}

	campus := source.MostRecentValue(rec.FieldValue(fields.Campus))
	leader := rec.FieldValue(fields.MCLeader)
	status := source.MostRecentValue(rec.FieldValue(fields.Status))

	truth, _ := lookup.Get(firstName, lastName, year)

	enrolled, dateFallback := firstFormattedDate(truth.Date, rec.FieldValue(fields.EnrollmentDate), rec.CreatedTime)

	if status == "" {
		status = truth.Status
	}

	effectiveCampus := campus
	if truth.Campus != "" {
		effectiveCampus = truth.Campus
	}
	effectiveLeader := leader
	if isMicroCampus(effectiveCampus) && effectiveLeader == "" {
		effectiveLeader = truth.Leader
	}

	key := StudentKey(firstName, lastName, dob)
	student := &models.StudentRecord{
		ID:               DocumentID(year, key),
		StudentKey:       key,
		FirstName:        firstName,
		LastName:         lastName,
		DOB:              dob,
		SchoolYear:       year,
		Campus:           effectiveCampus,
		MCLeader:         effectiveLeader,
		EnrollmentStatus: status,
		EnrolledDate:     enrolled,
	}
	if effectiveCampus != "" {
		student.CampusKey = CampusKey(effectiveCampus, effectiveLeader)
	}
	return student, dateFallback, true
}
