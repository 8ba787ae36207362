package reconcile

import (
	"strings"

	"github.com/noah-isme/enrollment-kpi/internal/models"
	"github.com/noah-isme/enrollment-kpi/internal/source"
)

// TruthEntry is the per-year view of one secondary enrollment record.
type TruthEntry struct {
	Date       string
	Status     string
	Leader     string
	Campus     string
	S1Present  float64
	S2Present  float64
	S1Possible float64
	S2Possible float64
}

// PresentDays is the combined present-day rollup.
func (e TruthEntry) PresentDays() float64 { return e.S1Present + e.S2Present }

// PossibleDays is the combined possible-day rollup.
func (e TruthEntry) PossibleDays() float64 { return e.S1Possible + e.S2Possible }

// TruthLookup maps "normalized first last|year" to the secondary entry.
type TruthLookup map[string]TruthEntry

// Get finds the entry for a student name in a year.
func (l TruthLookup) Get(firstName, lastName, year string) (TruthEntry, bool) {
	if len(l) == 0 {
		return TruthEntry{}, false
	}
	entry, ok := l[truthLookupKey(NormalizeName(firstName+" "+lastName), year)]
	return entry, ok
}

// Merge copies other's entries into l, overwriting duplicates.
func (l TruthLookup) Merge(other TruthLookup) {
	for k, v := range other {
		l[k] = v
	}
}

// TruthStats tallies what BuildTruthLookup dropped.
type TruthStats struct {
	Records        int
	SkippedSandbox int
	SkippedNoYear  int
	SkippedNoDate  int
}

// BuildTruthLookup indexes secondary enrollment records by student name and year.
// Records owned by sandbox or training staff are ignored.
func BuildTruthLookup(records []source.Record, fields models.TruthFieldMap) (TruthLookup, TruthStats) {
	lookup := make(TruthLookup)
	stats := TruthStats{Records: len(records)}

	for _, rec := range records {
		leader := rec.FieldValue(fields.MCLeader)
		if isSandboxLeader(leader) {
			stats.SkippedSandbox++
			continue
		}

		rawName := rec.FieldValue(fields.StudentLink)
		rawYear := rec.FieldValue(fields.SchoolYear)
		if rawName == "" || rawYear == "" {
			stats.SkippedNoYear++
			continue
		}

		dateEnrolled := rec.FieldValue(fields.DateEnrolled)
		created := rec.FieldValue(fields.Created)
		status := rec.FieldValue(fields.EnrollmentStatus)
		base := TruthEntry{
			Status:     status,
			Leader:     leader,
			Campus:     rec.FieldValue(fields.Campus),
			S1Present:  rec.NumberValue(fields.S1Present),
			S2Present:  rec.NumberValue(fields.S2Present),
			S1Possible: rec.NumberValue(fields.S1Possible),
			S2Possible: rec.NumberValue(fields.S2Possible),
		}

		name := truthDisplayName(rawName)
		for _, year := range ExtractSchoolYears(rawYear) {
			date := dateEnrolled
			if date == "" {
				date = created
			}
			if date == "" {
				date = rec.CreatedTime
			}
			if date == "" {
				stats.SkippedNoDate++
				continue
			}
			entry := base
			entry.Date = date
			lookup[truthLookupKey(name, year)] = entry
		}
	}

	return lookup, stats
}

// truthDisplayName turns a linked "Last, First" value into a normalized "first last".
func truthDisplayName(raw string) string {
	cleaned := strings.TrimSpace(strings.Trim(raw, `"`))
	parts := strings.Split(cleaned, ",")
	if len(parts) >= 2 {
		return NormalizeName(strings.TrimSpace(parts[1]) + " " + strings.TrimSpace(parts[0]))
	}
	return NormalizeName(cleaned)
}

func isSandboxLeader(leader string) bool {
	lower := strings.ToLower(leader)
	return strings.Contains(lower, "sandbox") || strings.Contains(lower, "training")
}

// ByYear splits the lookup into one lookup per school year. Keys are unchanged.
func (l TruthLookup) ByYear() map[string]TruthLookup {
	out := make(map[string]TruthLookup)
	for k, v := range l {
		idx := strings.LastIndex(k, "|")
		if idx < 0 {
			continue
		}
		year := k[idx+1:]
		bucket, ok := out[year]
		if !ok {
			bucket = make(TruthLookup)
			out[year] = bucket
		}
		bucket[k] = v
	}
	return out
}
