package reconcile

import (
	"time"

	"github.com/noah-isme/enrollment-kpi/internal/models"
)

// LinkOptions controls how the ledger is turned into persisted records.
type LinkOptions struct {
	// LookupOnly lists years loaded solely so the next year can see returning
	// students. Their records are not emitted.
	LookupOnly map[string]struct{}
	// Truth holds the merged secondary lookup per year.
	Truth         map[string]TruthLookup
	Now           time.Time
	OnInvalidYear func(year string, err error)
}

// activity records the years in which each student and campus key was active.
type activity struct {
	students map[string]map[string]struct{}
	campuses map[string]map[string]struct{}
}

func buildActivity(l *Ledger) activity {
	a := activity{
		students: make(map[string]map[string]struct{}),
		campuses: make(map[string]map[string]struct{}),
	}
	mark := func(m map[string]map[string]struct{}, key, year string) {
		set, ok := m[key]
		if !ok {
			set = make(map[string]struct{})
			m[key] = set
		}
		set[year] = struct{}{}
	}
	for year, bucket := range l.years {
		for key, r := range bucket {
			if !r.IsActive() {
				continue
			}
			mark(a.students, key, year)
			if r.CampusKey != "" {
				mark(a.campuses, r.CampusKey, year)
			}
		}
	}
	return a
}

func (a activity) active(m map[string]map[string]struct{}, key, year string) bool {
	_, ok := m[key][year]
	return ok
}

// Link sets the cross-year and attrition flags on every ledger record and
// returns the records to persist, ordered by year then student key. A student
// is returning when they held an active status in the prior year; the same rule
// applies to campus keys.
func Link(l *Ledger, opts LinkOptions) []models.StudentRecord {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	act := buildActivity(l)

	var out []models.StudentRecord
	for _, year := range l.Years() {
		if _, skip := opts.LookupOnly[year]; skip {
			continue
		}
		prior, err := PriorSchoolYear(year)
		if err != nil && opts.OnInvalidYear != nil {
			opts.OnInvalidYear(year, err)
		}
		lookup, hasLookup := opts.Truth[year]
		hasLookup = hasLookup && len(lookup) > 0

		for _, r := range l.Year(year) {
			rec := *r
			rec.IsReturningStudent = prior != "" && act.active(act.students, rec.StudentKey, prior)
			rec.IsReturningCampus = prior != "" && rec.CampusKey != "" && act.active(act.campuses, rec.CampusKey, prior)

			var entry *TruthEntry
			if hasLookup {
				if e, ok := lookup.Get(rec.FirstName, rec.LastName, year); ok {
					entry = &e
				}
			}
			attr := ClassifyAttrition(rec.EnrollmentStatus, rec.EnrolledDate, entry, hasLookup, now)
			rec.AttendedAtLeastOnce = attr.AttendedAtLeastOnce
			rec.WithdrawalDate = attr.WithdrawalDate
			rec.SyncedAt = now.UTC()
			out = append(out, rec)
		}
	}
	return out
}
