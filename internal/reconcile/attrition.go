package reconcile

import (
	"time"

	"github.com/noah-isme/enrollment-kpi/internal/models"
)

// Attrition is the derived attendance outcome of one student-year.
type Attrition struct {
	AttendedAtLeastOnce bool
	WithdrawalDate      *string
}

// ClassifyAttrition derives attendance and withdrawal flags. entry is the
// secondary record for the student if one exists; hasLookup reports whether any
// secondary data was loaded for the year at all. Students are assumed to have
// attended unless the data says otherwise.
func ClassifyAttrition(status, enrolledDate string, entry *TruthEntry, hasLookup bool, today time.Time) Attrition {
	nonStarter := models.IsNonStarterStatus(status)
	withdrawal := models.IsWithdrawalStatus(status)

	attended := true
	switch {
	case hasLookup && entry != nil:
		possible := entry.PossibleDays()
		present := entry.PresentDays()
		if possible > 0 && present <= 0 {
			attended = false
		} else if possible <= 0 && (nonStarter || withdrawal) {
			attended = false
		}
	case nonStarter:
		attended = false
	}

	out := Attrition{AttendedAtLeastOnce: attended}
	if withdrawal {
		date := enrolledDate
		if date == "" {
			date = today.UTC().Format(ISODate)
		}
		out.WithdrawalDate = &date
	}
	return out
}
