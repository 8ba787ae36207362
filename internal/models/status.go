package models

import "strings"

// Active enrollment statuses. Matching is exact after trimming.
const (
	StatusEnrolled           = "Enrolled"
	StatusPendingEnrolled    = "Pending Enrolled"
	StatusReEnrolled         = "Re-enrolled"
	StatusEnrolledAfterCount = "Enrolled After Count Day (no funding)"
	StatusWaitlist           = "Waitlist"
)

var activeStatuses = map[string]struct{}{
	StatusEnrolled:           {},
	StatusPendingEnrolled:    {},
	StatusReEnrolled:         {},
	StatusEnrolledAfterCount: {},
	StatusWaitlist:           {},
}

// Non-starter and withdrawal vocabularies are disjoint and matched case-insensitively.
var (
	nonStarterStatuses = []string{
		"non-starter",
		"non starter",
		"no show",
		"never attended",
		"did not start",
		"enrolled - never attended",
	}
	withdrawalStatuses = []string{
		"withdrawn",
		"withdrew",
		"withdrawal",
		"withdrawn - mid year",
		"dropped",
		"unenrolled",
	}
)

// ActiveStatuses returns the allow-list in a stable order.
func ActiveStatuses() []string {
	return []string{StatusEnrolled, StatusPendingEnrolled, StatusReEnrolled, StatusEnrolledAfterCount, StatusWaitlist}
}

// IsActiveStatus reports membership in the active allow-list.
func IsActiveStatus(status string) bool {
	_, ok := activeStatuses[strings.TrimSpace(status)]
	return ok
}

// IsNonStarterStatus reports whether the status text marks a student who never started.
func IsNonStarterStatus(status string) bool {
	return inVocabulary(nonStarterStatuses, status)
}

// IsWithdrawalStatus reports whether the status text marks a withdrawal.
func IsWithdrawalStatus(status string) bool {
	return inVocabulary(withdrawalStatuses, status)
}

func inVocabulary(vocab []string, status string) bool {
	normalized := strings.ToLower(strings.TrimSpace(status))
	if normalized == "" {
		return false
	}
	for _, term := range vocab {
		if normalized == term {
			return true
		}
	}
	return false
}
