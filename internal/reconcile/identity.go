package reconcile

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeString lowercases and trims.
func NormalizeString(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeName lowercases, trims and collapses internal whitespace.
func NormalizeName(s string) string {
	return whitespaceRun.ReplaceAllString(NormalizeString(s), " ")
}

// StudentKey identifies a student across years. dob must already be ISO formatted.
func StudentKey(firstName, lastName, dob string) string {
	return NormalizeString(firstName) + "|" + NormalizeString(lastName) + "|" + NormalizeString(dob)
}

// CampusKey identifies a campus and, for micro-campuses, its leader.
func CampusKey(campus, leader string) string {
	return NormalizeString(campus) + "|" + NormalizeString(leader)
}

// DocumentID builds a ledger document id. Slashes become dashes so the id is a
// single path segment in every store.
func DocumentID(schoolYear, key string) string {
	return strings.ReplaceAll(schoolYear+"-"+key, "/", "-")
}

// WeekDocumentID builds a timeline document id.
func WeekDocumentID(schoolYear, weekStart string) string {
	return schoolYear + "-" + weekStart
}

func truthLookupKey(normalizedName, year string) string {
	return normalizedName + "|" + year
}

func isMicroCampus(campus string) bool {
	return strings.Contains(strings.ToLower(campus), "micro")
}
