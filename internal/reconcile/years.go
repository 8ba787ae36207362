package reconcile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	yearRangePattern = regexp.MustCompile(`(\d{4})\s*[-–—]\s*(\d{2,4})`)
	canonicalYear    = regexp.MustCompile(`^\d{4}-\d{2}$`)
)

// NormalizeSchoolYear rewrites "2023-2024", "2023 – 24" and similar into "2023-24".
// Inputs without a year range come back lowercased and trimmed.
func NormalizeSchoolYear(raw string) string {
	cleaned := strings.TrimSpace(raw)
	m := yearRangePattern.FindStringSubmatch(cleaned)
	if m == nil {
		return strings.ToLower(cleaned)
	}
	end := m[2]
	if len(end) == 4 {
		end = end[2:]
	}
	return m[1] + "-" + end
}

// IsCanonicalSchoolYear reports whether s has the YYYY-YY shape.
func IsCanonicalSchoolYear(s string) bool {
	return canonicalYear.MatchString(s)
}

// ExtractSchoolYears returns every canonical year found in a comma-separated field,
// deduplicated in first-seen order.
func ExtractSchoolYears(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var years []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		year := NormalizeSchoolYear(part)
		if !canonicalYear.MatchString(year) {
			continue
		}
		if _, dup := seen[year]; dup {
			continue
		}
		seen[year] = struct{}{}
		years = append(years, year)
	}
	return years
}

// PriorSchoolYear returns the label one year earlier, e.g. "2024-25" -> "2023-24".
func PriorSchoolYear(year string) (string, error) {
	start, end, err := splitSchoolYear(year)
	if err != nil {
		return "", err
	}
	endWidth := len(strings.TrimSpace(strings.SplitN(year, "-", 2)[1]))
	prevEnd := end - 1
	if prevEnd < 0 {
		prevEnd += 100
	}
	return fmt.Sprintf("%d-%0*d", start-1, endWidth, prevEnd), nil
}

// StartCalendarYear returns the calendar year a school year begins in. Two-digit
// starts are read as 20xx.
func StartCalendarYear(year string) (int, error) {
	start, _, err := splitSchoolYear(year)
	if err != nil {
		return 0, err
	}
	if start < 100 {
		start += 2000
	}
	return start, nil
}

func splitSchoolYear(year string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(year), "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid school year %q", year)
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid school year %q: %w", year, err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid school year %q: %w", year, err)
	}
	return start, end, nil
}
