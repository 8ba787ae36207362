package reconcile

import (
	"sort"
	"strings"

	"github.com/noah-isme/enrollment-kpi/internal/models"
)

// ConsolidateLeaders collapses comma-separated micro-campus leader lists to one
// leader and recomputes the campus key. It returns how many records changed.
func ConsolidateLeaders(records map[string]*models.StudentRecord) int {
	known := make(map[string]struct{})
	for _, r := range records {
		if r.MCLeader != "" && !strings.Contains(r.MCLeader, ",") && isMicroCampus(r.Campus) {
			known[NormalizeString(r.MCLeader)] = struct{}{}
		}
	}

	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	changed := 0
	for _, k := range keys {
		r := records[k]
		if !strings.Contains(r.MCLeader, ",") || !isMicroCampus(r.Campus) {
			continue
		}
		r.MCLeader = ResolveLeader(strings.Split(r.MCLeader, ","), known)
		r.CampusKey = ""
		if r.Campus != "" {
			r.CampusKey = CampusKey(r.Campus, r.MCLeader)
		}
		changed++
	}
	return changed
}

// ResolveLeader picks the first name that is a known single leader, falling back
// to the first non-empty name.
func ResolveLeader(names []string, known map[string]struct{}) string {
	var cleaned []string
	for _, n := range names {
		if trimmed := strings.TrimSpace(n); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return ""
	}
	for _, n := range cleaned {
		if _, ok := known[NormalizeString(n)]; ok {
			return n
		}
	}
	return cleaned[0]
}
