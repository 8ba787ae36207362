package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyAttrition(t *testing.T) {
	today := time.Date(2024, 10, 3, 15, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		status    string
		entry     *TruthEntry
		hasLookup bool
		attended  bool
	}{
		{name: "scheduled but never present", status: "Enrolled", entry: &TruthEntry{S1Possible: 20}, hasLookup: true, attended: false},
		{name: "negative present counts as absent", status: "Enrolled", entry: &TruthEntry{S1Possible: 20, S1Present: -1}, hasLookup: true, attended: false},
		{name: "present at least once", status: "Enrolled", entry: &TruthEntry{S1Possible: 20, S2Present: 1}, hasLookup: true, attended: true},
		{name: "nothing scheduled and withdrawn", status: "Withdrawn", entry: &TruthEntry{}, hasLookup: true, attended: false},
		{name: "nothing scheduled and enrolled", status: "Enrolled", entry: &TruthEntry{}, hasLookup: true, attended: true},
		{name: "no entry withdrawn", status: "Withdrawn", hasLookup: true, attended: true},
		{name: "no entry non-starter", status: "No Show", hasLookup: true, attended: false},
		{name: "no lookup non-starter", status: "Never Attended", attended: false},
		{name: "no lookup enrolled", status: "Enrolled", attended: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyAttrition(tc.status, "", tc.entry, tc.hasLookup, today)
			assert.Equal(t, tc.attended, got.AttendedAtLeastOnce)
		})
	}
}

func TestClassifyAttritionWithdrawalDate(t *testing.T) {
	today := time.Date(2024, 10, 3, 15, 0, 0, 0, time.UTC)

	got := ClassifyAttrition("Withdrawn", "2024-08-20", nil, false, today)
	require.NotNil(t, got.WithdrawalDate)
	assert.Equal(t, "2024-08-20", *got.WithdrawalDate)

	got = ClassifyAttrition("dropped", "", nil, false, today)
	require.NotNil(t, got.WithdrawalDate)
	assert.Equal(t, "2024-10-03", *got.WithdrawalDate)

	got = ClassifyAttrition("Enrolled", "2024-08-20", nil, false, today)
	assert.Nil(t, got.WithdrawalDate)
}
