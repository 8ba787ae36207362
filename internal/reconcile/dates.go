package reconcile

import (
	"fmt"
	"strings"
	"time"
)

// ISODate is the layout of every date stored in the ledger.
const ISODate = "2006-01-02"

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	ISODate,
	"1/2/2006 3:04pm",
	"1/2/2006 15:04",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseDate accepts the date shapes the source API produces with string cell format.
func ParseDate(raw string) (time.Time, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

// FormatDate normalises a raw date to YYYY-MM-DD.
func FormatDate(raw string) (string, error) {
	t, err := ParseDate(raw)
	if err != nil {
		return "", err
	}
	return t.Format(ISODate), nil
}

// firstFormattedDate returns the first candidate that parses. rejected is true
// when a non-empty candidate was passed over because it did not parse.
func firstFormattedDate(candidates ...string) (date string, rejected bool) {
	for _, c := range candidates {
		if strings.TrimSpace(c) == "" {
			continue
		}
		if formatted, err := FormatDate(c); err == nil {
			return formatted, rejected
		}
		rejected = true
	}
	return "", rejected
}
