package source

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is one row of a source table.
type Record struct {
	ID          string                 `json:"id"`
	CreatedTime string                 `json:"createdTime"`
	Fields      map[string]interface{} `json:"fields"`
}

// FieldValue returns the display string of a field through FirstValue. Missing
// fields and an empty field name yield "".
func (r Record) FieldValue(field string) string {
	if field == "" || r.Fields == nil {
		return ""
	}
	return FirstValue(r.Fields[field])
}

// NumberValue parses a numeric field; anything non-numeric reads as zero.
func (r Record) NumberValue(field string) float64 {
	raw := strings.TrimSpace(r.FieldValue(field))
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0
	}
	return n
}

// FirstValue is the generic lookup policy for a cell: null reads as "", a
// linked-record array resolves to its first element, scalars are stringified.
func FirstValue(raw interface{}) string {
	if arr, ok := raw.([]interface{}); ok {
		if len(arr) == 0 {
			return ""
		}
		raw = arr[0]
	}
	if raw == nil {
		return ""
	}
	return stringify(raw)
}

// MostRecentValue picks the last entry of a comma-joined multi-value string. Linked
// fields list history oldest first, so the last entry is the current one.
func MostRecentValue(raw string) string {
	if !strings.Contains(raw, ",") {
		return strings.TrimSpace(raw)
	}
	parts := strings.Split(raw, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(parts[i]); trimmed != "" {
			return trimmed
		}
	}
	return strings.TrimSpace(raw)
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
