package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// WeekCampusCounts holds one campus's figures for a timeline week.
type WeekCampusCounts struct {
	New        int `json:"new" bson:"new"`
	Cumulative int `json:"cumulative" bson:"cumulative"`
}

// WeekCampusMap is keyed by campus key.
type WeekCampusMap map[string]WeekCampusCounts

// Value stores the map as JSONB.
func (m WeekCampusMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]WeekCampusCounts(m))
}

// Scan decodes the JSONB map.
func (m *WeekCampusMap) Scan(value interface{}) error {
	data, err := jsonBytes(value, "WeekCampusMap")
	if err != nil {
		return err
	}
	out := WeekCampusMap{}
	if data != nil {
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("unmarshal week campus map: %w", err)
		}
	}
	*m = out
	return nil
}

// EnrollmentWeek is one populated week of the cumulative enrollment curve.
type EnrollmentWeek struct {
	ID                   string        `db:"id" json:"id" bson:"_id"`
	SchoolYear           string        `db:"school_year" json:"schoolYear" bson:"schoolYear"`
	WeekStart            string        `db:"week_start" json:"weekStart" bson:"weekStart"`
	WeekNumber           int           `db:"week_number" json:"weekNumber" bson:"weekNumber"`
	NewEnrollments       int           `db:"new_enrollments" json:"newEnrollments" bson:"newEnrollments"`
	CumulativeEnrollment int           `db:"cumulative_enrollment" json:"cumulativeEnrollment" bson:"cumulativeEnrollment"`
	ByCampus             WeekCampusMap `db:"by_campus" json:"byCampus" bson:"byCampus"`
}
