package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// CampusMetrics are the per-campus KPIs inside a snapshot.
type CampusMetrics struct {
	CampusName         string  `json:"campusName" bson:"campusName"`
	MCLeader           string  `json:"mcLeader" bson:"mcLeader"`
	TotalEnrollment    int     `json:"totalEnrollment" bson:"totalEnrollment"`
	ReturningStudents  int     `json:"returningStudents" bson:"returningStudents"`
	NewStudents        int     `json:"newStudents" bson:"newStudents"`
	RetentionRate      int     `json:"retentionRate" bson:"retentionRate"`
	NonStarters        int     `json:"nonStarters" bson:"nonStarters"`
	MidYearWithdrawals int     `json:"midYearWithdrawals" bson:"midYearWithdrawals"`
	AttendanceRate     float64 `json:"attendanceRate" bson:"attendanceRate"`
}

// SnapshotMetrics are the year-level KPIs.
type SnapshotMetrics struct {
	TotalEnrollment              int `json:"totalEnrollment" bson:"totalEnrollment"`
	ReturningStudents            int `json:"returningStudents" bson:"returningStudents"`
	NewStudentsReturningCampuses int `json:"newStudentsReturningCampuses" bson:"newStudentsReturningCampuses"`
	EligiblePriorYear            int `json:"eligiblePriorYear" bson:"eligiblePriorYear"`
	RetentionRate                int `json:"retentionRate" bson:"retentionRate"`
	NonStarters                  int `json:"nonStarters" bson:"nonStarters"`
	MidYearWithdrawals           int `json:"midYearWithdrawals" bson:"midYearWithdrawals"`
	VerifiedTransfers            int `json:"verifiedTransfers" bson:"verifiedTransfers"`
	AttritionTotal               int `json:"attritionTotal" bson:"attritionTotal"`
	InternalGrowth               int `json:"internalGrowth" bson:"internalGrowth"`
	NewCampusGrowth              int `json:"newCampusGrowth" bson:"newCampusGrowth"`
	TotalNewGrowth               int `json:"totalNewGrowth" bson:"totalNewGrowth"`
	NetGrowth                    int `json:"netGrowth" bson:"netGrowth"`
}

// Value stores metrics as JSONB.
func (m SnapshotMetrics) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan decodes JSONB metrics.
func (m *SnapshotMetrics) Scan(value interface{}) error {
	data, err := jsonBytes(value, "SnapshotMetrics")
	if err != nil || data == nil {
		*m = SnapshotMetrics{}
		return err
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("unmarshal snapshot metrics: %w", err)
	}
	return nil
}

// CampusMetricsMap is keyed by campus key.
type CampusMetricsMap map[string]CampusMetrics

// Value stores the campus map as JSONB.
func (m CampusMetricsMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]CampusMetrics(m))
}

// Scan decodes the JSONB campus map.
func (m *CampusMetricsMap) Scan(value interface{}) error {
	data, err := jsonBytes(value, "CampusMetricsMap")
	if err != nil {
		return err
	}
	out := CampusMetricsMap{}
	if data != nil {
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("unmarshal campus metrics: %w", err)
		}
	}
	*m = out
	return nil
}

// Snapshot is a point-in-time KPI document for one school year.
type Snapshot struct {
	ID           string           `db:"id" json:"id" bson:"_id"`
	SchoolYear   string           `db:"school_year" json:"schoolYear" bson:"schoolYear"`
	SnapshotDate string           `db:"snapshot_date" json:"snapshotDate" bson:"snapshotDate"`
	IsCountDay   bool             `db:"is_count_day" json:"isCountDay" bson:"isCountDay"`
	Metrics      SnapshotMetrics  `db:"metrics" json:"metrics" bson:"metrics"`
	ByCampus     CampusMetricsMap `db:"by_campus" json:"byCampus" bson:"byCampus"`
	CreatedAt    time.Time        `db:"created_at" json:"createdAt" bson:"createdAt"`
	LockedAt     *time.Time       `db:"locked_at" json:"lockedAt" bson:"lockedAt,omitempty"`
}

// CountDaySnapshotID is the document id of the write-once count-day snapshot.
func CountDaySnapshotID(schoolYear string) string {
	return schoolYear + "-countday"
}

func jsonBytes(value interface{}, typeName string) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case []byte:
		if len(v) == 0 {
			return nil, nil
		}
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T for %s", value, typeName)
	}
}
