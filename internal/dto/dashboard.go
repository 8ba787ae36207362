package dto

import "github.com/noah-isme/enrollment-kpi/internal/models"

// DashboardOverview is the latest snapshot of a year with the settings it was read under.
type DashboardOverview struct {
	Snapshot *models.Snapshot   `json:"snapshot"`
	Settings models.AppSettings `json:"settings"`
}

// CampusView pairs one campus's metrics with the year-level metrics.
type CampusView struct {
	Campus  *models.CampusMetrics   `json:"campus"`
	Overall *models.SnapshotMetrics `json:"overall,omitempty"`
}

// YearOverYear maps each active school year to its comparable snapshot.
type YearOverYear struct {
	Snapshots map[string]models.Snapshot `json:"snapshots"`
	Settings  models.AppSettings         `json:"settings"`
}

// TimelineView lists a year's populated weeks in order.
type TimelineView struct {
	Timeline []models.EnrollmentWeek `json:"timeline"`
}

// CampusSummary identifies a campus in pickers.
type CampusSummary struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	MCLeader string `json:"mcLeader"`
}

// CampusList is the response of the campuses endpoint.
type CampusList struct {
	Campuses []CampusSummary `json:"campuses"`
}

// SnapshotView is either a whole snapshot or a campus slice of it.
type SnapshotView struct {
	Snapshot *models.Snapshot        `json:"snapshot,omitempty"`
	Campus   *models.CampusMetrics   `json:"campus,omitempty"`
	Overall  *models.SnapshotMetrics `json:"overall,omitempty"`
}
