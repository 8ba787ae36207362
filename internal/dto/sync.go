package dto

import "github.com/noah-isme/enrollment-kpi/internal/models"

// SyncRequest triggers a reconciliation run. An empty school year syncs every
// configured year.
type SyncRequest struct {
	SchoolYear  string `json:"schoolYear" binding:"omitempty,len=7"`
	SkipMetrics bool   `json:"skipMetrics"`
}

// SyncJobAccepted is returned when a run was queued.
type SyncJobAccepted struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// RecomputeResponse reports the snapshot written by a recompute.
type RecomputeResponse struct {
	SchoolYear string           `json:"schoolYear"`
	Snapshot   *models.Snapshot `json:"snapshot"`
}
