package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/enrollment-kpi/internal/dto"
	"github.com/noah-isme/enrollment-kpi/internal/models"
	appErrors "github.com/noah-isme/enrollment-kpi/pkg/errors"
	"github.com/noah-isme/enrollment-kpi/pkg/jobs"
	"github.com/noah-isme/enrollment-kpi/pkg/response"
)

// SyncJobType labels queued sync runs.
const SyncJobType = "sync"

type pipelineService interface {
	Run(ctx context.Context, targetYear string, skipMetrics bool) (*models.SyncResult, error)
	RecomputeYear(ctx context.Context, schoolYear string) (*models.Snapshot, error)
}

type syncQueue interface {
	Enqueue(job jobs.Job) error
	Status(id string) (jobs.Status, bool)
}

// SyncHandler exposes the sync and recompute operations.
type SyncHandler struct {
	pipeline pipelineService
	queue    syncQueue
}

// NewSyncHandler constructs the handler. A nil queue disables async runs.
func NewSyncHandler(pipeline pipelineService, queue syncQueue) *SyncHandler {
	return &SyncHandler{pipeline: pipeline, queue: queue}
}

// Sync godoc
// @Summary Run a ledger sync
// @Description Reconciles every configured base into the ledger and recomputes KPIs. With async=true the run is queued and a job id is returned.
// @Tags Sync
// @Accept json
// @Produce json
// @Param async query bool false "Queue the run"
// @Param payload body dto.SyncRequest false "Sync options"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /sync [post]
func (h *SyncHandler) Sync(c *gin.Context) {
	var req dto.SyncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sync payload"))
			return
		}
	}
	req.SchoolYear = strings.TrimSpace(req.SchoolYear)

	async, _ := strconv.ParseBool(c.Query("async"))
	if async {
		h.enqueue(c, req)
		return
	}

	result, err := h.pipeline.Run(c.Request.Context(), req.SchoolYear, req.SkipMetrics)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

func (h *SyncHandler) enqueue(c *gin.Context, req dto.SyncRequest) {
	if h.queue == nil {
		response.Error(c, appErrors.ErrQueueStopped)
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: SyncJobType, Payload: req}
	if err := h.queue.Enqueue(job); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrQueueStopped.Code, appErrors.ErrQueueStopped.Status, appErrors.ErrQueueStopped.Message))
		return
	}
	response.Accepted(c, dto.SyncJobAccepted{JobID: job.ID, Status: string(jobs.StateQueued)})
}

// JobStatus godoc
// @Summary Status of a queued sync run
// @Tags Sync
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /sync/jobs/{id} [get]
func (h *SyncHandler) JobStatus(c *gin.Context) {
	if h.queue == nil {
		response.Error(c, appErrors.ErrQueueStopped)
		return
	}
	status, ok := h.queue.Status(c.Param("id"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "sync job not found"))
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// Recompute godoc
// @Summary Recompute a year's snapshot and timeline
// @Tags Sync
// @Produce json
// @Param year path string true "School year, e.g. 2024-25"
// @Success 200 {object} response.Envelope
// @Router /metrics/{year}/recompute [post]
func (h *SyncHandler) Recompute(c *gin.Context) {
	year := strings.TrimSpace(c.Param("year"))
	if year == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "school year is required"))
		return
	}
	snapshot, err := h.pipeline.RecomputeYear(c.Request.Context(), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.RecomputeResponse{SchoolYear: year, Snapshot: snapshot})
}
