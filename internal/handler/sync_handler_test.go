package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-kpi/internal/dto"
	"github.com/noah-isme/enrollment-kpi/internal/models"
	appErrors "github.com/noah-isme/enrollment-kpi/pkg/errors"
	"github.com/noah-isme/enrollment-kpi/pkg/jobs"
)

type fakePipeline struct {
	target      string
	skipMetrics bool
	runErr      error
	recomputed  string
}

func (f *fakePipeline) Run(_ context.Context, targetYear string, skipMetrics bool) (*models.SyncResult, error) {
	f.target, f.skipMetrics = targetYear, skipMetrics
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &models.SyncResult{RunID: "run-1", Processed: 7, Errors: []string{"Failed to fetch from appB: boom"}}, nil
}

func (f *fakePipeline) RecomputeYear(_ context.Context, schoolYear string) (*models.Snapshot, error) {
	f.recomputed = schoolYear
	return &models.Snapshot{ID: models.CountDaySnapshotID(schoolYear), SchoolYear: schoolYear, IsCountDay: true}, nil
}

type fakeQueue struct {
	enqueued []jobs.Job
	err      error
	statuses map[string]jobs.Status
}

func (f *fakeQueue) Enqueue(job jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, job)
	return nil
}

func (f *fakeQueue) Status(id string) (jobs.Status, bool) {
	st, ok := f.statuses[id]
	return st, ok
}

func syncRouter(p pipelineService, q syncQueue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSyncHandler(p, q)
	r := gin.New()
	r.POST("/sync", h.Sync)
	r.GET("/sync/jobs/:id", h.JobStatus)
	r.POST("/metrics/:year/recompute", h.Recompute)
	return r
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSyncHandlerRunsSynchronously(t *testing.T) {
	pipeline := &fakePipeline{}
	rec := httptest.NewRecorder()
	syncRouter(pipeline, nil).ServeHTTP(rec, postJSON("/sync", `{"schoolYear":"2024-25","skipMetrics":true}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-25", pipeline.target)
	assert.True(t, pipeline.skipMetrics)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, float64(7), envelope.Data["processed"])
	assert.Len(t, envelope.Data["errors"], 1)
}

func TestSyncHandlerAcceptsEmptyBody(t *testing.T) {
	pipeline := &fakePipeline{}
	rec := httptest.NewRecorder()
	syncRouter(pipeline, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", pipeline.target)
}

func TestSyncHandlerRejectsMalformedBody(t *testing.T) {
	rec := httptest.NewRecorder()
	syncRouter(&fakePipeline{}, nil).ServeHTTP(rec, postJSON("/sync", `{"schoolYear":"2024-2025"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncHandlerPropagatesPersistenceFailure(t *testing.T) {
	pipeline := &fakePipeline{runErr: appErrors.Wrap(errors.New("tx aborted"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write ledger")}
	rec := httptest.NewRecorder()
	syncRouter(pipeline, nil).ServeHTTP(rec, postJSON("/sync", `{}`))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSyncHandlerAsyncEnqueues(t *testing.T) {
	pipeline := &fakePipeline{}
	queue := &fakeQueue{}
	rec := httptest.NewRecorder()
	syncRouter(pipeline, queue).ServeHTTP(rec, postJSON("/sync?async=true", `{"schoolYear":"2025-26"}`))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, queue.enqueued, 1)
	job := queue.enqueued[0]
	assert.Equal(t, SyncJobType, job.Type)
	assert.Equal(t, dto.SyncRequest{SchoolYear: "2025-26"}, job.Payload)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, job.ID, envelope.Data["jobId"])
	assert.Equal(t, "queued", envelope.Data["status"])
	assert.Empty(t, pipeline.target)
}

func TestSyncHandlerAsyncWithoutQueue(t *testing.T) {
	rec := httptest.NewRecorder()
	syncRouter(&fakePipeline{}, nil).ServeHTTP(rec, postJSON("/sync?async=1", `{}`))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSyncHandlerJobStatus(t *testing.T) {
	queue := &fakeQueue{statuses: map[string]jobs.Status{
		"job-1": {ID: "job-1", Type: SyncJobType, State: jobs.StateRunning, Attempt: 1},
	}}
	router := syncRouter(&fakePipeline{}, queue)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sync/jobs/job-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", decodeEnvelope(t, rec).Data["state"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sync/jobs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSyncHandlerRecompute(t *testing.T) {
	pipeline := &fakePipeline{}
	rec := httptest.NewRecorder()
	syncRouter(pipeline, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics/2024-25/recompute", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-25", pipeline.recomputed)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "2024-25", envelope.Data["schoolYear"])
}
