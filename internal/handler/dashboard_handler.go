package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-kpi/internal/dto"
	"github.com/noah-isme/enrollment-kpi/internal/middleware"
	"github.com/noah-isme/enrollment-kpi/pkg/response"
)

type dashboardService interface {
	Overview(ctx context.Context, schoolYear string) (*dto.DashboardOverview, bool, error)
	Campus(ctx context.Context, schoolYear, campusKey string) (*dto.CampusView, bool, error)
	YearOverYear(ctx context.Context) (*dto.YearOverYear, bool, error)
	Timeline(ctx context.Context, schoolYear string) (*dto.TimelineView, bool, error)
	Campuses(ctx context.Context, schoolYear string) (*dto.CampusList, bool, error)
	Snapshot(ctx context.Context, schoolYear, campusKey string) (*dto.SnapshotView, bool, error)
}

// DashboardHandler wires the read side to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Overview godoc
// @Summary Latest snapshot of a school year
// @Tags Dashboard
// @Produce json
// @Param schoolYear query string true "School year, e.g. 2024-25"
// @Success 200 {object} response.Envelope
// @Router /dashboard/overview [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	serve(c, func(ctx context.Context) (interface{}, bool, error) {
		return h.service.Overview(ctx, schoolYearQuery(c))
	})
}

// Campus godoc
// @Summary One campus of the latest snapshot
// @Tags Dashboard
// @Produce json
// @Param schoolYear query string true "School year"
// @Param campusKey query string true "Campus key"
// @Success 200 {object} response.Envelope
// @Router /dashboard/campus [get]
func (h *DashboardHandler) Campus(c *gin.Context) {
	serve(c, func(ctx context.Context) (interface{}, bool, error) {
		return h.service.Campus(ctx, schoolYearQuery(c), strings.TrimSpace(c.Query("campusKey")))
	})
}

// YearOverYear godoc
// @Summary Comparable snapshot of every active school year
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/yoy [get]
func (h *DashboardHandler) YearOverYear(c *gin.Context) {
	serve(c, func(ctx context.Context) (interface{}, bool, error) {
		return h.service.YearOverYear(ctx)
	})
}

// Timeline godoc
// @Summary Weekly cumulative enrollment
// @Tags Dashboard
// @Produce json
// @Param schoolYear query string true "School year"
// @Success 200 {object} response.Envelope
// @Router /dashboard/timeline [get]
func (h *DashboardHandler) Timeline(c *gin.Context) {
	serve(c, func(ctx context.Context) (interface{}, bool, error) {
		return h.service.Timeline(ctx, schoolYearQuery(c))
	})
}

// Campuses godoc
// @Summary Campuses of the latest snapshot
// @Tags Dashboard
// @Produce json
// @Param schoolYear query string true "School year"
// @Success 200 {object} response.Envelope
// @Router /dashboard/campuses [get]
func (h *DashboardHandler) Campuses(c *gin.Context) {
	serve(c, func(ctx context.Context) (interface{}, bool, error) {
		return h.service.Campuses(ctx, schoolYearQuery(c))
	})
}

// Snapshot godoc
// @Summary Comparable snapshot of a school year
// @Description The current year returns its latest snapshot; past years return the locked count-day snapshot.
// @Tags Dashboard
// @Produce json
// @Param year path string true "School year"
// @Param campusKey query string false "Narrow to one campus"
// @Success 200 {object} response.Envelope
// @Router /snapshots/{year} [get]
func (h *DashboardHandler) Snapshot(c *gin.Context) {
	serve(c, func(ctx context.Context) (interface{}, bool, error) {
		return h.service.Snapshot(ctx, strings.TrimSpace(c.Param("year")), strings.TrimSpace(c.Query("campusKey")))
	})
}

func schoolYearQuery(c *gin.Context) string {
	return strings.TrimSpace(c.Query("schoolYear"))
}

// serve runs a cached read and reports the cache outcome in the response meta.
func serve(c *gin.Context, load func(ctx context.Context) (interface{}, bool, error)) {
	start := time.Now()
	data, cacheHit, err := load(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, data, meta)
}
