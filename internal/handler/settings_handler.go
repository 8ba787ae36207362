package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enrollment-kpi/internal/models"
	appErrors "github.com/noah-isme/enrollment-kpi/pkg/errors"
	"github.com/noah-isme/enrollment-kpi/pkg/response"
)

type settingsService interface {
	Get(ctx context.Context) (models.AppSettings, error)
	Update(ctx context.Context, patch models.AppSettingsPatch) (models.AppSettings, error)
	Sources(ctx context.Context) (models.SourceLayout, error)
	SaveSources(ctx context.Context, layout models.SourceLayout) (models.SourceLayout, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// SettingsHandler exposes reporting settings and the source layout.
type SettingsHandler struct {
	service settingsService
	cache   cacheInvalidator
}

// NewSettingsHandler builds a new handler. Settings changes drop cached
// dashboard views when cache is set.
func NewSettingsHandler(service settingsService, cache cacheInvalidator) *SettingsHandler {
	return &SettingsHandler{service: service, cache: cache}
}

// Get godoc
// @Summary Reporting settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.service.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings)
}

// Update godoc
// @Summary Update reporting settings
// @Description Omitted fields keep their current value.
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body models.AppSettingsPatch true "Settings patch"
// @Success 200 {object} response.Envelope
// @Router /settings [put]
func (h *SettingsHandler) Update(c *gin.Context) {
	var patch models.AppSettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid settings payload"))
		return
	}
	settings, err := h.service.Update(c.Request.Context(), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.invalidate(c)
	response.JSON(c, http.StatusOK, settings)
}

// Sources godoc
// @Summary Source base layout
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings/sources [get]
func (h *SettingsHandler) Sources(c *gin.Context) {
	layout, err := h.service.Sources(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, layout)
}

// SaveSources godoc
// @Summary Replace the source base layout
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body models.SourceLayout true "Base layout"
// @Success 200 {object} response.Envelope
// @Router /settings/sources [put]
func (h *SettingsHandler) SaveSources(c *gin.Context) {
	var layout models.SourceLayout
	if err := c.ShouldBindJSON(&layout); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid source layout payload"))
		return
	}
	saved, err := h.service.SaveSources(c.Request.Context(), layout)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, saved)
}

func (h *SettingsHandler) invalidate(c *gin.Context) {
	if h.cache == nil {
		return
	}
	_ = h.cache.Invalidate(c.Request.Context(), "dashboard:*")
}
