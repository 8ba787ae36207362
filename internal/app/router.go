package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/enrollment-kpi/internal/handler"
	"github.com/noah-isme/enrollment-kpi/internal/middleware"
	"github.com/noah-isme/enrollment-kpi/pkg/config"
	"github.com/noah-isme/enrollment-kpi/pkg/logger"
	corsmiddleware "github.com/noah-isme/enrollment-kpi/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/enrollment-kpi/pkg/middleware/requestid"
)

// Router registers every HTTP route. Probes and the Prometheus endpoint live at
// the root, the API under Config.APIPrefix.
func (a *App) Router() *gin.Engine {
	if a.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.Logger))
	r.Use(corsmiddleware.New(a.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.Metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(a.Metrics, a.checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if a.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	syncHandler := handler.NewSyncHandler(a.Pipeline, a.Queue)
	dashboardHandler := handler.NewDashboardHandler(a.Dashboard)
	settingsHandler := handler.NewSettingsHandler(a.Settings, a.Cache)

	api := r.Group(a.Config.APIPrefix)
	api.POST("/sync", syncHandler.Sync)
	api.GET("/sync/jobs/:id", syncHandler.JobStatus)
	api.POST("/metrics/:year/recompute", syncHandler.Recompute)

	dashboard := api.Group("/dashboard")
	dashboard.GET("/overview", dashboardHandler.Overview)
	dashboard.GET("/campus", dashboardHandler.Campus)
	dashboard.GET("/yoy", dashboardHandler.YearOverYear)
	dashboard.GET("/timeline", dashboardHandler.Timeline)
	dashboard.GET("/campuses", dashboardHandler.Campuses)
	api.GET("/snapshots/:year", dashboardHandler.Snapshot)

	api.GET("/settings", settingsHandler.Get)
	api.PUT("/settings", settingsHandler.Update)
	api.GET("/settings/sources", settingsHandler.Sources)
	api.PUT("/settings/sources", settingsHandler.SaveSources)

	return r
}
