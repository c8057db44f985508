package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relief-network/coordinator/internal/middleware"
	"github.com/relief-network/coordinator/internal/notify"
	"github.com/relief-network/coordinator/internal/services"
)

// RouterConfig holds everything the HTTP surface is built from
type RouterConfig struct {
	Disasters *services.DisasterService
	Reports   *services.ReportService
	Social    *services.SocialMediaService
	Geocode   *services.GeocodeService
	Hub       *notify.Hub
	Ready     func(ctx context.Context) error
	JWTSecret string
	Logger    *slog.Logger
}

// NewRouter builds the gin engine serving the API, the push channel and the
// operational endpoints
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(cfg.Logger))
	router.Use(middleware.CORS())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/ready", func(c *gin.Context) {
		if cfg.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Ready(ctx); err != nil {
				cfg.Logger.WarnContext(ctx, "readiness check failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.Hub != nil {
		router.GET("/ws", gin.WrapF(cfg.Hub.ServeWS))
	}

	disasterHandler := NewDisasterHandler(cfg.Disasters, cfg.Social, cfg.Logger)
	reportHandler := NewReportHandler(cfg.Reports, cfg.Logger)
	servicesHandler := NewServicesHandler(cfg.Geocode, cfg.Logger)

	api := router.Group("/api")
	api.Use(middleware.Identity(cfg.JWTSecret))
	{
		disasters := api.Group("/disasters")
		{
			disasters.POST("", disasterHandler.Create)
			disasters.GET("", disasterHandler.List)
			disasters.GET("/:id", disasterHandler.Get)
			disasters.PUT("/:id", disasterHandler.Update)
			disasters.DELETE("/:id", disasterHandler.Delete)
			disasters.GET("/:id/social-media", disasterHandler.SocialMedia)
			disasters.GET("/:id/reports", reportHandler.ListForDisaster)
		}

		reports := api.Group("/reports")
		{
			reports.POST("", reportHandler.Create)
			reports.GET("/:id", reportHandler.Get)
			reports.POST("/:id/verify", reportHandler.Verify)
		}

		api.POST("/services/geocode", servicesHandler.Geocode)
	}

	return router
}
