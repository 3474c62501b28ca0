package handlers

import (
	"github.com/JonnyWalker81/nillabg/internal/apierror"
	"github.com/JonnyWalker81/nillabg/internal/logger"
	"github.com/JonnyWalker81/nillabg/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RouterConfig wires the handlers into the read-only API
type RouterConfig struct {
	Health         *HealthHandler
	Overview       *OverviewHandler
	Metrics        *MetricsHandler
	AllowedOrigins string
	Production     bool
	Log            logger.Logger
}

// NewRouter builds the gin engine with middleware and routes
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(cfg.Log))
	router.Use(middleware.Recovery(cfg.Log))
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.SecurityHeaders(cfg.Production))

	router.NoRoute(func(c *gin.Context) {
		apierror.WriteProblem(c, apierror.NewNotFoundError(apierror.GetRequestID(c), c.Request.URL.Path))
	})

	router.GET("/health", cfg.Health.Health)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/overview/:date", cfg.Overview.GetDay)
		v1.GET("/metrics", cfg.Metrics.GetMetrics)
	}

	return router
}
