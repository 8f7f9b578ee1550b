package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/planflow/planflow/internal/config"
	"github.com/planflow/planflow/pkg/auth"
	"github.com/planflow/planflow/pkg/metrics"
)

func NewRouter(
	cfg *config.Config,
	log *zap.Logger,
	collector *metrics.Collector,
	jwtManager *auth.JWTManager,
	planHandler *PlanHandler,
) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))
	router.Use(Metrics(collector))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := router.Group("/api/v1")
	api.Use(Auth(jwtManager))
	planHandler.Register(api)

	return router
}
