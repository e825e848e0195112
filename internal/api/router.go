package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"taskorch/internal/metrics"
	"taskorch/internal/ports"
	"taskorch/internal/scheduler"
	"taskorch/internal/store"
	"taskorch/internal/validator"
)

// NewRouter assembles the gin engine: request-id + access-log
// middleware, the five endpoints of §6, and /metrics. Grounded on
// teacher's cmd/server/main.go router.Group("/api/v1") shape, with the
// version segment dropped since spec.md's paths are unversioned.
func NewRouter(s store.Store, v *validator.Validator, sched *scheduler.Scheduler, ev ports.EventPublisher, log *zap.SugaredLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(log))

	h := NewHandlers(s, v, sched, ev)

	api := router.Group("/api")
	{
		api.POST("/tasks", h.SubmitTask)
		api.GET("/tasks/:id", h.GetTask)
		api.GET("/tasks", h.ListTasks)
		api.GET("/stats", h.Stats)
		api.GET("/health", h.Health)
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	return router
}
