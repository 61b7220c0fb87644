package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"git-activity-server/internal/handler"
	"git-activity-server/internal/middleware"
	"git-activity-server/internal/store"
)

type Deps struct {
	Store *store.Store

	// IngestRateLimit is events per client per minute; zero disables the
	// limiter (used by tests).
	IngestRateLimit int
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	activityHandler := &handler.ActivityHandler{Store: deps.Store}

	ingest := r.Group("/v1")
	if deps.IngestRateLimit > 0 {
		limiter := middleware.NewRateLimiter(deps.IngestRateLimit, time.Minute)
		ingest.Use(middleware.RateLimit(limiter))
	}
	ingest.POST("/activity", activityHandler.Record)

	r.GET("/v1/users", activityHandler.Users)
	r.GET("/v1/users/:email", activityHandler.User)

	return r
}
