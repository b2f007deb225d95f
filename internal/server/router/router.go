package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dcespedes8/avicontrol/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares.
func New(auth *handlers.AuthHandler, orders *handlers.OrderHandler, admin *handlers.AdminHandler, events *handlers.EventsHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.POST("/login", auth.Login)

	r.GET("/orders", orders.List)
	r.POST("/orders", orders.Create)
	r.GET("/orders/:id", orders.Get)
	r.POST("/orders/:id/records", orders.AddRecord)
	r.DELETE("/orders/:id/records/:recordId", orders.DeleteRecord)
	r.POST("/orders/:id/close", orders.Close)

	r.GET("/users", admin.ListUsers)
	r.POST("/users", admin.SaveUser)
	r.DELETE("/users/:id", admin.DeleteUser)

	r.GET("/batches", admin.ListBatches)
	r.POST("/batches", admin.SaveBatch)
	r.DELETE("/batches/:id", admin.DeleteBatch)
	r.GET("/batches/:id/summary", admin.BatchSummary)

	r.GET("/config", admin.GetConfig)
	r.PUT("/config", admin.SaveConfig)
	r.GET("/sync/status", admin.SyncState)

	r.GET("/backup", admin.ExportBackup)
	r.POST("/backup", admin.ImportBackup)
	r.POST("/reset", admin.Reset)

	r.GET("/events", events.Stream)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
