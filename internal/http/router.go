package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/threadchat-backend/internal/http/handlers"
	httpMW "github.com/yungbote/threadchat-backend/internal/http/middleware"
	"github.com/yungbote/threadchat-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string

	HealthHandler   *httpH.HealthHandler
	UploadHandler   *httpH.UploadHandler
	ThreadHandler   *httpH.ThreadHandler
	ChatHandler     *httpH.ChatHandler
	RealtimeHandler *httpH.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	// Upload is served at the root as well for older clients
	if cfg.UploadHandler != nil {
		r.POST("/upload", cfg.UploadHandler.Upload)
	}

	api := r.Group("/api")
	{
		if cfg.UploadHandler != nil {
			api.POST("/upload", cfg.UploadHandler.Upload)
		}

		// Threads
		if cfg.ThreadHandler != nil {
			api.GET("/threads", cfg.ThreadHandler.List)
			api.GET("/threads/:id", cfg.ThreadHandler.Get)
			api.GET("/threads/:id/messages", cfg.ThreadHandler.Messages)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			api.GET("/threads/:id/events", cfg.RealtimeHandler.ThreadEvents)
		}

		// Chat
		if cfg.ChatHandler != nil {
			api.GET("/chat/history", cfg.ChatHandler.History)
			api.POST("/chat/stream", cfg.ChatHandler.Stream)
		}
	}

	return r
}
