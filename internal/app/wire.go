package app

import (
	"context"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/threadchat-backend/internal/data/repos"
	"github.com/yungbote/threadchat-backend/internal/http"
	httpH "github.com/yungbote/threadchat-backend/internal/http/handlers"
	"github.com/yungbote/threadchat-backend/internal/inference/engine"
	"github.com/yungbote/threadchat-backend/internal/platform/logger"
	"github.com/yungbote/threadchat-backend/internal/realtime"
	"github.com/yungbote/threadchat-backend/internal/realtime/bus"
	"github.com/yungbote/threadchat-backend/internal/services"
)

type Services struct {
	Threads services.ThreadService
	History services.HistoryLoader
	Chat    services.ChatService
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Upload   *httpH.UploadHandler
	Thread   *httpH.ThreadHandler
	Chat     *httpH.ChatHandler
	Realtime *httpH.RealtimeHandler
}

func wireBus(ctx context.Context, cfg RealtimeConfig, log *logger.Logger) (bus.Bus, error) {
	if cfg.RedisAddr == "" {
		log.Info("Using in-process realtime bus")
		return bus.NewMemoryBus(), nil
	}
	log.Info("Using redis realtime bus", "addr", cfg.RedisAddr)
	return bus.NewRedisBus(ctx, bus.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Channel:  cfg.Channel,
	}, log)
}

func wireServices(log *logger.Logger, cfg Config, reposet repos.Repos, eng engine.Engine, pub services.Publisher) Services {
	log.Info("Wiring services...")
	threads := services.NewThreadService(log, reposet.Threads, reposet.Messages, cfg.Chat.DefaultThreadTitle)
	history := services.NewHistoryLoader(log, reposet.Messages)
	chatSvc := services.NewChatService(
		log,
		services.ChatConfig{
			HistoryLimit: cfg.Chat.HistoryLimit,
			SystemPrompt: cfg.Chat.SystemPrompt,
			Model:        cfg.Engine.Model,
			Temperature:  cfg.Engine.Temperature,
			MaxTokens:    cfg.Engine.MaxTokens,
		},
		threads,
		history,
		reposet.Messages,
		eng,
		services.NewChatNotifier(pub, log),
	)
	return Services{Threads: threads, History: history, Chat: chatSvc}
}

func wireHandlers(log *logger.Logger, cfg Config, db *gorm.DB, svc Services, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(db),
		Upload:   httpH.NewUploadHandler(log, cfg.UploadOptions()),
		Thread:   httpH.NewThreadHandler(svc.Threads),
		Chat:     httpH.NewChatHandler(log, svc.Chat, svc.Threads, svc.History, cfg.Chat.HistoryLimit),
		Realtime: httpH.NewRealtimeHandler(log, hub, svc.Threads),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers) *gin.Engine {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewRouter(http.RouterConfig{
		Log:             log,
		ServiceName:     serviceName,
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
		HealthHandler:   handlers.Health,
		UploadHandler:   handlers.Upload,
		ThreadHandler:   handlers.Thread,
		ChatHandler:     handlers.Chat,
		RealtimeHandler: handlers.Realtime,
	})
}
