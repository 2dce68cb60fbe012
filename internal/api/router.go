package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/doclens/internal/api/handler"
	"github.com/timmy/doclens/internal/api/middleware"
	"github.com/timmy/doclens/internal/logger"
)

// Services are the capabilities the HTTP layer exposes.
type Services struct {
	Documents handler.Submitter
	Status    handler.StatusReader
	Chats     handler.ChatAnswerer
	QueueLen  func() int
}

// RouterConfig holds transport settings for the router.
type RouterConfig struct {
	Mode           string
	UserHeader     string
	MaxUploadBytes int64
	StreamPoll     time.Duration
	CORS           middleware.CORSConfig
	Logger         *logger.Logger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svc *Services, cfg *RouterConfig) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.GetDefault()
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(cfg.CORS))

	// Create handlers
	healthHandler := handler.NewHealthHandler(svc.QueueLen)
	documentHandler := handler.NewDocumentHandler(svc.Documents, svc.Status, cfg.MaxUploadBytes, cfg.StreamPoll)
	chatHandler := handler.NewChatHandler(svc.Chats)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.UserHeader))
	{
		// Documents
		v1.POST("/documents", documentHandler.Upload)
		v1.GET("/documents", documentHandler.List)
		v1.GET("/documents/:id", documentHandler.Get)
		v1.GET("/documents/:id/status", documentHandler.Status)
		v1.GET("/documents/:id/events", documentHandler.Events)

		// Chats
		v1.POST("/chats", chatHandler.Ask)
		v1.GET("/chats", chatHandler.List)
		v1.GET("/chats/:id", chatHandler.Get)
	}

	return r
}
