package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/overture-project/overture/internal/client"
	"github.com/overture-project/overture/internal/config"
	"github.com/overture-project/overture/internal/db"
	"github.com/overture-project/overture/internal/events"
)

// toastBacklog is how many recent notifications the API keeps for polling.
const toastBacklog = 50

// Server is the local REST API server.
type Server struct {
	cfg      *config.Config
	eventBus *events.EventBus
	client   *client.Client
	beatmaps *db.BeatmapDatabase

	mu     sync.Mutex
	toasts []toastEntry

	httpServer *http.Server
	router     *gin.Engine
}

type toastEntry struct {
	Message string    `json:"message"`
	Level   string    `json:"level"`
	At      time.Time `json:"at"`
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, eventBus *events.EventBus, cl *client.Client, beatmaps *db.BeatmapDatabase) *Server {
	if cfg.GetApplicationData().Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		eventBus: eventBus,
		client:   cl,
		beatmaps: beatmaps,
	}

	eventBus.Subscribe(events.EventToast, "api.toast", s.onToast)

	return s
}

// onToast appends a notification to the polling backlog.
func (s *Server) onToast(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ToastPayload)
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.toasts = append(s.toasts, toastEntry{
		Message: payload.Message,
		Level:   payload.Level,
		At:      time.Now(),
	})
	if len(s.toasts) > toastBacklog {
		s.toasts = s.toasts[len(s.toasts)-toastBacklog:]
	}
	return nil
}

// Start runs the API server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	apiCfg := s.cfg.GetApplicationData().API
	if !apiCfg.Enabled {
		log.Info().Msg("REST API disabled")
		<-ctx.Done()
		return nil
	}

	s.router = s.buildRouter()

	addr := fmt.Sprintf("%s:%d", apiCfg.Bind, apiCfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("REST API server starting")

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	// CORS
	security := s.cfg.GetApplicationData().Security
	allowedOrigins := security.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Must be false when AllowOrigins is "*"
		MaxAge:           12 * time.Hour,
	}))

	rateLimiter := NewRateLimiter(security.RateLimitRPS)
	router.Use(rateLimiter.Middleware())

	api := router.Group("/api")
	{
		api.GET("/ping", s.handlePing)
		api.GET("/status", s.handleStatus)
		api.GET("/users", s.handleUsers)
		api.GET("/users/:user_id", s.handleUser)
		api.GET("/channels", s.handleChannels)
		api.GET("/room", s.handleRoom)
		api.GET("/spectate", s.handleSpectateStatus)
		api.GET("/toasts", s.handleToasts)
		api.GET("/submissions", s.handleSubmissions)

		api.POST("/login", s.handleLogin)
		api.POST("/logout", s.handleLogout)
		api.POST("/chat", s.handleChat)
		api.POST("/action", s.handleAction)

		api.POST("/spectate/:user_id", s.handleStartSpectating)
		api.DELETE("/spectate", s.handleStopSpectating)

		api.POST("/lobby", s.handleOpenLobby)
		api.DELETE("/lobby", s.handleCloseLobby)
		api.POST("/rooms", s.handleCreateRoom)
		api.POST("/rooms/:room_id/join", s.handleJoinRoom)
		api.DELETE("/room", s.handleLeaveRoom)

		api.POST("/friends/:user_id", s.handleAddFriend)
		api.DELETE("/friends/:user_id", s.handleRemoveFriend)

		api.POST("/leaderboard", s.handleLeaderboard)
		api.POST("/replays/:score_id", s.handleReplayDownload)
		api.POST("/scores", s.handleSubmitScore)
		api.POST("/chat/read", s.handleMarkAsRead)
		api.GET("/beatmaps/:md5", s.handleBeatmapLookup)
		api.POST("/beatmaps/:md5/offset", s.handleSetOffset)
		api.POST("/beatmapsets/:set_id", s.handleBeatmapsetInfo)
		api.POST("/oauth", s.handleOAuthLogin)

		api.GET("/config", s.handleGetConfig)
		api.POST("/config/server", s.handleSetServerConfig)
		api.POST("/config/app", s.handleSetAppConfig)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
