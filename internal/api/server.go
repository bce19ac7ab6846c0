// Package api serves the read-only status API and the live event stream. The
// API observes the trading loop; it never mutates trading state.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"contrarian-trading-bot/internal/auth"
	"contrarian-trading-bot/internal/engine"
	"contrarian-trading-bot/internal/events"
	"contrarian-trading-bot/internal/journal"
	"contrarian-trading-bot/internal/logging"
	"contrarian-trading-bot/internal/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	ProductionMode bool   `json:"production_mode"`

	AuthEnabled      bool   `json:"auth_enabled"`
	OperatorUsername string `json:"operator_username"`
	OperatorPassHash string `json:"-"`
	JWTSecret        string `json:"-"`
	TokenTTL         time.Duration
}

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig
	engine     *engine.Engine
	journal    *journal.Repository // may be nil
	hub        *WSHub
	jwtManager *auth.JWTManager
	logger     zerolog.Logger
	startedAt  time.Time
}

// NewServer creates a new API server
func NewServer(config ServerConfig, eng *engine.Engine, repo *journal.Repository, bus *events.EventBus) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8090"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:    router,
		config:    config,
		engine:    eng,
		journal:   repo,
		hub:       NewWSHub(bus),
		logger:    logging.Component("api"),
		startedAt: time.Now(),
	}

	if config.AuthEnabled {
		server.jwtManager = auth.NewJWTManager(config.JWTSecret, config.TokenTTL)
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	apiGroup := s.router.Group("/api")

	if s.config.AuthEnabled {
		apiGroup.POST("/auth/login", s.handleLogin)
		protected := apiGroup.Group("", auth.Middleware(s.jwtManager))
		s.registerStatusRoutes(protected)
	} else {
		s.registerStatusRoutes(apiGroup)
	}
}

func (s *Server) registerStatusRoutes(g *gin.RouterGroup) {
	g.GET("/status", s.handleStatus)
	g.GET("/positions", s.handlePositions)
	g.GET("/risk", s.handleRisk)
	g.GET("/signals", s.handleSignals)
	g.GET("/ws", s.handleWebSocket)
}

// Start runs the HTTP server and the websocket hub
func (s *Server) Start() error {
	go s.hub.Run()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Bool("auth", s.config.AuthEnabled).Msg("status API listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
