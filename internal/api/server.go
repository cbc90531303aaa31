// Package api exposes a read-only HTTP view of the engine: current trend,
// detected setups, open positions, and trade history.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"price-action-bot/internal/engine"
	"price-action-bot/internal/position"
)

// TradeHistory supplies recent trade records for the history endpoint. Nil
// disables it.
type TradeHistory interface {
	RecentTrades(ctx context.Context, limit int) ([]position.TradeRecord, error)
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host           string
	Port           int
	ProductionMode bool
	AllowedOrigins []string
}

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig
	engine     *engine.Engine
	positions  *position.Manager
	history    TradeHistory
	logger     zerolog.Logger
	startedAt  time.Time
}

// NewServer wires the router and handlers.
func NewServer(config ServerConfig, eng *engine.Engine, positions *position.Manager, history TradeHistory, logger zerolog.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173"}
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:    router,
		config:    config,
		engine:    eng,
		positions: positions,
		history:   history,
		logger:    logger.With().Str("component", "api").Logger(),
		startedAt: time.Now().UTC(),
	}
	server.registerRoutes()
	return server
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)

	apiGroup := s.router.Group("/api")
	{
		apiGroup.GET("/status", s.handleStatus)
		apiGroup.GET("/trend", s.handleTrend)
		apiGroup.GET("/setups", s.handleSetups)
		apiGroup.GET("/positions", s.handlePositions)
		apiGroup.GET("/trades", s.handleTrades)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"halted":         s.engine.Halted(),
		"halt_reason":    s.engine.HaltReason(),
		"open_positions": s.positions.Count(),
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleTrend(c *gin.Context) {
	snap := s.engine.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"direction":       snap.Trend.Direction,
		"strength":        snap.Trend.Strength,
		"pattern":         snap.Trend.Pattern,
		"structure_break": snap.StructureBreak,
		"momentum":        snap.Strength.Momentum,
		"momentum_bias":   snap.Strength.MomentumBias,
		"pullback_grade":  snap.Strength.PullbackGrade,
		"support":         snap.Support,
		"resistance":      snap.Resistance,
	})
}

func (s *Server) handleSetups(c *gin.Context) {
	snap := s.engine.Snapshot()
	c.JSON(http.StatusOK, gin.H{"setups": snap.Setups})
}

func (s *Server) handlePositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": s.positions.Active()})
}

func (s *Server) handleTrades(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusOK, gin.H{"trades": []position.TradeRecord{}})
		return
	}
	trades, err := s.history.RecentTrades(c.Request.Context(), 50)
	if err != nil {
		s.logger.Error().Err(err).Msg("trade history query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trade history unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
