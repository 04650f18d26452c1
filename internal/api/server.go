// Package api implements the REST surface over the server browser:
// listing discovered servers, starting and cancelling queries, managing
// favorites, and controlling the heartbeat.
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

	"github.com/scout-project/scout/internal/config"
	"github.com/scout-project/scout/internal/events"
	"github.com/scout-project/scout/internal/query"
	"github.com/scout-project/scout/internal/store"
)

// Server is the REST API server for Scout.
type Server struct {
	cfg      *config.Config
	eventBus *events.EventBus
	engine   *query.Engine
	store    *store.Store

	httpServer *http.Server
	router     *gin.Engine

	mu         sync.RWMutex
	lastStatus events.QueryStatusPayload
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, eventBus *events.EventBus, engine *query.Engine, st *store.Store) *Server {
	if cfg.ApplicationData.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		eventBus: eventBus,
		engine:   engine,
		store:    st,
	}

	// Keep the latest query status for polling clients.
	eventBus.Subscribe(events.EventQueryStatus, "api", func(ctx context.Context, ev events.Event) error {
		if payload, ok := ev.Payload.(events.QueryStatusPayload); ok {
			s.mu.Lock()
			s.lastStatus = payload
			s.mu.Unlock()
		}
		return nil
	})

	return s
}

// Start runs the API server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.router = s.buildRouter()

	addr := fmt.Sprintf(":%d", s.cfg.ApplicationData.APIPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("REST API server starting")

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
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	api := router.Group("/api")
	{
		api.GET("/ping", s.handlePing)
		api.GET("/status", s.handleStatus)

		api.GET("/servers", s.handleListServers)
		api.GET("/servers/:index", s.handleGetServer)

		api.POST("/query/lan", s.handleQueryLAN)
		api.POST("/query/masters", s.handleQueryMasters)
		api.POST("/query/favorites", s.handleQueryFavorites)
		api.POST("/query/single", s.handleQuerySingle)
		api.POST("/query/cancel", s.handleCancel)
		api.POST("/query/stop", s.handleStop)

		api.POST("/heartbeat/start", s.handleStartHeartbeat)
		api.POST("/heartbeat/stop", s.handleStopHeartbeat)

		api.GET("/favorites", s.handleGetFavorites)
		api.POST("/favorites", s.handleAddFavorite)
		api.DELETE("/favorites/:address", s.handleRemoveFavorite)

		api.GET("/history", s.handleHistory)
	}

	return router
}

// RequestLogger logs each request with zerolog.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("api request")
	}
}
