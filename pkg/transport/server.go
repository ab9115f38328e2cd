package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/coordinator"
	"github.com/vpnda/statement-relay/pkg/protocol"
)

const (
	PathMessages   = "/v1/messages"
	PathTabs       = "/v1/tabs"
	PathConnect    = "/v1/tabs/connect"
	PathHealth     = "/health"
	QueryParamPage = "url"
)

type Server struct {
	coord  *coordinator.Coordinator
	hub    *Hub
	engine *gin.Engine
	srv    *http.Server
}

// NewServer wires the UI endpoint and the tab endpoints. allowedOrigins
// restricts browser callers; empty allows any origin.
func NewServer(coord *coordinator.Coordinator, hub *Hub, allowedOrigins []string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	engine.Use(cors.New(corsConfig))

	s := &Server{coord: coord, hub: hub, engine: engine}

	engine.GET(PathHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "tabs": len(hub.Tabs())})
	})
	v1 := engine.Group("/v1")
	{
		v1.POST("/messages", s.handleMessage)
		v1.GET("/tabs", s.listTabs)
		v1.GET("/tabs/connect", s.connectTab)
		v1.POST("/tabs/:id/activate", s.activateTab)
	}
	return s
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleMessage(c *gin.Context) {
	var req protocol.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, protocol.Fail(&req, fmt.Errorf("%w: %s", bank.ErrValidation, err)))
		return
	}
	if req.Action == "" {
		c.JSON(http.StatusBadRequest, protocol.Fail(&req, fmt.Errorf("%w: missing action", bank.ErrValidation)))
		return
	}
	c.JSON(http.StatusOK, s.coord.Handle(c.Request.Context(), &req))
}

func (s *Server) listTabs(c *gin.Context) {
	c.JSON(http.StatusOK, s.hub.Tabs())
}

func (s *Server) connectTab(c *gin.Context) {
	if err := s.hub.HandleRequest(c.Writer, c.Request, c.Query(QueryParamPage)); err != nil {
		log.Warn().Err(err).Msg("failed to upgrade tab connection")
	}
}

func (s *Server) activateTab(c *gin.Context) {
	if err := s.hub.Activate(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("coordinator listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.hub.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close tab hub")
	}
	return s.srv.Shutdown(shutdownCtx)
}
