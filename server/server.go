package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"locshare-relay/config"
	"locshare-relay/domain"
	ws "locshare-relay/websocket"
)

type Server struct {
	cfg      *config.Config
	registry domain.Registry
	handler  domain.MessageHandler
	upgrader websocket.Upgrader
	engine   *gin.Engine
	http     *http.Server
}

func New(cfg *config.Config, r domain.Registry, h domain.MessageHandler) *Server {
	s := &Server{
		cfg:      cfg,
		registry: r,
		handler:  h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(req *http.Request) bool {
				return cfg.AllowsOrigin(req.Header.Get("Origin"))
			},
		},
	}
	s.engine = s.routes()
	s.http = &http.Server{
		Addr:    cfg.Addr(),
		Handler: s.engine,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), corsMiddleware(s.cfg))

	router.GET("/ws", s.upgrade)
	router.GET("/health", health)
	router.GET("/stats", s.stats)
	return router
}

func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe blocks until the server stops. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	slog.Info("server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes every live connection.
// Hijacked websocket connections are not tracked by http.Server, so they are
// closed through the registry.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.registry.CloseAll()
	return err
}

func (s *Server) upgrade(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("upgrade error", "error", err, "origin", c.GetHeader("Origin"))
		return
	}

	opts := ws.Options{
		MaxMessageSize: s.cfg.Connection.MaxMessageSize,
		SendBuffer:     s.cfg.Connection.SendBuffer,
		RateLimit:      s.cfg.Connection.RateLimit,
		RateBurst:      s.cfg.Connection.RateBurst,
	}
	ws.NewConn(conn, s.registry, s.handler, opts).Start()
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"clients": s.registry.Stats()})
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && cfg.AllowsOrigin(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control, X-Requested-With")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
