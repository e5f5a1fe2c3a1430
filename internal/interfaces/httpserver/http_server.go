package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"smartsite/edge-gateway/internal/chatclient"
	"smartsite/edge-gateway/internal/config"
	"smartsite/edge-gateway/internal/domain/session"
	"smartsite/edge-gateway/internal/infrastructure/metrics"
	"smartsite/edge-gateway/internal/interfaces/httpserver/handlers"
	"smartsite/edge-gateway/internal/interfaces/httpserver/middlewares"
)

// HttpServer wraps the gin engine with graceful shutdown helpers.
type HttpServer struct {
	cfg    *config.Config
	engine *gin.Engine
	log    zerolog.Logger
}

// New constructs the HTTP server with default middleware and routes.
func New(cfg *config.Config, log zerolog.Logger, gateway *session.Gateway, chat *chatclient.Client) *HttpServer {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middlewares.RequestID(),
		middlewares.TracingMiddleware(cfg.ServiceName),
		middlewares.LoggingMiddleware(log),
		middlewares.CORSMiddleware(cfg.AllowedOrigins),
		middlewares.MetricsMiddleware(),
	)

	sessionCfg := middlewares.SessionConfig{
		SessionCookie: cfg.SessionCookie,
		AccessCookie:  cfg.AccessCookie,
		PurgeCookies:  cfg.PurgeCookies,
		LoginPath:     "/login",
		HomePath:      "/home",
		OnboardPath:   "/onboard",
		StoreURL:      cfg.MobileStoreURL,
		Production:    cfg.IsProduction(),
		CSP:           middlewares.DefaultCSP(),
	}

	registerCoreRoutes(engine, cfg)
	registerPageRoutes(engine, gateway, sessionCfg, log)
	registerChatRoutes(engine, chat)

	return &HttpServer{
		cfg:    cfg,
		engine: engine,
		log:    log,
	}
}

// Engine exposes the underlying router, mostly for tests.
func (s *HttpServer) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP listener and handles graceful shutdown via context cancellation.
func (s *HttpServer) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr()).Msg("edge-gateway HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("context cancelled, shutting down HTTP server")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func registerCoreRoutes(engine *gin.Engine, cfg *config.Config) {
	engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": cfg.ServiceName, "status": "ok"})
	})
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	engine.GET("/readyz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// registerPageRoutes mounts the session gateway in front of every page
// path. Pages hang off NoRoute so the classifier sees the real request
// path; anything the route table classifies as public passes through
// untouched, which keeps static assets safe.
func registerPageRoutes(engine *gin.Engine, gateway *session.Gateway, cfg middlewares.SessionConfig, log zerolog.Logger) {
	guard := middlewares.SessionGateway(gateway, cfg, log)

	engine.NoRoute(guard, func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"path":    c.Request.URL.Path,
			"class":   gateway.Classify(c.Request.URL.Path).String(),
			"user_id": c.GetString("user_id"),
		})
	})
}

func registerChatRoutes(engine *gin.Engine, chat *chatclient.Client) {
	handler := handlers.NewChatHandler(chat)

	v1 := engine.Group("/v1/chat")
	v1.GET("/status", handler.Status)
	v1.GET("/conversations", handler.Conversations)
	v1.GET("/conversations/:peer/messages", handler.Messages)
	v1.POST("/conversations/:peer/read", handler.MarkRead)
	v1.POST("/messages", handler.Send)
	v1.PATCH("/messages/:id", handler.Edit)
	v1.DELETE("/messages/:id", handler.Delete)
	v1.GET("/messages/unread-count", handler.UnreadCount)
	v1.GET("/contacts/search", handler.SearchContacts)
	v1.POST("/users/:id/block", handler.Block)
	v1.POST("/users/:id/unblock", handler.Unblock)
}
