package web

import (
	"context"
	"errors"
	"net"
	"net/http"

	"automator/auth"
	"automator/internal/web/api"
	"automator/internal/web/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies are the collaborators behind the control API
type Dependencies struct {
	Auth      *auth.AuthModule
	Rules     api.RuleRepository
	Engine    api.RuleEngine
	States    api.StateReader
	BlockList api.BlockListEditor
	RateLimit float64
	RateBurst int
	AgentID   string
}

type WebServer struct {
	router *gin.Engine
	server *http.Server
	logger *zap.Logger
}

func NewWebServer(deps Dependencies, logger *zap.Logger) *WebServer {
	router := gin.New()

	middlewareManager := middleware.NewMiddlewareManager(deps.Auth, deps.RateLimit, deps.RateBurst, logger)
	router.Use(gin.Recovery(), middlewareManager.RequestLogger(), middlewareManager.RateLimit())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "agent_id": deps.AgentID})
	})
	api.RegisterAuthRoutes(router, deps.Auth)
	api.RegisterRuleRoutes(router, middlewareManager, deps.Rules, deps.Engine, logger.Named("api"))
	api.RegisterDeviceRoutes(router, middlewareManager, deps.States, deps.BlockList)

	return &WebServer{
		router: router,
		server: &http.Server{Handler: router},
		logger: logger.Named("web"),
	}
}

// Handler exposes the router
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start serves on addr until Shutdown is called
func (ws *WebServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ws.logger.Info("Web server listening", zap.String("addr", ln.Addr().String()))
	if err := ws.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (ws *WebServer) Shutdown(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}
