package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"station-assistant/internal/application"
	"station-assistant/internal/domain"
)

// Station is the part of the dispatcher the API uses.
type Station interface {
	Dispatch(ctx context.Context, name string, params domain.Params) domain.Result
	Status() domain.Snapshot
	Connect(ctx context.Context)
	Disconnect()
}

type VoiceResolver interface {
	Resolve(ctx context.Context, text string) domain.Result
}

type AppInfo struct {
	Name        string
	Version     string
	Environment string
}

type Server struct {
	addr      string
	echo      *echo.Echo
	station   Station
	registry  *application.Registry
	assistant VoiceResolver
	info      AppInfo
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	running bool
}

func NewServer(addr string, station Station, registry *application.Registry, assistant VoiceResolver, info AppInfo, logger *slog.Logger) *Server {
	s := &Server{
		addr:      addr,
		echo:      echo.New(),
		station:   station,
		registry:  registry,
		assistant: assistant,
		info:      info,
		logger:    logger,
		now:       time.Now,
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = 15 * time.Second
	s.echo.Server.WriteTimeout = 15 * time.Second
	s.echo.Server.IdleTimeout = 60 * time.Second

	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("request",
				"request_id", v.RequestID,
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
			)
			return nil
		},
	}))
	s.echo.Use(middleware.Secure())
	s.echo.Use(middleware.CORS())

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/info", s.handleInfo)

	api := s.echo.Group("/api/v1")
	api.GET("/station", s.handleStatus)
	api.POST("/station/connect", s.handleConnect)
	api.POST("/station/disconnect", s.handleDisconnect)
	api.GET("/commands", s.handleListCommands)
	api.POST("/commands/:name", s.handleCommand)
	api.POST("/voice/command", s.handleVoiceCommand)
	api.POST("/voice/alice", s.handleAlice)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	go func() {
		s.logger.Info("HTTP API starting", "addr", s.addr)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.echo.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}

	s.running = false
	return nil
}
