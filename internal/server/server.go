// Package server assembles the forum service from its configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"forum-service/internal/api/routes"
	"forum-service/internal/config"
	"forum-service/internal/database"
	"forum-service/internal/repositories/postgres"
	"forum-service/internal/services"
	"forum-service/internal/session"
	"forum-service/internal/websocket"
	"forum-service/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	cfg    *config.Config
	logger *logger.Logger
	db     *gorm.DB
	redis  *database.RedisClient
	hub    *websocket.Hub
	server *http.Server
}

func NewApp(cfg *config.Config, log *logger.Logger) (*App, error) {
	redisClient, err := database.NewRedisConnection(cfg.Redis, log)
	if err != nil {
		return nil, err
	}

	db, err := database.NewPostgresConnection(cfg.Database.URI)
	if err != nil {
		redisClient.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Sessions
	codec := session.NewCookieCodec(cfg.Session.CookieName, cfg.Session.Secret, cfg.Session.TTL, cfg.Session.Secure)
	sessionStore := session.NewRedisStore(redisClient.GetClient(), cfg.Session.TTL)
	resolver := session.NewResolver(codec, sessionStore)

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	forumRepo := postgres.NewForumRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)

	// Realtime
	redisService := services.NewRedisService(redisClient, log)
	metrics := websocket.NewMetrics(reg)
	registry := websocket.NewRegistry(log.With("component", "registry"))
	hub := websocket.NewHub(registry, websocket.NewAuthenticator(resolver), metrics, cfg.WebSocket, log.With("component", "hub")).
		WithPresence(redisService)
	dispatcher := websocket.NewDispatcher(registry, notificationRepo, metrics, log.With("component", "dispatcher"))

	router := routes.NewRouter(routes.Deps{
		Config:              cfg,
		AuthService:         services.NewAuthService(userRepo, sessionStore, log),
		ForumService:        services.NewForumService(forumRepo, dispatcher, log),
		NotificationService: services.NewNotificationService(notificationRepo),
		Limiter:             redisService,
		Codec:               codec,
		Resolver:            resolver,
		Hub:                 hub,
		Gatherer:            reg,
		Logger:              log,
	})
	router.SetupRoutes()

	return &App{
		cfg:    cfg,
		logger: log,
		db:     db,
		redis:  redisClient,
		hub:    hub,
		server: &http.Server{
			Addr:         cfg.Server.Addr(),
			Handler:      router.GetEngine(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
	}, nil
}

// Run serves until ctx is cancelled, then drains: live sockets are closed
// with going-away before the HTTP server shuts down.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server starting", "address", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.close()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	a.logger.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.hub.Shutdown()
	err := a.server.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("Server forced to shutdown", "error", err)
	}
	// Hijacked sockets are not tracked by http.Server; their read loops still
	// clear presence through Redis.
	if drainErr := a.hub.WaitDrained(shutdownCtx); drainErr != nil && err == nil {
		err = drainErr
	}
	a.close()
	a.logger.Info("Server stopped")
	return err
}

func (a *App) close() {
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("Error closing Redis", "error", err)
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
