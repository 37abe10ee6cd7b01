package routes

import (
	"net/http"
	"time"

	"forum-service/internal/api/handlers"
	"forum-service/internal/api/middleware"
	"forum-service/internal/config"
	"forum-service/internal/services"
	"forum-service/internal/session"
	"forum-service/internal/websocket"
	"forum-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps is everything the HTTP surface is built from.
type Deps struct {
	Config              *config.Config
	AuthService         *services.AuthService
	ForumService        *services.ForumService
	NotificationService *services.NotificationService
	Limiter             middleware.Limiter
	Codec               *session.CookieCodec
	Resolver            *session.Resolver
	Hub                 *websocket.Hub
	Gatherer            prometheus.Gatherer
	Logger              *logger.Logger
}

type Router struct {
	engine              *gin.Engine
	cfg                 *config.Config
	gatherer            prometheus.Gatherer
	wsHandler           *handlers.WSHandler
	authHandler         *handlers.AuthHandler
	forumHandler        *handlers.ForumHandler
	notificationHandler *handlers.NotificationHandler
	statsHandler        *handlers.StatsHandler
	rateLimitMW         *middleware.RateLimitMiddleware
	authMW              *middleware.AuthMiddleware
}

func NewRouter(d Deps) *Router {
	if d.Config.Log.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(d.Config.WebSocket.AllowedOrigins))
	engine.Use(middleware.RequestLogger(d.Logger))

	return &Router{
		engine:              engine,
		cfg:                 d.Config,
		gatherer:            d.Gatherer,
		wsHandler:           handlers.NewWSHandler(d.Hub),
		authHandler:         handlers.NewAuthHandler(d.AuthService, d.Codec, d.Resolver, d.Logger),
		forumHandler:        handlers.NewForumHandler(d.ForumService, d.Logger),
		notificationHandler: handlers.NewNotificationHandler(d.NotificationService),
		statsHandler:        handlers.NewStatsHandler(d.ForumService, d.Hub.Registry()),
		rateLimitMW:         middleware.NewRateLimitMiddleware(d.Limiter, d.Logger),
		authMW:              middleware.NewAuthMiddleware(d.Resolver, d.Logger),
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))

	// Authentication happens inside the upgrade so a rejected socket gets
	// a close code instead of an HTTP error.
	r.engine.GET("/ws",
		r.rateLimitMW.RateLimitIP(r.cfg.RateLimit.UpgradesPerMinute, time.Minute),
		r.wsHandler.HandleWebSocket,
	)

	api := r.engine.Group("/api")

	// Public routes
	public := api.Group("/")
	{
		authRoutes := public.Group("/")
		authRoutes.Use(r.rateLimitMW.RateLimitIP(50, time.Minute))
		{
			authRoutes.POST("/register", r.authHandler.Register)
			authRoutes.POST("/login", r.authHandler.Login)
			authRoutes.POST("/logout", r.authHandler.Logout)
		}
		public.GET("/stats", r.statsHandler.Community)
	}

	// Authenticated routes
	auth := api.Group("/")
	auth.Use(r.authMW.RequireAuth())
	{
		auth.GET("/user", r.authHandler.Me)

		writes := auth.Group("/")
		writes.Use(r.rateLimitMW.RateLimit(r.cfg.RateLimit.WritesPerMinute, time.Minute))
		{
			writes.POST("/posts/:id/comments", r.forumHandler.CreateComment)
			writes.POST("/posts/:id/like", r.forumHandler.LikePost)
			writes.POST("/comments/:id/like", r.forumHandler.LikeComment)
		}

		notifications := auth.Group("/notifications")
		{
			notifications.GET("", r.notificationHandler.List)
			notifications.GET("/unread-count", r.notificationHandler.UnreadCount)
			notifications.PUT("/read-all", r.notificationHandler.MarkAllRead)
			notifications.PUT("/:id/read", r.notificationHandler.MarkRead)
		}
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
