// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "devsnippet/docs" // swagger docs
	"devsnippet/internal/auth"
	"devsnippet/internal/config"
	"devsnippet/internal/featureflags"
	"devsnippet/internal/media"
	"devsnippet/internal/middleware"
	"devsnippet/internal/models"
	"devsnippet/internal/notifications"
	"devsnippet/internal/repository"
	"devsnippet/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
)

// maxBodySize caps request bodies, uploads included.
const maxBodySize = 10 * 1024 * 1024

// Deps are the already-connected collaborators a Server is built from.
type Deps struct {
	Config *config.Config
	Store  *repository.Store
	Redis  *redis.Client
	// Media is the delegate used for uploads; nil means storage is not configured.
	Media media.Delegate
	// Close releases the store connection on shutdown.
	Close func() error
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	store          *repository.Store
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	closeStore     func() error

	tokens   *auth.TokenManager
	flags    *featureflags.Manager
	media    media.Delegate
	releaser *media.Releaser
	notifier *notifications.Notifier
	hub      *notifications.Hub

	authService  *service.AuthService
	postService  *service.PostService
	userService  *service.UserService
	adminService *service.AdminService
}

// NewServer creates a new server instance with all dependencies
func NewServer(deps Deps) (*Server, error) {
	if deps.Config == nil || deps.Store == nil {
		return nil, errors.New("server requires a config and a store")
	}

	tokens, err := auth.NewTokenManager(deps.Config.JWTSecret)
	if err != nil {
		return nil, err
	}

	delegate := deps.Media
	if delegate == nil {
		delegate = media.NoopDelegate{}
	}
	guarded := media.NewGuarded(delegate, deps.Config.MediaTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:         deps.Config,
		store:          deps.Store,
		redis:          deps.Redis,
		promMiddleware: middleware.InitMetrics("devsnippet-api"),
		shutdownCtx:    ctx,
		shutdownFn:     cancel,
		closeStore:     deps.Close,
		tokens:         tokens,
		flags:          featureflags.NewManager(deps.Config.FeatureFlags),
		media:          guarded,
		releaser:       media.NewReleaser(guarded, deps.Store.Cleanups, deps.Config.MediaTimeout),
		hub:            notifications.NewHub(),
	}
	s.notifier = notifications.NewNotifier(deps.Redis, s.hub)

	s.authService = service.NewAuthService(s.store.Users, s.tokens)
	s.postService = service.NewPostService(s.store.Posts, s.releaser, s.notifier)
	s.userService = service.NewUserService(s.store.Users, s.store.Posts, s.releaser)
	s.adminService = service.NewAdminService(s.store.Users, s.store.Posts, s.releaser, s.notifier)

	s.app = s.newApp()
	return s, nil
}

// App exposes the configured Fiber application, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "DevSnippet API",
		BodyLimit:    maxBodySize,
		ErrorHandler: errorHandler,
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// errorHandler is the last stop for errors returned by handlers and middleware.
func errorHandler(c *fiber.Ctx, err error) error {
	appErr := models.AsAppError(err)
	if appErr.Code == models.CodeInternal {
		middleware.Logger.ErrorContext(c.UserContext(), "unhandled request error",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return models.RespondWithError(c, appErr)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger("/health", "/metrics"))

	// CORS runs before anything that can short-circuit so error responses keep their headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: s.config.AllowedOrigins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Message: "Too many requests, please try again later",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{Title: "DevSnippet API Metrics"}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	session := middleware.SessionRequired(s.authService)

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", middleware.RateLimit(s.redis, 5, 10*time.Minute, "register"), s.Register)
	authRoutes.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	authRoutes.Post("/logout", s.Logout)
	authRoutes.Get("/me", session, s.Me)
	authRoutes.Put("/profile", session, s.UpdateProfile)
	authRoutes.Post("/upload-avatar", session, s.UploadAvatar)
	authRoutes.Get("/user/:username", s.GetPublicProfile)

	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Get("/:id", s.GetPost)
	posts.Post("/", session, middleware.RateLimit(s.redis, 10, time.Minute, "create_post"), s.CreatePost)
	// Specific /:id/:resource routes before the generic /:id ones.
	posts.Put("/:id/like", session, s.ToggleLike)
	posts.Put("/:id", session, s.UpdatePost)
	posts.Delete("/:id", session, s.DeletePost)

	api.Post("/media/upload", session, s.requireFeature(featureflags.MediaUpload),
		middleware.RateLimit(s.redis, 20, time.Minute, "media_upload"), s.UploadMedia)

	api.Get("/ws/feed", middleware.WebSocketSessionRequired(s.authService),
		s.requireFeature(featureflags.LiveFeed), s.FeedUpgrade, s.FeedHandler())

	admin := api.Group("/admin", session, middleware.AdminRequired)
	admin.Get("/dashboard", s.AdminDashboard)
	admin.Get("/users", s.AdminListUsers)
	admin.Get("/users/:id", s.AdminGetUser)
	admin.Put("/users/:id", s.AdminUpdateUser)
	admin.Delete("/users/:id", s.AdminDeleteUser)
}

// LivenessCheck answers liveness checks
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the store and Redis.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	storeStatus := "healthy"
	if s.store.Ping != nil {
		if err := s.store.Ping(ctx); err != nil {
			storeStatus = "unhealthy"
		}
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	// Redis is optional: without it the API runs uncached and feed events stay local.
	status := fiber.StatusOK
	overall := "healthy"
	if storeStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"store": storeStatus,
			"redis": redisStatus,
			"media": s.mediaState(),
		},
		"time": time.Now(),
	})
}

func (s *Server) mediaState() string {
	if g, ok := s.media.(*media.Guarded); ok {
		return g.State()
	}
	return "unknown"
}

// Start wires the feed to Redis and begins serving.
func (s *Server) Start() error {
	go func() {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			middleware.Logger.Error("failed to start feed wiring", slog.String("error", err.Error()))
		}
	}()

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownFn()

	var errs []error
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.hub.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("feed shutdown: %w", err))
	}

	// Pending media releases get a chance to finish before connections close.
	done := make(chan struct{})
	go func() {
		s.releaser.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		middleware.Logger.Warn("shutdown deadline reached with media releases pending")
	}

	if s.closeStore != nil {
		if err := s.closeStore(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return errors.Join(errs...)
}
