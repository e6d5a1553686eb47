package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/illegalcall/automark/internal/automark"
	"github.com/illegalcall/automark/internal/config"
	"github.com/illegalcall/automark/internal/events"
	"github.com/illegalcall/automark/internal/generator"
	"github.com/illegalcall/automark/internal/instagram"
	"github.com/illegalcall/automark/internal/profile"
	"github.com/illegalcall/automark/internal/storage"
)

// Backend is everything the API needs from the generation service.
type Backend interface {
	generator.Backend
	instagram.PostBackend
	instagram.SettingsBackend
}

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	logger    *slog.Logger
	store     *profile.Store
	backend   Backend
	storage   storage.Storage
	publisher events.Publisher
	settings  *instagram.Settings
	sessions  *sessions
}

func NewServer(cfg *config.Config, store *profile.Store, backend Backend, publisher events.Publisher) (*Server, error) {
	localStorage, err := storage.NewLocalStorage(cfg.Storage.DownloadDir, cfg.Storage.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if publisher == nil {
		publisher = events.Nop{}
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.Server.MaxUploadSize,
		ErrorHandler: errorHandler,
	})

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status}\n",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Server.MaxRequests,
		Expiration: cfg.Server.RequestTimeout,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/metrics"
		},
	}))

	server := &Server{
		app:       app,
		cfg:       cfg,
		logger:    slog.Default().With("component", "api"),
		store:     store,
		backend:   backend,
		storage:   localStorage,
		publisher: publisher,
		settings:  instagram.NewSettings(backend, cfg.Backend.UserID),
		sessions:  newSessions(cfg.JWT.Expiration),
	}

	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	s.app.Get("/instagram-settings", s.handleInstagramCallback)

	api := s.app.Group("/api")

	// Public routes
	api.Post("/login", s.handleLogin)

	// Protected routes
	protected := api.Use(jwtware.New(jwtware.Config{
		SigningKey: []byte(s.cfg.JWT.Secret),
		ContextKey: jwtLocalsKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		},
	}))
	protected.Post("/logout", s.handleLogout)

	protected.Get("/profile", s.handleGetProfile)
	protected.Patch("/profile", s.handleUpdateProfile)
	protected.Post("/profile/reset", s.handleResetProfile)

	protected.Get("/ads", s.handleListAds)
	protected.Get("/ads/:id", s.handleGetAd)
	protected.Delete("/ads/:id", s.handleDeleteAd)

	protected.Get("/generator", s.withSession(s.handleGetGenerator))
	protected.Put("/generator/mode", s.withSession(s.handleSetMode))
	protected.Post("/generator/generate", s.withSession(s.handleGenerate))
	protected.Post("/generator/download", s.withSession(s.handleDownload))

	protected.Get("/instagram/modal", s.withSession(s.handleGetModal))
	protected.Post("/instagram/modal/open", s.withSession(s.handleOpenModal))
	protected.Put("/instagram/modal/post-type", s.withSession(s.handleSetPostType))
	protected.Put("/instagram/modal/caption", s.withSession(s.handleSetCaption))
	protected.Post("/instagram/modal/caption/regenerate", s.withSession(s.handleRegenerateCaption))
	protected.Post("/instagram/modal/post", s.withSession(s.handlePost))
	protected.Post("/instagram/modal/close", s.withSession(s.handleCloseModal))

	protected.Get("/instagram/settings", s.handleGetSettings)
	protected.Post("/instagram/connect", s.handleConnect)
	protected.Post("/instagram/disconnect", s.handleDisconnect)
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown stops accepting requests and closes every session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessions.closeAll()
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// backendStatus maps a client error to the status the API answers with.
func backendStatus(err error) int {
	var remote *automark.RemoteError
	switch {
	case errors.As(err, &remote):
		return http.StatusBadGateway
	case errors.Is(err, automark.ErrTransport):
		return http.StatusServiceUnavailable
	case errors.Is(err, automark.ErrMalformedResponse):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
