package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/choruslabs/chorus/pkg/fanout"
	"github.com/choruslabs/chorus/pkg/llm/source"
	"github.com/choruslabs/chorus/pkg/storage"
)

// Server is the API server for managing chats and running fan-out turns.
type Server struct {
	config     Config
	store      storage.Store
	registry   *source.Registry
	aggregator *fanout.Aggregator
	logger     *zap.Logger
	app        *fiber.App
}

// NewServer creates a new API server.
// The store and aggregator are injected so they can be shared with other
// components.
func NewServer(config Config, store storage.Store, registry *source.Registry, aggregator *fanout.Aggregator, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
	})

	s := &Server{
		config:     config,
		store:      store,
		registry:   registry,
		aggregator: aggregator,
		logger:     logger,
		app:        app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/api/models", s.handleListModels)
	app.Get("/api/chats", s.handleListChats)
	app.Post("/api/chats", s.handleCreateChat)
	app.Get("/api/chats/:id", s.handleGetChat)
	app.Delete("/api/chats/:id", s.handleDeleteChat)
	app.Post("/api/chat/stream", s.handleChatStream)
	app.Post("/api/chat", s.handleChat)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
