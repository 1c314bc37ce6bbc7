package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"askpdf/app/agent"
	"askpdf/app/api"
	"askpdf/app/middleware"
	"askpdf/app/retriever"
	"askpdf/app/usage"
	"askpdf/loader"
	"askpdf/model"
	"askpdf/store"
	"askpdf/types"

	"github.com/gofiber/fiber/v2"
)

var config = fiber.Config{
	ErrorHandler: api.ErrorHandler,
	BodyLimit:    64 << 20,
}

type Server struct {
	listenAddr string
	logger     *slog.Logger
	db         *store.PostgresStore
	app        *fiber.App
}

func New(addr string, logger *slog.Logger) *Server {
	return &Server{
		listenAddr: addr,
		logger:     logger,
	}
}

func (s *Server) Run() error {
	ctx := context.Background()

	port, _ := strconv.Atoi(os.Getenv("PG_PORT"))
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("PG_HOST"), port, os.Getenv("PG_USER"), os.Getenv("PG_PASS"), os.Getenv("PG_DB_NAME"))

	db, err := store.NewPostgresStore(ctx, connStr)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	s.db = db

	if err := db.Init(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	files, err := store.NewLocalFileStore(os.Getenv("UPLOAD_DIR"))
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	systemKeys := types.APIKeys{
		OpenAI:    os.Getenv("OPENAI_API_KEY"),
		Anthropic: os.Getenv("ANTHROPIC_API_KEY"),
		Google:    os.Getenv("GOOGLE_API_KEY"),
		DeepSeek:  os.Getenv("DEEPSEEK_API_KEY"),
	}

	embedder, err := model.NewOpenAIEmbedder(systemKeys.OpenAI)
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}

	var (
		catalog = model.DefaultCatalog()
		router  = model.NewRouter(catalog, systemKeys, s.logger)
		ret     = retriever.New(db, embedder, s.logger)
		ldr     = loader.New(files, db, embedder, s.logger)
		gate    = usage.New(db, s.logger)
		answers = agent.New(db, ret, router, s.logger)

		app            = fiber.New(config)
		checkHandler   = api.NewCheckHandler()
		chatHandler    = api.NewChatHandler(answers, gate, s.logger)
		ingestHandler  = api.NewIngestHandler(ldr, files, db, s.logger)
		fileHandler    = api.NewFileHandler(files, db, gate, s.logger)
		messageHandler = api.NewMessageHandler(db)
		modelHandler   = api.NewModelHandler(catalog)

		check = app.Group("/check")
		apiv1 = app.Group("/api/v1")
	)
	s.app = app

	app.Use(middleware.RequestLogger(s.logger))

	check.Get("/healthy", checkHandler.HandleHealthy)

	apiv1.Post("/chat", chatHandler.HandleChat)
	apiv1.Post("/ingest", ingestHandler.HandleIngest)
	apiv1.Post("/documents/delete", ingestHandler.HandleDeleteDocument)
	apiv1.Post("/upload", fileHandler.HandleUpload)
	apiv1.Get("/chats/:chatId/messages", messageHandler.HandleListMessages)
	apiv1.Get("/messages/:messageId/sources", messageHandler.HandleMessageSources)
	apiv1.Get("/models", modelHandler.HandleListModels)

	s.logger.Info("server starting", "addr", s.listenAddr)
	return app.Listen(s.listenAddr)
}

func (s *Server) Stop() {
	if s.app != nil {
		if err := s.app.Shutdown(); err != nil {
			s.logger.Error("shutdown failed", "error", err)
		}
	}
	if s.db != nil {
		s.db.Close()
	}
	s.logger.Info("server stopped")
}
