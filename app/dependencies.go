// Package app wires the application together: configuration, database,
// repositories, services and handlers.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/brightsmile/dental-assistant/config"
	"github.com/brightsmile/dental-assistant/handlers"
	"github.com/brightsmile/dental-assistant/repositories"
	"github.com/brightsmile/dental-assistant/repositories/postgres"
	"github.com/brightsmile/dental-assistant/services/chat"
	"github.com/brightsmile/dental-assistant/services/embedding"
	"github.com/brightsmile/dental-assistant/services/generation"
	"github.com/brightsmile/dental-assistant/services/index"
	"github.com/brightsmile/dental-assistant/services/knowledge"
	"github.com/brightsmile/dental-assistant/services/retrieval"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Repos     *repositories.Repositories
	TxManager repositories.TransactionManager

	// Core services
	Index     *index.Index
	Embedder  *embedding.Client
	Generator *generation.Client
	Retrieval *retrieval.Service
	Knowledge *knowledge.Service
	Chat      *chat.Service

	// HTTP handlers
	ChatHandler      *handlers.ChatHandler
	SearchHandler    *handlers.SearchHandler
	KnowledgeHandler *handlers.KnowledgeHandler
	HealthHandler    *handlers.HealthHandler
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initServices(cfg)
	deps.initHandlers(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection and repositories
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	d.Repos = factory.NewRepositories()
	d.TxManager = factory.GetTransactionManager()

	d.Logger.Info("repositories initialized",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initServices wires the retrieval pipeline: embedding and generation
// clients, the vector index and the services on top of them. Knowledge base
// changes propagate to the index through the listener registration.
func (d *Dependencies) initServices(cfg *config.Config) {
	d.Index = index.New(d.Logger)

	d.Embedder = embedding.NewClient(embedding.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.OpenAI.EmbeddingModel,
		Timeout:    cfg.OpenAI.Timeout,
		MaxRetries: cfg.OpenAI.MaxRetries,
	}, d.Logger)

	d.Generator = generation.NewClient(generation.Config{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.ChatModel,
		Temperature: float32(cfg.Chat.Temperature),
		MaxTokens:   cfg.Chat.MaxTokens,
		Timeout:     cfg.OpenAI.Timeout,
	}, d.Logger)

	d.Retrieval = retrieval.NewService(
		d.Embedder,
		d.Index,
		d.Repos.Knowledge,
		d.Repos.SearchLogs,
		cfg.Retrieval.Dedupe,
		d.Logger,
	)

	d.Knowledge = knowledge.NewService(d.Repos.Knowledge, d.TxManager, d.Embedder, d.Logger)
	d.Knowledge.AddListener(d.Retrieval)
	d.Knowledge.SetIndexSizeFunc(d.Index.Len)

	d.Chat = chat.NewService(
		d.Repos.Sessions,
		d.Repos.Messages,
		d.Retrieval,
		d.Generator,
		chat.Options{
			TopK:      cfg.Retrieval.TopK,
			Threshold: cfg.Retrieval.ChatThreshold,
		},
		d.Logger,
	)
}

// initHandlers creates the HTTP handlers
func (d *Dependencies) initHandlers(cfg *config.Config) {
	d.ChatHandler = handlers.NewChatHandler(d.Chat, d.Logger)
	d.SearchHandler = handlers.NewSearchHandler(d.Retrieval, cfg.Retrieval.SearchThreshold, d.Logger)
	d.KnowledgeHandler = handlers.NewKnowledgeHandler(d.Knowledge, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.DB.DB, d.Index, d.Logger)
}

// WarmIndex loads every searchable knowledge base entry into the vector
// index. Called once at startup; the service stays up even when the load
// fails, answering without retrieval context until a rebuild succeeds.
func (d *Dependencies) WarmIndex(ctx context.Context) error {
	count, err := d.Retrieval.RebuildIndex(ctx)
	if err != nil {
		return err
	}
	d.Logger.Info("vector index warmed", zap.Int("entries", count))
	return nil
}

// Close releases all resources held by the dependencies
func (d *Dependencies) Close() error {
	if d.RepoFactory != nil {
		return d.RepoFactory.Close()
	}
	return nil
}
