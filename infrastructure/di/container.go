package di

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"memoir-backend/application/services"
	"memoir-backend/infrastructure/config"
	"memoir-backend/infrastructure/llm"
	"memoir-backend/infrastructure/persistence/sqlite"
	"memoir-backend/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config        *config.Config
	Logger        *zap.Logger
	DB            *sql.DB
	Metrics       *observability.Collector
	Spaces        *services.MemorySpaceService
	Conversations *services.ConversationService
	Stories       *services.StoryService
}

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	metrics := observability.NewCollector("memoir")

	spaceRepo := sqlite.NewMemorySpaceRepository(db)
	memberRepo := sqlite.NewFamilyMemberRepository(db)
	sessionRepo := sqlite.NewSessionRepository(db)
	messageRepo := sqlite.NewMessageRepository(db)
	storyRepo := sqlite.NewStoryRepository(db)

	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, logger)
	agent := llm.NewConversationAgent(llmClient, cfg.ConversationModel)
	writer := llm.NewStoryWriter(llmClient, cfg.StoryModel)

	return &Container{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Metrics: metrics,
		Spaces:  services.NewMemorySpaceService(spaceRepo, memberRepo, logger),
		Conversations: services.NewConversationService(
			spaceRepo,
			sessionRepo,
			messageRepo,
			agent,
			metrics,
			logger,
			cfg.HistoryDepth,
			cfg.CollaboratorTimeout,
		),
		Stories: services.NewStoryService(sessionRepo, messageRepo, storyRepo, writer, metrics, logger),
	}, nil
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// Close releases the container's resources
func (c *Container) Close() error {
	return c.DB.Close()
}
