// Package di builds the application object graph at startup. Construction is
// explicit and happens exactly once in InitializeContainer.
package di

import (
	"context"
	"fmt"
	"time"

	"relgraph-backend/application/ports"
	"relgraph-backend/application/services"
	"relgraph-backend/domain/graph"
	"relgraph-backend/infrastructure/config"
	"relgraph-backend/infrastructure/market"
	"relgraph-backend/infrastructure/persistence/seed"
	"relgraph-backend/infrastructure/persistence/sqlite"
	"relgraph-backend/interfaces/http/rest/middleware"
	"relgraph-backend/pkg/auth"
	"relgraph-backend/pkg/observability"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	GraphRepo   ports.GraphRepository
	UserRepo    ports.UserRepository
	RequestRepo ports.RequestRepository

	GraphService    *services.GraphService
	ApprovalService *services.ApprovalService

	Authenticator *middleware.Authenticator
	Metrics       *observability.Metrics

	sqlite *sqlite.Repository
}

// InitializeContainer creates a fully wired container. The schema registry is
// validated first; an inconsistent registry is a fatal startup error.
func InitializeContainer(_ context.Context, cfg *config.Config) (*Container, error) {
	if err := graph.ValidateSchema(); err != nil {
		return nil, fmt.Errorf("schema registry inconsistent: %w", err)
	}

	logger, err := provideLogger(cfg)
	if err != nil {
		return nil, err
	}

	c := &Container{Config: cfg, Logger: logger}

	if cfg.DatabasePath != "" {
		repo, err := sqlite.Open(cfg.DatabasePath, logger)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		c.sqlite = repo
		c.GraphRepo = repo
		c.UserRepo = sqlite.NewUserRepository(repo.DB(), logger)
		c.RequestRepo = sqlite.NewRequestRepository(repo.DB())
		logger.Info("using sqlite repository", zap.String("path", cfg.DatabasePath))
	} else {
		c.GraphRepo = seed.NewDefault()
		c.UserRepo = seed.NewUserRepository()
		c.RequestRepo = seed.NewRequestRepository()
		logger.Warn("DATABASE_PATH not set, using in-memory seed repository")
	}

	validator := market.NewYahooValidator(market.Config{
		BaseURL:    cfg.MarketBaseURL,
		Timeout:    time.Duration(cfg.MarketTimeoutMS) * time.Millisecond,
		MaxRetries: cfg.MarketMaxRetries,
	}, logger)

	c.GraphService = services.NewGraphService(c.GraphRepo, cfg.AllowedNodeType, cfg.EnableMultiType, logger)
	c.ApprovalService = services.NewApprovalService(c.GraphRepo, c.RequestRepo, validator, cfg.AllowedNodeType, logger)

	jwtValidator, err := provideJWTValidator(cfg)
	if err != nil {
		return nil, err
	}
	c.Authenticator = middleware.NewAuthenticator(jwtValidator, c.UserRepo, logger)

	if cfg.EnableMetrics {
		c.Metrics = observability.NewMetrics()
	}

	return c, nil
}

// Shutdown releases held resources.
func (c *Container) Shutdown() error {
	if c.sqlite != nil {
		return c.sqlite.Close()
	}
	return nil
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.LogLevel != "" {
		parsed, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
		}
		level = parsed
	}

	var zcfg zap.Config
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func provideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		// development fallback, Validate() forbids this in production
		secret = "development-secret-change-in-production"
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: secret,
		Issuer:    cfg.JWTIssuer,
	})
}
