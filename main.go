package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/retailvoice/askdb/pkg/adapters/datasource"
	"github.com/retailvoice/askdb/pkg/adapters/datasource/mssql"
	"github.com/retailvoice/askdb/pkg/adapters/datasource/postgres"
	"github.com/retailvoice/askdb/pkg/config"
	"github.com/retailvoice/askdb/pkg/handlers"
	"github.com/retailvoice/askdb/pkg/llm"
	"github.com/retailvoice/askdb/pkg/logging"
	"github.com/retailvoice/askdb/pkg/middleware"
	"github.com/retailvoice/askdb/pkg/schema"
	"github.com/retailvoice/askdb/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("dialect", cfg.Database.Dialect),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	executor, extractor, err := buildAdapters(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer executor.Close()

	// The catalog loads once at startup; an unreachable or empty database
	// is fatal rather than degraded.
	catalog, err := schema.Load(ctx, extractor, logger)
	if err != nil {
		logger.Fatal("Failed to load schema catalog", zap.Error(err))
	}

	if cfg.Agent.JoinWhitelistPath != "" {
		allowlist, err := schema.LoadAllowlist(cfg.Agent.JoinWhitelistPath)
		if err != nil {
			logger.Fatal("Failed to load join allowlist", zap.Error(err))
		}
		if err := catalog.ApplyAllowlist(allowlist); err != nil {
			logger.Fatal("Failed to apply join allowlist", zap.Error(err))
		}
	}

	client, err := llm.NewClient(cfg.LLM.Provider, &llm.Config{
		Endpoint: cfg.LLM.Endpoint,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		Timeout:  time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create completion client", zap.Error(err))
	}

	composer := services.NewComposer(client, logger)
	agent := services.NewAgent(catalog, client, executor, composer, cfg.Agent, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewAskHandler(agent, cfg.Agent.DefaultRowLimit, logger).RegisterRoutes(mux)
	handlers.NewSQLHandler(catalog, executor, cfg.Agent.DefaultRowLimit, logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(catalog, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:    cfg.BindAddr + ":" + cfg.Port,
		Handler: middleware.RequestLogger(logger)(mux),
	}

	go func() {
		logger.Info("starting askdb",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

// loadConfig prefers config.yaml but falls back to environment-only
// configuration when no file is present (containers, CI).
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat("config.yaml"); err == nil {
		return config.Load(Version)
	}
	return config.LoadFromEnv(Version)
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildAdapters creates the query executor and schema extractor for the
// configured dialect, sharing one connection per dialect.
func buildAdapters(ctx context.Context, cfg *config.Config) (datasource.QueryExecutor, datasource.SchemaExtractor, error) {
	switch cfg.Database.Dialect {
	case "postgres":
		executor, err := postgres.NewQueryExecutor(ctx, &postgres.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, nil, err
		}
		return executor, postgres.NewSchemaExtractorFromPool(executor.Pool()), nil
	case "mssql":
		executor, err := mssql.NewQueryExecutor(ctx, &mssql.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			Username: cfg.Database.User,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return nil, nil, err
		}
		return executor, mssql.NewSchemaExtractorFromDB(executor.DB()), nil
	default:
		return nil, nil, fmt.Errorf("unsupported dialect %q", cfg.Database.Dialect)
	}
}
