package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/audit"
	"github.com/veracity-data/veracity-engine/pkg/config"
	"github.com/veracity-data/veracity-engine/pkg/database"
	"github.com/veracity-data/veracity-engine/pkg/handlers"
	"github.com/veracity-data/veracity-engine/pkg/ingest"
	"github.com/veracity-data/veracity-engine/pkg/llm"
	"github.com/veracity-data/veracity-engine/pkg/logging"
	"github.com/veracity-data/veracity-engine/pkg/metrics"
	"github.com/veracity-data/veracity-engine/pkg/middleware"
	"github.com/veracity-data/veracity-engine/pkg/repositories"
	"github.com/veracity-data/veracity-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const migrationsDir = "migrations"

// multipartSlack is headroom on top of the upload size limit for multipart
// boundaries and form fields, so the body cap rejects at the transport level
// only what screening would reject anyway.
const multipartSlack = 1 << 20

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.String("upload_dir", cfg.Upload.Dir),
		zap.Bool("ai_advisor", cfg.AI.IsAvailable()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Migrations failed", zap.String("error", logging.SanitizeError(err)))
	}

	db, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		// Driver errors can quote the full DSN, password included.
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	if err := os.MkdirAll(cfg.Upload.Dir, 0o750); err != nil {
		logger.Fatal("Failed to create upload directory", zap.Error(err))
	}

	m := metrics.New()

	datasetRepo := repositories.NewDatasetRepository(db.Pool)
	profileRepo := repositories.NewProfileRepository(db.Pool)
	issueRepo := repositories.NewIssueRepository(db.Pool)
	ruleRepo := repositories.NewRuleRepository(db.Pool)

	screener := ingest.NewScreener(&cfg.Upload)
	auditor := audit.NewSecurityAuditor(logger)

	datasetService := services.NewDatasetService(datasetRepo, screener, auditor, m, cfg.Upload.Dir, logger)
	qualityService := services.NewQualityService(datasetRepo, profileRepo, issueRepo, m, logger)
	validationService := services.NewValidationService(datasetRepo, ruleRepo, m, logger)
	driftService := services.NewDriftService(datasetRepo, m, logger)

	// The advisor degrades to 503 responses instead of blocking startup
	// when no API key is configured.
	var chat llm.ChatClient
	if cfg.AI.IsAvailable() {
		client, err := llm.NewClient(&llm.Config{
			Endpoint: cfg.AI.BaseURL,
			Model:    cfg.AI.Model,
			APIKey:   cfg.AI.APIKey,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create AI client", zap.Error(err))
		}
		chat = client
		logger.Info("AI advisor enabled", zap.String("model", cfg.AI.Model))
	} else {
		logger.Info("AI advisor disabled (AI_API_KEY not set)")
	}
	advisorService := services.NewAdvisorService(chat, datasetRepo, profileRepo, issueRepo, m, logger)

	retention := services.NewRetentionService(profileRepo, cfg.Retention, logger)
	if err := retention.Start(); err != nil {
		logger.Fatal("Failed to start retention job", zap.Error(err))
	}
	defer retention.Stop()

	globalLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger)
	uploadLimiter := perMinuteLimiter(cfg.RateLimit.UploadsPerMinute, logger)
	screenLimiter := perMinuteLimiter(cfg.RateLimit.ChecksPerMinute, logger)
	validateLimiter := perMinuteLimiter(cfg.RateLimit.ChecksPerMinute, logger)
	defer globalLimiter.Close()
	defer uploadLimiter.Close()
	defer screenLimiter.Close()
	defer validateLimiter.Close()

	mux := http.NewServeMux()

	// Register handlers
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewDatasetsHandler(datasetService, uploadLimiter, screenLimiter, logger).RegisterRoutes(mux)
	handlers.NewQualityHandler(qualityService, logger).RegisterRoutes(mux)
	handlers.NewRulesHandler(validationService, validateLimiter, logger).RegisterRoutes(mux)
	handlers.NewDriftHandler(driftService, logger).RegisterRoutes(mux)
	handlers.NewAdvisorHandler(advisorService, qualityService, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", m.Handler())

	var handler http.Handler = mux
	handler = m.Middleware(handler)
	handler = middleware.RequestLogger(logger)(handler)
	handler = globalLimiter.Middleware(handler)
	handler = middleware.MaxBodyBytes(cfg.Upload.MaxSizeBytes + multipartSlack)(handler)
	handler = middleware.SecurityHeaders(handler)
	handler = middleware.CORS(cfg.CORSAllowedOrigins)(handler)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting veracity-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		if cfg.TLSCertPath != "" {
			errCh <- server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			errCh <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", zap.Error(err))
		}
	}
}

// runMigrations applies pending schema migrations over a short-lived
// database/sql connection before the pgx pool opens.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	dbCfg := cfg.Database
	dbCfg.Host = config.ResolveHostForDocker(dbCfg.Host)

	sqlDB, err := sql.Open("pgx", dbCfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			logger.Warn("Failed to close migration connection", zap.Error(err))
		}
	}()

	return database.RunMigrations(sqlDB, migrationsDir, logger)
}

func perMinuteLimiter(perMinute int, logger *zap.Logger) *middleware.RateLimiter {
	return middleware.NewRateLimiter(float64(perMinute)/60.0, perMinute, logger)
}
