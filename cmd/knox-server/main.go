package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arbetsytan/knox/internal/api"
	"github.com/arbetsytan/knox/internal/auth"
	"github.com/arbetsytan/knox/internal/chread"
	"github.com/arbetsytan/knox/internal/config"
	"github.com/arbetsytan/knox/internal/knox"
	"github.com/arbetsytan/knox/internal/knox/generate"
	"github.com/arbetsytan/knox/internal/metrics"
	"github.com/arbetsytan/knox/internal/privacy"
	"github.com/arbetsytan/knox/internal/sanitize"
	"github.com/arbetsytan/knox/internal/storage"
	"github.com/arbetsytan/knox/internal/store"
	"github.com/arbetsytan/knox/internal/wipe"
)

func main() {
	// Logger
	logger := mustBuildLogger(envOrDefault("KNOX_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	httpPort := envOrDefault("KNOX_HTTP_PORT", "8080")
	configPath := envOrDefault("KNOX_CONFIG_PATH", "knox.yaml")
	dataDir := envOrDefault("KNOX_DATA_DIR", "data")
	postgresDSN := os.Getenv("POSTGRES_DSN")
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	mode := privacy.ParseMode(os.Getenv("ENVIRONMENT"))

	logger.Info("starting knox server",
		zap.String("http_port", httpPort),
		zap.String("config_path", configPath),
		zap.String("privacy_mode", mode.String()),
	)

	// Configuration store with hot reload
	cfgStore, err := config.NewStore(configPath, logger)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	snap := cfgStore.Current()
	logger.Info("configuration loaded", zap.String("ruleset_hash", snap.RulesetHash))

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	reloader, err := config.NewReloader(cfgStore, logger)
	if err != nil {
		logger.Warn("config hot reload unavailable", zap.Error(err))
	} else {
		go func() {
			if err := reloader.Run(rootCtx); err != nil {
				logger.Warn("config reloader stopped", zap.Error(err))
			}
		}()
	}

	// Sanitize pipeline
	detector := sanitize.NewDetector(sanitize.Ruleset{
		StrictMinDigits: snap.Config.Sanitize.StrictMinDigits,
		GateLongDigits:  snap.Config.Sanitize.GateLongDigits,
		NameLabels:      snap.Config.Sanitize.NameLabels,
	})
	pipeline := sanitize.NewPipeline(detector, logger)

	// Privacy guard + audit storage — ClickHouse or LogWriter fallback
	guard := privacy.NewGuard(mode, logger)
	var writer storage.EventWriter
	if clickhouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	recorder := storage.NewRecorder(writer, guard, logger)
	defer recorder.Close()

	// Postgres pool (required)
	if postgresDSN == "" {
		logger.Fatal("POSTGRES_DSN is required")
	}
	db, err := sql.Open("pgx", postgresDSN)
	if err != nil {
		logger.Fatal("failed to open postgres", zap.Error(err))
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(context.Background()); err != nil {
		logger.Fatal("failed to ping postgres", zap.Error(err))
	}
	pgStore := store.NewStore(db)
	logger.Info("postgres connected")

	// File vault for original uploads
	vault, err := store.NewFileVault(dataDir)
	if err != nil {
		logger.Fatal("failed to open file vault", zap.String("dir", dataDir), zap.Error(err))
	}

	// Report compiler: llama.cpp backend, or canned fixtures in test mode
	genCfg := snap.Config.Generation
	var gen generate.Generator
	if genCfg.TestMode {
		gen = &generate.FixtureGenerator{}
		logger.Info("generation test mode: serving fixtures")
	} else {
		gen = generate.NewClient(genCfg.URL, time.Duration(genCfg.TimeoutSeconds)*time.Second, logger)
		logger.Info("generation backend configured", zap.String("url", genCfg.URL))
	}
	compiler := knox.NewCompiler(detector, gen, pgStore, logger,
		time.Duration(genCfg.TimeoutSeconds)*time.Second, genCfg.MaxAttempts)

	// Detection thresholds and labels follow the config file; generation
	// settings are startup-only (see config.Generation).
	cfgStore.Subscribe(func(snap *config.Snapshot) {
		d := sanitize.NewDetector(sanitize.Ruleset{
			StrictMinDigits: snap.Config.Sanitize.StrictMinDigits,
			GateLongDigits:  snap.Config.Sanitize.GateLongDigits,
			NameLabels:      snap.Config.Sanitize.NameLabels,
		})
		pipeline.SwapDetector(d)
		compiler.SwapDetector(d)
		logger.Info("detection rules swapped", zap.String("ruleset_hash", snap.RulesetHash))
	})

	// Verified delete
	wiper := wipe.NewVerifier(store.NewWipeProvider(vault, pgStore), recorder, logger)

	// ClickHouse reader (for event listing endpoints)
	var chReader *chread.Reader
	if clickhouseDSN != "" {
		chReader, err = chread.NewReader(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse reader connection failed", zap.Error(err))
		} else {
			defer func() { _ = chReader.Close() }()
			logger.Info("clickhouse reader connected")
		}
	}

	// HTTP API server
	deps := &api.Dependencies{
		Store:    pgStore,
		Vault:    vault,
		Pipeline: pipeline,
		Compiler: compiler,
		Config:   cfgStore,
		Auth: auth.NewPostgresAuthenticator(auth.PostgresAuthConfig{
			Store:  pgStore,
			Logger: logger,
		}),
		Recorder: recorder,
		Reader:   chReader,
		Wiper:    wiper,
		Metrics:  metrics.New(),
		Logger:   logger,
	}
	httpServer := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // compile requests wait on generation
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	rootCancel()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("knox server stopped")
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
