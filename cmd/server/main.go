// Package main is the entry point for the pizza board server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/pizzaboard/internal/auth"
	"github.com/vyrodovalexey/pizzaboard/internal/config"
	"github.com/vyrodovalexey/pizzaboard/internal/handler"
	"github.com/vyrodovalexey/pizzaboard/internal/octopus"
	"github.com/vyrodovalexey/pizzaboard/internal/server"
	"github.com/vyrodovalexey/pizzaboard/internal/store"
	"github.com/vyrodovalexey/pizzaboard/internal/view"
)

var loadDotEnv = godotenv.Load

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env file is fine; the environment may be set directly.
	_ = loadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to load configuration", zap.Error(err))
		return 1
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to initialize logger", zap.Error(err))
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.ServerPort),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.String("auth_mode", cfg.AuthMode),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
	)

	authenticator, err := createAuthenticator(cfg, logger)
	if err != nil {
		logger.Error("failed to create authenticator", zap.Error(err))
		return 1
	}

	surface := handler.NewSurface(logger, cfg.AllowedOrigins)
	board, err := wireBoard(context.Background(), surface, logger)
	if err != nil {
		logger.Error("failed to initialize pizza board", zap.Error(err))
		return 1
	}

	srv, err := server.New(cfg, logger, board, surface, authenticator)
	if err != nil {
		logger.Error("failed to create server", zap.Error(err))
		return 1
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", zap.Error(err))
		return 1
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return 1
		}
	}

	logger.Info("server stopped")
	return 0
}

// wireBoard connects store, mediator and presenter. The mediator is the only
// piece holding both the state and the presenter.
func wireBoard(ctx context.Context, surface view.Surface, logger *zap.Logger) (*octopus.Octopus, error) {
	board := octopus.New(store.New(), logger.Named("octopus"))
	presenter := view.NewPresenter(board, surface, logger.Named("view"))
	board.Attach(presenter)

	if err := board.Init(ctx); err != nil {
		return nil, err
	}
	return board, nil
}

// initLogger initializes a zap logger with the specified log level.
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapConfig.Build()
}

// createAuthenticator creates an authenticator based on the config auth
// mode. A nil authenticator means authentication is off.
func createAuthenticator(cfg *config.Config, logger *zap.Logger) (auth.Authenticator, error) {
	switch cfg.AuthMode {
	case "none", "":
		logger.Info("authentication disabled")
		return nil, nil
	case "basic":
		logger.Info("authentication mode: basic auth")
		ba, err := auth.NewBasicAuthenticator(cfg.BasicAuthUsers)
		if err != nil {
			return nil, fmt.Errorf("creating basic authenticator: %w", err)
		}
		return ba, nil
	case "apikey":
		logger.Info("authentication mode: API key")
		ak, err := auth.NewAPIKeyAuthenticator(cfg.APIKeys)
		if err != nil {
			return nil, fmt.Errorf("creating API key authenticator: %w", err)
		}
		return ak, nil
	case "multi":
		logger.Info("authentication mode: multi")
		return createMultiAuthenticator(cfg)
	default:
		return nil, fmt.Errorf("unknown auth mode: %s", cfg.AuthMode)
	}
}

// createMultiAuthenticator combines every configured method.
func createMultiAuthenticator(cfg *config.Config) (auth.Authenticator, error) {
	var authenticators []auth.Authenticator

	if cfg.BasicAuthUsers != "" {
		ba, err := auth.NewBasicAuthenticator(cfg.BasicAuthUsers)
		if err != nil {
			return nil, fmt.Errorf("creating basic authenticator: %w", err)
		}
		authenticators = append(authenticators, ba)
	}

	if cfg.APIKeys != "" {
		ak, err := auth.NewAPIKeyAuthenticator(cfg.APIKeys)
		if err != nil {
			return nil, fmt.Errorf("creating API key authenticator: %w", err)
		}
		authenticators = append(authenticators, ak)
	}

	if len(authenticators) == 0 {
		return nil, fmt.Errorf("multi auth mode requires at least one authenticator")
	}

	return auth.NewMultiAuthenticator(authenticators...), nil
}
