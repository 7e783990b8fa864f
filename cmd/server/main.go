// Package main provides the entry point for the grademark backtesting
// server: a deterministic bar-by-bar backtesting engine with grid and
// hill-climb parameter optimization, walk-forward evaluation and Monte
// Carlo resampling behind an HTTP/WebSocket API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/andywkff/grademark/internal/api"
	"github.com/andywkff/grademark/internal/data"
	"github.com/andywkff/grademark/internal/store"
	"github.com/andywkff/grademark/internal/strategy"
	"github.com/andywkff/grademark/pkg/types"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (optional)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	config, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("starting grademark server",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("dataDir", config.DataDir),
		zap.String("resultsDir", config.ResultsDir),
		zap.Bool("metrics", config.EnableMetrics),
	)

	dataStore, err := data.NewStore(logger, config.DataDir)
	if err != nil {
		logger.Fatal("failed to initialize data store", zap.Error(err))
	}

	runStore, err := store.NewRunStore(config.ResultsDir)
	if err != nil {
		logger.Fatal("failed to initialize run store", zap.Error(err))
	}
	defer runStore.Close()

	registry := strategy.NewRegistry(logger)
	logger.Info("registered strategies", zap.Strings("strategies", registry.List()))

	server := api.NewServer(logger, config, dataStore, runStore, registry)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()

	<-sigChan
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// loadConfig builds the server configuration from defaults, an optional
// config file, and GRADEMARK_-prefixed environment variables.
func loadConfig(path string) (*types.ServerConfig, error) {
	v := viper.New()
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 8080)
	v.SetDefault("websocket_path", "/ws")
	v.SetDefault("read_timeout", "30s")
	v.SetDefault("write_timeout", "30s")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("results_dir", "./results")
	v.SetDefault("enable_metrics", true)
	v.SetDefault("max_connections", 100)

	v.SetEnvPrefix("GRADEMARK")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return &types.ServerConfig{
		Host:           v.GetString("host"),
		Port:           v.GetInt("port"),
		WebSocketPath:  v.GetString("websocket_path"),
		ReadTimeout:    v.GetDuration("read_timeout"),
		WriteTimeout:   v.GetDuration("write_timeout"),
		DataDir:        v.GetString("data_dir"),
		ResultsDir:     v.GetString("results_dir"),
		EnableMetrics:  v.GetBool("enable_metrics"),
		MaxConnections: v.GetInt("max_connections"),
	}, nil
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}

	return logger
}
