package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nlowel/scribe/config"
	"github.com/nlowel/scribe/errors"
	"github.com/nlowel/scribe/server"
	"github.com/nlowel/scribe/server/circuitbreaker"
	"github.com/nlowel/scribe/server/gemini"
	"github.com/nlowel/scribe/server/handlers"
	"github.com/nlowel/scribe/server/metrics"
	"github.com/nlowel/scribe/server/processing"
	"github.com/nlowel/scribe/server/prompt"
	"github.com/nlowel/scribe/server/ratelimit"
	"github.com/nlowel/scribe/server/validation"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "scribe.yaml", "Path to configuration file")
	validate   = flag.Bool("validate", false, "Validate configuration and exit")
	version    = flag.Bool("version", false, "Print version and exit")
)

const Version = "v0.1.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("scribe %s\n", Version)
		os.Exit(0)
	}

	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *validate {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	errors.SetLogger(logger)

	// Watch the config file so reloads show up in logs; the running
	// pipeline keeps the config it started with.
	watcher, err := config.NewConfigWatcher(*configFile, logger)
	if err != nil {
		logger.Warn("Config watcher unavailable", zap.Error(err))
	} else {
		defer func() { _ = watcher.Close() }()
		go func() {
			for updated := range watcher.Subscribe() {
				logger.Info("Configuration file reloaded, restart to apply",
					zap.Int("port", updated.Server.Port),
				)
			}
		}()
	}

	m := metrics.NewMetrics()

	limiter, err := ratelimit.New(
		cfg.RateLimit.Capacity,
		cfg.RateLimit.Refill,
		cfg.RateLimit.Interval,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to create rate limiter", zap.Error(err))
	}

	breaker := circuitbreaker.NewCircuitBreaker("gemini", circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		ResetTimeout:     cfg.CircuitBreaker.ResetTimeout,
		HalfOpenRequests: cfg.CircuitBreaker.HalfOpenRequests,
		TestMode:         cfg.CircuitBreaker.TestMode,
	}, logger, m.Registry())

	client := gemini.NewClient(gemini.Config{
		Endpoint:       cfg.Gemini.Endpoint,
		APIKey:         cfg.Gemini.APIKey,
		Model:          cfg.Gemini.Model,
		RequestTimeout: cfg.Gemini.RequestTimeout,
		Retry: gemini.RetryPolicy{
			MaxRetries:   cfg.Retry.MaxRetries,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Jitter:       cfg.Retry.Jitter,
		},
	}, logger, m)

	builder, err := prompt.NewBuilder()
	if err != nil {
		logger.Fatal("Failed to build prompt templates", zap.Error(err))
	}

	var counter *validation.TokenCounter
	if cfg.Gemini.MaxContentTokens > 0 {
		counter, err = validation.NewTokenCounter(cfg.Gemini.Encoding)
		if err != nil {
			logger.Fatal("Failed to create token counter", zap.Error(err))
		}
	}
	v := validation.NewValidator(counter, cfg.Gemini.MaxContentTokens)

	processor, err := processing.NewProcessor(builder, limiter, client, breaker, logger, m)
	if err != nil {
		logger.Fatal("Failed to create processor", zap.Error(err))
	}

	handler := handlers.NewProcessHandler(processor, v, logger)

	router := server.NewRouter(server.RouterConfig{
		Process: handler,
		Metrics: m,
		Logger:  logger,
		Queue:   cfg.Queue,
	})

	srv := server.NewServer(cfg.Server, router, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	logger.Info("Starting scribe",
		zap.String("version", Version),
		zap.Int("port", cfg.Server.Port),
		zap.String("model", cfg.Gemini.Model),
	)
	if err := srv.Start(ctx); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "text" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err == nil {
		zapCfg.Level = level
	}

	return zapCfg.Build()
}
