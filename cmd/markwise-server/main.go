package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/markwise/markwise-server/internal/api"
	"github.com/markwise/markwise-server/internal/config"
	"github.com/markwise/markwise-server/internal/core"
	"github.com/markwise/markwise-server/internal/dispatch"
	"github.com/markwise/markwise-server/internal/grader"
	"github.com/markwise/markwise-server/internal/grading"
	"github.com/markwise/markwise-server/internal/notify"
	"github.com/markwise/markwise-server/internal/scheduler"
	"github.com/markwise/markwise-server/internal/server"
	"github.com/markwise/markwise-server/internal/store"
	"github.com/markwise/markwise-server/internal/worker"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Service)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	log := logger.Sugar()

	if cfg.Grading.OpenAIKey == "" {
		log.Fatal("refusing to start without a model provider; set OPENAI_API_KEY")
	}

	// Storage
	db, err := store.InitDB(cfg.Database)
	if err != nil {
		log.Fatalw("failed to connect database", "error", err)
	}
	st := store.NewStore(db)
	defer st.Close()
	if err := st.InitialMigration(); err != nil {
		log.Fatalw("failed to run migrations", "error", err)
	}

	// Dispatch
	nc, err := dispatch.Connect(cfg.Service.NatsURL)
	if err != nil {
		log.Fatalw("failed to connect to NATS", "error", err)
	}
	defer nc.Close()
	dispatcher := dispatch.New(nc)
	defer dispatcher.Close()
	log.Infow("connected to NATS", "url", cfg.Service.NatsURL)

	// Grading pipeline
	provider, err := grader.NewOpenAIProvider(cfg.Grading.OpenAIKey)
	if err != nil {
		log.Fatalw("failed to initialize model provider", "error", err)
	}
	provider.SetTimeout(cfg.Grading.RunTimeout)

	orchestrator := grader.NewOrchestrator(provider, grader.Options{
		Retry: core.RetryPolicy{
			MaxRetries:      cfg.Grading.MaxRetries,
			InitialInterval: core.DefaultRetryPolicy().InitialInterval,
			Coefficient:     core.DefaultRetryPolicy().Coefficient,
			MaxInterval:     core.DefaultRetryPolicy().MaxInterval,
			Jitter:          true,
		},
		OverallTimeout: cfg.Grading.OverallTimeout,
		Consensus: core.ConsensusPolicy{
			DeviationBand: cfg.Grading.DeviationBand,
			RangeBuffer:   cfg.Grading.RangeBuffer,
		},
	})

	gradingConfig := core.GradingConfig{}
	for _, model := range cfg.Grading.Models {
		gradingConfig.Runs = append(gradingConfig.Runs, core.ModelRun{
			Model:       model,
			Temperature: cfg.Grading.Temperature,
		})
	}
	service := grading.NewService(st, dispatcher, gradingConfig, cfg.Grading.PriceCents)

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Service.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Service.WebhookURL)
	}

	// Worker
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wrk := worker.New(st, dispatcher, dispatcher, orchestrator, notifier, worker.Options{
		Slots:         cfg.Grading.WorkerSlots,
		NotifyChannel: cfg.Service.WebhookChannel,
	})
	go func() {
		if err := wrk.Run(ctx); err != nil {
			log.Errorw("worker stopped", "error", err)
		}
	}()

	// Stale-job reaper
	reaper := scheduler.New(st, dispatcher, scheduler.Options{
		Interval:        cfg.Grading.ReaperInterval,
		QueuedStale:     cfg.Grading.QueuedStale,
		ProcessingStale: cfg.Grading.ProcessingStale,
	})
	if err := reaper.Start(); err != nil {
		log.Fatalw("failed to start reaper", "error", err)
	}
	defer reaper.Stop()

	// HTTP server
	handler := api.NewHandler(service, st, dispatcher, cfg.Grading.SignupBonus)
	srv := &http.Server{
		Addr:         cfg.Service.Address,
		Handler:      server.NewRouter(handler, cfg.Service, st, nc),
		ReadTimeout:  cfg.Service.ReadTimeout,
		WriteTimeout: cfg.Service.WriteTimeout,
		IdleTimeout:  cfg.Service.IdleTimeout,
	}

	go func() {
		log.Infow("markwise server listening", "address", cfg.Service.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	reaper.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server shutdown error", "error", err)
	}

	log.Info("server stopped")
}

func newLogger(cfg *config.Service) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.LogFormat == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
