package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/sey-media/clientwatch/internal/biz/usecase"
	"github.com/sey-media/clientwatch/internal/conf"
	"github.com/sey-media/clientwatch/internal/data"
	"github.com/sey-media/clientwatch/internal/infra/lark"
	"github.com/sey-media/clientwatch/internal/server"
	"github.com/sey-media/clientwatch/internal/service"
)

func main() {
	// .env is optional; plain environment variables work too.
	_ = godotenv.Load()

	cfg := conf.LoadFromEnv()

	log := newLogger(cfg.Debug)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	prompts, err := conf.LoadPrompts(os.Getenv("PROMPTS_CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load prompts")
	}

	// Data layer
	metadata, err := data.NewMetadataRepo(cfg.Metadata.CSVPath, cfg.Metadata.InternalDomains, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load channel metadata")
	}
	audit, err := data.NewAuditRepo(cfg.Audit.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open audit db")
	}
	defer audit.Close()

	larkClient := lark.NewClient(cfg.Lark.AppID, cfg.Lark.AppSecret, log)
	platform := data.NewPlatformRepo(larkClient, metadata, log)
	classifier := data.NewClassifier(cfg.OpenAI, prompts)

	// Usecase layer
	registry := usecase.NewBufferRegistry(log)
	tracker := usecase.NewQuestionTracker(cfg.Schedule.QuestionWindow, log)
	trigger := usecase.NewTriggerEngine(classifier, platform, metadata, audit, tracker, usecase.TriggerConfig{
		AlertSink:       cfg.Sinks.Alert,
		TestimonialSink: cfg.Sinks.Testimonial,
		QuestionWindow:  cfg.Schedule.QuestionWindow,
		ClassifyTimeout: cfg.Schedule.ClassifyTimeout,
	}, log)
	summary := usecase.NewSummaryUsecase(platform, classifier, metadata, usecase.SummaryConfig{
		Sink:     cfg.Sinks.Summary,
		Lookback: 24 * time.Hour,
	}, log)

	// Service layer
	monitor := service.NewMonitor(registry, tracker, metadata, platform, audit, log)
	sweeper := service.NewSweeper(registry, tracker, trigger, summary, platform, metadata, audit, cfg.Schedule, cfg.Sinks.Alert, log)

	srv := server.NewWatchServer(larkClient, monitor, sweeper, log)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutting down")
		srv.Stop()
		audit.Close()
		os.Exit(0)
	}()

	log.Info().Msg("starting clientwatch")
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	var out = zerolog.New(os.Stderr)
	if debug {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return out.Level(level).With().Timestamp().Logger()
}
