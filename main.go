package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"catalystbot/analyzer"
	"catalystbot/api"
	"catalystbot/cache"
	"catalystbot/common"
	"catalystbot/config"
	"catalystbot/events"
	"catalystbot/llm"
	"catalystbot/logging"
	"catalystbot/ratelimit"
	"catalystbot/rssfeeds"
	"catalystbot/session"
	"catalystbot/shared/kafka"
	"catalystbot/store"
	"catalystbot/types"

	"github.com/IBM/sarama"
)

func main() {
	settings := config.Load()

	port := flag.String("port", settings.Port, "HTTP API port")
	cronSchedule := flag.String("cron", settings.ScheduleCron, "Cron schedule for automated sessions (empty disables)")
	flag.Parse()

	logger := logging.New(logging.Config{Level: settings.LogLevel, Pretty: settings.LogPretty})

	st, err := store.Open(settings, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("store", settings.Store).Msg("failed to open store")
	}

	limiter := ratelimit.New(ratelimit.DefaultConfig(settings.RateRules), logger)
	ingestor := rssfeeds.NewIngestor(rssfeeds.NewHTTPFetcher(), limiter, st, logger)

	models := llm.NewFromEnv(settings, logger)
	an := analyzer.New(models, cache.New(st, logger), logger)

	hub := events.NewHub()
	sinks := events.MultiSink{hub, events.NewLogSink(logger)}

	// Startup problems are logged now and reported on the system stream once
	// it exists.
	var degraded []string

	var producer sarama.SyncProducer
	if len(settings.KafkaBrokers) > 0 {
		producer, err = kafka.NewSyncProducer(kafka.ProducerConfig{
			Brokers:  settings.KafkaBrokers,
			ClientID: "catalystbot",
		})
		if err != nil {
			logger.Warn().Err(err).Strs("brokers", settings.KafkaBrokers).Msg("kafka unavailable, events stay local")
			degraded = append(degraded, "Kafka unavailable, events stay local: "+err.Error())
		} else {
			sinks = append(sinks, events.NewKafkaSink(producer, settings.KafkaTopic, logger))
			logger.Info().Str("topic", settings.KafkaTopic).Msg("publishing events to kafka")
		}
	}
	bus := events.NewBus(sinks, logger)
	system := bus.System()

	opts := session.Options{
		DefaultModel: settings.DefaultModel,
		Workers:      settings.AnalysisWorkers,
	}
	if settings.S3Bucket != "" {
		archive, err := common.NewS3(context.Background(), common.S3Config{
			Bucket:       settings.S3Bucket,
			Prefix:       settings.S3Prefix,
			Region:       settings.S3Region,
			Profile:      settings.S3Profile,
			UsePathStyle: settings.S3UsePathStyle,
		})
		if err != nil {
			logger.Warn().Err(err).Str("bucket", settings.S3Bucket).Msg("s3 archive disabled")
			degraded = append(degraded, "S3 archive disabled: "+err.Error())
		} else {
			opts.Archiver = archive
			logger.Info().Str("bucket", settings.S3Bucket).Msg("archiving sessions to s3")
		}
	}

	coordinator := session.New(ingestor, an, st, bus, opts, logger)

	server := api.NewServer(api.Deps{
		Sessions: coordinator,
		Events:   hub,
		Limiter:  limiter,
		Store:    st,
		System:   system,
	}, *port, logger)
	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}

	if *cronSchedule != "" {
		if len(settings.ScheduleSources) == 0 {
			logger.Warn().Msg("SCHEDULE_SOURCES is empty, cron disabled")
		} else if err := server.StartCron(*cronSchedule, types.SessionConfig{
			Sources:       settings.ScheduleSources,
			MinConfidence: config.DefaultMinConfidence,
		}); err != nil {
			logger.Fatal().Err(err).Msg("failed to start cron")
		}
	}

	logger.Info().
		Str("port", *port).
		Str("store", settings.Store).
		Str("model", settings.DefaultModel).
		Int("workers", settings.AnalysisWorkers).
		Msg("catalystbot ready")
	for _, msg := range degraded {
		system.Emit(types.SeverityWarning, types.CategorySystem, "degraded", msg, nil)
	}
	system.Emit(types.SeverityInfo, types.CategorySystem, "ready", "catalystbot ready", map[string]any{
		"port":    *port,
		"store":   settings.Store,
		"model":   settings.DefaultModel,
		"workers": settings.AnalysisWorkers,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down")
	system.Emit(types.SeverityInfo, types.CategorySystem, "shutdown", "catalystbot shutting down", nil)

	// The API stops first so no new sessions start. Open event streams end
	// on their own, then running sessions get their own deadline to drain.
	apiCtx, apiCancel := context.WithTimeout(context.Background(), config.APIShutdownTimeout)
	defer apiCancel()
	if err := server.Shutdown(apiCtx); err != nil {
		logger.Error().Err(err).Msg("api shutdown")
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), config.SessionDrainTimeout)
	defer drainCancel()
	if err := coordinator.Shutdown(drainCtx); err != nil {
		logger.Error().Err(err).Msg("sessions did not drain")
	}
	system.Close()

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error().Err(err).Msg("kafka producer close")
		}
	}
	if err := st.Close(); err != nil {
		logger.Error().Err(err).Msg("store close")
	}
	logger.Info().Msg("stopped")
}
