// Command eventtail follows the activity event topic and prints one line per
// event, optionally filtered to a session or a minimum severity.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"catalystbot/config"
	"catalystbot/logging"
	"catalystbot/shared/kafka"
	"catalystbot/types"

	"github.com/google/uuid"
)

func main() {
	settings := config.Load()

	brokers := flag.String("brokers", strings.Join(settings.KafkaBrokers, ","), "Comma-separated Kafka brokers")
	topic := flag.String("topic", settings.KafkaTopic, "Activity event topic")
	sessionID := flag.String("session", "", "Only print events for this session")
	minSeverity := flag.String("severity", string(types.SeverityInfo), "Minimum severity: INFO, WARNING or ERROR")
	fromStart := flag.Bool("from-start", false, "Replay retained events")
	flag.Parse()

	logger := logging.New(logging.Config{Level: settings.LogLevel, Pretty: true})

	if *brokers == "" {
		logger.Fatal().Msg("no brokers: set KAFKA_BOOTSTRAP_SERVERS or -brokers")
	}

	filter := eventFilter{sessionID: *sessionID, minSeverity: types.Severity(strings.ToUpper(*minSeverity))}
	handler := &kafka.TypedMessageHandler[types.ActivityEvent]{
		Validate:   filter.match,
		Process:    printer(os.Stdout),
		AlwaysMark: true,
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:    strings.Split(*brokers, ","),
		Topic:      *topic,
		GroupID:    "eventtail-" + uuid.NewString(),
		Handler:    handler,
		FromOldest: *fromStart,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create consumer")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start consumer")
	}
	<-ctx.Done()

	if err := consumer.Close(); err != nil {
		logger.Error().Err(err).Msg("consumer close")
	}
}

var severityRank = map[types.Severity]int{
	types.SeverityInfo:    0,
	types.SeverityWarning: 1,
	types.SeverityError:   2,
}

type eventFilter struct {
	sessionID   string
	minSeverity types.Severity
}

func (f eventFilter) match(ev *types.ActivityEvent) bool {
	if f.sessionID != "" && ev.SessionID != f.sessionID {
		return false
	}
	return severityRank[ev.Severity] >= severityRank[f.minSeverity]
}

func printer(w io.Writer) func(context.Context, *types.ActivityEvent) error {
	return func(_ context.Context, ev *types.ActivityEvent) error {
		session := ev.SessionID
		if session == "" {
			session = "system"
		} else if len(session) > 8 {
			session = session[:8]
		}
		_, err := fmt.Fprintf(w, "%s %-8s %-7s %s/%s %s\n",
			ev.Timestamp.Format("15:04:05.000"), session, ev.Severity, ev.Category, ev.Action, ev.Message)
		return err
	}
}
