package events

import (
	"encoding/json"

	"catalystbot/types"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// SystemKey is the message key used for events outside any session.
const SystemKey = "system"

// KafkaSink publishes each event as JSON, keyed by session id.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	log      zerolog.Logger
}

// NewKafkaSink wraps a sync producer.
func NewKafkaSink(producer sarama.SyncProducer, topic string, logger zerolog.Logger) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		topic:    topic,
		log:      logger.With().Str("component", "kafka_sink").Str("topic", topic).Logger(),
	}
}

// Publish sends the event. Delivery errors are logged; the session carries on.
func (k *KafkaSink) Publish(sessionID string, ev types.ActivityEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		k.log.Error().Err(err).Msg("marshal event")
		return
	}
	key := sessionID
	if key == "" {
		key = SystemKey
	}
	partition, offset, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		k.log.Warn().Err(err).Str("session", sessionID).Uint64("seq", ev.Seq).Msg("event not delivered")
		return
	}
	k.log.Debug().Int32("partition", partition).Int64("offset", offset).Str("session", sessionID).Msg("event delivered")
}

// Close closes the underlying producer.
func (k *KafkaSink) Close() error {
	return k.producer.Close()
}
