package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// MessageHandler processes one consumed message. Returning shouldMark=false
// or an error leaves the offset uncommitted so the message is redelivered.
type MessageHandler interface {
	HandleMessage(ctx context.Context, message []byte) (shouldMark bool, err error)
}

// Consumer reads a topic as part of a consumer group.
type Consumer struct {
	consumer sarama.ConsumerGroup
	handler  MessageHandler
	topic    string
	groupID  string
	ready    chan bool
	log      zerolog.Logger
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Handler MessageHandler

	// FromOldest replays the retained topic instead of starting at the tail.
	FromOldest bool
	Logger     zerolog.Logger
}

// NewConsumer creates a consumer group client.
func NewConsumer(config ConsumerConfig) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	if config.FromOldest {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	saramaConfig.Consumer.Return.Errors = true

	client, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &Consumer{
		consumer: client,
		handler:  config.Handler,
		topic:    config.Topic,
		groupID:  config.GroupID,
		ready:    make(chan bool),
		log: config.Logger.With().
			Str("component", "kafka_consumer").
			Str("group", config.GroupID).
			Str("topic", config.Topic).
			Logger(),
	}, nil
}

// Start joins the group and returns once the first claim is set up.
func (c *Consumer) Start(ctx context.Context) error {
	handler := &consumerGroupHandler{
		messageHandler: c.handler,
		ready:          c.ready,
		log:            c.log,
	}

	go func() {
		for {
			if err := c.consumer.Consume(ctx, []string{c.topic}, handler); err != nil {
				if errors.Is(err, context.Canceled) {
					c.log.Info().Msg("consumer context canceled")
					return
				}
				c.log.Error().Err(err).Msg("consume")
			}

			if ctx.Err() != nil {
				return
			}
			handler.ready = make(chan bool)
		}
	}()

	select {
	case <-c.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.log.Info().Msg("kafka consumer started")

	go func() {
		for err := range c.consumer.Errors() {
			c.log.Error().Err(err).Msg("kafka consumer error")
		}
	}()

	return nil
}

// Close leaves the group.
func (c *Consumer) Close() error {
	c.log.Info().Msg("closing kafka consumer")
	return c.consumer.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	messageHandler MessageHandler
	ready          chan bool
	log            zerolog.Logger
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			h.log.Debug().
				Int32("partition", message.Partition).
				Int64("offset", message.Offset).
				Str("key", string(message.Key)).
				Msg("received message")

			shouldMark, err := h.messageHandler.HandleMessage(session.Context(), message.Value)
			if err != nil {
				h.log.Error().Err(err).Int64("offset", message.Offset).Msg("failed to handle message")
			}
			if shouldMark {
				session.MarkMessage(message, "")
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

// TypedMessageHandler decodes JSON messages into T before handing them on.
type TypedMessageHandler[T any] struct {
	// Validate checks if the message should be processed
	Validate func(msg *T) bool
	// Process handles the actual message processing
	Process func(ctx context.Context, msg *T) error
	// AlwaysMark commits undecodable or invalid messages instead of retrying them
	AlwaysMark bool
}

func (h *TypedMessageHandler[T]) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	var msg T
	if err := json.Unmarshal(message, &msg); err != nil {
		return h.AlwaysMark, fmt.Errorf("unmarshal message: %w", err)
	}

	if h.Validate != nil && !h.Validate(&msg) {
		return h.AlwaysMark, nil
	}

	if err := h.Process(ctx, &msg); err != nil {
		return false, err
	}
	return true, nil
}
