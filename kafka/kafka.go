package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func InitProducer(broker string, logger *zap.Logger) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer([]string{broker}, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Info("Kafka producer initialized")
	return producer, nil
}

func InitConsumerGroup(broker, groupID string, logger *zap.Logger) (sarama.ConsumerGroup, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup([]string{broker}, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer group %s: %w", groupID, err)
	}

	logger.Info("Kafka consumer group initialized", zap.String("group_id", groupID))
	return group, nil
}

// RunConsumerGroup keeps the group subscribed to the topic until the context
// is cancelled. Consume returns on every rebalance, so it is called in a
// loop.
func RunConsumerGroup(ctx context.Context, group sarama.ConsumerGroup, topic string, handler sarama.ConsumerGroupHandler, logger *zap.Logger) {
	go func() {
		for err := range group.Errors() {
			logger.Error("Kafka consumer group error", zap.Error(err))
		}
	}()

	for {
		if err := group.Consume(ctx, []string{topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			logger.Error("Kafka consume failed", zap.Error(err))
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// SendMessage publishes one keyed message, injecting the current trace
// context into the record headers, and logs where it landed.
func SendMessage(ctx context.Context, producer sarama.SyncProducer, topic, key string, payload []byte, logger *zap.Logger) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}

	propagator := otel.GetTextMapPropagator()
	carrier := make(producerHeaderCarrier, 0)
	propagator.Inject(ctx, &carrier)
	msg.Headers = []sarama.RecordHeader(carrier)

	partition, offset, err := producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	span := trace.SpanFromContext(ctx)
	traceID := ""
	if span.SpanContext().IsValid() {
		traceID = span.SpanContext().TraceID().String()
	}

	logger.Info("Event published",
		zap.String("trace_id", traceID),
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)

	return nil
}
