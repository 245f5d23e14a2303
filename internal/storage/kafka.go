package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"agentScope/internal/model"
)

// KafkaSink publishes alert envelopes to a Kafka topic via a sync producer.
// Delivery is acknowledged by all in-sync replicas before a batch is
// considered written.
type KafkaSink struct {
	topic    string
	producer sarama.SyncProducer
}

func NewKafkaSink(brokersCSV, topic string) (*KafkaSink, error) {
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	brokers := splitBrokers(brokersCSV)
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 10
	cfg.Producer.Retry.Backoff = 200 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_1_0_0

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &KafkaSink{topic: topic, producer: producer}, nil
}

func (s *KafkaSink) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}

func (s *KafkaSink) PutAlertBatch(alerts []model.AlertEnvelope) error {
	if len(alerts) == 0 {
		return nil
	}

	messages := make([]*sarama.ProducerMessage, 0, len(alerts))
	for _, envelope := range alerts {
		payload, err := json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("marshal alert: %w", err)
		}
		messages = append(messages, &sarama.ProducerMessage{
			Topic: s.topic,
			Key:   sarama.StringEncoder(envelope.TxHash),
			Value: sarama.ByteEncoder(payload),
		})
	}

	if err := s.producer.SendMessages(messages); err != nil {
		return fmt.Errorf("send alerts: %w", err)
	}
	return nil
}

func splitBrokers(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
