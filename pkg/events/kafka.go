// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/stagegate/stagegate/pkg/logger"
)

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`

	// Topic receives egress notifications (default: "egress-notifications").
	Topic string `mapstructure:"topic"`

	// RequiredAcks: 0=none, 1=leader, -1=all (default: 1).
	RequiredAcks int `mapstructure:"required_acks"`

	// WriteTimeout is the timeout for produce calls (default: 10s).
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DefaultKafkaConfig returns a KafkaConfig with sensible defaults.
func DefaultKafkaConfig(brokers []string) KafkaConfig {
	return KafkaConfig{
		Brokers:      brokers,
		Topic:        "egress-notifications",
		RequiredAcks: 1,
		WriteTimeout: 10 * time.Second,
	}
}

// KafkaPublisher publishes notifications to Kafka using sarama. Messages are
// keyed by store id so transitions of one store stay ordered per partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher creates a Kafka publisher.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = "egress-notifications"
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	switch cfg.RequiredAcks {
	case 0:
		config.Producer.RequiredAcks = sarama.NoResponse
	case -1:
		config.Producer.RequiredAcks = sarama.WaitForAll
	default:
		config.Producer.RequiredAcks = sarama.WaitForLocal
	}

	if cfg.WriteTimeout > 0 {
		config.Producer.Timeout = cfg.WriteTimeout
		config.Net.WriteTimeout = cfg.WriteTimeout
		config.Net.ReadTimeout = cfg.WriteTimeout
	}

	// Hash partitioner keeps one store's notifications ordered
	config.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("kafka producer creation failed: %w", err)
	}

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("kafka notification publisher connected")

	return &KafkaPublisher{producer: producer, topic: cfg.Topic}, nil
}

// NewKafkaPublisherWithProducer wraps an existing producer (used by tests).
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish sends one notification and waits for the broker ack.
func (p *KafkaPublisher) Publish(ctx context.Context, n *EgressNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		PublishErrorsTotal.WithLabelValues("marshal").Inc()
		return fmt.Errorf("marshal notification for store %s: %w", n.EgressStoreID, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(n.EgressStoreID),
		Value: sarama.ByteEncoder(payload),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		PublishErrorsTotal.WithLabelValues("send").Inc()
		return fmt.Errorf("publish notification for store %s: %w", n.EgressStoreID, err)
	}

	PublishedTotal.Inc()
	logger.Ctx(ctx).Debug().
		Str("store_id", n.EgressStoreID).
		Str("status", n.Status).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("published egress notification")
	return nil
}

// Close shuts down the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
