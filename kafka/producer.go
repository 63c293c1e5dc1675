// Package kafka produces modem command results to a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrNotRunning is returned by Publish before Start or after Stop.
var ErrNotRunning = errors.New("kafka producer not running")

type Config struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Producer writes one message per result, keyed by command name so all
// results of a command land in the same partition.
type Producer struct {
	config Config
	logger *slog.Logger
	writer *kafka.Writer
	mu     sync.RWMutex
}

func NewProducer(cfg Config, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Producer{config: cfg, logger: logger}
}

// Start checks that the first broker is reachable and prepares the writer.
func (p *Producer) Start(ctx context.Context) error {
	if len(p.config.Brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}
	if p.config.Topic == "" {
		return errors.New("kafka: topic is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer != nil {
		return nil
	}

	dialer := &kafka.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", p.config.Brokers[0])
	if err != nil {
		return fmt.Errorf("connect to kafka: %w", err)
	}
	conn.Close()

	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(p.config.Brokers...),
		Topic:                  p.config.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	p.logger.Info("Connected", "brokers", p.config.Brokers, "topic", p.config.Topic)
	return nil
}

// Stop flushes and closes the writer.
func (p *Producer) Stop() error {
	p.mu.Lock()
	writer := p.writer
	p.writer = nil
	p.mu.Unlock()

	if writer == nil {
		return nil
	}
	return writer.Close()
}

// Message builds the record produced for a result.
func Message(command string, payload []byte, at time.Time) kafka.Message {
	return kafka.Message{
		Key:   []byte(command),
		Value: payload,
		Time:  at,
	}
}

// Publish produces payload keyed by command and waits for the broker's
// acknowledgement.
func (p *Producer) Publish(ctx context.Context, command string, payload []byte) error {
	p.mu.RLock()
	writer := p.writer
	p.mu.RUnlock()
	if writer == nil {
		return ErrNotRunning
	}

	if err := writer.WriteMessages(ctx, Message(command, payload, time.Now())); err != nil {
		return fmt.Errorf("kafka produce to %s: %w", p.config.Topic, err)
	}
	return nil
}
