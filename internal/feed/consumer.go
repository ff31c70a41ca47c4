package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/pkg/config"
	"github.com/wonny/conviction/pkg/logger"
)

// Micro-batch defaults
const (
	DefaultBatchSize     = 50
	DefaultFlushInterval = 5 * time.Second
)

// MessageReader is the subset of *kafka.Reader the consumer needs
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// BatchHandler processes one micro-batch of raw filings
type BatchHandler func(ctx context.Context, raw []contracts.RawTransaction) error

// Consumer reads raw filings from Kafka and hands them to a handler in micro-batches.
// Offsets are committed only after the handler succeeds.
// ⭐ SSOT: 공시 스트림 소비는 여기서만
type Consumer struct {
	reader        MessageReader
	handler       BatchHandler
	batchSize     int
	flushInterval time.Duration
	logger        *logger.Logger
}

// NewReader creates the kafka reader for the filing topic
func NewReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
		MaxWait:     1 * time.Second,
		StartOffset: kafka.FirstOffset,
	})
}

// NewConsumer creates a consumer. batchSize/flushInterval <= 0 use the defaults.
func NewConsumer(reader MessageReader, handler BatchHandler, batchSize int, flushInterval time.Duration, log *logger.Logger) *Consumer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	return &Consumer{
		reader:        reader,
		handler:       handler,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        log.Module("feed"),
	}
}

// Run consumes until ctx is cancelled or the handler fails.
// Cancellation is a normal shutdown and returns nil.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Starting filing stream consumer")
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.WithError(err).Warn("Failed to close kafka reader")
		}
	}()

	var (
		pending  []contracts.RawTransaction
		messages []kafka.Message
		deadline = time.Now().Add(c.flushInterval)
	)

	flush := func() error {
		if len(messages) == 0 {
			return nil
		}
		if len(pending) > 0 {
			if err := c.handler(ctx, pending); err != nil {
				return fmt.Errorf("batch handler failed: %w", err)
			}
		}
		// 종료 중에도 처리된 오프셋은 커밋
		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := c.reader.CommitMessages(commitCtx, messages...); err != nil {
			return fmt.Errorf("failed to commit offsets: %w", err)
		}
		c.logger.WithFields(map[string]interface{}{
			"messages":     len(messages),
			"transactions": len(pending),
		}).Info("Processed micro-batch")

		pending, messages = nil, nil
		return nil
	}

	for {
		if ctx.Err() != nil {
			c.logger.Info("Filing stream consumer shutting down")
			return nil
		}

		fetchCtx, cancel := context.WithDeadline(ctx, deadline)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()

		switch {
		case err == nil:
			messages = append(messages, msg)
			raw, derr := Decode(msg.Value)
			if derr != nil {
				// 잘못된 메시지는 건너뛰고 커밋
				c.logger.WithError(derr).WithFields(map[string]interface{}{
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).Warn("Skipping undecodable message")
			}
			pending = append(pending, raw...)
			if len(pending) < c.batchSize {
				continue
			}
		case ctx.Err() != nil:
			c.logger.Info("Filing stream consumer shutting down")
			return nil
		case errors.Is(err, context.DeadlineExceeded):
			// flush interval reached
		default:
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		if err := flush(); err != nil {
			return err
		}
		deadline = time.Now().Add(c.flushInterval)
	}
}

// Decode accepts a single JSON filing or a JSON array of filings
func Decode(value []byte) ([]contracts.RawTransaction, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return nil, errors.New("empty message")
	}

	if value[0] == '[' {
		var raw []contracts.RawTransaction
		if err := json.Unmarshal(value, &raw); err != nil {
			return nil, fmt.Errorf("failed to unmarshal filings: %w", err)
		}
		return raw, nil
	}

	var raw contracts.RawTransaction
	if err := json.Unmarshal(value, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal filing: %w", err)
	}
	return []contracts.RawTransaction{raw}, nil
}
