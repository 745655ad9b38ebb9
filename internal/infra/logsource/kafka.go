// Package logsource streams raw device log batches from Kafka.
package logsource

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Config captures the reader tunables.
type Config struct {
	Brokers     []string
	Topic       string
	GroupID     string
	PollTimeout time.Duration
}

// fetcher is the subset of *kafka.Reader the consumer needs.
type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource is a port.LogSource backed by a kafka-go consumer group. Each
// message value is one batch of log lines.
type KafkaSource struct {
	cfg    Config
	reader fetcher
	logger *zap.Logger
}

// NewKafkaSource validates cfg and builds the reader.
func NewKafkaSource(cfg Config, logger *zap.Logger) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("log topic must not be empty")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("consumer group must not be empty")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newSource(cfg, reader, logger), nil
}

func newSource(cfg Config, reader fetcher, logger *zap.Logger) *KafkaSource {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	return &KafkaSource{cfg: cfg, reader: reader, logger: logger}
}

// Consume blocks until ctx is cancelled or the reader is closed. A message is
// committed only after handle accepts it; handler errors are logged and the
// message is committed anyway so one bad batch cannot wedge the partition.
func (s *KafkaSource) Consume(ctx context.Context, handle func(ctx context.Context, batch string) error) error {
	s.logger.Info("log source started",
		zap.String("topic", s.cfg.Topic),
		zap.String("group", s.cfg.GroupID),
		zap.Strings("brokers", s.cfg.Brokers),
	)
	defer s.logger.Info("log source stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
		msg, err := s.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				continue
			case errors.Is(err, context.Canceled):
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, kafka.ErrGroupClosed):
				return nil
			}
			s.logger.Error("log source fetch failed", zap.Error(err))
			continue
		}

		if err := handle(ctx, string(msg.Value)); err != nil {
			s.logger.Warn("log batch rejected",
				zap.Error(err),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
		}
		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			s.logger.Error("log source commit failed", zap.Error(err), zap.Int64("offset", msg.Offset))
		}
	}
}

// Close shuts down the underlying reader.
func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
