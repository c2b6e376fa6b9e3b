package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

type MessageHandler func(ctx context.Context, key, value []byte) error

// messageReader is the part of *kafka.Reader the Consumer uses
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader messageReader
	log    *slog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	if log == nil {
		log = slog.Default()
	}
	return newConsumer(reader, log.With("topic", topic, "group", groupID))
}

func newConsumer(reader messageReader, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{reader: reader, log: log}
}

// Consume reads until ctx is done or the reader is closed. Handler failures are logged and the message
// is skipped; the offset is committed by the reader either way.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if errors.Is(err, io.EOF) {
					return err
				}
				c.log.ErrorContext(ctx, "read message failed", slog.Any("err", err))
				continue
			}

			if err := handler(ctx, msg.Key, msg.Value); err != nil {
				c.log.ErrorContext(ctx, "handle message failed",
					slog.String("key", string(msg.Key)),
					slog.Int64("offset", msg.Offset),
					slog.Any("err", err))
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
