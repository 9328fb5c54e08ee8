package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/visitor-density/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// DayTable is one day's visitor table as published to the feed topic.
type DayTable struct {
	Day   time.Time
	Table []byte
	Rows  int
}

// Publisher produces day tables to the feed topic.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the feed topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes every table in a single WriteMessages call. Each message is
// keyed by its date so a compacted topic keeps the latest table per day.
func (p *Publisher) Publish(ctx context.Context, tables []DayTable) error {
	if len(tables) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(tables))
	for i := range tables {
		msgs[i] = toMessage(tables[i])
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish day tables: %w", err)
	}
	p.logger.Info("day tables published", "topic", p.writer.Topic, "count", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func toMessage(t DayTable) kafkago.Message {
	return kafkago.Message{
		Key:   []byte(t.Day.Format(dayLayout)),
		Value: t.Table,
		Headers: []kafkago.Header{
			{Key: "rows", Value: []byte(strconv.Itoa(t.Rows))},
			{Key: "published_at", Value: []byte(domain.Clock().Now().UTC().Format(time.RFC3339))},
		},
	}
}
