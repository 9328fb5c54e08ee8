// Package kafka carries visitor day tables over a Kafka topic. Messages are
// keyed by date (YYYY-MM-DD) and hold that day's raw CSV table.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/visitor-density/internal/domain"
	"github.com/couchcryptid/visitor-density/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

const dayLayout = "2006-01-02"

// ErrNoTable is returned by Fetch when no table has been consumed for the
// requested day.
var ErrNoTable = errors.New("no table received for day")

type messageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// Source keeps the most recent table per day from the feed topic. The topic
// is read from its first offset on every start, so a compacted single
// partition topic fully restores the state.
type Source struct {
	reader  messageReader
	loc     *time.Location
	logger  *slog.Logger
	metrics *observability.Metrics

	mu     sync.RWMutex
	tables map[string][]byte
	latest string
}

// NewSource creates a consumer for partition 0 of topic. Day keys are read
// in loc.
func NewSource(brokers []string, topic string, loc *time.Location, logger *slog.Logger, metrics *observability.Metrics) *Source {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 32 << 20,
	})
	return newSource(r, loc, logger, metrics)
}

func newSource(r messageReader, loc *time.Location, logger *slog.Logger, metrics *observability.Metrics) *Source {
	if loc == nil {
		loc = time.Local
	}
	return &Source{
		reader:  r,
		loc:     loc,
		logger:  logger,
		metrics: metrics,
		tables:  make(map[string][]byte),
	}
}

// Run consumes the topic until ctx is cancelled or the reader is closed.
func (s *Source) Run(ctx context.Context) error {
	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read feed topic: %w", err)
		}
		s.store(msg)
	}
}

func (s *Source) store(msg kafkago.Message) {
	key := string(msg.Key)
	if _, err := time.ParseInLocation(dayLayout, key, s.loc); err != nil {
		s.metrics.FeedMessages.WithLabelValues("skipped").Inc()
		s.logger.Warn("skipping feed message with invalid day key", "key", key, "offset", msg.Offset)
		return
	}
	if len(msg.Value) == 0 {
		s.metrics.FeedMessages.WithLabelValues("skipped").Inc()
		s.logger.Warn("skipping empty feed message", "day", key, "offset", msg.Offset)
		return
	}

	s.mu.Lock()
	s.tables[key] = msg.Value
	s.latest = key
	s.mu.Unlock()

	s.metrics.FeedMessages.WithLabelValues("stored").Inc()
	s.logger.Debug("day table stored", "day", key, "bytes", len(msg.Value), "offset", msg.Offset)
}

// Fetch returns the stored table for day. A zero day returns the table
// received most recently.
func (s *Source) Fetch(ctx context.Context, day time.Time) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.NetworkError{Op: "kafka feed", Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	key := s.latest
	if !day.IsZero() {
		key = day.In(s.loc).Format(dayLayout)
	}
	table, ok := s.tables[key]
	if !ok {
		return nil, &domain.NetworkError{Op: "kafka feed " + key, Err: ErrNoTable}
	}
	return table, nil
}

// Days lists the days a table is held for, in no particular order.
func (s *Source) Days() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	days := make([]string, 0, len(s.tables))
	for d := range s.tables {
		days = append(days, d)
	}
	return days
}

func (s *Source) Close() error {
	return s.reader.Close()
}
