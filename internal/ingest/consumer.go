// Package ingest reads posting events from Kafka and applies them to an
// inverted index through a buffered insertion session. Transient store
// failures are retried here, above the store interface; the stores
// themselves never retry.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arbazkhan002/datasketch/internal/index"
	"github.com/arbazkhan002/datasketch/pkg/kafka"
	"github.com/arbazkhan002/datasketch/pkg/metrics"
	"github.com/arbazkhan002/datasketch/pkg/resilience"
)

// PostingEvent is the wire format of one ingest message: a document id and
// the opaque terms it contains. The consumer does no tokenization; producers
// supply terms as-is.
type PostingEvent struct {
	DocID string   `json:"doc_id"`
	Terms []string `json:"terms"`
}

// Consumer wraps a Kafka consumer to drive index insertion.
type Consumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates a Consumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *Consumer {
	return &Consumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "ingest-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("ingest consumer starting")
	return c.consumer.Start(ctx)
}

// Close closes the underlying Kafka consumer.
func (c *Consumer) Close() error {
	return c.consumer.Close()
}

// HandleMessage returns a Kafka MessageHandler that inserts every posting
// event into idx. All terms of one event are flushed in a single session so
// a document lands atomically where the backend supports it. Decode failures
// are logged and skipped; store failures are retried and, if retries are
// exhausted, returned so the message is not committed.
func HandleMessage(idx *index.InvertedIndex, retry resilience.RetryConfig, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "ingest-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[PostingEvent](value)
		if err != nil {
			logger.Error("failed to decode posting event",
				"error", err,
				"key", string(key),
			)
			if m != nil {
				m.IngestEventsTotal.WithLabelValues("decode_error").Inc()
			}
			return nil
		}

		session := idx.Session()
		for _, term := range event.Terms {
			if err := session.Insert(event.DocID, term); err != nil {
				logger.Error("skipping invalid posting",
					"doc_id", event.DocID,
					"error", err,
				)
				if m != nil {
					m.IngestEventsTotal.WithLabelValues("decode_error").Inc()
				}
				return nil
			}
		}

		err = resilience.Retry(ctx, "session-flush", retry, func() error {
			return session.Flush(ctx)
		})
		if err != nil {
			if m != nil {
				m.IngestEventsTotal.WithLabelValues("store_error").Inc()
			}
			return fmt.Errorf("flushing postings for document %s: %w", event.DocID, err)
		}

		if m != nil {
			m.IngestEventsTotal.WithLabelValues("ok").Inc()
		}
		logger.Debug("document postings ingested",
			"doc_id", event.DocID,
			"terms", len(event.Terms),
		)
		return nil
	}
}
