package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/rni-data-etl/internal/domain"
	"github.com/couchcryptid/rni-data-etl/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// IngestedFile is the notification published for each accepted file.
type IngestedFile struct {
	domain.FileSummary
	CCTE       string    `json:"ccte"`
	Province   string    `json:"province"`
	Locality   string    `json:"locality"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Publisher produces ingested-file notifications to a Kafka topic.
// It implements pipeline.SummaryPublisher.
type Publisher struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher creates a Kafka producer for topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger, metrics: metrics}
}

// Publish writes one message per summary in a single WriteMessages call.
// Failures are logged and counted; they never fail the ingestion that
// produced the summaries.
func (p *Publisher) Publish(ctx context.Context, meta domain.Metadata, summaries []domain.FileSummary, at time.Time) {
	if len(summaries) == 0 {
		return
	}
	msgs := make([]kafkago.Message, 0, len(summaries))
	for _, s := range summaries {
		msg, err := serializeToMessage(IngestedFile{
			FileSummary: s,
			CCTE:        meta.CCTE,
			Province:    meta.Province,
			Locality:    meta.Locality,
			IngestedAt:  at,
		})
		if err != nil {
			p.logger.Error("serialize notification", "file", s.Filename, "error", err)
			p.metrics.NotificationErrors.Inc()
			continue
		}
		msgs = append(msgs, msg)
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Warn("publish ingest notifications failed", "messages", len(msgs), "error", err)
		p.metrics.NotificationErrors.Add(float64(len(msgs)))
		return
	}
	p.metrics.NotificationsPublished.Add(float64(len(msgs)))
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a notification keyed by filename.
func serializeToMessage(n IngestedFile) (kafkago.Message, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize ingested file: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(n.Filename),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "locality", Value: []byte(n.Locality)},
			{Key: "ingested_at", Value: []byte(n.IngestedAt.Format(time.RFC3339))},
		},
	}, nil
}
