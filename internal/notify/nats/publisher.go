// Package nats delivers notification batches and catalog change broadcasts over
// NATS JetStream.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/narwhalmedia/simulcast/internal/notify"
	"github.com/narwhalmedia/simulcast/pkg/config"
	"github.com/narwhalmedia/simulcast/pkg/events"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
)

const (
	publishTimeout = 5 * time.Second

	// CatalogSubject carries catalog change broadcasts for other instances.
	CatalogSubject = "simulcast.catalog.changed"
)

// Publisher publishes notification batches to JetStream, one subject per country.
type Publisher struct {
	js      jetstream.JetStream
	subject string
	logger  *zap.Logger
}

// NewPublisher creates a new NATS batch publisher
func NewPublisher(client *Client, logger *zap.Logger) *Publisher {
	subject := client.cfg.Subject
	if subject == "" {
		subject = config.DefaultNATSSubject
	}
	return &Publisher{
		js:      client.JetStream(),
		subject: subject,
		logger:  logger.Named("publisher"),
	}
}

// Subject returns the subject a batch for the country is published on.
func (p *Publisher) Subject(countryCode string) string {
	return fmt.Sprintf("%s.%s", p.subject, strings.ToLower(countryCode))
}

// Publish sends a batch, using the batch id for JetStream deduplication.
func (p *Publisher) Publish(ctx context.Context, batch *notify.Batch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	subject := p.Subject(batch.CountryCode)
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	ack, err := p.js.Publish(pubCtx, subject, data, jetstream.WithMsgID(batch.ID.String()))
	if err != nil {
		p.logger.Error("failed to publish batch",
			zap.Error(err),
			zap.String("batch_id", batch.ID.String()),
			zap.String("subject", subject),
		)
		return fmt.Errorf("failed to publish batch: %w", err)
	}

	p.logger.Info("batch published",
		zap.String("batch_id", batch.ID.String()),
		zap.String("subject", subject),
		zap.Int("groups", len(batch.Groups)),
		zap.Uint64("sequence", ack.Sequence),
		zap.Bool("duplicate", ack.Duplicate),
	)
	return nil
}

// Close is a no-op; the client owns the connection.
func (p *Publisher) Close() error { return nil }

// CatalogRelay forwards local catalog change events to other instances so their
// read caches are invalidated too.
type CatalogRelay struct {
	js     jetstream.JetStream
	logger *zap.Logger
}

// NewCatalogRelay creates a relay publishing on CatalogSubject.
func NewCatalogRelay(client *Client, logger *zap.Logger) *CatalogRelay {
	return &CatalogRelay{js: client.JetStream(), logger: logger.Named("catalog-relay")}
}

// Handle publishes the changed entity types of a catalog event.
func (r *CatalogRelay) Handle(ctx context.Context, event interfaces.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog change: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := r.js.Publish(pubCtx, CatalogSubject, data); err != nil {
		r.logger.Warn("failed to relay catalog change", zap.Error(err))
		return fmt.Errorf("failed to relay catalog change: %w", err)
	}
	return nil
}

// EventType returns the catalog change event type.
func (r *CatalogRelay) EventType() string {
	return events.CatalogChangedEventType
}
