package nats_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/narwhalmedia/simulcast/internal/notify"
	"github.com/narwhalmedia/simulcast/internal/notify/nats"
	"github.com/narwhalmedia/simulcast/pkg/config"
	"github.com/narwhalmedia/simulcast/pkg/events"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

func testConfig() config.NATSConfig {
	return config.NATSConfig{
		URL:           natsgo.DefaultURL,
		ClientID:      "simulcast-test",
		Subject:       "simulcast.test",
		MaxReconnect:  1,
		ReconnectWait: time.Second,
	}
}

func TestPublisher_Publish(t *testing.T) {
	// Skip if NATS is not available
	logger := zaptest.NewLogger(t)
	client, cleanup, err := nats.NewClient(testConfig(), logger)
	if err != nil {
		t.Skip("NATS not available:", err)
	}
	defer cleanup()

	publisher := nats.NewPublisher(client, logger)
	assert.Equal(t, "simulcast.test.fr", publisher.Subject("FR"))

	batch := notify.NewBatch("FR", []models.GroupedEpisode{{
		AnimeSlug:   "frieren",
		CountryCode: "FR",
		Season:      1,
		EpisodeType: models.EpisodeTypeEpisode,
		MinNumber:   27,
		MaxNumber:   28,
		VariantIDs:  []uuid.UUID{uuid.New()},
	}}, time.Now())

	ctx := context.Background()
	require.NoError(t, publisher.Publish(ctx, batch))
	// Republishing the same batch is deduplicated by JetStream, not rejected.
	require.NoError(t, publisher.Publish(ctx, batch))

	stream, err := client.JetStream().Stream(ctx, nats.StreamName)
	require.NoError(t, err)
	msg, err := stream.GetLastMsgForSubject(ctx, publisher.Subject("FR"))
	require.NoError(t, err)

	var decoded notify.Batch
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, batch.ID, decoded.ID)
	assert.Equal(t, batch.ID.String(), msg.Header.Get(jetstream.MsgIDHeader))
}

func TestCatalogRelay_Handle(t *testing.T) {
	logger := zaptest.NewLogger(t)
	client, cleanup, err := nats.NewClient(testConfig(), logger)
	if err != nil {
		t.Skip("NATS not available:", err)
	}
	defer cleanup()

	relay := nats.NewCatalogRelay(client, logger)
	changes := events.ChangeSet{}
	changes.Add(events.EntityVariant, events.EntityMapping)

	assert.Equal(t, events.CatalogChangedEventType, relay.EventType())
	require.NoError(t, relay.Handle(context.Background(), events.NewCatalogChangedEvent(changes)))
}
