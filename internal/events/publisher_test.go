package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulk-inventory-service/internal/models"
)

// fakeJetStream records publishes; every other method panics through the nil embed
type fakeJetStream struct {
	jetstream.JetStream
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeJetStream) Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, payload)
	return &jetstream.PubAck{Stream: StreamInventory}, nil
}

func newTestPublisher(js jetstream.JetStream) *BulkEventPublisher {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &BulkEventPublisher{js: js, logger: logger.WithField("component", "test")}
}

func sampleResult() *models.ReconciliationResult {
	result := models.NewReconciliationResult(4)
	result.Updated = 2
	result.FailedRows = append(result.FailedRows, models.NewRow())
	result.SkippedRows = append(result.SkippedRows, models.NewRow())
	return result
}

func TestNewBulkImportCompletedEvent(t *testing.T) {
	loc := models.Location{ID: "gid://shopify/Location/1", Name: "Main"}

	single := NewBulkImportCompletedEvent("shop.myshopify.com", models.SingleLocation(loc), sampleResult())
	assert.Equal(t, "single", single.Mode)
	assert.Equal(t, loc.ID, single.LocationID)
	assert.Equal(t, 4, single.Total)
	assert.Equal(t, 2, single.Updated)
	assert.Equal(t, 1, single.Failed)
	assert.Equal(t, 1, single.Skipped)
	assert.NotEmpty(t, single.EventID)

	all := NewBulkImportCompletedEvent("shop.myshopify.com", models.AllLocations(), sampleResult())
	assert.Equal(t, "all", all.Mode)
	assert.Empty(t, all.LocationID)
}

func TestPublishImportCompleted(t *testing.T) {
	js := &fakeJetStream{}
	p := newTestPublisher(js)

	err := p.PublishImportCompleted(context.Background(), "shop.myshopify.com", models.AllLocations(), sampleResult())
	require.NoError(t, err)

	require.Equal(t, []string{SubjectBulkImportCompleted}, js.subjects)
	var event BulkImportCompletedEvent
	require.NoError(t, json.Unmarshal(js.payloads[0], &event))
	assert.Equal(t, "shop.myshopify.com", event.Shop)
	assert.Equal(t, SubjectBulkImportCompleted, event.EventType)
	assert.Equal(t, 2, event.Updated)
}

func TestPublishExportCompleted(t *testing.T) {
	js := &fakeJetStream{}
	p := newTestPublisher(js)

	require.NoError(t, p.PublishExportCompleted(context.Background(), "shop.myshopify.com", "all", 12))

	require.Equal(t, []string{SubjectBulkExportCompleted}, js.subjects)
	var event BulkExportCompletedEvent
	require.NoError(t, json.Unmarshal(js.payloads[0], &event))
	assert.Equal(t, 12, event.RowCount)
	assert.Equal(t, "all", event.LocationFilter)
}

func TestPublish_ReturnsJetStreamError(t *testing.T) {
	p := newTestPublisher(&fakeJetStream{err: errors.New("no responders")})

	err := p.PublishExportCompleted(context.Background(), "shop.myshopify.com", "", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), SubjectBulkExportCompleted)
}

func TestNewBulkEventPublisher_RequiresURL(t *testing.T) {
	_, err := NewBulkEventPublisher("", nil)
	assert.Error(t, err)
}

func TestNilPublisherIsSafe(t *testing.T) {
	var p *BulkEventPublisher
	assert.False(t, p.IsConnected())
	assert.NotPanics(t, p.Close)
}
