// Package events publishes bulk inventory summaries to NATS JetStream
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"

	"bulk-inventory-service/internal/models"
)

const (
	StreamInventory = "INVENTORY_EVENTS"

	SubjectBulkImportCompleted = "inventory.bulk.import.completed"
	SubjectBulkExportCompleted = "inventory.bulk.export.completed"
)

// BulkImportCompletedEvent summarizes one spreadsheet import
type BulkImportCompletedEvent struct {
	EventID    string    `json:"eventId"`
	EventType  string    `json:"eventType"`
	Shop       string    `json:"shop"`
	Mode       string    `json:"mode"`
	LocationID string    `json:"locationId,omitempty"`
	Total      int       `json:"total"`
	Updated    int       `json:"updated"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Timestamp  time.Time `json:"timestamp"`
}

// BulkExportCompletedEvent summarizes one spreadsheet export
type BulkExportCompletedEvent struct {
	EventID        string    `json:"eventId"`
	EventType      string    `json:"eventType"`
	Shop           string    `json:"shop"`
	LocationFilter string    `json:"locationFilter"`
	RowCount       int       `json:"rowCount"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewBulkImportCompletedEvent builds the event for an import result
func NewBulkImportCompletedEvent(shop string, mode models.LocationMode, result *models.ReconciliationResult) *BulkImportCompletedEvent {
	event := &BulkImportCompletedEvent{
		EventID:   uuid.New().String(),
		EventType: SubjectBulkImportCompleted,
		Shop:      shop,
		Mode:      "single",
		Total:     result.Total,
		Updated:   result.Updated,
		Failed:    len(result.FailedRows),
		Skipped:   len(result.SkippedRows),
		Timestamp: time.Now().UTC(),
	}
	if mode.IsAll() {
		event.Mode = models.AllLocationsID
	} else {
		event.LocationID = mode.Location.ID
	}
	return event
}

// BulkEventPublisher publishes bulk inventory events
type BulkEventPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *logrus.Entry
}

// NewBulkEventPublisher connects to NATS and makes sure the inventory stream exists
func NewBulkEventPublisher(natsURL string, logger *logrus.Logger) (*BulkEventPublisher, error) {
	if natsURL == "" {
		return nil, fmt.Errorf("NATS URL is required")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithField("component", "bulk-inventory-events")

	nc, err := nats.Connect(natsURL,
		nats.Name("bulk-inventory-service"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("Reconnected to NATS")
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.WithError(err).Warn("Disconnected from NATS")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamInventory,
		Subjects:  []string{"inventory.>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to ensure inventory stream exists")
	}

	return &BulkEventPublisher{nc: nc, js: js, logger: log}, nil
}

// PublishImportCompleted publishes an inventory.bulk.import.completed event
func (p *BulkEventPublisher) PublishImportCompleted(ctx context.Context, shop string, mode models.LocationMode, result *models.ReconciliationResult) error {
	event := NewBulkImportCompletedEvent(shop, mode, result)
	if err := p.publish(ctx, SubjectBulkImportCompleted, event.EventID, event); err != nil {
		p.logger.WithField("shop", shop).WithError(err).Error("Failed to publish bulk import event")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"shop":    shop,
		"updated": event.Updated,
		"failed":  event.Failed,
	}).Info("Published inventory.bulk.import.completed event")
	return nil
}

// PublishExportCompleted publishes an inventory.bulk.export.completed event
func (p *BulkEventPublisher) PublishExportCompleted(ctx context.Context, shop, locationFilter string, rowCount int) error {
	event := &BulkExportCompletedEvent{
		EventID:        uuid.New().String(),
		EventType:      SubjectBulkExportCompleted,
		Shop:           shop,
		LocationFilter: locationFilter,
		RowCount:       rowCount,
		Timestamp:      time.Now().UTC(),
	}
	if err := p.publish(ctx, SubjectBulkExportCompleted, event.EventID, event); err != nil {
		p.logger.WithField("shop", shop).WithError(err).Error("Failed to publish bulk export event")
		return err
	}
	return nil
}

func (p *BulkEventPublisher) publish(ctx context.Context, subject, msgID string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(msgID)); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

// IsConnected returns true if connected to NATS
func (p *BulkEventPublisher) IsConnected() bool {
	return p != nil && p.nc != nil && p.nc.IsConnected()
}

// Close closes the NATS connection
func (p *BulkEventPublisher) Close() {
	if p != nil && p.nc != nil {
		p.nc.Close()
	}
}
