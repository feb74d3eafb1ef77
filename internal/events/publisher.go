package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ProductChange describes a product saved or deleted through a matrix session
type ProductChange struct {
	StoreID       string
	ProductID     int64
	ParentID      *int64
	Name          string
	SKU           string
	Price         string
	ActorID       string
	ChangedFields []string
	VariantCount  int
}

// Publisher wraps the go-shared events publisher for catalog change events
type Publisher struct {
	publisher *events.Publisher
	logger    *logrus.Entry
}

// NewPublisher connects to NATS and makes sure the products stream exists
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	config := events.DefaultPublisherConfig(natsURL)
	config.Name = "catalog-admin-service"

	publisher, err := events.NewPublisher(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create events publisher: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := publisher.EnsureStream(ctx, events.StreamProducts, []string{"product.>"}); err != nil {
		logger.WithError(err).Warn("Failed to ensure products stream (may already exist)")
	}

	return &Publisher{
		publisher: publisher,
		logger:    logger.WithField("component", "catalog-events"),
	}, nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p.publisher != nil {
		p.publisher.Close()
	}
}

// PublishProductCreated publishes a product.created event
func (p *Publisher) PublishProductCreated(ctx context.Context, change ProductChange) error {
	event := p.buildProductEvent(events.ProductCreated, change)
	event.ChangeType = "created"
	return p.publish(ctx, event)
}

// PublishProductUpdated publishes a product.updated event listing the fields sent
func (p *Publisher) PublishProductUpdated(ctx context.Context, change ProductChange) error {
	event := p.buildProductEvent(events.ProductUpdated, change)
	event.ChangeType = "updated"
	event.ChangedFields = change.ChangedFields
	return p.publish(ctx, event)
}

// PublishProductDeleted publishes a product.deleted event
func (p *Publisher) PublishProductDeleted(ctx context.Context, change ProductChange) error {
	event := p.buildProductEvent(events.ProductDeleted, change)
	event.ChangeType = "deleted"
	return p.publish(ctx, event)
}

func (p *Publisher) buildProductEvent(eventType string, change ProductChange) *events.ProductEvent {
	event := events.NewProductEvent(eventType, change.StoreID)
	event.SourceID = uuid.New().String()
	event.ProductID = strconv.FormatInt(change.ProductID, 10)
	event.ProductName = change.Name
	event.SKU = change.SKU
	event.ActorID = change.ActorID

	if price, err := strconv.ParseFloat(change.Price, 64); err == nil {
		event.Price = price
	}

	newValue := map[string]interface{}{
		"variantCount": change.VariantCount,
	}
	if change.ParentID != nil {
		newValue["parentId"] = *change.ParentID
	}
	event.NewValue = newValue

	return event
}

// publish sends the event in the background so the request is never blocked on NATS
func (p *Publisher) publish(ctx context.Context, event *events.ProductEvent) error {
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := p.publisher.PublishProduct(pubCtx, event); err != nil {
			p.logger.WithFields(logrus.Fields{
				"eventType": event.EventType,
				"productID": event.ProductID,
				"storeID":   event.TenantID,
			}).WithError(err).Error("Failed to publish product event")
		} else {
			p.logger.WithFields(logrus.Fields{
				"eventType": event.EventType,
				"productID": event.ProductID,
				"storeID":   event.TenantID,
			}).Info("Product event published")
		}
	}()

	return nil
}
