package subscribers

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	gosharedevents "github.com/Tesseract-Nexus/go-shared/events"
	"github.com/sirupsen/logrus"
)

// ProductNotifier is told about products changed outside of its sessions
type ProductNotifier interface {
	NotifyProductChanged(productID int64, deleted bool) int
}

// ProductSubscriber warns open dialogs when the product they edit is updated
// or deleted by someone else
type ProductSubscriber struct {
	subscriber *gosharedevents.Subscriber
	sessions   ProductNotifier
	storeID    string
	logger     *logrus.Entry
	cancel     context.CancelFunc
}

// NewProductSubscriber creates a product event subscriber
func NewProductSubscriber(
	natsURL string,
	sessions ProductNotifier,
	storeID string,
	logger *logrus.Logger,
) (*ProductSubscriber, error) {
	config := gosharedevents.DefaultSubscriberConfig(natsURL, "catalog-admin-service-products")
	config.Name = "catalog-admin-service-product-subscriber"
	config.DeliverPolicy = "new"
	config.MaxDeliver = 3
	config.AckWait = 30 * time.Second

	subscriber, err := gosharedevents.NewSubscriber(config, logger)
	if err != nil {
		return nil, err
	}

	return &ProductSubscriber{
		subscriber: subscriber,
		sessions:   sessions,
		storeID:    storeID,
		logger:     logger.WithField("component", "product-subscriber"),
	}, nil
}

// Start starts listening for product events
func (s *ProductSubscriber) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	subjects := []string{
		gosharedevents.ProductUpdated,
		gosharedevents.ProductDeleted,
	}

	s.logger.Info("Starting product event subscription...")

	err := s.subscriber.Subscribe(ctx, gosharedevents.StreamProducts, subjects, s.handleProductMessage)
	if err != nil {
		return err
	}

	s.logger.WithField("subjects", subjects).Info("Product subscriber started successfully")
	return nil
}

func (s *ProductSubscriber) handleProductMessage(ctx context.Context, msg *gosharedevents.Message) error {
	var event gosharedevents.ProductEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		s.logger.WithError(err).Error("Failed to unmarshal product event")
		return nil // Don't retry for invalid data
	}
	return s.handleProductEvent(ctx, &event)
}

func (s *ProductSubscriber) handleProductEvent(_ context.Context, event *gosharedevents.ProductEvent) error {
	if s.storeID != "" && event.TenantID != s.storeID {
		return nil
	}

	productID, err := strconv.ParseInt(event.ProductID, 10, 64)
	if err != nil {
		s.logger.WithField("product_id", event.ProductID).Debug("Ignoring product event with a non-numeric id")
		return nil
	}

	deleted := event.EventType == gosharedevents.ProductDeleted
	notified := s.sessions.NotifyProductChanged(productID, deleted)
	if notified > 0 {
		s.logger.WithFields(logrus.Fields{
			"event_type": event.EventType,
			"product_id": productID,
			"sessions":   notified,
		}).Info("Warned open sessions about a product change")
	}
	return nil
}

// Stop stops the subscriber
func (s *ProductSubscriber) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.subscriber != nil {
		s.subscriber.Close()
	}
	s.logger.Info("Product subscriber stopped")
}
