package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/farmstand/api/internal/services"
)

// PubSubEventPublisher publishes order and sale lifecycle events to a Pub/Sub
// topic. Delivery is best effort; callers log and continue on failure.
type PubSubEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubEventPublisher constructs a Pub/Sub backed event publisher.
func NewPubSubEventPublisher(topic *pubsub.Topic) (*PubSubEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub event publisher: topic is required")
	}
	return &PubSubEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

var (
	_ services.OrderEventPublisher = (*PubSubEventPublisher)(nil)
	_ services.SaleEventPublisher  = (*PubSubEventPublisher)(nil)
)

// PublishOrderEvent enqueues an order lifecycle event on the configured topic.
func (p *PubSubEventPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub event publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "orderNumber", event.Number)
	setAttr(attrs, "farmId", event.FarmID)
	setAttr(attrs, "status", string(event.Status))
	if !event.OccurredAt.IsZero() {
		attrs["occurredAt"] = event.OccurredAt.UTC().Format(time.RFC3339)
	}

	return p.publish(ctx, data, attrs)
}

// PublishSaleEvent enqueues a sale lifecycle event on the configured topic.
func (p *PubSubEventPublisher) PublishSaleEvent(ctx context.Context, event services.SaleEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub event publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal sale event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "saleId", event.SaleID)
	setAttr(attrs, "productId", event.ProductID)
	setAttr(attrs, "farmId", event.FarmID)
	if !event.OccurredAt.IsZero() {
		attrs["occurredAt"] = event.OccurredAt.UTC().Format(time.RFC3339)
	}

	return p.publish(ctx, data, attrs)
}

func (p *PubSubEventPublisher) publish(ctx context.Context, data []byte, attrs map[string]string) error {
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
