package service

import (
	"context"
	"io"
	"time"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

// Topics carried on the event bus.
const (
	TopicUser    = "user_events"
	TopicCart    = "cart_events"
	TopicProduct = "product_events"
	TopicOrder   = "order_events"
	TopicPayment = "payment_events"
)

type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

// ProductIndex is the full-text search index kept in sync with the catalog.
type ProductIndex interface {
	Index(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id uint) error
	Search(ctx context.Context, q string, from, size int) (total int64, ids []uint, err error)
}

// Uploader stores an object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

type Event struct {
	Type      string         `json:"type"`
	UserID    uint           `json:"user_id,omitempty"`
	ProductID uint           `json:"product_id,omitempty"`
	OrderID   uint           `json:"order_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	At        time.Time      `json:"at"`
}

// publish never fails the caller: the event bus is best effort.
func publish(ctx context.Context, p EventPublisher, topic, key string, ev Event) {
	if p == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := p.Publish(ctx, topic, key, ev); err != nil {
		logging.FromContext(ctx).Warn("publish_event_error", "topic", topic, "type", ev.Type, "error", err)
	}
}
