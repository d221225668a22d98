// Package notify fans domain events out to logs and the message broker.
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Kind names an event type.
type Kind string

const (
	KindCheckoutCompleted Kind = "checkout.completed"
	KindProductCreated    Kind = "product.created"
	KindProductUpdated    Kind = "product.updated"
)

// Event is emitted after a mutating operation succeeds.
type Event struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	OccurredAt  time.Time `json:"occurred_at"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	Quantity    int       `json:"quantity,omitempty"`
	Stock       int       `json:"stock"`
	Destination string    `json:"destination,omitempty"`
	GrandTotal  string    `json:"grand_total,omitempty"`
}

// Notifier receives events. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event Event) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// LogNotifier writes events to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier. A nil logger discards events.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, event Event) error {
	n.logger.Info("storefront event",
		zap.String("event_id", event.ID),
		zap.String("kind", string(event.Kind)),
		zap.String("product_id", event.ProductID),
		zap.Int("quantity", event.Quantity),
		zap.Int("stock", event.Stock),
		zap.String("destination", event.Destination),
		zap.String("grand_total", event.GrandTotal),
	)
	return nil
}

// Multi delivers every event to each notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
