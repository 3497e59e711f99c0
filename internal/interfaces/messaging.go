package interfaces

import (
	"context"

	"github.com/YelzhanWeb/opskitchen/internal/domain"
)

// EventSink receives validated events from the channel boundary, one at a
// time. Implementations must tolerate duplicates and arbitrary ordering.
type EventSink interface {
	OrderCreated(ctx context.Context, order domain.Order)
	OrderStatusChanged(ctx context.Context, ev domain.StatusChangedEvent)
	OrderCancelled(ctx context.Context, ev domain.CancelledEvent)
	PaymentCompleted(ctx context.Context, ev domain.PaymentCompletedEvent)
	KitchenAlert(ctx context.Context, ev domain.KitchenAlertEvent)
}

// EventHandler is the raw boundary between the transport and the decoder:
// routing key plus undecoded payload.
type EventHandler func(ctx context.Context, routingKey string, body []byte) error

// AlertSink triggers notification side effects. Implementations swallow their
// own failures; none of these calls may surface an error into reconciliation.
type AlertSink interface {
	OrderCreated(order domain.Order)
	OrderReady(orderNumber string)
	Alert(ev domain.KitchenAlertEvent)
}

// RushMarker lets an explicit rush alert flag an order ahead of the elapsed
// time threshold.
type RushMarker interface {
	MarkRush(orderID string)
}
