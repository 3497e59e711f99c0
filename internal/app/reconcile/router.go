package reconcile

import (
	"context"

	"github.com/YelzhanWeb/opskitchen/internal/domain"
	"github.com/YelzhanWeb/opskitchen/internal/interfaces"
)

// Router fans validated events out to the engine and the side-effect
// consumers. Alerts and rush marking are optional; a nil sink disables them.
type Router struct {
	engine *Engine
	alerts interfaces.AlertSink
	rush   interfaces.RushMarker
}

func NewRouter(engine *Engine, alerts interfaces.AlertSink, rush interfaces.RushMarker) *Router {
	return &Router{
		engine: engine,
		alerts: alerts,
		rush:   rush,
	}
}

func (r *Router) OrderCreated(ctx context.Context, order domain.Order) {
	r.engine.OrderCreated(ctx, order)
	if r.alerts != nil {
		r.alerts.OrderCreated(order)
	}
}

func (r *Router) OrderStatusChanged(ctx context.Context, ev domain.StatusChangedEvent) {
	// Alert only when the engine applied the event; redelivered duplicates
	// must not re-ping staff.
	applied := r.engine.OrderStatusChanged(ctx, ev)
	if applied && r.alerts != nil && ev.NewStatus == domain.StatusReady {
		r.alerts.OrderReady(ev.OrderNumber)
	}
}

func (r *Router) OrderCancelled(ctx context.Context, ev domain.CancelledEvent) {
	r.engine.OrderCancelled(ctx, ev)
}

func (r *Router) PaymentCompleted(ctx context.Context, ev domain.PaymentCompletedEvent) {
	r.engine.PaymentCompleted(ctx, ev)
}

func (r *Router) KitchenAlert(ctx context.Context, ev domain.KitchenAlertEvent) {
	if r.alerts != nil {
		r.alerts.Alert(ev)
	}
	if r.rush != nil && ev.Severity == domain.SeverityHigh && ev.OrderID != "" {
		r.rush.MarkRush(ev.OrderID)
	}
}
