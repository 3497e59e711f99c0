package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/YelzhanWeb/opskitchen/internal/adapter/logger"
	"github.com/YelzhanWeb/opskitchen/internal/domain"
	"github.com/YelzhanWeb/opskitchen/internal/interfaces"
)

// EventHandler validates inbound payloads against one schema per event kind
// at the channel boundary and forwards typed events to the sink. Malformed
// payloads are logged and dropped; they never reach reconciliation.
type EventHandler struct {
	sink   interfaces.EventSink
	logger logger.Logger
}

func NewEventHandler(sink interfaces.EventSink, lgr logger.Logger) *EventHandler {
	return &EventHandler{
		sink:   sink,
		logger: lgr,
	}
}

// Wire payloads keep statuses as raw strings; normalization happens here so
// nothing downstream sees unvalidated shapes.
type orderCreatedPayload struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID            string             `json:"id"`
	OrderNumber   string             `json:"order_number"`
	Type          string             `json:"type"`
	Status        string             `json:"status"`
	TableID       *string            `json:"table_id"`
	CustomerName  *string            `json:"customer_name"`
	CustomerPhone *string            `json:"customer_phone"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	TaxAmount     decimal.Decimal    `json:"tax_amount"`
	TotalAmount   decimal.Decimal    `json:"total_amount"`
	Notes         string             `json:"notes"`
	Items         []orderItemPayload `json:"items"`
	CreatedBy     string             `json:"created_by"`
	CreatedAt     time.Time          `json:"created_at"`
}

type orderItemPayload struct {
	ID         string          `json:"id"`
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     string          `json:"status"`
	Notes      string          `json:"notes"`
}

type statusChangedPayload struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	OldStatus   string    `json:"oldStatus"`
	NewStatus   string    `json:"newStatus"`
	ChangedBy   string    `json:"changedBy"`
	Timestamp   time.Time `json:"timestamp"`
}

type cancelledPayload struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Reason      string `json:"reason"`
}

type paymentCompletedPayload struct {
	OrderID     string          `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
}

type kitchenAlertPayload struct {
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
}

// EventKind strips the room prefix ("location.<id>." or "kitchen.<id>.") off
// a routing key, leaving the event kind.
func EventKind(routingKey string) string {
	parts := strings.SplitN(routingKey, ".", 3)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

func (h *EventHandler) HandleEvent(ctx context.Context, routingKey string, body []byte) error {
	switch kind := EventKind(routingKey); kind {
	case domain.EventOrderCreated:
		return h.handleCreated(ctx, body)
	case domain.EventOrderStatusChanged:
		return h.handleStatusChanged(ctx, body)
	case domain.EventOrderCancelled:
		return h.handleCancelled(ctx, body)
	case domain.EventPaymentCompleted:
		return h.handlePaymentCompleted(ctx, body)
	case domain.EventKitchenAlert:
		return h.handleKitchenAlert(ctx, body)
	default:
		h.logger.Debug("event_ignored", "Unknown event kind", "", map[string]interface{}{
			"routing_key": routingKey,
		})
		return nil
	}
}

func (h *EventHandler) handleCreated(ctx context.Context, body []byte) error {
	var p orderCreatedPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return fmt.Errorf("failed to parse order created event: %w", err)
	}
	if p.Order.ID == "" {
		return fmt.Errorf("order created event missing order id")
	}
	if err := validateOrder(p.Order); err != nil {
		return err
	}

	h.sink.OrderCreated(ctx, h.toOrder(p.Order))
	return nil
}

// validateOrder enforces the data-model invariants at the boundary: item
// quantities are positive and no monetary amount is negative. Amounts are
// otherwise passed through verbatim.
func validateOrder(p orderPayload) error {
	if p.Subtotal.IsNegative() || p.TaxAmount.IsNegative() || p.TotalAmount.IsNegative() {
		return fmt.Errorf("order %s has a negative amount", p.ID)
	}
	for _, item := range p.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("order %s item %s has non-positive quantity %d", p.ID, item.ID, item.Quantity)
		}
		if item.UnitPrice.IsNegative() || item.TotalPrice.IsNegative() {
			return fmt.Errorf("order %s item %s has a negative price", p.ID, item.ID)
		}
	}
	return nil
}

func (h *EventHandler) handleStatusChanged(ctx context.Context, body []byte) error {
	var p statusChangedPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return fmt.Errorf("failed to parse status changed event: %w", err)
	}
	if p.OrderID == "" || p.NewStatus == "" {
		return fmt.Errorf("status changed event missing order id or status")
	}

	h.sink.OrderStatusChanged(ctx, domain.StatusChangedEvent{
		OrderID:     p.OrderID,
		OrderNumber: p.OrderNumber,
		OldStatus:   h.normalizeStatus(p.OrderID, p.OldStatus),
		NewStatus:   h.normalizeStatus(p.OrderID, p.NewStatus),
		ChangedBy:   p.ChangedBy,
		Timestamp:   p.Timestamp,
	})
	return nil
}

func (h *EventHandler) handleCancelled(ctx context.Context, body []byte) error {
	var p cancelledPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return fmt.Errorf("failed to parse cancelled event: %w", err)
	}
	if p.OrderID == "" {
		return fmt.Errorf("cancelled event missing order id")
	}

	h.sink.OrderCancelled(ctx, domain.CancelledEvent{
		OrderID:     p.OrderID,
		OrderNumber: p.OrderNumber,
		Reason:      p.Reason,
	})
	return nil
}

func (h *EventHandler) handlePaymentCompleted(ctx context.Context, body []byte) error {
	var p paymentCompletedPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return fmt.Errorf("failed to parse payment completed event: %w", err)
	}
	if p.OrderID == "" {
		return fmt.Errorf("payment completed event missing order id")
	}
	if p.Amount.IsNegative() {
		return fmt.Errorf("payment for order %s has a negative amount", p.OrderID)
	}

	h.sink.PaymentCompleted(ctx, domain.PaymentCompletedEvent{
		OrderID:     p.OrderID,
		OrderNumber: p.OrderNumber,
		Amount:      p.Amount,
		Method:      p.Method,
	})
	return nil
}

func (h *EventHandler) handleKitchenAlert(ctx context.Context, body []byte) error {
	var p kitchenAlertPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return fmt.Errorf("failed to parse kitchen alert event: %w", err)
	}

	severity, ok := domain.NormalizeSeverity(p.Severity)
	if !ok {
		h.logger.Debug("alert_severity_unknown", "Unrecognized alert severity", "", map[string]interface{}{
			"severity": p.Severity,
		})
	}

	h.sink.KitchenAlert(ctx, domain.KitchenAlertEvent{
		Severity:    severity,
		Message:     p.Message,
		OrderID:     p.OrderID,
		OrderNumber: p.OrderNumber,
	})
	return nil
}

func (h *EventHandler) toOrder(p orderPayload) domain.Order {
	orderType, _ := domain.NormalizeOrderType(p.Type)

	items := make([]domain.OrderItem, len(p.Items))
	for i, item := range p.Items {
		status, _ := domain.NormalizeItemStatus(item.Status)
		items[i] = domain.OrderItem{
			ID:         item.ID,
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.TotalPrice,
			Status:     status,
			Notes:      item.Notes,
		}
	}

	return domain.Order{
		ID:            p.ID,
		OrderNumber:   p.OrderNumber,
		Type:          orderType,
		Status:        h.normalizeStatus(p.ID, p.Status),
		TableID:       p.TableID,
		CustomerName:  p.CustomerName,
		CustomerPhone: p.CustomerPhone,
		Subtotal:      p.Subtotal,
		TaxAmount:     p.TaxAmount,
		TotalAmount:   p.TotalAmount,
		Notes:         p.Notes,
		Items:         items,
		CreatedBy:     p.CreatedBy,
		CreatedAt:     p.CreatedAt,
	}
}

// normalizeStatus keeps unrecognized values (normalized, so projections can
// at least compare them) instead of losing information, but flags them.
func (h *EventHandler) normalizeStatus(orderID, raw string) domain.OrderStatus {
	status, ok := domain.NormalizeStatus(raw)
	if !ok {
		h.logger.Debug("status_unrecognized", "Unrecognized order status", "", map[string]interface{}{
			"order_id": orderID,
			"status":   raw,
		})
	}
	return status
}
