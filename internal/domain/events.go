package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event kinds carried in the routing key suffix of every inbound message.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
	EventPaymentCompleted   = "order.payment_completed"
	EventKitchenAlert       = "kitchen.alert"
)

type AlertSeverity string

const (
	SeverityLow    AlertSeverity = "LOW"
	SeverityMedium AlertSeverity = "MEDIUM"
	SeverityHigh   AlertSeverity = "HIGH"
)

func NormalizeSeverity(raw string) (AlertSeverity, bool) {
	s := AlertSeverity(normalize(raw))
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return s, true
	}
	return s, false
}

// StatusChangedEvent announces a server-side transition. The transport does
// not order or deduplicate these; Timestamp may be zero on older servers.
type StatusChangedEvent struct {
	OrderID     string
	OrderNumber string
	OldStatus   OrderStatus
	NewStatus   OrderStatus
	ChangedBy   string
	Timestamp   time.Time
}

type CancelledEvent struct {
	OrderID     string
	OrderNumber string
	Reason      string
}

type PaymentCompletedEvent struct {
	OrderID     string
	OrderNumber string
	Amount      decimal.Decimal
	Method      string
}

type KitchenAlertEvent struct {
	Severity    AlertSeverity
	Message     string
	OrderID     string
	OrderNumber string
}
