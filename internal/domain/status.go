package domain

import "strings"

type OrderType string

const (
	OrderTypeDineIn   OrderType = "DINE_IN"
	OrderTypeTakeaway OrderType = "TAKEAWAY"
	OrderTypeDelivery OrderType = "DELIVERY"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusPreparing OrderStatus = "PREPARING"
	StatusReady     OrderStatus = "READY"
	StatusServed    OrderStatus = "SERVED"
	StatusCompleted OrderStatus = "COMPLETED"
	StatusCancelled OrderStatus = "CANCELLED"
)

type ItemStatus string

const (
	ItemStatusPending       ItemStatus = "PENDING"
	ItemStatusSentToKitchen ItemStatus = "SENT_TO_KITCHEN"
	ItemStatusPreparing     ItemStatus = "PREPARING"
	ItemStatusReady         ItemStatus = "READY"
	ItemStatusServed        ItemStatus = "SERVED"
	ItemStatusCancelled     ItemStatus = "CANCELLED"
)

// normalize folds case and separators so that "dine-in", "Dine In" and
// "DINE_IN" all compare equal.
func normalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

// NormalizeStatus maps a loosely formatted status string to its canonical
// form. The second return reports whether the value is one of the known order
// statuses; unknown values come back normalized but keep their raw meaning.
func NormalizeStatus(raw string) (OrderStatus, bool) {
	s := OrderStatus(normalize(raw))
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
		StatusServed, StatusCompleted, StatusCancelled:
		return s, true
	}
	return s, false
}

func NormalizeItemStatus(raw string) (ItemStatus, bool) {
	s := ItemStatus(normalize(raw))
	switch s {
	case ItemStatusPending, ItemStatusSentToKitchen, ItemStatusPreparing,
		ItemStatusReady, ItemStatusServed, ItemStatusCancelled:
		return s, true
	}
	return s, false
}

func NormalizeOrderType(raw string) (OrderType, bool) {
	t := OrderType(normalize(raw))
	switch t {
	case OrderTypeDineIn, OrderTypeTakeaway, OrderTypeDelivery:
		return t, true
	}
	return t, false
}

// Known reports whether the status is part of the canonical lifecycle.
func (s OrderStatus) Known() bool {
	_, ok := NormalizeStatus(string(s))
	return ok
}

func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active reports whether the order is still in flight: a recognized,
// non-terminal status.
func (s OrderStatus) Active() bool {
	return s.Known() && !s.Terminal()
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusServed, StatusCancelled},
	StatusServed:    {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// CanTransitionTo reports whether moving to next follows the canonical
// lifecycle. The server is authoritative, so a false result is advisory only:
// callers log the skip and apply the transition anyway.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s ItemStatus) Terminal() bool {
	return s == ItemStatusServed || s == ItemStatusCancelled
}
