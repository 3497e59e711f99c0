package interfaces

import (
	"context"

	"github.com/YelzhanWeb/opskitchen/internal/domain"
)

// OrderFetcher is the REST collaborator: authoritative reads used to seed the
// reconciled collection and to backfill orders the event stream mentions
// before they are known locally.
type OrderFetcher interface {
	ListOrders(ctx context.Context, locationID string, statuses []domain.OrderStatus) ([]domain.Order, error)
	ListKitchenOrders(ctx context.Context, locationID string) ([]domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
}
