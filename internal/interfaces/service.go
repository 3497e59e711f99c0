package interfaces

import "github.com/YelzhanWeb/opskitchen/internal/domain"

// KitchenQueues are the three disjoint views derived from the reconciled
// collection. An order is in at most one queue.
type KitchenQueues struct {
	Pending   []domain.KitchenOrder `json:"pending"`
	Preparing []domain.KitchenOrder `json:"preparing"`
	Ready     []domain.KitchenOrder `json:"ready"`
}

// OrderSource exposes the reconciled collection to read-only consumers.
type OrderSource interface {
	Snapshot() []domain.Order
}

// QueueSource exposes the derived kitchen queues.
type QueueSource interface {
	Queues() KitchenQueues
}

// ChannelState is the observable connectivity surface of the event channel.
// Transport failures land here, never as errors thrown into callers.
type ChannelState interface {
	Connected() bool
	LastError() error
	Rooms() []string
}
