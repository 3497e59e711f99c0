package kitchen

import (
	"sync"
	"time"

	"github.com/YelzhanWeb/opskitchen/internal/adapter/logger"
	"github.com/YelzhanWeb/opskitchen/internal/app/reconcile"
	"github.com/YelzhanWeb/opskitchen/internal/domain"
	"github.com/YelzhanWeb/opskitchen/internal/interfaces"
)

type Options struct {
	// RushThreshold marks an order rush once this much time elapsed since
	// creation. Defaults to 15 minutes.
	RushThreshold time.Duration
	// RefreshInterval re-derives prep times without waiting for an event.
	// Defaults to 60 seconds.
	RefreshInterval time.Duration
	// Now is a clock seam for tests.
	Now func() time.Time
}

// Projection derives the pending/preparing/ready queues from the reconciled
// collection. It rebuilds on every store change and on a fixed timer so
// elapsed prep time and rush flags stay current between events.
type Projection struct {
	store *reconcile.Store
	log   logger.Logger
	now   func() time.Time

	rushAfter time.Duration

	mu     sync.RWMutex
	rush   map[string]bool
	queues interfaces.KitchenQueues

	unsubscribe func()
	stop        chan struct{}
	stopOnce    sync.Once
}

func NewProjection(store *reconcile.Store, lgr logger.Logger, opts Options) *Projection {
	if opts.RushThreshold <= 0 {
		opts.RushThreshold = 15 * time.Minute
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 60 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	p := &Projection{
		store:     store,
		log:       lgr,
		now:       opts.Now,
		rushAfter: opts.RushThreshold,
		rush:      make(map[string]bool),
		stop:      make(chan struct{}),
	}

	p.rebuild()
	p.unsubscribe = store.Subscribe(p.rebuild)
	go p.refreshLoop(opts.RefreshInterval)

	return p
}

// Queues returns the current derived queues. Slices are not mutated after
// publication; callers may read them freely.
func (p *Projection) Queues() interfaces.KitchenQueues {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.queues
}

// MarkRush flags an order rush ahead of the elapsed-time threshold, on an
// explicit alert. The flag is sticky for as long as the order stays active.
func (p *Projection) MarkRush(orderID string) {
	p.mu.Lock()
	p.rush[orderID] = true
	p.mu.Unlock()

	p.rebuild()
}

// Close detaches from the store and stops the refresh timer. The projection
// does not change after Close returns.
func (p *Projection) Close() {
	p.stopOnce.Do(func() {
		close(p.stop)
		if p.unsubscribe != nil {
			p.unsubscribe()
		}
	})
}

func (p *Projection) refreshLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.rebuild()
		}
	}
}

func (p *Projection) rebuild() {
	select {
	case <-p.stop:
		return
	default:
	}

	// Snapshot under the projection lock: rebuilds run concurrently (ticker,
	// store notifications, MarkRush) and an older snapshot published after a
	// newer one would resurrect evicted orders.
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := p.store.Snapshot()
	now := p.now()

	var queues interfaces.KitchenQueues
	active := make(map[string]bool, len(snapshot))

	for _, o := range snapshot {
		active[o.ID] = true

		// Unknown statuses, PENDING and terminal orders belong to no queue.
		var target *[]domain.KitchenOrder
		switch o.Status {
		case domain.StatusConfirmed:
			target = &queues.Pending
		case domain.StatusPreparing:
			target = &queues.Preparing
		case domain.StatusReady:
			target = &queues.Ready
		default:
			continue
		}

		prep := 0
		if !o.CreatedAt.IsZero() {
			prep = int(now.Sub(o.CreatedAt).Minutes())
			if prep < 0 {
				prep = 0
			}
		}

		rush := p.rush[o.ID] || time.Duration(prep)*time.Minute >= p.rushAfter
		if rush {
			p.rush[o.ID] = true
		}

		*target = append(*target, domain.KitchenOrder{
			Order:    o,
			PrepTime: prep,
			IsRush:   rush,
		})
	}

	// Drop sticky flags only once the order left the collection.
	for id := range p.rush {
		if !active[id] {
			delete(p.rush, id)
		}
	}

	p.queues = queues
}
