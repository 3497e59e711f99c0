package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/YelzhanWeb/opskitchen/internal/adapter/logger"
	"github.com/YelzhanWeb/opskitchen/internal/domain"
	"github.com/YelzhanWeb/opskitchen/internal/interfaces"
)

// Options tune the engine per view.
type Options struct {
	// Relevant is the view's status window: events for unknown orders are
	// backfilled only when the new status passes this predicate. Nil means
	// any known non-terminal status.
	Relevant func(domain.OrderStatus) bool
	// CancelledGrace keeps a cancelled order visible for this long before it
	// is removed from the active collection. Zero removes immediately.
	CancelledGrace time.Duration
}

// KitchenWindow is the relevance predicate of the kitchen display: only
// orders a kitchen acts on. PENDING is deliberately absent; unconfirmed
// orders must never reach the kitchen.
func KitchenWindow(s domain.OrderStatus) bool {
	return s == domain.StatusConfirmed || s == domain.StatusPreparing || s == domain.StatusReady
}

// Engine merges the REST snapshot with the live event stream into the shared
// store. Events may arrive duplicated, reordered, or before the snapshot;
// applying any event twice is a no-op and a missed order self-heals through
// the fetch-by-id backfill.
type Engine struct {
	store    *Store
	fetcher  interfaces.OrderFetcher
	log      logger.Logger
	relevant func(domain.OrderStatus) bool
	grace    time.Duration

	mu        sync.Mutex
	lastEvent map[string]time.Time
	inflight  map[string]struct{}
	timers    map[string]*time.Timer
	closed    bool

	backfills sync.WaitGroup
}

func NewEngine(store *Store, fetcher interfaces.OrderFetcher, lgr logger.Logger, opts Options) *Engine {
	relevant := opts.Relevant
	if relevant == nil {
		relevant = func(s domain.OrderStatus) bool { return s.Active() }
	}

	return &Engine{
		store:     store,
		fetcher:   fetcher,
		log:       lgr,
		relevant:  relevant,
		grace:     opts.CancelledGrace,
		lastEvent: make(map[string]time.Time),
		inflight:  make(map[string]struct{}),
		timers:    make(map[string]*time.Timer),
	}
}

func (e *Engine) Store() *Store { return e.store }

// Seed fills the store with a REST snapshot. Orders the event stream already
// delivered keep their socket state.
func (e *Engine) Seed(orders []domain.Order) {
	e.store.Fill(orders)
}

// OrderCreated applies an order:created event as an idempotent upsert.
func (e *Engine) OrderCreated(ctx context.Context, order domain.Order) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.store.Upsert(order)
}

// OrderStatusChanged applies a status transition. Duplicates are suppressed,
// stale events (older timestamp than the last applied one for that order) are
// discarded, and events for unknown orders inside the view window trigger an
// out-of-band backfill. Returns true when the event actually changed local
// state (or launched a backfill for it); duplicates and discards return
// false so callers do not repeat side effects.
func (e *Engine) OrderStatusChanged(ctx context.Context, ev domain.StatusChangedEvent) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}

	if e.stale(ev.OrderID, ev.Timestamp) {
		e.mu.Unlock()
		e.log.Debug("event_stale", "Discarding stale status event", "", map[string]interface{}{
			"order_id": ev.OrderID,
			"status":   string(ev.NewStatus),
		})
		return false
	}

	current, exists := e.store.Get(ev.OrderID)
	if exists {
		e.record(ev.OrderID, ev.Timestamp)
		e.mu.Unlock()

		if current.Status == ev.NewStatus {
			return false
		}
		if !current.Status.CanTransitionTo(ev.NewStatus) {
			e.log.Debug("transition_skipped_states", "Server transition skips lifecycle states", "", map[string]interface{}{
				"order_id": ev.OrderID,
				"from":     string(current.Status),
				"to":       string(ev.NewStatus),
			})
		}
		e.store.SetStatus(ev.OrderID, ev.NewStatus)
		return true
	}

	if !e.relevant(ev.NewStatus) {
		e.mu.Unlock()
		return false
	}
	if _, running := e.inflight[ev.OrderID]; running {
		e.mu.Unlock()
		return false
	}
	e.inflight[ev.OrderID] = struct{}{}
	e.backfills.Add(1)
	e.mu.Unlock()

	go e.backfill(ctx, ev)
	return true
}

// backfill fetches the full order behind an event that referenced an unknown
// id. Another event may complete first during the fetch, so existence is
// re-checked before inserting; a fetch whose status already moved outside the
// window is discarded rather than inserted stale.
func (e *Engine) backfill(ctx context.Context, ev domain.StatusChangedEvent) {
	defer e.backfills.Done()

	order, err := e.fetcher.GetOrder(ctx, ev.OrderID)

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, ev.OrderID)

	if e.closed {
		return
	}
	if err != nil {
		// Fails open: no retry, the next relevant event self-heals.
		e.log.Error("backfill_failed", "Failed to backfill order", "", map[string]interface{}{
			"order_id": ev.OrderID,
		}, err)
		return
	}
	if _, exists := e.store.Get(ev.OrderID); exists {
		return
	}
	if !e.relevant(order.Status) {
		e.log.Debug("backfill_discarded", "Backfilled order already outside view window", "", map[string]interface{}{
			"order_id": ev.OrderID,
			"status":   string(order.Status),
		})
		return
	}

	e.record(ev.OrderID, ev.Timestamp)
	e.store.Upsert(*order)
}

// OrderCancelled removes the order from the active collection, immediately or
// after the grace period, so staff can see it go. The authoritative record
// server-side keeps the CANCELLED order either way.
func (e *Engine) OrderCancelled(ctx context.Context, ev domain.CancelledEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if _, exists := e.store.Get(ev.OrderID); !exists {
		return
	}

	if e.grace <= 0 {
		e.store.Remove(ev.OrderID)
		return
	}
	if _, pending := e.timers[ev.OrderID]; pending {
		return
	}

	id := ev.OrderID
	e.timers[id] = time.AfterFunc(e.grace, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.timers, id)
		if e.closed {
			return
		}
		e.store.Remove(id)
	})
}

// PaymentCompleted forces the terminal COMPLETED status. Payment is reported
// separately from kitchen-workflow transitions, so no status-changed event is
// required for this move.
func (e *Engine) PaymentCompleted(ctx context.Context, ev domain.PaymentCompletedEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.store.SetStatus(ev.OrderID, domain.StatusCompleted)
}

// Optimistic helpers for POS flows acting ahead of server confirmation.

func (e *Engine) AddOrder(order domain.Order) {
	e.store.Upsert(order)
}

func (e *Engine) UpdateOrderStatus(orderID string, status domain.OrderStatus) {
	e.store.SetStatus(orderID, status)
}

func (e *Engine) RemoveOrder(orderID string) {
	e.mu.Lock()
	if t, ok := e.timers[orderID]; ok {
		t.Stop()
		delete(e.timers, orderID)
	}
	e.mu.Unlock()

	e.store.Remove(orderID)
}

// Close cancels pending eviction timers and waits for in-flight backfills.
// No state is mutated after Close returns.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
	e.mu.Unlock()

	e.backfills.Wait()
}

// stale reports whether a timestamped event precedes the newest one already
// applied for the order. Events without a timestamp fall back to
// last-received-wins.
func (e *Engine) stale(orderID string, ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	last, ok := e.lastEvent[orderID]
	return ok && ts.Before(last)
}

func (e *Engine) record(orderID string, ts time.Time) {
	if ts.IsZero() {
		return
	}
	if last, ok := e.lastEvent[orderID]; !ok || ts.After(last) {
		e.lastEvent[orderID] = ts
	}
}
