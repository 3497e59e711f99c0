package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YelzhanWeb/opskitchen/internal/adapter/logger"
	"github.com/YelzhanWeb/opskitchen/internal/domain"
)

type fakeFetcher struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	err    error
	gate   chan struct{} // when set, GetOrder blocks until the gate closes
	calls  int
}

func (f *fakeFetcher) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, errors.New("order not found")
	}
	return &o, nil
}

func (f *fakeFetcher) ListOrders(ctx context.Context, locationID string, statuses []domain.OrderStatus) ([]domain.Order, error) {
	return nil, nil
}

func (f *fakeFetcher) ListKitchenOrders(ctx context.Context, locationID string) ([]domain.Order, error) {
	return nil, nil
}

func (f *fakeFetcher) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	return nil
}

func newTestEngine(t *testing.T, fetcher *fakeFetcher, opts Options) *Engine {
	t.Helper()
	if fetcher.orders == nil {
		fetcher.orders = make(map[string]domain.Order)
	}
	e := NewEngine(NewStore(), fetcher, logger.New("test"), opts)
	t.Cleanup(e.Close)
	return e
}

func statusChange(id string, to domain.OrderStatus, ts time.Time) domain.StatusChangedEvent {
	return domain.StatusChangedEvent{
		OrderID:     id,
		OrderNumber: "N-" + id,
		NewStatus:   to,
		Timestamp:   ts,
	}
}

func TestApplyCreatedIsIdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, &fakeFetcher{}, Options{})

	o := order("1", domain.StatusConfirmed)
	e.OrderCreated(ctx, o)
	e.OrderCreated(ctx, o) // REST race: broadcast of an order already known

	assert.Equal(t, 1, e.Store().Len())
}

func TestStatusChangedIdempotentApply(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, &fakeFetcher{}, Options{})
	e.OrderCreated(ctx, order("1", domain.StatusConfirmed))

	ev := statusChange("1", domain.StatusPreparing, time.Now())
	e.OrderStatusChanged(ctx, ev)
	first := e.Store().Snapshot()

	e.OrderStatusChanged(ctx, ev) // duplicate delivery
	second := e.Store().Snapshot()

	assert.Equal(t, first, second)
	got, _ := e.Store().Get("1")
	assert.Equal(t, domain.StatusPreparing, got.Status)
}

func TestSeedDoesNotOverwriteStreamState(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, &fakeFetcher{}, Options{})

	// Event arrives while the REST snapshot is still in flight.
	e.OrderCreated(ctx, order("1", domain.StatusPreparing))
	e.Seed([]domain.Order{order("1", domain.StatusConfirmed), order("2", domain.StatusConfirmed)})

	got, _ := e.Store().Get("1")
	assert.Equal(t, domain.StatusPreparing, got.Status)
	assert.Equal(t, 2, e.Store().Len())
}

func TestBackfillInsertsUnknownOrder(t *testing.T) {
	// Scenario B: event for unknown #7 arrives before any snapshot.
	ctx := context.Background()
	fetcher := &fakeFetcher{orders: map[string]domain.Order{
		"7": order("7", domain.StatusConfirmed),
	}}
	e := newTestEngine(t, fetcher, Options{Relevant: KitchenWindow})

	e.OrderStatusChanged(ctx, statusChange("7", domain.StatusConfirmed, time.Now()))

	require.Eventually(t, func() bool {
		_, ok := e.Store().Get("7")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	got, _ := e.Store().Get("7")
	assert.Equal(t, domain.StatusConfirmed, got.Status)
}

func TestBackfillDiscardsOrderOutsideWindow(t *testing.T) {
	// Scenario B race: by the time the fetch resolves the order has already
	// moved past the kitchen window.
	ctx := context.Background()
	fetcher := &fakeFetcher{orders: map[string]domain.Order{
		"7": order("7", domain.StatusCompleted),
	}}
	e := newTestEngine(t, fetcher, Options{Relevant: KitchenWindow})

	e.OrderStatusChanged(ctx, statusChange("7", domain.StatusConfirmed, time.Now()))

	require.Eventually(t, func() bool {
		fetcher.mu.Lock()
		defer fetcher.mu.Unlock()
		return fetcher.calls == 1
	}, 2*time.Second, 10*time.Millisecond)

	e.Close()
	_, ok := e.Store().Get("7")
	assert.False(t, ok, "stale fetch result must not be inserted")
}

func TestBackfillSkippedOutsideWindow(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakeFetcher{}
	e := newTestEngine(t, fetcher, Options{Relevant: KitchenWindow})

	// The kitchen does not care about SERVED; no fetch should happen.
	e.OrderStatusChanged(ctx, statusChange("9", domain.StatusServed, time.Now()))
	e.Close()

	assert.Equal(t, 0, fetcher.calls)
	assert.Equal(t, 0, e.Store().Len())
}

func TestBackfillFailureFailsOpen(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakeFetcher{err: errors.New("boom")}
	e := newTestEngine(t, fetcher, Options{Relevant: KitchenWindow})

	e.OrderStatusChanged(ctx, statusChange("7", domain.StatusConfirmed, time.Now()))
	e.Close()

	assert.Equal(t, 1, fetcher.calls, "no synchronous retry")
	assert.Equal(t, 0, e.Store().Len())
}

func TestCreatedDuringBackfillYieldsSingleEntry(t *testing.T) {
	// Out-of-order convergence: created for X lands while the backfill
	// triggered by an earlier status-changed is still in flight.
	ctx := context.Background()
	gate := make(chan struct{})
	fetcher := &fakeFetcher{
		orders: map[string]domain.Order{"7": order("7", domain.StatusConfirmed)},
		gate:   gate,
	}
	e := newTestEngine(t, fetcher, Options{Relevant: KitchenWindow})

	e.OrderStatusChanged(ctx, statusChange("7", domain.StatusPreparing, time.Now()))

	created := order("7", domain.StatusPreparing)
	e.OrderCreated(ctx, created)

	close(gate)
	e.Close()

	assert.Equal(t, 1, e.Store().Len(), "exactly one entry for #7")
	got, _ := e.Store().Get("7")
	assert.Equal(t, domain.StatusPreparing, got.Status, "most advanced observed status kept")
}

func TestCancelledRemovedImmediatelyWithoutGrace(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, &fakeFetcher{}, Options{})
	e.OrderCreated(ctx, order("3", domain.StatusPreparing))

	e.OrderCancelled(ctx, domain.CancelledEvent{OrderID: "3"})

	_, ok := e.Store().Get("3")
	assert.False(t, ok)
}

func TestCancelledEvictedAfterGrace(t *testing.T) {
	// Scenario C with a shortened grace period.
	ctx := context.Background()
	e := newTestEngine(t, &fakeFetcher{}, Options{Relevant: KitchenWindow, CancelledGrace: 50 * time.Millisecond})
	e.OrderCreated(ctx, order("3", domain.StatusPreparing))

	e.OrderCancelled(ctx, domain.CancelledEvent{OrderID: "3"})
	e.OrderCancelled(ctx, domain.CancelledEvent{OrderID: "3"}) // duplicate delivery

	_, ok := e.Store().Get("3")
	assert.True(t, ok, "stays visible during the grace period")

	require.Eventually(t, func() bool {
		_, ok := e.Store().Get("3")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCancelledUnknownOrderIsNoop(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, &fakeFetcher{}, Options{})

	e.OrderCancelled(ctx, domain.CancelledEvent{OrderID: "ghost"})
	assert.Equal(t, 0, e.Store().Len())
}

func TestPaymentCompletedForcesTerminalStatus(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, &fakeFetcher{}, Options{})
	e.OrderCreated(ctx, order("5", domain.StatusServed))

	e.PaymentCompleted(ctx, domain.PaymentCompletedEvent{
		OrderID: "5",
		Amount:  decimal.NewFromFloat(12.50),
		Method:  "CARD",
	})

	got, _ := e.Store().Get("5")
	assert.Equal(t, domain.StatusCompleted, got.Status)
}

func TestTimestampTiebreakDiscardsStaleEvent(t *testing.T) {
	// Scenario D with usable timestamps: READY then PREPARING in reverse
	// causal order; the older event is discarded.
	ctx := context.Background()
	e := newTestEngine(t, &fakeFetcher{}, Options{})
	e.OrderCreated(ctx, order("5", domain.StatusConfirmed))

	t1 := time.Now()
	t2 := t1.Add(time.Second)

	e.OrderStatusChanged(ctx, statusChange("5", domain.StatusReady, t2))
	e.OrderStatusChanged(ctx, statusChange("5", domain.StatusPreparing, t1))

	got, _ := e.Store().Get("5")
	assert.Equal(t, domain.StatusReady, got.Status)
}

func TestWithoutTimestampsLastReceivedWins(t *testing.T) {
	// Transports that omit the timestamp keep the original behavior.
	ctx := context.Background()
	e := newTestEngine(t, &fakeFetcher{}, Options{})
	e.OrderCreated(ctx, order("5", domain.StatusConfirmed))

	e.OrderStatusChanged(ctx, statusChange("5", domain.StatusReady, time.Time{}))
	e.OrderStatusChanged(ctx, statusChange("5", domain.StatusPreparing, time.Time{}))

	got, _ := e.Store().Get("5")
	assert.Equal(t, domain.StatusPreparing, got.Status)
}

func TestMoneyPassesThroughVerbatim(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, &fakeFetcher{}, Options{})

	o := order("1", domain.StatusConfirmed)
	o.TotalAmount = decimal.RequireFromString("19.99")
	o.Items = []domain.OrderItem{{
		ID:        "i-1",
		Quantity:  3,
		UnitPrice: decimal.RequireFromString("5.00"),
		// The server says 19.99; the client never checks the arithmetic.
		TotalPrice: decimal.RequireFromString("19.99"),
	}}
	e.OrderCreated(ctx, o)

	e.OrderStatusChanged(ctx, statusChange("1", domain.StatusPreparing, time.Now()))

	got, _ := e.Store().Get("1")
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("19.99")))

	// A later broadcast with a corrected total replaces it verbatim.
	o.Status = domain.StatusPreparing
	o.TotalAmount = decimal.RequireFromString("21.50")
	e.OrderCreated(ctx, o)

	got, _ = e.Store().Get("1")
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("21.50")))
}

func TestOptimisticHelpers(t *testing.T) {
	e := newTestEngine(t, &fakeFetcher{}, Options{})

	e.AddOrder(order("9", domain.StatusPending))
	e.UpdateOrderStatus("9", domain.StatusConfirmed)

	got, _ := e.Store().Get("9")
	assert.Equal(t, domain.StatusConfirmed, got.Status)

	e.RemoveOrder("9")
	assert.Equal(t, 0, e.Store().Len())
}

func TestCloseStopsEvictionTimer(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, &fakeFetcher{}, Options{CancelledGrace: 20 * time.Millisecond})
	e.OrderCreated(ctx, order("3", domain.StatusPreparing))
	e.OrderCancelled(ctx, domain.CancelledEvent{OrderID: "3"})

	e.Close()
	time.Sleep(50 * time.Millisecond)

	_, ok := e.Store().Get("3")
	assert.True(t, ok, "no mutation after disposal")
}
