package reconcile

import (
	"sync"

	"github.com/YelzhanWeb/opskitchen/internal/domain"
)

// Store is the canonical in-memory order collection, keyed by order id and
// kept newest-first for display. Multiple projections read one shared store
// and are told about every change through Subscribe.
type Store struct {
	mu     sync.RWMutex
	orders []domain.Order
	index  map[string]int

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

func NewStore() *Store {
	return &Store{
		index: make(map[string]int),
		subs:  make(map[int]func()),
	}
}

func (s *Store) Get(id string) (domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return domain.Order{}, false
	}
	return s.orders[i].Clone(), true
}

// Snapshot returns a newest-first copy of the collection.
func (s *Store) Snapshot() []domain.Order {
	s.mu.RLock()
	out := make([]domain.Order, len(s.orders))
	for i, o := range s.orders {
		out[i] = o.Clone()
	}
	s.mu.RUnlock()
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// Upsert replaces an existing order in place or prepends a new one. The
// server additionally broadcasting an order the client already fetched via
// REST is therefore harmless.
func (s *Store) Upsert(o domain.Order) {
	s.mu.Lock()
	if i, ok := s.index[o.ID]; ok {
		s.orders[i] = o.Clone()
	} else {
		s.orders = append([]domain.Order{o.Clone()}, s.orders...)
		s.reindex()
	}
	s.mu.Unlock()

	s.notify()
}

// SetStatus updates a single order's status in place. Returns false when the
// id is unknown.
func (s *Store) SetStatus(id string, status domain.OrderStatus) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if ok {
		s.orders[i].Status = status
	}
	s.mu.Unlock()

	if ok {
		s.notify()
	}
	return ok
}

func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if ok {
		s.orders = append(s.orders[:i], s.orders[i+1:]...)
		s.reindex()
	}
	s.mu.Unlock()

	if ok {
		s.notify()
	}
	return ok
}

// Fill inserts REST-fetched orders for ids the event stream has not mentioned
// yet. Identities already present keep their socket-delivered state: the
// stream is strictly fresher than any poll.
func (s *Store) Fill(orders []domain.Order) {
	s.mu.Lock()
	added := false
	for _, o := range orders {
		if _, ok := s.index[o.ID]; ok {
			continue
		}
		s.orders = append(s.orders, o.Clone())
		added = true
	}
	if added {
		s.reindex()
	}
	s.mu.Unlock()

	if added {
		s.notify()
	}
}

// Subscribe registers a change callback and returns its unsubscribe func.
// Callbacks run outside the store lock; they may read the store freely.
func (s *Store) Subscribe(fn func()) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// reindex rebuilds the id index; callers hold the write lock.
func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.orders))
	for i, o := range s.orders {
		s.index[o.ID] = i
	}
}
