package rabbitmq

import (
	"sort"
	"sync"
)

// LocationRoom returns the binding pattern for a location room. Events are
// published with routing keys of the form "location.<id>.<event-kind>".
func LocationRoom(locationID string) string {
	return "location." + locationID + ".#"
}

// KitchenRoom is the optional kitchen sub-room of a location.
func KitchenRoom(locationID string) string {
	return "kitchen." + locationID + ".#"
}

// roomSet tracks which rooms the session has joined so they can be re-bound
// after a reconnect. Add and Remove report whether membership actually
// changed; joining twice or leaving an unjoined room is a no-op.
type roomSet struct {
	mu      sync.Mutex
	members map[string]struct{}
}

func newRoomSet() *roomSet {
	return &roomSet{members: make(map[string]struct{})}
}

func (r *roomSet) Add(pattern string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[pattern]; ok {
		return false
	}
	r.members[pattern] = struct{}{}
	return true
}

func (r *roomSet) Remove(pattern string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[pattern]; !ok {
		return false
	}
	delete(r.members, pattern)
	return true
}

func (r *roomSet) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.members))
	for m := range r.members {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
