package supervisor

import (
	"sort"
	"sync"

	"github.com/ctrl-tools/appctrl-go/pkg/errors"
)

// registry is the single source of truth for live processes. One mutex
// guards the table for the lifetime of the supervisor. Every mutation
// happens under it, including the spawn on insert and the kill on
// remove, so racing starts and stops always see a consistent view.
type registry struct {
	mutex   sync.Mutex
	entries map[string]*handle
}

func newRegistry() *registry {
	return &registry{
		entries: make(map[string]*handle),
	}
}

// insert runs spawn and registers its handle under id, all while holding
// the lock. A second insert for a live id fails with AlreadyRunning
// before anything is spawned.
func (r *registry) insert(id string, spawn func() (*handle, error)) (*handle, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.entries[id]; exists {
		return nil, errors.NewAlreadyRunningError("app is already running", nil).WithContext("app_id", id)
	}

	h, err := spawn()
	if err != nil {
		return nil, err
	}

	r.entries[id] = h
	return h, nil
}

// removeWith takes the entry for id out of the table and runs fn on it
// while still holding the lock. Returns the removed handle, or nil if
// the id was not present.
func (r *registry) removeWith(id string, fn func(*handle)) *handle {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	h, exists := r.entries[id]
	if !exists {
		return nil
	}
	delete(r.entries, id)
	if fn != nil {
		fn(h)
	}
	return h
}

// evict removes id only while it still maps to the given handle. The
// return value tells the caller whether it won the removal, and with it
// the right to emit the stopped event for this run.
func (r *registry) evict(id string, h *handle) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	current, exists := r.entries[id]
	if !exists || current != h {
		return false
	}
	delete(r.entries, id)
	return true
}

// holds reports whether id currently maps to the given handle
func (r *registry) holds(id string, h *handle) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	current, exists := r.entries[id]
	return exists && current == h
}

func (r *registry) contains(id string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	_, exists := r.entries[id]
	return exists
}

// ids returns a sorted snapshot of live application ids
func (r *registry) ids() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// drainWith empties the table, invoking fn per entry under the lock
func (r *registry) drainWith(fn func(id string, h *handle)) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for id, h := range r.entries {
		delete(r.entries, id)
		if fn != nil {
			fn(id, h)
		}
	}
}
