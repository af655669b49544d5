package live

import "sync"

// Listener receives events of the kind it was registered for.
type Listener func(Event)

// ListenerID identifies a registration for removal with Off.
type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// registry maps event kinds to listeners in registration order.
type registry struct {
	mu     sync.Mutex
	nextID ListenerID
	byKind map[Kind][]listenerEntry
}

func newRegistry() *registry {
	return &registry{byKind: make(map[Kind][]listenerEntry)}
}

func (r *registry) add(kind Kind, fn Listener) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.byKind[kind] = append(r.byKind[kind], listenerEntry{id: r.nextID, fn: fn})
	return r.nextID
}

// remove deletes at most one entry.
func (r *registry) remove(kind Kind, id ListenerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.byKind[kind]
	for i, e := range entries {
		if e.id != id {
			continue
		}
		// Copy so snapshots handed to in-flight dispatches stay intact.
		next := make([]listenerEntry, 0, len(entries)-1)
		next = append(next, entries[:i]...)
		next = append(next, entries[i+1:]...)
		if len(next) == 0 {
			delete(r.byKind, kind)
		} else {
			r.byKind[kind] = next
		}
		return true
	}
	return false
}

func (r *registry) snapshot(kind Kind) []listenerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byKind[kind]
}

func (r *registry) count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byKind[kind])
}

func (r *registry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKind = make(map[Kind][]listenerEntry)
}
