package chat

import (
	"sort"
	"sync"
)

// Registry maps user id to that user's current connection. It is the only
// source of truth for presence.
type Registry struct {
	mu      sync.RWMutex
	byUser  map[string]Handle
	onEvict func(user string, h Handle)
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]Handle)}
}

// OnEvict sets the callback run after Lookup drops a stale entry.
// Set it before the registry is shared.
func (r *Registry) OnEvict(fn func(user string, h Handle)) {
	r.onEvict = fn
}

// Register inserts or replaces the handle for user and returns the
// replaced one, if any.
func (r *Registry) Register(user string, h Handle) (prev Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev = r.byUser[user]
	r.byUser[user] = h
	if prev == h {
		return nil
	}
	return prev
}

// Unregister removes user. It reports whether an entry existed.
func (r *Registry) Unregister(user string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[user]; !ok {
		return false
	}
	delete(r.byUser, user)
	return true
}

// UnregisterHandle removes user only while it still maps to h, so a closing
// superseded connection cannot evict its replacement.
func (r *Registry) UnregisterHandle(user string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteIfLocked(user, h)
}

func (r *Registry) deleteIfLocked(user string, h Handle) bool {
	cur, ok := r.byUser[user]
	if !ok || cur != h {
		return false
	}
	delete(r.byUser, user)
	return true
}

// Lookup returns the live handle for user. An entry whose transport is
// already closed is dropped and reported absent.
func (r *Registry) Lookup(user string) (Handle, bool) {
	r.mu.RLock()
	h, ok := r.byUser[user]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !h.Closed() {
		return h, true
	}

	r.mu.Lock()
	evicted := r.deleteIfLocked(user, h)
	r.mu.Unlock()
	if evicted && r.onEvict != nil {
		r.onEvict(user, h)
	}
	return nil, false
}

// SnapshotKeys returns the registered users, sorted, at one instant.
func (r *Registry) SnapshotKeys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.byUser))
	for k := range r.byUser {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
