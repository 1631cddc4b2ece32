package chat

import (
	"sync"
)

// Registry is the presence map: user id -> the most recent live connection.
// It holds no durable state and starts empty on every process start;
// presence is best-effort, not authoritative.
//
// Only the gateway mutates it, on the connect/disconnect path. Register
// overwrites; a second login silently supersedes the first connection in the
// registry without closing it. Deregister removes the entry only when it
// still points at the departing connection, so a late disconnect from a
// superseded socket can never evict its successor.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]*Client)}
}

// Register inserts or overwrites the entry for the user. Always succeeds.
func (r *Registry) Register(userID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = c
}

// Deregister removes the entry only if it still holds exactly this
// connection. Returns whether an entry was removed; false means a newer
// connection for the user is still live and presence must be left alone.
func (r *Registry) Deregister(userID string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byUser[userID]; ok && cur == c {
		delete(r.byUser, userID)
		return true
	}
	return false
}

// Lookup returns the live connection for the user, if any.
func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

// IsOnline reports presence for one user.
func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Snapshot returns the current set of connections for fan-out. The copy
// keeps broadcast iteration outside the lock.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.byUser))
	for _, c := range r.byUser {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
