// Package presence tracks which live connection currently receives pushes
// for each user.
package presence

import "sync"

// Registry maps a user to at most one connection. The latest bind wins.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]string)}
}

// Bind points userID at connID, replacing any earlier connection.
func (r *Registry) Bind(userID, connID string) {
	r.mu.Lock()
	r.byUser[userID] = connID
	r.mu.Unlock()
}

// Lookup returns the connection bound to userID.
func (r *Registry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byUser[userID]
	return connID, ok
}

// Unbind drops every entry still pointing at connID and returns the users
// it removed. A user who has since bound a newer connection keeps it.
func (r *Registry) Unbind(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	for userID, current := range r.byUser {
		if current == connID {
			delete(r.byUser, userID)
			removed = append(removed, userID)
		}
	}
	return removed
}

// Len returns the number of users with a live connection.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
