// Package link tracks the duplex links attached to the bridge.
package link

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Link.Send once the link can no longer carry frames.
var ErrClosed = errors.New("link closed")

// Link is an open duplex connection to the game client.
type Link interface {
	// ID identifies the link in logs.
	ID() string
	// Send writes one frame to the peer.
	Send(ctx context.Context, data []byte) error
}

// Registry tracks the currently attached links in registration order.
// Only the first registered link is used for sends.
// All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	links []Link
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends l to the registry. Adding a link that is already registered is a no-op.
//
// Precondition: l must be non-nil.
func (r *Registry) Add(l Link) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.links {
		if existing == l {
			return
		}
	}
	r.links = append(r.links, l)
}

// Remove drops l from the registry.
//
// Postcondition: Returns true if l was registered.
func (r *Registry) Remove(l Link) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.links {
		if existing == l {
			r.links = append(r.links[:i], r.links[i+1:]...)
			return true
		}
	}
	return false
}

// Current returns the first still-registered link.
//
// Postcondition: Returns (link, true), or (nil, false) when no link is attached.
func (r *Registry) Current() (Link, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.links) == 0 {
		return nil, false
	}
	return r.links[0], true
}

// Len returns the number of attached links.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.links)
}
