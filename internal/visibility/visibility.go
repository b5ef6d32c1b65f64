// Package visibility toggles whether existing overlay series are drawn.
//
// It is a handle table keyed by indicator id. It never computes or discards
// data: an indicator that is not enabled has no handle, and toggling it only
// records the flag for the next time a handle is registered.
package visibility

import (
	"sync"

	"chartdesk/internal/model"
)

// Handle is a live series whose draw visibility can be switched.
type Handle interface {
	SetVisible(v bool)
}

// Controller owns the visibility flags and the live handle table.
type Controller struct {
	mu      sync.Mutex
	flags   model.VisibilityFlags
	handles map[string][]Handle
}

// New creates a controller seeded with flags. A nil map means all visible.
func New(flags model.VisibilityFlags) *Controller {
	if flags == nil {
		flags = model.VisibilityFlags{}
	}
	return &Controller{
		flags:   flags.Clone(),
		handles: make(map[string][]Handle),
	}
}

// Register records h under id and applies the current flag to it.
func (c *Controller) Register(id string, h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h.SetVisible(c.flags.Visible(id))
	c.handles[id] = append(c.handles[id], h)
}

// Unregister drops every handle for id. The flag itself is kept.
func (c *Controller) Unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handles, id)
}

// Set records the flag for id and pushes it to every live handle with that
// id. It returns the number of handles touched; zero for a disabled indicator.
func (c *Controller) Set(id string, visible bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags[id] = visible
	hs := c.handles[id]
	for _, h := range hs {
		h.SetVisible(visible)
	}
	return len(hs)
}

// Visible reports the current flag for id.
func (c *Controller) Visible(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags.Visible(id)
}

// Live reports whether id has at least one registered handle.
func (c *Controller) Live(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles[id]) > 0
}

// Reset drops every handle, as when the surfaces are rebuilt. Flags survive.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles = make(map[string][]Handle)
}

// Flags returns a copy of the current flags.
func (c *Controller) Flags() model.VisibilityFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags.Clone()
}
