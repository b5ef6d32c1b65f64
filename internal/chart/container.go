package chart

import "sync"

// Container reports the layout box the primary surface lives in. A zero
// width means layout has not happened yet.
type Container interface {
	Size() (width, height int)
}

// FixedContainer is a container with a settable size. Headless renders use
// it directly; hosts update it as their layout changes.
type FixedContainer struct {
	mu sync.Mutex
	w  int
	h  int
}

// NewFixedContainer returns a container of the given size.
func NewFixedContainer(width, height int) *FixedContainer {
	return &FixedContainer{w: width, h: height}
}

func (c *FixedContainer) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w, c.h
}

// Set updates the size.
func (c *FixedContainer) Set(width, height int) {
	c.mu.Lock()
	c.w, c.h = width, height
	c.mu.Unlock()
}
