// Package panesync keeps the visible time range of a primary pane and its
// subordinate panes in lockstep.
//
// Every pane is a peer: a range change on the primary is applied to each
// subordinate, and a change on a subordinate is applied to the primary, which
// in turn forwards it to the other subordinates. SetVisibleRange is a no-op
// when the range is unchanged, so the echo from a peer stops after one hop.
package panesync

import (
	"sync"

	"chartdesk/internal/surface"
)

// Pane is the part of a rendering surface the synchronizer needs.
type Pane interface {
	ID() string
	VisibleRange() surface.Range
	SetVisibleRange(r surface.Range) bool
	SubscribeVisibleRange(fn func(surface.Range)) (unsubscribe func())
}

type link struct {
	unsubs []func()
}

// Synchronizer links one primary pane with any number of subordinates.
type Synchronizer struct {
	primary Pane

	mu     sync.Mutex
	subs   map[string]*link
	closed bool
}

// New creates a synchronizer for primary with no subordinates attached.
func New(primary Pane) *Synchronizer {
	return &Synchronizer{
		primary: primary,
		subs:    make(map[string]*link),
	}
}

// Attach aligns sub to the primary's current range and links them both ways.
// Attaching the same pane twice is a no-op.
func (s *Synchronizer) Attach(sub Pane) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, ok := s.subs[sub.ID()]; ok {
		s.mu.Unlock()
		return
	}
	l := &link{}
	s.subs[sub.ID()] = l
	s.mu.Unlock()

	sub.SetVisibleRange(s.primary.VisibleRange())

	fromPrimary := s.primary.SubscribeVisibleRange(func(r surface.Range) {
		sub.SetVisibleRange(r)
	})
	toPrimary := sub.SubscribeVisibleRange(func(r surface.Range) {
		s.primary.SetVisibleRange(r)
	})

	s.mu.Lock()
	if s.closed || s.subs[sub.ID()] != l {
		s.mu.Unlock()
		fromPrimary()
		toPrimary()
		return
	}
	l.unsubs = append(l.unsubs, fromPrimary, toPrimary)
	s.mu.Unlock()
}

// Detach unlinks sub. Unknown panes are ignored.
func (s *Synchronizer) Detach(sub Pane) {
	s.mu.Lock()
	l, ok := s.subs[sub.ID()]
	if ok {
		delete(s.subs, sub.ID())
	}
	s.mu.Unlock()
	if ok {
		l.release()
	}
}

// Len returns the number of attached subordinates.
func (s *Synchronizer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close unlinks every subordinate. Repeated calls are no-ops.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	links := make([]*link, 0, len(s.subs))
	for _, l := range s.subs {
		links = append(links, l)
	}
	s.subs = make(map[string]*link)
	s.mu.Unlock()

	for _, l := range links {
		l.release()
	}
}

func (l *link) release() {
	for _, fn := range l.unsubs {
		fn()
	}
	l.unsubs = nil
}
