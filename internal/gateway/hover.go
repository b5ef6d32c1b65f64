package gateway

import (
	"sync/atomic"

	"chartdesk/internal/ringbuf"
)

type hoverMove struct {
	seq  uint64
	time *int64
}

// hoverQueue hands pointer moves from the socket reader to the tooltip
// worker. One goroutine pushes and one takes. A push that finds the ring
// full parks the move in spill, so the newest position is never lost.
type hoverQueue struct {
	ring  *ringbuf.Ring[hoverMove]
	spill atomic.Pointer[hoverMove]
	seq   uint64 // producer only
}

func newHoverQueue(capacity int) *hoverQueue {
	return &hoverQueue{ring: ringbuf.New[hoverMove](capacity)}
}

// push queues t. Producer side.
func (q *hoverQueue) push(t *int64) {
	q.seq++
	mv := hoverMove{seq: q.seq, time: t}
	if !q.ring.Push(mv) {
		q.spill.Store(&mv)
	}
}

// latest drains the queue and returns the newest move. Consumer side.
func (q *hoverQueue) latest() (hoverMove, bool) {
	mv, ok := q.ring.Latest()
	if s := q.spill.Swap(nil); s != nil && (!ok || s.seq > mv.seq) {
		return *s, true
	}
	return mv, ok
}
