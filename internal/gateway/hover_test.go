package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoverQueue_LatestWins(t *testing.T) {
	q := newHoverQueue(4)
	_, ok := q.latest()
	assert.False(t, ok)

	a, b := int64(100), int64(200)
	q.push(&a)
	q.push(&b)
	mv, ok := q.latest()
	require.True(t, ok)
	assert.Equal(t, b, *mv.time)

	_, ok = q.latest()
	assert.False(t, ok, "latest drains the queue")
}

func TestHoverQueue_FullRingKeepsFinalMove(t *testing.T) {
	q := newHoverQueue(4)
	for i := int64(0); i < 10; i++ {
		v := i
		q.push(&v)
	}
	mv, ok := q.latest()
	require.True(t, ok)
	require.NotNil(t, mv.time)
	assert.Equal(t, int64(9), *mv.time)
}

func TestHoverQueue_FullRingKeepsPointerLeave(t *testing.T) {
	q := newHoverQueue(4)
	for i := int64(0); i < 6; i++ {
		v := i
		q.push(&v)
	}
	q.push(nil)

	mv, ok := q.latest()
	require.True(t, ok)
	assert.Nil(t, mv.time)
}

func TestHoverQueue_RingNewerThanSpill(t *testing.T) {
	q := newHoverQueue(2)
	for i := int64(0); i < 3; i++ {
		v := i
		q.push(&v)
	}
	// The consumer drains the ring, then the producer refills it before
	// the spilled move is collected.
	_, _ = q.ring.Latest()
	late := int64(42)
	q.push(&late)

	mv, ok := q.latest()
	require.True(t, ok)
	assert.Equal(t, late, *mv.time)
}
