package machine

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnAndWaitAll(t *testing.T) {
	var counter atomic.Int32
	for i := 0; i < 100; i++ {
		Spawn(func(s *Stack) *Stack {
			counter.Add(1)
			return s
		})
	}
	WaitAll()
	assert.Equal(t, int32(100), counter.Load())
	assert.Equal(t, int64(0), ActiveStrands())
}

func TestStrandIDsAreUnique(t *testing.T) {
	seen := make(map[int64]bool)
	var ids []int64
	for i := 0; i < 100; i++ {
		ids = append(ids, Spawn(func(s *Stack) *Stack { return s }))
	}
	WaitAll()
	for _, id := range ids {
		assert.Greater(t, id, int64(0))
		assert.False(t, seen[id], "duplicate strand id %d", id)
		seen[id] = true
	}
}

func TestSpawnOpRunsQuotation(t *testing.T) {
	var ran atomic.Bool
	s := NewStack(16, 256)
	q := &Quotation{Wrapper: func(st *Stack) *Stack {
		ran.Store(true)
		return st
	}}
	q.Impl = q.Wrapper
	s.Push(Value{Kind: KindQuotation, Ref: q})

	SpawnOp(s)
	WaitAll()
	assert.True(t, ran.Load())
	assert.Equal(t, 0, s.Depth())
}

func TestMaybeYieldDoesNotBlock(t *testing.T) {
	// only every Nth probe yields; all of them must return promptly
	for i := 0; i < 1000; i++ {
		MaybeYield()
	}
}

func TestChannelPingAcrossStrands(t *testing.T) {
	// spawn a strand that receives an Int and reports it; main sends 42
	// and waits (end-to-end scenario 5 at the runtime level)
	ch := NewChannel()
	var got atomic.Int64

	Spawn(func(s *Stack) *Stack {
		s.Push(ChannelValue(ch))
		Receive(s)
		got.Store(s.Pop().Int)
		return s
	})

	send := NewStack(16, 256)
	send.Push(IntValue(42))
	send.Push(ChannelValue(ch))
	Send(send)

	WaitAll()
	require.Equal(t, int64(42), got.Load())
}
