package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelFIFO(t *testing.T) {
	ch := NewChannel()
	for i := int64(1); i <= 5; i++ {
		ch.Send(IntValue(i))
	}
	for i := int64(1); i <= 5; i++ {
		v, ok := ch.Receive()
		require.True(t, ok)
		assert.Equal(t, i, v.Int)
	}
}

func TestChannelSendClonesStringsToGlobal(t *testing.T) {
	a := NewArena(1024)
	ch := NewChannel()
	ch.Send(StringValue(ArenaString(a, "hello")))

	v, ok := ch.Receive()
	require.True(t, ok)
	require.Equal(t, KindString, v.Kind)
	assert.True(t, v.Str.IsGlobal(), "received string must not depend on the sender's arena")
	assert.Equal(t, "hello", v.Str.String())
}

func TestChannelSendClonesVariantStrings(t *testing.T) {
	a := NewArena(1024)
	ch := NewChannel()
	variant := &Variant{
		Tag:    Intern("Msg"),
		Fields: []Value{StringValue(ArenaString(a, "payload"))},
	}
	ch.Send(VariantValue(variant))

	v, ok := ch.Receive()
	require.True(t, ok)
	got := v.Ref.(*Variant)
	assert.True(t, got.Fields[0].Str.IsGlobal())
	assert.Equal(t, "payload", got.Fields[0].Str.String())
}

func TestChannelCloseSignalsEOF(t *testing.T) {
	ch := NewChannel()
	ch.Send(IntValue(1))
	ch.Close()

	// queued values remain receivable after close
	v, ok := ch.Receive()
	require.True(t, ok)
	assert.Equal(t, int64(1), v.Int)

	_, ok = ch.Receive()
	assert.False(t, ok)
}

func TestChannelCloseWakesReceivers(t *testing.T) {
	ch := NewChannel()
	done := make(chan bool)
	go func() {
		_, ok := ch.Receive()
		done <- ok
	}()
	ch.Close()
	assert.False(t, <-done)
}

func TestReceiveOnClosedViaOps(t *testing.T) {
	ClearRuntimeError()
	ch := NewChannel()
	ch.Close()

	s := NewStack(16, 256)
	s.Push(ChannelValue(ch))
	Receive(s)

	assert.Equal(t, int64(0), s.Pop().Int)
	assert.Contains(t, RuntimeError(), "closed channel")
	ClearRuntimeError()
}

func TestChannelManyProducersManyConsumers(t *testing.T) {
	ch := NewChannel()
	const producers, perProducer = 4, 25

	for p := 0; p < producers; p++ {
		Spawn(func(s *Stack) *Stack {
			for i := 0; i < perProducer; i++ {
				ch.Send(IntValue(1))
			}
			return s
		})
	}

	sum := NewChannel()
	for c := 0; c < 4; c++ {
		Spawn(func(s *Stack) *Stack {
			total := int64(0)
			for i := 0; i < perProducer; i++ {
				v, ok := ch.Receive()
				if !ok {
					break
				}
				total += v.Int
			}
			sum.Send(IntValue(total))
			return s
		})
	}

	WaitAll()
	var got int64
	for c := 0; c < 4; c++ {
		v, ok := sum.Receive()
		require.True(t, ok)
		got += v.Int
	}
	assert.Equal(t, int64(producers*perProducer), got)
}
