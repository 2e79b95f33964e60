package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// weaveBody is a generator that yields its resume value doubled, twice,
// then completes. It threads the WeaveCtx exactly as compiled code would.
func weaveBody(st *Stack) *Stack {
	// entry stack: ( ctx first )
	for i := 0; i < 2; i++ {
		v := st.Pop()
		st.Push(IntValue(v.Int * 2))
		WeaveYield(st) // ( ctx doubled -- ctx next )
	}
	st.Pop() // last resume value
	st.Pop() // ctx
	return st
}

func TestWeaveResumeProtocol(t *testing.T) {
	s := NewStack(32, 256)
	q := &Quotation{Wrapper: weaveBody, Impl: weaveBody}
	s.Push(Value{Kind: KindQuotation, Ref: q})

	Weave(s)
	require.Equal(t, KindWeaveCtx, s.Peek().Kind, "weave pushes the handle")

	// first resume: 3 -> 6
	s.Push(IntValue(3))
	Resume(s)
	assert.True(t, s.Pop().Bool)
	assert.Equal(t, int64(6), s.Pop().Int)

	// second resume: 5 -> 10
	s.Push(IntValue(5))
	Resume(s)
	assert.True(t, s.Pop().Bool)
	assert.Equal(t, int64(10), s.Pop().Int)

	// third resume: the weave has completed
	s.Push(IntValue(0))
	Resume(s)
	assert.False(t, s.Pop().Bool, "completed weave must report no more values")
	assert.Equal(t, int64(0), s.Pop().Int)

	require.Equal(t, KindWeaveCtx, s.Pop().Kind, "handle stays on the stack")
	WaitAll()
}

func TestWeaveHandleFlowsAsValue(t *testing.T) {
	// no global registry: the handle is an ordinary value that can be
	// sent through a channel
	s := NewStack(32, 256)
	q := &Quotation{Wrapper: weaveBody, Impl: weaveBody}
	s.Push(Value{Kind: KindQuotation, Ref: q})
	Weave(s)

	ch := NewChannel()
	ch.Send(s.Pop())
	v, ok := ch.Receive()
	require.True(t, ok)
	require.Equal(t, KindWeaveCtx, v.Kind)

	s.Push(v)
	s.Push(IntValue(7))
	Resume(s)
	assert.True(t, s.Pop().Bool)
	assert.Equal(t, int64(14), s.Pop().Int)

	// drive to completion so WaitAll returns
	s.Push(IntValue(0))
	Resume(s)
	s.Pop() // more flag
	s.Pop() // yielded value
	s.Push(IntValue(0))
	Resume(s)
	s.Pop()
	s.Pop()
	WaitAll()
}
