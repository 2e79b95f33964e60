package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStack() *Stack { return NewStack(128, 1024) }

func TestPushPopPeek(t *testing.T) {
	s := testStack()
	s.Push(IntValue(1))
	s.Push(IntValue(2))

	assert.Equal(t, 2, s.Depth())
	assert.Equal(t, int64(2), s.PeekInt())

	v := s.Pop()
	assert.Equal(t, int64(2), v.Int)
	assert.Equal(t, 1, s.Depth())
}

func TestStackShufflers(t *testing.T) {
	s := testStack()
	s.Push(IntValue(1))
	s.Push(IntValue(2))
	s.Push(IntValue(3))

	s.Rot() // ( 1 2 3 -- 2 3 1 )
	assert.Equal(t, int64(1), s.Pop().Int)
	assert.Equal(t, int64(3), s.Pop().Int)
	assert.Equal(t, int64(2), s.Pop().Int)

	s.Push(IntValue(1))
	s.Push(IntValue(2))
	s.Swap()
	assert.Equal(t, int64(1), s.Pop().Int)
	assert.Equal(t, int64(2), s.Pop().Int)

	s.Push(IntValue(1))
	s.Push(IntValue(2))
	s.Over() // ( 1 2 -- 1 2 1 )
	assert.Equal(t, int64(1), s.Pop().Int)

	s.Push(IntValue(9))
	s.Nip() // ( 1 2 9 -- 1 9 )
	assert.Equal(t, int64(9), s.Pop().Int)
	assert.Equal(t, int64(1), s.Pop().Int)

	s.Push(IntValue(1))
	s.Push(IntValue(2))
	s.Tuck() // ( 1 2 -- 2 1 2 )
	assert.Equal(t, int64(2), s.Pop().Int)
	assert.Equal(t, int64(1), s.Pop().Int)
	assert.Equal(t, int64(2), s.Pop().Int)
}

func TestStackOverflowAborts(t *testing.T) {
	s := NewStack(2, 256)
	s.Push(IntValue(1))
	s.Push(IntValue(2))
	assert.Panics(t, func() { s.Push(IntValue(3)) })
}

func TestStackUnderflowAborts(t *testing.T) {
	s := testStack()
	assert.Panics(t, func() { s.Pop() })
}

func TestPeekTagMismatchAborts(t *testing.T) {
	s := testStack()
	s.Push(BoolValue(true))
	assert.Panics(t, func() { s.PeekInt() })
}

func TestArithmeticOps(t *testing.T) {
	s := testStack()
	s.Push(IntValue(2))
	s.Push(IntValue(3))
	Add(s)
	assert.Equal(t, int64(5), s.PeekInt())

	s.Push(IntValue(2))
	Multiply(s)
	assert.Equal(t, int64(10), s.PeekInt())

	s.Push(IntValue(3))
	Subtract(s)
	assert.Equal(t, int64(7), s.PeekInt())

	s.Push(IntValue(2))
	Divide(s)
	assert.Equal(t, int64(3), s.Pop().Int)
}

func TestDivideByZeroSetsRuntimeError(t *testing.T) {
	ClearRuntimeError()
	s := testStack()
	s.Push(IntValue(1))
	s.Push(IntValue(0))
	Divide(s)

	// a neutral value is produced so execution can continue briefly
	assert.Equal(t, int64(0), s.Pop().Int)
	assert.Contains(t, RuntimeError(), "divide by zero")
	ClearRuntimeError()
}

func TestModuloByZeroSetsRuntimeError(t *testing.T) {
	ClearRuntimeError()
	s := testStack()
	s.Push(IntValue(1))
	s.Push(IntValue(0))
	Modulo(s)
	assert.Equal(t, int64(0), s.Pop().Int)
	assert.Contains(t, RuntimeError(), "modulo by zero")
	ClearRuntimeError()
}

func TestComparisonsReturnBool(t *testing.T) {
	s := testStack()
	s.Push(IntValue(2))
	s.Push(IntValue(3))
	Lt(s)
	v := s.Pop()
	require.Equal(t, KindBool, v.Kind)
	assert.True(t, v.Bool)

	s.Push(IntValue(2))
	s.Push(IntValue(2))
	Neq(s)
	assert.False(t, s.Pop().Bool)
}

func TestVariantOps(t *testing.T) {
	s := testStack()
	s.Push(IntValue(4))
	MakeVariant(s, "Circle", 1)

	v := s.Peek()
	require.Equal(t, KindVariant, v.Kind)

	VariantTag(s)
	tag := s.Pop()
	require.Equal(t, KindString, tag.Kind)
	assert.True(t, SymbolEq(tag.Str, "Circle"))
}

func TestUnpackVariant(t *testing.T) {
	s := testStack()
	s.Push(IntValue(1))
	s.Push(IntValue(2))
	MakeVariant(s, "P", 2)

	UnpackVariant(s, 2)
	// fields spread in declaration order: first field deepest
	assert.Equal(t, int64(2), s.Pop().Int)
	assert.Equal(t, int64(1), s.Pop().Int)
}

func TestVariantFieldAt(t *testing.T) {
	s := testStack()
	s.Push(IntValue(10))
	s.Push(IntValue(20))
	MakeVariant(s, "P", 2)

	s.Push(IntValue(1))
	VariantFieldAt(s)
	assert.Equal(t, int64(20), s.Pop().Int)
}

func TestSymbolEqCstr(t *testing.T) {
	s := testStack()
	PushSymbol(s, "Circle")
	SymbolEqCstr(s, "Circle")
	assert.True(t, s.Pop().Bool)

	PushSymbol(s, "Circle")
	SymbolEqCstr(s, "Square")
	assert.False(t, s.Pop().Bool)
}

func TestCallQuotation(t *testing.T) {
	s := testStack()
	s.Push(IntValue(2))
	q := &Quotation{Wrapper: func(st *Stack) *Stack {
		st.Push(IntValue(3))
		return Add(st)
	}}
	q.Impl = q.Wrapper
	s.Push(Value{Kind: KindQuotation, Ref: q})

	CallQuotation(s)
	assert.Equal(t, int64(5), s.Pop().Int)
}

func TestCallClosurePushesEnv(t *testing.T) {
	s := testStack()
	s.Push(IntValue(5))
	cl := &Closure{
		Fn: func(st *Stack, env []Value) *Stack {
			PushEnv(st, env)
			return Add(st)
		},
		Env: []Value{IntValue(10)},
	}
	s.Push(Value{Kind: KindClosure, Ref: cl})

	CallQuotation(s)
	assert.Equal(t, int64(15), s.Pop().Int)
}
