package machine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapBasics(t *testing.T) {
	m := NewMap(4)
	require.NoError(t, m.Set(IntValue(1), GlobalStringValue("one")))
	require.NoError(t, m.Set(BoolValue(true), IntValue(42)))
	require.NoError(t, m.Set(StringValue(GlobalString("k")), IntValue(7)))

	v, ok, err := m.Get(IntValue(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "one", v.Str.String())

	v, ok, err = m.Get(StringValue(GlobalString("k")))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(7), v.Int)

	assert.Equal(t, 3, m.Len())

	require.NoError(t, m.Delete(IntValue(1)))
	_, ok, err = m.Get(IntValue(1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMapUnhashableKey(t *testing.T) {
	m := NewMap(0)
	err := m.Set(Value{Kind: KindMap, Ref: NewMap(0)}, IntValue(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unhashable")
}

func TestMapCloneForSend(t *testing.T) {
	a := NewArena(256)
	m := NewMap(1)
	require.NoError(t, m.Set(IntValue(1), StringValue(ArenaString(a, "v"))))

	clone := Value{Kind: KindMap, Ref: m}.CloneForSend().Ref.(*Map)
	v, ok, err := clone.Get(IntValue(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, v.Str.IsGlobal())
}

// GlobalStringValue is a test helper building a String value.
func GlobalStringValue(s string) Value {
	return StringValue(GlobalString(s))
}

func TestWriteLine(t *testing.T) {
	var buf bytes.Buffer
	old := Stdout
	Stdout = &buf
	defer func() { Stdout = old }()

	s := NewStack(16, 256)
	s.Push(GlobalStringValue("Hello, World!"))
	WriteLine(s)

	assert.Equal(t, "Hello, World!\n", buf.String())
	assert.Equal(t, 0, s.Depth())
}

func TestIntToString(t *testing.T) {
	s := NewStack(16, 256)
	s.Push(IntValue(-42))
	IntToString(s)
	v := s.Pop()
	require.Equal(t, KindString, v.Kind)
	assert.Equal(t, "-42", v.Str.String())
	assert.False(t, v.Str.IsGlobal(), "conversion results are arena strings")
}
