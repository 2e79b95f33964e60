package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaString(t *testing.T) {
	a := NewArena(1024)
	s := ArenaString(a, "Hello, arena!")
	assert.Equal(t, "Hello, arena!", s.String())
	assert.Equal(t, 13, s.Len())
	assert.False(t, s.IsGlobal())
}

func TestGlobalString(t *testing.T) {
	s := GlobalString("Hello, global!")
	assert.Equal(t, "Hello, global!", s.String())
	assert.True(t, s.IsGlobal())
	assert.False(t, s.IsInterned())
}

func TestCloneAlwaysGlobal(t *testing.T) {
	a := NewArena(1024)
	s1 := ArenaString(a, "test")
	s2 := s1.Clone()

	assert.Equal(t, s1.String(), s2.String())
	assert.False(t, s1.IsGlobal())
	assert.True(t, s2.IsGlobal(), "clone must always be global")

	s3 := GlobalString("test").Clone()
	assert.True(t, s3.IsGlobal())
}

func TestInternedStrings(t *testing.T) {
	s1 := Intern("Circle")
	s2 := Intern("Circle")

	assert.True(t, s1.IsInterned())
	// the capacity-0 sentinel enables O(1) pointer equality
	assert.Equal(t, s1.ptr(), s2.ptr())
	assert.True(t, s1.Equal(s2))

	// clone of an interned string stays interned: static data, never freed
	assert.True(t, s1.Clone().IsInterned())
}

func TestSymbolEq(t *testing.T) {
	sym := Intern("Square")
	assert.True(t, SymbolEq(sym, "Square"))
	assert.False(t, SymbolEq(sym, "Circle"))

	// non-interned strings fall back to content comparison
	plain := GlobalString("Square")
	assert.True(t, SymbolEq(plain, "Square"))
}

func TestStringEquality(t *testing.T) {
	a := NewArena(1024)
	s1 := ArenaString(a, "test")
	s2 := ArenaString(a, "test")
	s3 := GlobalString("test")
	s4 := ArenaString(a, "different")

	assert.True(t, s1.Equal(s2))
	assert.True(t, s1.Equal(s3))
	assert.False(t, s1.Equal(s4))
}

func TestEmptyString(t *testing.T) {
	a := NewArena(1024)
	s := ArenaString(a, "")
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, "", s.String())
}

func TestArenaReuseAndReset(t *testing.T) {
	a := NewArena(64)
	for i := 0; i < 10; i++ {
		ArenaString(a, "some ephemeral text")
	}
	require.Greater(t, a.Used(), 0)

	a.Reset()
	assert.Equal(t, 0, a.Used())

	// usable again after reset
	s := ArenaString(a, "fresh")
	assert.Equal(t, "fresh", s.String())
}

func TestArenaOversizedAllocation(t *testing.T) {
	a := NewArena(8)
	s := ArenaString(a, "this is much longer than one block")
	assert.Equal(t, "this is much longer than one block", s.String())
}

func TestUnicode(t *testing.T) {
	a := NewArena(1024)
	s := ArenaString(a, "Hello, 世界!")
	assert.Equal(t, "Hello, 世界!", s.String())
	assert.Greater(t, s.Len(), 10) // UTF-8 bytes, not runes
}
