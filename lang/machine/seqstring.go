package machine

import (
	"sync"
	"unsafe"
)

// SeqString is a string that knows which allocator owns it:
//
//   - arena-allocated: bump-allocated in the strand's arena, never freed
//     individually, released wholesale when the arena resets;
//   - globally allocated: an owned heap allocation, safe to send through
//     channels; carries its capacity so the original allocation size is
//     known;
//   - interned/static: points at interned data, capacity 0 sentinel, never
//     freed; enables O(1) symbol equality by pointer comparison.
//
// Clone always produces a global string (the channel-safety rule).
type SeqString struct {
	data     []byte
	capacity int
	global   bool
}

// ArenaString bump-allocates a copy of s in the arena. The result is valid
// until the arena resets; its lifetime must not exceed the owning strand.
func ArenaString(a *Arena, s string) SeqString {
	b := a.alloc(len(s))
	copy(b, s)
	return SeqString{data: b}
}

// GlobalString takes ownership of a heap copy of s.
func GlobalString(s string) SeqString {
	b := make([]byte, len(s))
	copy(b, s)
	return SeqString{data: b, capacity: cap(b), global: true}
}

// String returns the string view without copying.
func (s SeqString) String() string {
	if len(s.data) == 0 {
		return ""
	}
	return unsafe.String(&s.data[0], len(s.data))
}

// Len returns the length in bytes.
func (s SeqString) Len() int { return len(s.data) }

// IsGlobal reports whether the string owns a heap allocation (or is
// interned).
func (s SeqString) IsGlobal() bool { return s.global }

// IsInterned reports whether the string is interned/static: capacity 0 and
// global, pointer-comparable, never freed.
func (s SeqString) IsInterned() bool { return s.capacity == 0 && s.global }

// Clone always produces a global string, so a cloned value is safe to send
// through a channel regardless of where the original was allocated.
// Interned strings stay interned: they point at static data.
func (s SeqString) Clone() SeqString {
	if s.IsInterned() {
		return s
	}
	return GlobalString(s.String())
}

// Equal compares content; interned strings compare by pointer first.
func (s SeqString) Equal(o SeqString) bool {
	if s.IsInterned() && o.IsInterned() && s.ptr() == o.ptr() {
		return true
	}
	return s.String() == o.String()
}

func (s SeqString) ptr() *byte {
	if len(s.data) == 0 {
		return nil
	}
	return &s.data[0]
}

// interner is the process-wide symbol table. Interned strings are never
// freed, so pointer equality is a sound equality check.
var interner = struct {
	mu sync.Mutex
	m  map[string]SeqString
}{m: make(map[string]SeqString)}

// Intern returns the canonical interned string for s.
func Intern(s string) SeqString {
	interner.mu.Lock()
	defer interner.mu.Unlock()
	if is, ok := interner.m[s]; ok {
		return is
	}
	b := make([]byte, len(s))
	copy(b, s)
	is := SeqString{data: b, capacity: 0, global: true}
	interner.m[s] = is
	return is
}

// SymbolEq reports whether the symbol value equals the given name,
// comparing interned pointers when possible.
func SymbolEq(sym SeqString, name string) bool {
	if sym.IsInterned() {
		canonical := Intern(name)
		return sym.ptr() == canonical.ptr()
	}
	return sym.String() == name
}
