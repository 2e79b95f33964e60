package machine

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// MapKey is the hashable key subset of Value: Int, Bool and String. String
// keys are compared by content.
type MapKey struct {
	Kind Kind
	Int  int64
	Bool bool
	Str  string
}

// KeyOf converts a value into a map key, or reports that the value is not
// hashable.
func KeyOf(v Value) (MapKey, error) {
	switch v.Kind {
	case KindInt:
		return MapKey{Kind: KindInt, Int: v.Int}, nil
	case KindBool:
		return MapKey{Kind: KindBool, Bool: v.Bool}, nil
	case KindString:
		return MapKey{Kind: KindString, Str: v.Str.String()}, nil
	}
	return MapKey{}, fmt.Errorf("unhashable map key of type %s", v.Kind)
}

// value reconstructs the Value form of a key.
func (k MapKey) value() Value {
	switch k.Kind {
	case KindInt:
		return IntValue(k.Int)
	case KindBool:
		return BoolValue(k.Bool)
	default:
		return StringValue(GlobalString(k.Str))
	}
}

// A Map is the runtime dictionary value. If you know the exact final number
// of entries it is more efficient to size it up front with NewMap.
type Map struct {
	m *swiss.Map[MapKey, Value]
}

// NewMap returns a map with initial capacity for at least size items.
func NewMap(size int) *Map {
	return &Map{m: swiss.NewMap[MapKey, Value](uint32(size))}
}

func (m *Map) String() string { return fmt.Sprintf("map(%d entries)", m.m.Count()) }

// Get returns the value for key k.
func (m *Map) Get(k Value) (Value, bool, error) {
	key, err := KeyOf(k)
	if err != nil {
		return Value{}, false, err
	}
	v, ok := m.m.Get(key)
	return v, ok, nil
}

// Set stores v under key k.
func (m *Map) Set(k, v Value) error {
	key, err := KeyOf(k)
	if err != nil {
		return err
	}
	m.m.Put(key, v)
	return nil
}

// Delete removes key k.
func (m *Map) Delete(k Value) error {
	key, err := KeyOf(k)
	if err != nil {
		return err
	}
	m.m.Delete(key)
	return nil
}

// Len returns the entry count.
func (m *Map) Len() int { return m.m.Count() }

// Iter calls fn for every entry until it returns true (stop).
func (m *Map) Iter(fn func(k, v Value) bool) {
	m.m.Iter(func(k MapKey, v Value) bool {
		return fn(k.value(), v)
	})
}

// cloneForSend deep-clones the map for channel transfer: contained strings
// (keys included) become global.
func (m *Map) cloneForSend() *Map {
	clone := NewMap(m.Len())
	m.m.Iter(func(k MapKey, v Value) bool {
		clone.m.Put(k, v.CloneForSend())
		return false
	})
	return clone
}
