// Package machine implements the Seq runtime substrate: the tagged value
// representation, the per-strand contiguous stack, arena-backed strings,
// the green-thread scheduler, channels and weaves.
//
// Compiled executables link against the C rendition of this contract; this
// package is the reference implementation of its semantics and is
// exercised directly by the runtime tests and by embedding hosts. Every
// entry point that manipulates a Stack is documented contract: called only
// from compiler-generated code or an equivalent caller that maintains the
// checker's guarantees. Type-tag mismatches abort, they indicate a codegen
// bug, not a user error.
package machine

import (
	"fmt"
	"strings"
)

// Kind discriminates the value representations.
type Kind uint8

// The value kinds.
const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindString
	KindMap
	KindVariant
	KindQuotation
	KindClosure
	KindChannel
	KindWeaveCtx
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindString:
		return "String"
	case KindMap:
		return "Map"
	case KindVariant:
		return "Variant"
	case KindQuotation:
		return "Quotation"
	case KindClosure:
		return "Closure"
	case KindChannel:
		return "Channel"
	case KindWeaveCtx:
		return "WeaveCtx"
	}
	return "unknown"
}

// StrandFunc is the signature of a quotation entry point: it receives the
// stack pointer and returns the new one.
type StrandFunc func(*Stack) *Stack

// ClosureFunc is the signature of a closure entry point; env is the owned
// capture vector, captures[0] first.
type ClosureFunc func(s *Stack, env []Value) *Stack

// Value is one uniformly-sized stack slot.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Bool  bool
	Str   SeqString
	Ref   any // *Variant, *Map, *Quotation, *Closure, *Channel, *WeaveCtx
}

// Variant is a constructor value of a tagged union. The tag is the
// interned variant name; fields are immutable once constructed, so sharing
// across strands is safe by construction.
type Variant struct {
	Tag    SeqString
	Fields []Value
}

// Quotation carries two entry points: a wrapper with the uniform signature
// for indirect calls from the runtime, and a tail-call-compatible
// implementation for direct calls from generated code. In this rendition
// both are Go funcs.
type Quotation struct {
	Wrapper StrandFunc
	Impl    StrandFunc
}

// Closure is a function plus its owned capture vector.
type Closure struct {
	Fn  ClosureFunc
	Env []Value
}

// WeaveCtx is the generator plumbing: the yield and resume channels of a
// woven strand. The same pair acts as the caller-side handle.
type WeaveCtx struct {
	YieldChan  *Channel
	ResumeChan *Channel
}

// IntValue builds an Int value.
func IntValue(n int64) Value { return Value{Kind: KindInt, Int: n} }

// FloatValue builds a Float value.
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// BoolValue builds a Bool value.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// StringValue builds a String value.
func StringValue(s SeqString) Value { return Value{Kind: KindString, Str: s} }

// VariantValue builds a Variant value.
func VariantValue(v *Variant) Value { return Value{Kind: KindVariant, Ref: v} }

// ChannelValue builds a Channel value.
func ChannelValue(ch *Channel) Value { return Value{Kind: KindChannel, Ref: ch} }

// String renders the value for diagnostics and write_line.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindString:
		return v.Str.String()
	case KindVariant:
		vr := v.Ref.(*Variant)
		parts := make([]string, len(vr.Fields))
		for i, f := range vr.Fields {
			parts[i] = f.String()
		}
		return vr.Tag.String() + "{" + strings.Join(parts, ", ") + "}"
	case KindMap:
		return v.Ref.(*Map).String()
	}
	return v.Kind.String()
}

// CloneForSend deep-clones the value for channel transfer: every contained
// string becomes a global string so the receiver never depends on the
// sender's arena. This is the channel-safety rule and must never be
// violated.
func (v Value) CloneForSend() Value {
	switch v.Kind {
	case KindString:
		v.Str = v.Str.Clone()
		return v
	case KindVariant:
		vr := v.Ref.(*Variant)
		fields := make([]Value, len(vr.Fields))
		for i, f := range vr.Fields {
			fields[i] = f.CloneForSend()
		}
		return VariantValue(&Variant{Tag: vr.Tag.Clone(), Fields: fields})
	case KindMap:
		return Value{Kind: KindMap, Ref: v.Ref.(*Map).cloneForSend()}
	case KindClosure:
		cl := v.Ref.(*Closure)
		env := make([]Value, len(cl.Env))
		for i, e := range cl.Env {
			env[i] = e.CloneForSend()
		}
		return Value{Kind: KindClosure, Ref: &Closure{Fn: cl.Fn, Env: env}}
	default:
		return v
	}
}
