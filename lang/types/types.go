// Package types defines the type system of the Seq checker: value types,
// row-polymorphic stack types and stack effects.
//
// The stack is represented as a cons-list: Cons cells pair a value type
// with the rest of the stack, terminated by Empty or by a row variable
// standing for "the rest of the stack, whatever it is". A polymorphic
// effect shares a row variable between its input and output sides:
//
//	( ..a Int -- ..a Bool )
//
// pops an Int, pushes a Bool, and leaves the rest of the stack alone.
package types

import "strings"

// Type is the interface implemented by all value types.
type Type interface {
	String() string
	typ()
}

// Basic is a base type: Int, Float, Bool or String.
type Basic int

// The base types.
const (
	Int Basic = iota
	Float
	Bool
	String
)

func (b Basic) typ() {}

func (b Basic) String() string {
	switch b {
	case Int:
		return "Int"
	case Float:
		return "Float"
	case Bool:
		return "Bool"
	case String:
		return "String"
	}
	return "unknown"
}

// Quotation is a stateless code block with a stack effect. A nil Effect is
// the "any quotation" form produced by parsing a bare Quotation keyword in
// a declared effect; the checker instantiates it at the use site.
type Quotation struct {
	Effect *Effect
}

func (q *Quotation) typ() {}

func (q *Quotation) String() string {
	if q.Effect == nil {
		return "Quotation"
	}
	return "[" + q.Effect.String() + "]"
}

// Closure is a code block plus an ordered capture list; Captures[0] is the
// value that was at the top of the stack at the creation site. The Effect
// describes the stack transformation when the closure is called, captures
// excluded. A nil Effect is the "any closure" form of a declared effect.
type Closure struct {
	Effect   *Effect
	Captures []Type
}

func (c *Closure) typ() {}

func (c *Closure) String() string {
	if c.Effect == nil {
		return "Closure"
	}
	caps := make([]string, len(c.Captures))
	for i, t := range c.Captures {
		caps[i] = t.String()
	}
	return "Closure[" + c.Effect.String() + ", captures=(" + strings.Join(caps, ", ") + ")]"
}

// Union references a tagged-union definition by name; the full definition
// is resolved through the checker's union table.
type Union struct {
	Name string
}

func (u Union) typ()           {}
func (u Union) String() string { return u.Name }

// Var is a type variable introduced by polymorphic signatures and by
// freshening during inference.
type Var struct {
	Name string
}

func (v Var) typ()           {}
func (v Var) String() string { return v.Name }

// StackType is the interface implemented by the three stack shapes.
type StackType interface {
	String() string
	stackType()
}

// Empty is the bottom of the stack.
type Empty struct{}

func (Empty) stackType()     {}
func (Empty) String() string { return "()" }

// Cons places a value of type Top above Rest.
type Cons struct {
	Rest StackType
	Top  Type
}

func (*Cons) stackType() {}

func (c *Cons) String() string { return "(" + stackElems(c) + ")" }

// RowVar stands for the rest of the stack, whatever it is. Written ..name.
type RowVar struct {
	Name string
}

func (RowVar) stackType()       {}
func (r RowVar) String() string { return ".." + r.Name }

// stackElems renders the elements of a stack bottom-to-top, without the
// surrounding parentheses.
func stackElems(st StackType) string {
	var parts []string
	for {
		switch s := st.(type) {
		case Empty:
			reverse(parts)
			return strings.Join(parts, " ")
		case RowVar:
			parts = append(parts, ".."+s.Name)
			reverse(parts)
			return strings.Join(parts, " ")
		case *Cons:
			parts = append(parts, s.Top.String())
			st = s.Rest
		default:
			return "?"
		}
	}
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// Push returns st with ty on top.
func Push(st StackType, ty Type) *Cons {
	return &Cons{Rest: st, Top: ty}
}

// Pop splits st into (rest, top). It returns false when st is not a Cons.
func Pop(st StackType) (StackType, Type, bool) {
	c, ok := st.(*Cons)
	if !ok {
		return nil, nil, false
	}
	return c.Rest, c.Top, true
}

// FromTypes builds a stack from a list of types given bottom to top, on top
// of the provided base.
func FromTypes(base StackType, tys ...Type) StackType {
	st := base
	for _, ty := range tys {
		st = Push(st, ty)
	}
	return st
}

// Effect is a stack transformation: Inputs describes what must be present
// before a word runs, Outputs what is present after.
type Effect struct {
	Inputs  StackType
	Outputs StackType
}

// NewEffect creates an effect.
func NewEffect(inputs, outputs StackType) *Effect {
	return &Effect{Inputs: inputs, Outputs: outputs}
}

// String renders the effect in declaration notation: ( ..a Int -- ..a Bool ).
func (e *Effect) String() string {
	in := stackElems(e.Inputs)
	out := stackElems(e.Outputs)
	s := "("
	if in != "" {
		s += " " + in
	}
	s += " --"
	if out != "" {
		s += " " + out
	}
	return s + " )"
}

// Equal reports structural equality of two types.
func Equal(a, b Type) bool {
	switch a := a.(type) {
	case Basic:
		b, ok := b.(Basic)
		return ok && a == b
	case Union:
		b, ok := b.(Union)
		return ok && a.Name == b.Name
	case Var:
		b, ok := b.(Var)
		return ok && a.Name == b.Name
	case *Quotation:
		b, ok := b.(*Quotation)
		return ok && equalEffects(a.Effect, b.Effect)
	case *Closure:
		b, ok := b.(*Closure)
		if !ok || !equalEffects(a.Effect, b.Effect) || len(a.Captures) != len(b.Captures) {
			return false
		}
		for i := range a.Captures {
			if !Equal(a.Captures[i], b.Captures[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func equalEffects(a, b *Effect) bool {
	if a == nil || b == nil {
		return a == b
	}
	return EqualStacks(a.Inputs, b.Inputs) && EqualStacks(a.Outputs, b.Outputs)
}

// EqualStacks reports structural equality of two stack types.
func EqualStacks(a, b StackType) bool {
	switch a := a.(type) {
	case Empty:
		_, ok := b.(Empty)
		return ok
	case RowVar:
		b, ok := b.(RowVar)
		return ok && a.Name == b.Name
	case *Cons:
		b, ok := b.(*Cons)
		return ok && Equal(a.Top, b.Top) && EqualStacks(a.Rest, b.Rest)
	}
	return false
}
