// Package ast defines the abstract syntax tree of a Seq program as produced
// by the parser and consumed by the checker and the code generator.
//
// A Program is the unit of compilation: the parser produces one Program per
// source file, and the include resolver merges included Programs into the
// main one before it reaches the checker.
package ast

import (
	"github.com/seqlang/seq/lang/token"
)

// Program aggregates the top-level declarations of a compilation unit.
type Program struct {
	// Includes lists the include directives in source order. They are
	// resolved (and the resulting Programs merged) before type checking.
	Includes []Include

	// Unions lists the tagged-union definitions.
	Unions []*UnionDef

	// Words lists the word definitions in source order.
	Words []*WordDef
}

// FindWord returns the word definition with the given name, or nil.
func (p *Program) FindWord(name string) *WordDef {
	for _, w := range p.Words {
		if w.Name == name {
			return w
		}
	}
	return nil
}

// FindUnion returns the union definition with the given name, or nil.
func (p *Program) FindUnion(name string) *UnionDef {
	for _, u := range p.Unions {
		if u.Name == name {
			return u
		}
	}
	return nil
}

// Include is a resolved or unresolved include directive. Path is either a
// filesystem path ("util.seq") or an embedded stdlib reference
// ("std:prelude").
type Include struct {
	Path string
	Pos  token.Pos
}

// UnionDef defines a named tagged union and its variants.
type UnionDef struct {
	Name     string
	Variants []*Variant
	Pos      token.Pos
}

// FindVariant returns the variant with the given name, or nil.
func (u *UnionDef) FindVariant(name string) *Variant {
	for _, v := range u.Variants {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// Variant is a single constructor of a union: a name, a numeric tag unique
// within the union, and an ordered list of typed fields.
type Variant struct {
	Name   string
	Tag    int
	Fields []VariantField
	Pos    token.Pos
}

// VariantField is a named, typed field of a variant. The type is kept as
// the source-level name; the checker resolves it against base types and
// union definitions.
type VariantField struct {
	Name     string
	TypeName string
}

// WordDef defines a user word. Effect is the raw declared stack effect
// text between the parentheses (empty when the declaration is just "( -- )"
// or when no effect was written); the checker parses and verifies it
// against the inferred effect.
type WordDef struct {
	Name   string
	Effect string // declared stack effect, raw text; "" if none
	Body   []Statement
	Pos    token.Pos
}

// Statement is implemented by every node that can appear in a word body.
type Statement interface {
	Span() token.Pos
	stmt()
}

// IntLit pushes a 64-bit signed integer.
type IntLit struct {
	Value int64
	Pos   token.Pos
}

// FloatLit pushes an IEEE-754 double.
type FloatLit struct {
	Value float64
	Pos   token.Pos
}

// BoolLit pushes a boolean.
type BoolLit struct {
	Value bool
	Pos   token.Pos
}

// StringLit pushes a string.
type StringLit struct {
	Value string
	Pos   token.Pos
}

// SymbolLit pushes an interned symbol (":name").
type SymbolLit struct {
	Name string
	Pos  token.Pos
}

// WordCall invokes a user word, a builtin, an external builtin, an FFI
// binding or a variant constructor.
type WordCall struct {
	Name string
	Pos  token.Pos
}

// If pops a Bool and runs Then or Else. Else may be nil.
type If struct {
	Then []Statement
	Else []Statement // nil when absent
	Pos  token.Pos
}

// Quotation pushes a first-class code block. ID is globally unique within
// the Program; the checker keys its inferred type (Quotation or Closure) on
// it.
type Quotation struct {
	ID   int
	Body []Statement
	Pos  token.Pos
}

// Match dispatches on the union variant at the top of the stack.
type Match struct {
	Arms []MatchArm
	Pos  token.Pos
}

// MatchArm is one arm of a match: a pattern and a body.
type MatchArm struct {
	Pattern Pattern
	Body    []Statement
	Pos     token.Pos
}

// Pattern matches a variant by name. When Bindings is nil the arm unpacks
// all fields onto the stack in declaration order; otherwise only the named
// fields are extracted, in binding order.
type Pattern struct {
	Variant  string
	Bindings []string // nil => unpack all fields
}

// HasBindings reports whether the pattern names specific fields.
func (p Pattern) HasBindings() bool { return p.Bindings != nil }

func (s *IntLit) Span() token.Pos    { return s.Pos }
func (s *FloatLit) Span() token.Pos  { return s.Pos }
func (s *BoolLit) Span() token.Pos   { return s.Pos }
func (s *StringLit) Span() token.Pos { return s.Pos }
func (s *SymbolLit) Span() token.Pos { return s.Pos }
func (s *WordCall) Span() token.Pos  { return s.Pos }
func (s *If) Span() token.Pos        { return s.Pos }
func (s *Quotation) Span() token.Pos { return s.Pos }
func (s *Match) Span() token.Pos     { return s.Pos }

func (*IntLit) stmt()    {}
func (*FloatLit) stmt()  {}
func (*BoolLit) stmt()   {}
func (*StringLit) stmt() {}
func (*SymbolLit) stmt() {}
func (*WordCall) stmt()  {}
func (*If) stmt()        {}
func (*Quotation) stmt() {}
func (*Match) stmt()     {}

// RenumberQuotations reassigns globally unique sequential quotation ids
// across the whole program. The include resolver calls it after merging so
// ids from independently parsed files cannot collide.
func RenumberQuotations(p *Program) {
	next := 0
	for _, w := range p.Words {
		Walk(w.Body, func(s Statement) {
			if q, ok := s.(*Quotation); ok {
				q.ID = next
				next++
			}
		})
	}
}

// Walk calls fn for every statement in the list, descending into if
// branches, quotation bodies and match arms. It is used by the call graph
// and by the quotation collection passes.
func Walk(stmts []Statement, fn func(Statement)) {
	for _, s := range stmts {
		fn(s)
		switch s := s.(type) {
		case *If:
			Walk(s.Then, fn)
			Walk(s.Else, fn)
		case *Quotation:
			Walk(s.Body, fn)
		case *Match:
			for _, arm := range s.Arms {
				Walk(arm.Body, fn)
			}
		}
	}
}
