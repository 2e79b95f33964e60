package checker

import (
	"fmt"
	"strings"

	"github.com/seqlang/seq/lang/types"
)

// subst is a substitution from type variables to types and from row
// variables to stack types. Bindings are chased transitively on
// application; the occurs check guarantees the chains are acyclic.
type subst struct {
	typeVars map[string]types.Type
	rowVars  map[string]types.StackType
}

func newSubst() *subst {
	return &subst{
		typeVars: make(map[string]types.Type),
		rowVars:  make(map[string]types.StackType),
	}
}

func (s *subst) applyType(t types.Type) types.Type {
	switch t := t.(type) {
	case types.Var:
		if b, ok := s.typeVars[t.Name]; ok {
			return s.applyType(b)
		}
		return t
	case *types.Quotation:
		if t.Effect == nil {
			return t
		}
		return &types.Quotation{Effect: s.applyEffect(t.Effect)}
	case *types.Closure:
		caps := make([]types.Type, len(t.Captures))
		for i, c := range t.Captures {
			caps[i] = s.applyType(c)
		}
		var eff *types.Effect
		if t.Effect != nil {
			eff = s.applyEffect(t.Effect)
		}
		return &types.Closure{Effect: eff, Captures: caps}
	default:
		return t
	}
}

func (s *subst) applyStack(st types.StackType) types.StackType {
	switch st := st.(type) {
	case types.RowVar:
		if b, ok := s.rowVars[st.Name]; ok {
			return s.applyStack(b)
		}
		return st
	case *types.Cons:
		return &types.Cons{Rest: s.applyStack(st.Rest), Top: s.applyType(st.Top)}
	default:
		return st
	}
}

func (s *subst) applyEffect(e *types.Effect) *types.Effect {
	return types.NewEffect(s.applyStack(e.Inputs), s.applyStack(e.Outputs))
}

// occursType reports whether type variable name occurs in t.
func occursType(name string, t types.Type) bool {
	switch t := t.(type) {
	case types.Var:
		return t.Name == name
	case *types.Quotation:
		return t.Effect != nil && occursTypeInEffect(name, t.Effect)
	case *types.Closure:
		if t.Effect != nil && occursTypeInEffect(name, t.Effect) {
			return true
		}
		for _, c := range t.Captures {
			if occursType(name, c) {
				return true
			}
		}
	}
	return false
}

func occursTypeInEffect(name string, e *types.Effect) bool {
	return occursTypeInStack(name, e.Inputs) || occursTypeInStack(name, e.Outputs)
}

func occursTypeInStack(name string, st types.StackType) bool {
	for {
		c, ok := st.(*types.Cons)
		if !ok {
			return false
		}
		if occursType(name, c.Top) {
			return true
		}
		st = c.Rest
	}
}

// occursRow reports whether row variable name occurs in st, descending into
// quotation and closure effects embedded in value types.
func occursRow(name string, st types.StackType) bool {
	switch st := st.(type) {
	case types.RowVar:
		return st.Name == name
	case *types.Cons:
		return occursRowInType(name, st.Top) || occursRow(name, st.Rest)
	}
	return false
}

func occursRowInType(name string, t types.Type) bool {
	switch t := t.(type) {
	case *types.Quotation:
		return t.Effect != nil && (occursRow(name, t.Effect.Inputs) || occursRow(name, t.Effect.Outputs))
	case *types.Closure:
		if t.Effect != nil && (occursRow(name, t.Effect.Inputs) || occursRow(name, t.Effect.Outputs)) {
			return true
		}
		for _, c := range t.Captures {
			if occursRowInType(name, c) {
				return true
			}
		}
	}
	return false
}

// unifyTypes unifies two value types under s, binding variables as needed.
func (s *subst) unifyTypes(a, b types.Type) error {
	a, b = s.applyType(a), s.applyType(b)

	if av, ok := a.(types.Var); ok {
		return s.bindType(av, b)
	}
	if bv, ok := b.(types.Var); ok {
		return s.bindType(bv, a)
	}

	switch a := a.(type) {
	case types.Basic:
		if b, ok := b.(types.Basic); ok && a == b {
			return nil
		}
	case types.Union:
		if b, ok := b.(types.Union); ok && a.Name == b.Name {
			return nil
		}
	case *types.Quotation:
		if b, ok := b.(*types.Quotation); ok {
			// a bare Quotation in a declared effect matches any quotation
			if a.Effect == nil || b.Effect == nil {
				return nil
			}
			return s.unifyEffects(a.Effect, b.Effect)
		}
	case *types.Closure:
		if b, ok := b.(*types.Closure); ok {
			if a.Effect == nil || b.Effect == nil {
				return nil
			}
			if err := s.unifyEffects(a.Effect, b.Effect); err != nil {
				return err
			}
			if len(a.Captures) != len(b.Captures) {
				return fmt.Errorf("closure capture count mismatch: %d vs %d",
					len(a.Captures), len(b.Captures))
			}
			for i := range a.Captures {
				if err := s.unifyTypes(a.Captures[i], b.Captures[i]); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return fmt.Errorf("type mismatch: %s vs %s", a, b)
}

func (s *subst) bindType(v types.Var, t types.Type) error {
	if tv, ok := t.(types.Var); ok && tv.Name == v.Name {
		return nil
	}
	if occursType(v.Name, t) {
		return fmt.Errorf("occurs check failed: %s occurs in %s", v.Name, t)
	}
	s.typeVars[v.Name] = t
	return nil
}

func (s *subst) unifyEffects(a, b *types.Effect) error {
	if err := s.unifyStacks(a.Inputs, b.Inputs); err != nil {
		return err
	}
	return s.unifyStacks(a.Outputs, b.Outputs)
}

// unifyStacks unifies two stack types under s.
func (s *subst) unifyStacks(a, b types.StackType) error {
	a, b = s.applyStack(a), s.applyStack(b)

	if ar, ok := a.(types.RowVar); ok {
		return s.bindRow(ar, b)
	}
	if br, ok := b.(types.RowVar); ok {
		return s.bindRow(br, a)
	}

	switch a := a.(type) {
	case types.Empty:
		if _, ok := b.(types.Empty); ok {
			return nil
		}
	case *types.Cons:
		if b, ok := b.(*types.Cons); ok {
			if err := s.unifyTypes(a.Top, b.Top); err != nil {
				return err
			}
			return s.unifyStacks(a.Rest, b.Rest)
		}
	}
	return fmt.Errorf("stack shape mismatch: %s vs %s", stackStr(a), stackStr(b))
}

func (s *subst) bindRow(r types.RowVar, st types.StackType) error {
	if sr, ok := st.(types.RowVar); ok && sr.Name == r.Name {
		return nil
	}
	if occursRow(r.Name, st) {
		return fmt.Errorf("occurs check failed: ..%s occurs in %s", r.Name, stackStr(st))
	}
	s.rowVars[r.Name] = st
	return nil
}

// stackStr renders a stack with surrounding parens for error messages.
func stackStr(st types.StackType) string {
	s := st.String()
	if !strings.HasPrefix(s, "(") {
		s = "(" + s + ")"
	}
	return s
}

// freshener renames type and row variables to unique names (a -> a$17) at
// every instantiation site so unification does not confuse unrelated
// polymorphic scopes. The counter is shared per checker run.
type freshener struct {
	counter *int
	types   map[string]string
	rows    map[string]string
}

func newFreshener(counter *int) *freshener {
	return &freshener{
		counter: counter,
		types:   make(map[string]string),
		rows:    make(map[string]string),
	}
}

func (f *freshener) fresh(name string) string {
	base := name
	if i := strings.IndexByte(base, '$'); i >= 0 {
		base = base[:i]
	}
	n := *f.counter
	*f.counter++
	return fmt.Sprintf("%s$%d", base, n)
}

func (f *freshener) effect(e *types.Effect) *types.Effect {
	return types.NewEffect(f.stack(e.Inputs), f.stack(e.Outputs))
}

func (f *freshener) stack(st types.StackType) types.StackType {
	switch st := st.(type) {
	case types.RowVar:
		name, ok := f.rows[st.Name]
		if !ok {
			name = f.fresh(st.Name)
			f.rows[st.Name] = name
		}
		return types.RowVar{Name: name}
	case *types.Cons:
		return &types.Cons{Rest: f.stack(st.Rest), Top: f.typ(st.Top)}
	default:
		return st
	}
}

func (f *freshener) typ(t types.Type) types.Type {
	switch t := t.(type) {
	case types.Var:
		name, ok := f.types[t.Name]
		if !ok {
			name = f.fresh(t.Name)
			f.types[t.Name] = name
		}
		return types.Var{Name: name}
	case *types.Quotation:
		if t.Effect == nil {
			return t
		}
		return &types.Quotation{Effect: f.effect(t.Effect)}
	case *types.Closure:
		caps := make([]types.Type, len(t.Captures))
		for i, c := range t.Captures {
			caps[i] = f.typ(c)
		}
		var eff *types.Effect
		if t.Effect != nil {
			eff = f.effect(t.Effect)
		}
		return &types.Closure{Effect: eff, Captures: caps}
	default:
		return t
	}
}
