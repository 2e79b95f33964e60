// Package checker implements the row-polymorphic stack-effect type checker.
//
// Given a Program (and optionally a table of externally registered words),
// it either succeeds and yields a per-word effect map, a per-quotation-id
// type map and a set of warnings, or fails with diagnostics naming the
// offending words and the mismatched stacks.
//
// Words are checked per strongly connected component of the call graph, in
// dependency order. Recursive components get maximally polymorphic
// placeholder effects and are re-inferred to a fixed point.
package checker

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/seqlang/seq/lang/ast"
	"github.com/seqlang/seq/lang/builtins"
	"github.com/seqlang/seq/lang/token"
	"github.com/seqlang/seq/lang/types"
)

// maxFixpointIters bounds the fixed-point inference of a recursive SCC.
// A component that has not converged by then is reported as divergent
// (row variables accumulating across passes).
const maxFixpointIters = 10

// Error is a type error anchored to a word and a source position.
type Error struct {
	Word string
	Pos  token.Pos
	Msg  string
}

func (e *Error) Error() string {
	var sb strings.Builder
	if !e.Pos.Unknown() {
		l, c := e.Pos.LineCol()
		fmt.Fprintf(&sb, "%d:%d: ", l, c)
	}
	if e.Word != "" {
		sb.WriteString(e.Word)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Msg)
	return sb.String()
}

// Warning is a non-fatal diagnostic recorded during checking.
type Warning struct {
	Msg string
	Pos token.Pos
}

// Result is the successful output of a check.
type Result struct {
	// WordEffects maps each user word to its checked effect.
	WordEffects map[string]*types.Effect
	// QuotationTypes maps each quotation id to its inferred type, either
	// *types.Quotation or *types.Closure.
	QuotationTypes map[int]types.Type
	// Warnings collects non-fatal diagnostics.
	Warnings []Warning
}

// Check type-checks a program with no externally registered words.
func Check(prog *ast.Program) (*Result, error) {
	return CheckWithExternals(prog, nil)
}

// CheckWithExternals type-checks a program. The ext table registers
// external words; a nil effect means "treat as maximally polymorphic" and
// records one warning for that word when it is registered.
func CheckWithExternals(prog *ast.Program, ext map[string]*types.Effect) (*Result, error) {
	c := &checker{
		prog:         prog,
		unions:       make(map[string]*ast.UnionDef),
		variantOwner: make(map[string]*ast.UnionDef),
		env:          make(map[string]*types.Effect),
		declared:     make(map[string]*types.Effect),
		quotTypes:    make(map[int]types.Type),
	}

	c.setupUnions()
	c.setupEnv(ext)
	c.validateMatches()
	c.validateReferences()
	if len(c.errs) > 0 {
		return nil, errors.Join(c.errs...)
	}

	graph := buildCallGraph(prog)
	for _, scc := range graph.sccs() {
		if graph.isRecursiveSCC(scc) {
			c.checkRecursiveSCC(scc)
		} else {
			c.checkWord(prog.FindWord(scc[0]))
		}
	}
	if len(c.errs) > 0 {
		return nil, errors.Join(c.errs...)
	}

	res := &Result{
		WordEffects:    make(map[string]*types.Effect, len(prog.Words)),
		QuotationTypes: c.quotTypes,
		Warnings:       c.warnings,
	}
	for _, w := range prog.Words {
		res.WordEffects[w.Name] = c.env[w.Name]
	}
	return res, nil
}

type checker struct {
	prog         *ast.Program
	unions       map[string]*ast.UnionDef
	variantOwner map[string]*ast.UnionDef
	env          map[string]*types.Effect // builtins, externals, constructors, user words
	external     map[string]bool
	declared     map[string]*types.Effect
	quotTypes    map[int]types.Type
	warnings     []Warning
	errs         []error

	freshCounter int

	// per-word inference state
	s           *subst
	curWord     *ast.WordDef
	closureMode bool // declared outputs mention a bare Closure
}

func (c *checker) errorf(word string, pos token.Pos, format string, args ...interface{}) {
	c.errs = append(c.errs, &Error{Word: word, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// setupUnions indexes and validates the union definitions, then registers a
// constructor effect for every variant.
func (c *checker) setupUnions() {
	for _, u := range c.prog.Unions {
		if _, dup := c.unions[u.Name]; dup {
			c.errorf("", u.Pos, "duplicate union definition %s", u.Name)
			continue
		}
		c.unions[u.Name] = u
	}
	for _, u := range c.prog.Unions {
		for _, v := range u.Variants {
			if owner, dup := c.variantOwner[v.Name]; dup {
				c.errorf("", v.Pos, "variant name collision: %s is defined in both %s and %s",
					v.Name, owner.Name, u.Name)
				continue
			}
			c.variantOwner[v.Name] = u

			// constructor: ( ..a f1 .. fn -- ..a U )
			in := types.StackType(types.RowVar{Name: "a"})
			valid := true
			for _, f := range v.Fields {
				ft, err := c.resolveTypeName(f.TypeName)
				if err != nil {
					c.errorf("", v.Pos, "variant %s: field %s: %v", v.Name, f.Name, err)
					valid = false
					continue
				}
				in = types.Push(in, ft)
			}
			if valid {
				out := types.Push(types.RowVar{Name: "a"}, types.Union{Name: u.Name})
				c.env[v.Name] = types.NewEffect(in, out)
			}
		}
	}
}

func (c *checker) resolveTypeName(name string) (types.Type, error) {
	switch name {
	case "Int":
		return types.Int, nil
	case "Float":
		return types.Float, nil
	case "Bool":
		return types.Bool, nil
	case "String", "Symbol":
		return types.String, nil
	}
	if _, ok := c.unions[name]; ok {
		return types.Union{Name: name}, nil
	}
	return nil, fmt.Errorf("unknown type %s", name)
}

// setupEnv seeds the effect environment with builtins, externals and parsed
// declared effects.
func (c *checker) setupEnv(ext map[string]*types.Effect) {
	for name, eff := range builtins.Effects() {
		c.env[name] = eff
	}

	c.external = make(map[string]bool, len(ext))
	for name, eff := range ext {
		c.external[name] = true
		if eff == nil {
			// maximally polymorphic fallback; this permits type-incorrect
			// code to pass, so it is warned about once per word
			c.warnings = append(c.warnings, Warning{
				Msg: fmt.Sprintf("external word %s registered without a stack effect; calls are unchecked", name),
			})
			c.env[name] = types.NewEffect(types.RowVar{Name: "ext_in"}, types.RowVar{Name: "ext_out"})
			continue
		}
		c.env[name] = eff
	}

	for _, w := range c.prog.Words {
		if w.Effect == "" {
			continue
		}
		eff, err := types.ParseEffect(w.Effect)
		if err != nil {
			c.errorf(w.Name, w.Pos, "invalid stack effect declaration: %v", err)
			continue
		}
		c.declared[w.Name] = eff
		c.env[w.Name] = eff
	}
}

// validateMatches structurally validates every match before inference:
// arms must name variants of a single union, must not repeat, binding
// arity must equal the variant's field count, and the arms must cover
// every variant. Running this first makes exhaustiveness the leading
// diagnostic for a malformed match.
func (c *checker) validateMatches() {
	for _, w := range c.prog.Words {
		ast.Walk(w.Body, func(s ast.Statement) {
			m, ok := s.(*ast.Match)
			if !ok || len(m.Arms) == 0 {
				return
			}
			owner := c.variantOwner[m.Arms[0].Pattern.Variant]
			if owner == nil {
				c.errorf(w.Name, m.Arms[0].Pos, "unknown variant %s", m.Arms[0].Pattern.Variant)
				return
			}
			covered := make(map[string]bool, len(m.Arms))
			for _, arm := range m.Arms {
				v := owner.FindVariant(arm.Pattern.Variant)
				if v == nil {
					c.errorf(w.Name, arm.Pos, "unknown variant %s in match on union %s",
						arm.Pattern.Variant, owner.Name)
					continue
				}
				if covered[v.Name] {
					c.errorf(w.Name, arm.Pos, "duplicate match arm for variant %s", v.Name)
					continue
				}
				covered[v.Name] = true
				if arm.Pattern.HasBindings() && len(arm.Pattern.Bindings) != len(v.Fields) {
					c.errorf(w.Name, arm.Pos,
						"binding arity mismatch: variant %s has %d fields, pattern binds %d",
						v.Name, len(v.Fields), len(arm.Pattern.Bindings))
				}
			}
			var missing []string
			for _, v := range owner.Variants {
				if !covered[v.Name] {
					missing = append(missing, v.Name)
				}
			}
			if len(missing) > 0 {
				slices.Sort(missing)
				c.errorf(w.Name, m.Pos, "non-exhaustive match on union %s. Missing variants: %s",
					owner.Name, strings.Join(missing, ", "))
			}
		})
	}
}

// validateReferences checks that every word call resolves to a user word, a
// builtin, a registered external or a variant constructor.
func (c *checker) validateReferences() {
	known := make(map[string]bool, len(c.prog.Words))
	for _, w := range c.prog.Words {
		known[w.Name] = true
	}
	for _, w := range c.prog.Words {
		ast.Walk(w.Body, func(s ast.Statement) {
			call, ok := s.(*ast.WordCall)
			if !ok {
				return
			}
			if known[call.Name] || builtins.IsBuiltin(call.Name) || c.external[call.Name] {
				return
			}
			if _, isCtor := c.variantOwner[call.Name]; isCtor {
				return
			}
			c.errorf(w.Name, call.Pos, "undefined word %s", call.Name)
		})
	}
}

// checkWord infers a single non-recursive word and records its effect.
func (c *checker) checkWord(w *ast.WordDef) {
	eff, err := c.inferWord(w)
	if err != nil {
		c.errs = append(c.errs, err)
		return
	}
	c.env[w.Name] = eff
}

// checkRecursiveSCC runs fixed-point inference over a recursive component:
// every member gets a fresh maximally polymorphic placeholder (or its
// declared effect), bodies are inferred against those, and the pass is
// re-run with the refined effects until nothing changes.
func (c *checker) checkRecursiveSCC(scc []string) {
	members := append([]string(nil), scc...)
	slices.Sort(members)

	for _, name := range members {
		if _, isDeclared := c.declared[name]; !isDeclared {
			in := types.RowVar{Name: c.freshName("rec_in")}
			out := types.RowVar{Name: c.freshName("rec_out")}
			c.env[name] = types.NewEffect(in, out)
		}
	}

	for iter := 0; iter < maxFixpointIters; iter++ {
		changed := false
		for _, name := range members {
			w := c.prog.FindWord(name)
			eff, err := c.inferWord(w)
			if err != nil {
				c.errs = append(c.errs, err)
				return
			}
			if !types.EqualStacks(canonicalEffect(eff).Inputs, canonicalEffect(c.env[name]).Inputs) ||
				!types.EqualStacks(canonicalEffect(eff).Outputs, canonicalEffect(c.env[name]).Outputs) {
				changed = true
			}
			c.env[name] = eff
		}
		if !changed {
			return
		}
	}

	c.errorf("", 0, "type inference diverges for the recursive words %s; declare their stack effects",
		strings.Join(members, ", "))
}

func (c *checker) freshName(base string) string {
	n := c.freshCounter
	c.freshCounter++
	return fmt.Sprintf("%s$%d", base, n)
}

// canonicalEffect renames all variables in first-appearance order so two
// inference passes of the same word can be compared structurally.
func canonicalEffect(e *types.Effect) *types.Effect {
	f := &canonicalizer{types: map[string]string{}, rows: map[string]string{}}
	return types.NewEffect(f.stack(e.Inputs), f.stack(e.Outputs))
}

type canonicalizer struct {
	types, rows map[string]string
}

func (f *canonicalizer) stack(st types.StackType) types.StackType {
	switch st := st.(type) {
	case types.RowVar:
		name, ok := f.rows[st.Name]
		if !ok {
			name = fmt.Sprintf("r%d", len(f.rows))
			f.rows[st.Name] = name
		}
		return types.RowVar{Name: name}
	case *types.Cons:
		return &types.Cons{Rest: f.stack(st.Rest), Top: f.typ(st.Top)}
	default:
		return st
	}
}

func (f *canonicalizer) typ(t types.Type) types.Type {
	switch t := t.(type) {
	case types.Var:
		name, ok := f.types[t.Name]
		if !ok {
			name = fmt.Sprintf("t%d", len(f.types))
			f.types[t.Name] = name
		}
		return types.Var{Name: name}
	case *types.Quotation:
		if t.Effect == nil {
			return t
		}
		return &types.Quotation{Effect: types.NewEffect(f.stack(t.Effect.Inputs), f.stack(t.Effect.Outputs))}
	case *types.Closure:
		caps := make([]types.Type, len(t.Captures))
		for i, cp := range t.Captures {
			caps[i] = f.typ(cp)
		}
		var eff *types.Effect
		if t.Effect != nil {
			eff = types.NewEffect(f.stack(t.Effect.Inputs), f.stack(t.Effect.Outputs))
		}
		return &types.Closure{Effect: eff, Captures: caps}
	default:
		return t
	}
}
