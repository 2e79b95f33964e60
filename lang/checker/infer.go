package checker

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/seqlang/seq/lang/ast"
	"github.com/seqlang/seq/lang/token"
	"github.com/seqlang/seq/lang/types"
)

// inferWord infers the effect of a word body and verifies it against the
// declared effect, if any. Declared effects are checked, not trusted.
func (c *checker) inferWord(w *ast.WordDef) (*types.Effect, error) {
	c.s = newSubst()
	c.curWord = w
	c.closureMode = false

	var decl *types.Effect
	if d := c.declared[w.Name]; d != nil {
		decl = newFreshener(&c.freshCounter).effect(d)
		c.closureMode = mentionsBareClosure(decl.Outputs)
	}

	var start types.StackType
	if decl != nil {
		start = decl.Inputs
	} else {
		start = types.RowVar{Name: c.freshName("s")}
	}

	cur, err := c.inferStmts(start, w.Body)
	if err != nil {
		return nil, err
	}

	if decl != nil {
		if err := c.s.unifyStacks(cur, decl.Outputs); err != nil {
			return nil, &Error{Word: w.Name, Pos: w.Pos, Msg: "declared effect mismatch. Expected " +
				stackStr(c.s.applyStack(decl.Outputs)) + ", got " + stackStr(c.s.applyStack(cur))}
		}
	}

	return c.s.applyEffect(types.NewEffect(start, cur)), nil
}

// mentionsBareClosure reports whether the stack contains a bare Closure
// type (the closure-producing marker in a declared effect).
func mentionsBareClosure(st types.StackType) bool {
	for {
		cons, ok := st.(*types.Cons)
		if !ok {
			return false
		}
		if cl, ok := cons.Top.(*types.Closure); ok && cl.Effect == nil {
			return true
		}
		st = cons.Rest
	}
}

func (c *checker) inferStmts(cur types.StackType, stmts []ast.Statement) (types.StackType, error) {
	var err error
	for _, stmt := range stmts {
		cur, err = c.inferStmt(cur, stmt)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func (c *checker) inferStmt(cur types.StackType, stmt ast.Statement) (types.StackType, error) {
	switch stmt := stmt.(type) {
	case *ast.IntLit:
		return types.Push(cur, types.Int), nil
	case *ast.FloatLit:
		return types.Push(cur, types.Float), nil
	case *ast.BoolLit:
		return types.Push(cur, types.Bool), nil
	case *ast.StringLit:
		return types.Push(cur, types.String), nil
	case *ast.SymbolLit:
		// symbols are interned strings; String subtype for checking
		return types.Push(cur, types.String), nil
	case *ast.WordCall:
		if stmt.Name == "call" {
			return c.inferCall(cur, stmt.Pos)
		}
		eff, ok := c.env[stmt.Name]
		if !ok {
			return nil, &Error{Word: c.curWord.Name, Pos: stmt.Pos, Msg: "undefined word " + stmt.Name}
		}
		return c.compose(cur, eff, stmt.Name, stmt.Pos)
	case *ast.If:
		return c.inferIf(cur, stmt)
	case *ast.Quotation:
		return c.inferQuotation(cur, stmt)
	case *ast.Match:
		return c.inferMatch(cur, stmt)
	}
	return cur, nil
}

// compose freshens the effect and composes it with the running stack shape:
// the current stack must unify with the inputs, and the outputs become the
// new shape.
func (c *checker) compose(cur types.StackType, eff *types.Effect, site string, pos token.Pos) (types.StackType, error) {
	e := newFreshener(&c.freshCounter).effect(eff)
	if err := c.s.unifyStacks(cur, e.Inputs); err != nil {
		return nil, &Error{Word: c.curWord.Name, Pos: pos,
			Msg: site + ": stack type mismatch. Expected " + stackStr(c.s.applyStack(e.Inputs)) +
				", got " + stackStr(c.s.applyStack(cur))}
	}
	return c.s.applyStack(e.Outputs), nil
}

// inferCall types the `call` builtin: it is instantiated at each call site
// from the quotation's known type, the one signature the registry cannot
// express precisely.
func (c *checker) inferCall(cur types.StackType, pos token.Pos) (types.StackType, error) {
	rest := types.StackType(types.RowVar{Name: c.freshName("a")})
	top := types.Var{Name: c.freshName("Q")}
	if err := c.s.unifyStacks(cur, types.Push(rest, top)); err != nil {
		return nil, &Error{Word: c.curWord.Name, Pos: pos,
			Msg: "call: stack type mismatch. Expected " + stackStr(types.Push(rest, top)) +
				", got " + stackStr(c.s.applyStack(cur))}
	}
	rest = c.s.applyStack(rest)

	switch t := c.s.applyType(top).(type) {
	case *types.Quotation:
		if t.Effect != nil {
			return c.compose(rest, t.Effect, "call", pos)
		}
	case *types.Closure:
		if t.Effect != nil {
			return c.compose(rest, t.Effect, "call", pos)
		}
	}

	// quotation type unknown at this site: fall back to ( ..a Q -- ..b )
	c.warnings = append(c.warnings, Warning{
		Msg: c.curWord.Name + ": call: quotation effect unknown at call site; result stack is unchecked",
		Pos: pos,
	})
	return types.RowVar{Name: c.freshName("b")}, nil
}

func (c *checker) inferIf(cur types.StackType, stmt *ast.If) (types.StackType, error) {
	post, err := c.popExpect(cur, types.Bool, "if", stmt.Pos)
	if err != nil {
		return nil, err
	}

	thenOut, err := c.inferStmts(post, stmt.Then)
	if err != nil {
		return nil, err
	}
	elseOut := post
	if stmt.Else != nil {
		if elseOut, err = c.inferStmts(post, stmt.Else); err != nil {
			return nil, err
		}
	}

	if err := c.s.unifyStacks(thenOut, elseOut); err != nil {
		return nil, &Error{Word: c.curWord.Name, Pos: stmt.Pos,
			Msg: "if branches produce different stacks: " + stackStr(c.s.applyStack(thenOut)) +
				" vs " + stackStr(c.s.applyStack(elseOut))}
	}
	return c.s.applyStack(thenOut), nil
}

// popExpect unifies the top of the stack with the expected type and returns
// the stack below it.
func (c *checker) popExpect(cur types.StackType, want types.Type, site string, pos token.Pos) (types.StackType, error) {
	rest := types.RowVar{Name: c.freshName("a")}
	if err := c.s.unifyStacks(cur, types.Push(rest, want)); err != nil {
		return nil, &Error{Word: c.curWord.Name, Pos: pos,
			Msg: site + ": stack type mismatch. Expected " + stackStr(types.Push(rest, want)) +
				", got " + stackStr(c.s.applyStack(cur))}
	}
	return c.s.applyStack(rest), nil
}

// inferQuotation infers a quotation body in a fresh environment. Under
// closure mode (the enclosing word declares a bare Closure output) the
// literal becomes a closure: the concrete values on the enclosing stack at
// the creation site are popped and recorded as captures.
func (c *checker) inferQuotation(cur types.StackType, q *ast.Quotation) (types.StackType, error) {
	qrow := types.StackType(types.RowVar{Name: c.freshName("q")})
	out, err := c.inferStmts(qrow, q.Body)
	if err != nil {
		return nil, err
	}
	eff := c.s.applyEffect(types.NewEffect(qrow, out))

	if !c.closureMode {
		qt := &types.Quotation{Effect: eff}
		c.quotTypes[q.ID] = qt
		return types.Push(cur, qt), nil
	}

	// captures: the concrete types above the word's own row on the current
	// stack, capped by the body's concrete input depth, top first
	avail := concreteDepth(c.s.applyStack(cur))
	need := concreteDepth(eff.Inputs)
	k := avail
	if need < k {
		k = need
	}

	captures := make([]types.Type, 0, k)
	callInputs := eff.Inputs
	for i := 0; i < k; i++ {
		restCur := types.RowVar{Name: c.freshName("a")}
		capVar := types.Var{Name: c.freshName("C")}
		if err := c.s.unifyStacks(cur, types.Push(restCur, capVar)); err != nil {
			return nil, &Error{Word: c.curWord.Name, Pos: q.Pos,
				Msg: "closure capture: stack type mismatch at creation site: " + stackStr(c.s.applyStack(cur))}
		}
		// the captured value feeds the body's topmost remaining input
		inRest, inTop, _ := types.Pop(callInputs)
		if err := c.s.unifyTypes(capVar, inTop); err != nil {
			return nil, &Error{Word: c.curWord.Name, Pos: q.Pos,
				Msg: "closure capture type mismatch: " + c.s.applyType(capVar).String() +
					" vs " + c.s.applyType(inTop).String()}
		}
		captures = append(captures, c.s.applyType(capVar))
		callInputs = inRest
		cur = c.s.applyStack(restCur)
	}

	cl := &types.Closure{
		Effect:   c.s.applyEffect(types.NewEffect(callInputs, eff.Outputs)),
		Captures: captures,
	}
	c.quotTypes[q.ID] = cl
	return types.Push(cur, cl), nil
}

// concreteDepth counts the types above the first row variable (or the
// bottom) of the stack.
func concreteDepth(st types.StackType) int {
	n := 0
	for {
		cons, ok := st.(*types.Cons)
		if !ok {
			return n
		}
		n++
		st = cons.Rest
	}
}

func (c *checker) inferMatch(cur types.StackType, m *ast.Match) (types.StackType, error) {
	// the top of the stack must be a resolvable union
	rest := types.RowVar{Name: c.freshName("a")}
	top := types.Var{Name: c.freshName("M")}
	if err := c.s.unifyStacks(cur, types.Push(rest, top)); err != nil {
		return nil, &Error{Word: c.curWord.Name, Pos: m.Pos,
			Msg: "match: stack type mismatch. Expected " + stackStr(types.Push(rest, top)) +
				", got " + stackStr(c.s.applyStack(cur))}
	}
	union, ok := c.s.applyType(top).(types.Union)
	if !ok {
		return nil, &Error{Word: c.curWord.Name, Pos: m.Pos,
			Msg: "match requires a union value on top of the stack, got " + c.s.applyType(top).String()}
	}
	def := c.unions[union.Name]
	if def == nil {
		return nil, &Error{Word: c.curWord.Name, Pos: m.Pos, Msg: "unknown union " + union.Name}
	}
	post := c.s.applyStack(rest)

	covered := make(map[string]bool, len(m.Arms))
	var outs []types.StackType
	for _, arm := range m.Arms {
		variant := def.FindVariant(arm.Pattern.Variant)
		if variant == nil {
			return nil, &Error{Word: c.curWord.Name, Pos: arm.Pos,
				Msg: "unknown variant " + arm.Pattern.Variant + " in match on union " + union.Name}
		}
		if covered[variant.Name] {
			return nil, &Error{Word: c.curWord.Name, Pos: arm.Pos,
				Msg: "duplicate match arm for variant " + variant.Name}
		}
		covered[variant.Name] = true

		armStart, err := c.armStartStack(post, variant, arm.Pattern, arm.Pos)
		if err != nil {
			return nil, err
		}
		out, err := c.inferStmts(armStart, arm.Body)
		if err != nil {
			return nil, err
		}
		outs = append(outs, out)
	}

	var missing []string
	for _, v := range def.Variants {
		if !covered[v.Name] {
			missing = append(missing, v.Name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, &Error{Word: c.curWord.Name, Pos: m.Pos,
			Msg: "non-exhaustive match on union " + union.Name + ". Missing variants: " +
				strings.Join(missing, ", ")}
	}

	for i := 1; i < len(outs); i++ {
		if err := c.s.unifyStacks(outs[0], outs[i]); err != nil {
			return nil, &Error{Word: c.curWord.Name, Pos: m.Pos,
				Msg: "match arms produce different stacks: " + stackStr(c.s.applyStack(outs[0])) +
					" vs " + stackStr(c.s.applyStack(outs[i]))}
		}
	}
	return c.s.applyStack(outs[0]), nil
}

// armStartStack builds the stack an arm body starts from: the post-pop
// stack with the variant's fields on top. A bare pattern spreads all fields
// in declaration order; a binding pattern extracts the named fields in
// binding order and must bind every field.
func (c *checker) armStartStack(post types.StackType, variant *ast.Variant, pat ast.Pattern, pos token.Pos) (types.StackType, error) {
	fieldType := func(name string) (types.Type, bool) {
		for _, f := range variant.Fields {
			if f.Name == name {
				t, err := c.resolveTypeName(f.TypeName)
				if err != nil {
					return nil, false
				}
				return t, true
			}
		}
		return nil, false
	}

	if !pat.HasBindings() {
		st := post
		for _, f := range variant.Fields {
			t, err := c.resolveTypeName(f.TypeName)
			if err != nil {
				return nil, &Error{Word: c.curWord.Name, Pos: pos,
					Msg: "variant " + variant.Name + ": " + err.Error()}
			}
			st = types.Push(st, t)
		}
		return st, nil
	}

	if len(pat.Bindings) != len(variant.Fields) {
		return nil, &Error{Word: c.curWord.Name, Pos: pos,
			Msg: fmt.Sprintf("binding arity mismatch: variant %s has %d fields, pattern binds %d",
				variant.Name, len(variant.Fields), len(pat.Bindings))}
	}
	st := post
	for _, b := range pat.Bindings {
		t, ok := fieldType(b)
		if !ok {
			return nil, &Error{Word: c.curWord.Name, Pos: pos,
				Msg: "variant " + variant.Name + " has no field " + b}
		}
		st = types.Push(st, t)
	}
	return st, nil
}

