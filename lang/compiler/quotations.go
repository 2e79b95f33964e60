package compiler

import (
	"fmt"
	"strings"

	"github.com/seqlang/seq/lang/ast"
	"github.com/seqlang/seq/lang/types"
)

// codegenQuotationPush lowers a quotation literal: emit (or reuse) its
// function pair, then push a Quotation value carrying both pointers, or a
// Closure value carrying one pointer plus the capture count. Captures are
// popped from the current stack into the closure environment at push time.
func (e *emitter) codegenQuotationPush(stackVar string, q *ast.Quotation) (string, error) {
	sv := e.spillVirtualStack(stackVar)

	quotType, ok := e.g.typeMap[q.ID]
	if !ok {
		return "", fmt.Errorf("codegen: no inferred type for quotation %d", q.ID)
	}

	switch t := quotType.(type) {
	case *types.Quotation:
		fns, err := e.g.codegenQuotation(q.Body, quotType)
		if err != nil {
			return "", err
		}
		wrapperPtr := e.g.freshTemp()
		e.out.linef("%%%s = ptrtoint ptr @%s to i64", wrapperPtr, fns.wrapper)
		implPtr := e.g.freshTemp()
		e.out.linef("%%%s = ptrtoint ptr @%s to i64", implPtr, fns.impl)
		result := e.g.freshTemp()
		e.out.linef("%%%s = call ptr @patch_seq_push_quotation(ptr %%%s, i64 %%%s, i64 %%%s)",
			result, sv, wrapperPtr, implPtr)
		return result, nil

	case *types.Closure:
		fns, err := e.g.codegenQuotation(q.Body, quotType)
		if err != nil {
			return "", err
		}
		fnPtr := e.g.freshTemp()
		e.out.linef("%%%s = ptrtoint ptr @%s to i64", fnPtr, fns.wrapper)
		result := e.g.freshTemp()
		e.out.linef("%%%s = call ptr @patch_seq_push_closure(ptr %%%s, i64 %%%s, i32 %d)",
			result, sv, fnPtr, len(t.Captures))
		return result, nil

	default:
		return "", fmt.Errorf("codegen: expected Quotation or Closure type for quotation %d, got %s",
			q.ID, quotType)
	}
}

// codegenQuotation emits the function (pair) for a quotation body, reusing
// a previously emitted one with an identical body and type. Quotations get
// a C-convention wrapper (so the runtime and indirect callers use a uniform
// signature) plus a tailcc implementation (so direct calls can musttail);
// closures get a single C-convention function that receives its capture
// environment.
func (g *CodeGen) codegenQuotation(body []ast.Statement, quotType types.Type) (quotationFuncs, error) {
	var fp strings.Builder
	ast.FprintStmts(&fp, body)
	fp.WriteString(quotType.String())
	if fns, ok := g.quotCache[fp.String()]; ok {
		return fns, nil
	}

	id := g.quotCounter
	g.quotCounter++

	var fns quotationFuncs
	var err error
	if _, isClosure := quotType.(*types.Closure); isClosure {
		fns, err = g.codegenClosureFunc(id, body)
	} else {
		fns, err = g.codegenQuotationPair(id, body)
	}
	if err != nil {
		return quotationFuncs{}, err
	}
	g.quotCache[fp.String()] = fns
	return fns, nil
}

// codegenQuotationPair emits the tailcc implementation and the C-ABI
// wrapper of a pure quotation. The wrapper does not musttail into the
// implementation: the ABI mismatch makes that illegal.
func (g *CodeGen) codegenQuotationPair(id int, body []ast.Statement) (quotationFuncs, error) {
	fns := quotationFuncs{
		wrapper: fmt.Sprintf("seq_quot_%d", id),
		impl:    fmt.Sprintf("seq_quot_%d_impl", id),
	}

	var sb strings.Builder
	out := newWriter(&sb)
	em := g.newEmitter(out)

	out.labelf("define tailcc ptr @%s(ptr %%stack) {", fns.impl)
	out.labelf("entry:")
	final, terminated, err := em.codegenStatements(body, "stack", true)
	if err != nil {
		return quotationFuncs{}, err
	}
	if !terminated {
		final = em.spillVirtualStack(final)
		out.linef("ret ptr %%%s", final)
	}
	out.labelf("}")
	out.labelf("")

	out.labelf("define ptr @%s(ptr %%stack) {", fns.wrapper)
	out.labelf("entry:")
	out.linef("%%r = call tailcc ptr @%s(ptr %%stack)", fns.impl)
	out.linef("ret ptr %%r")
	out.labelf("}")
	out.labelf("")

	g.quotFuncs.WriteString(sb.String())
	return fns, nil
}

// codegenClosureFunc emits the single C-convention function of a closure.
// The runtime invokes it with the capture environment; the prologue pushes
// the captures so the body sees the creation-site layout, captures[0] on
// top. Tail calls are disabled inside closures (ABI mismatch).
func (g *CodeGen) codegenClosureFunc(id int, body []ast.Statement) (quotationFuncs, error) {
	name := fmt.Sprintf("seq_closure_%d", id)

	var sb strings.Builder
	out := newWriter(&sb)
	em := g.newEmitter(out)

	savedClosure := g.insideClosure
	g.insideClosure = true
	defer func() { g.insideClosure = savedClosure }()

	out.labelf("define ptr @%s(ptr %%stack, ptr %%env, i64 %%envlen) {", name)
	out.labelf("entry:")
	out.linef("%%s0 = call ptr @patch_seq_push_env(ptr %%stack, ptr %%env, i64 %%envlen)")
	final, terminated, err := em.codegenStatements(body, "s0", false)
	if err != nil {
		return quotationFuncs{}, err
	}
	if !terminated {
		final = em.spillVirtualStack(final)
		out.linef("ret ptr %%%s", final)
	}
	out.labelf("}")
	out.labelf("")

	g.quotFuncs.WriteString(sb.String())
	return quotationFuncs{wrapper: name, impl: name}, nil
}
