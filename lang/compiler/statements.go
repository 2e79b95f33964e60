package compiler

import (
	"fmt"
	"math"

	"github.com/seqlang/seq/lang/ast"
	"github.com/seqlang/seq/lang/builtins"
)

// tailPosition tracks whether a statement is the last operation before the
// function returns; tail calls there can use musttail.
type tailPosition bool

const (
	tail    tailPosition = true
	nonTail tailPosition = false
)

// virtualValue is a scalar kept in an SSA operand instead of stack memory.
// The operand is either a literal constant or a %temp reference; the
// discriminant matches the runtime Value tag.
type virtualValue struct {
	disc    int64  // 0 = Int, 1 = Float, 2 = Bool
	operand string // IR operand text, without the leading type
}

const (
	discInt   = 0
	discFloat = 1
	discBool  = 2
)

// emitter generates the body of a single function. It shares the CodeGen
// interning tables and temp counters but keeps its own virtual stack, so
// quotation emission can nest.
type emitter struct {
	g    *CodeGen
	out  *writer
	virt []virtualValue
}

func (g *CodeGen) newEmitter(out *writer) *emitter {
	return &emitter{g: g, out: out}
}

// spillVirtualStack writes every pending virtual value to stack memory and
// advances the stack pointer. This is a correctness obligation, not an
// optimization: whenever the stack pointer escapes to code that reads
// memory, memory must reflect all logical pushes.
func (e *emitter) spillVirtualStack(stackVar string) string {
	cur := stackVar
	for _, v := range e.virt {
		slotTy := "i64"
		if v.disc == discFloat {
			slotTy = "double"
		}
		e.out.linef("store i64 %d, ptr %%%s", v.disc, cur)
		payload := e.g.freshTemp()
		e.out.linef("%%%s = getelementptr i64, ptr %%%s, i64 1", payload, cur)
		e.out.linef("store %s %s, ptr %%%s", slotTy, v.operand, payload)
		next := e.g.freshTemp()
		e.out.linef("%%%s = getelementptr %%Value, ptr %%%s, i64 1", next, cur)
		cur = next
	}
	e.virt = e.virt[:0]
	return cur
}

// pushVirtual records a scalar in the virtual stack, spilling the whole
// virtual stack when full.
func (e *emitter) pushVirtual(stackVar string, v virtualValue) string {
	if len(e.virt) >= maxVirtualStack {
		// spill everything; partial spills would reorder the stack
		stackVar = e.spillVirtualStack(stackVar)
	}
	e.virt = append(e.virt, v)
	return stackVar
}

// codegenStatements lowers a statement list. It returns the final stack
// variable and whether every path already returned (all tails).
func (e *emitter) codegenStatements(stmts []ast.Statement, stackVar string, lastIsTail bool) (string, bool, error) {
	cur := stackVar
	terminated := false
	for i, stmt := range stmts {
		pos := nonTail
		if lastIsTail && i == len(stmts)-1 {
			pos = tail
		}
		var err error
		cur, terminated, err = e.codegenStatement(cur, stmt, pos)
		if err != nil {
			return "", false, err
		}
	}
	return cur, terminated, nil
}

func (e *emitter) codegenStatement(stackVar string, stmt ast.Statement, pos tailPosition) (string, bool, error) {
	switch stmt := stmt.(type) {
	case *ast.IntLit:
		return e.pushVirtual(stackVar, virtualValue{disc: discInt, operand: fmt.Sprintf("%d", stmt.Value)}), false, nil
	case *ast.FloatLit:
		return e.pushVirtual(stackVar, virtualValue{disc: discFloat, operand: floatConst(stmt.Value)}), false, nil
	case *ast.BoolLit:
		op := "0"
		if stmt.Value {
			op = "1"
		}
		return e.pushVirtual(stackVar, virtualValue{disc: discBool, operand: op}), false, nil
	case *ast.StringLit:
		sv, err := e.codegenStringPush(stackVar, stmt.Value, "patch_seq_push_string")
		return sv, false, err
	case *ast.SymbolLit:
		sv := e.spillVirtualStack(stackVar)
		global := e.g.getSymbolGlobal(stmt.Name)
		result := e.g.freshTemp()
		e.out.linef("%%%s = call ptr @patch_seq_push_symbol(ptr %%%s, ptr %s)", result, sv, global)
		return result, false, nil
	case *ast.WordCall:
		return e.codegenWordCall(stackVar, stmt.Name, pos)
	case *ast.If:
		return e.codegenIf(stackVar, stmt, pos)
	case *ast.Quotation:
		sv, err := e.codegenQuotationPush(stackVar, stmt)
		return sv, false, err
	case *ast.Match:
		return e.codegenMatch(stackVar, stmt, pos)
	}
	return stackVar, false, fmt.Errorf("codegen: unknown statement %T", stmt)
}

func (e *emitter) codegenStringPush(stackVar, content, runtimeFn string) (string, error) {
	sv := e.spillVirtualStack(stackVar)
	global := e.g.getStringGlobal(content)
	result := e.g.freshTemp()
	e.out.linef("%%%s = call ptr @%s(ptr %%%s, ptr %s)", result, runtimeFn, sv, global)
	return result, nil
}

// floatConst renders a double as a bit-exact hexadecimal IR constant.
func floatConst(f float64) string {
	return fmt.Sprintf("0x%016X", math.Float64bits(f))
}

// codegenWordCall lowers a word call: inline ops on the virtual stack when
// possible, otherwise a runtime or user-word call, musttail in tail
// position.
func (e *emitter) codegenWordCall(stackVar, name string, pos tailPosition) (string, bool, error) {
	if sv, ok := e.tryInlineOp(stackVar, name); ok {
		return sv, false, nil
	}

	sv := e.spillVirtualStack(stackVar)

	var functionName string
	isUserWord := false
	if sym, ok := builtins.Symbol(name); ok {
		functionName = sym
	} else if sym, ok := e.g.opts.ExternalBuiltins[name]; ok {
		functionName = sym
	} else if e.g.opts.FFI != nil && e.g.opts.FFI.IsFunction(name) {
		functionName = "seq_ffi_" + MangleName(name)
	} else if _, ok := e.g.words[name]; ok {
		functionName = wordSymbol(name)
		isUserWord = true
	} else if _, _, err := e.g.findVariant(name); err == nil {
		return e.codegenConstruct(sv, name)
	} else {
		return "", false, fmt.Errorf("codegen: unknown word %s", name)
	}

	result := e.g.freshTemp()
	canTail := pos == tail && isUserWord &&
		!e.g.insideClosure && !e.g.insideMain && !e.g.insideQuotation
	switch {
	case canTail:
		// yield probe so tight recursive loops cannot starve other strands
		e.out.linef("call void @patch_seq_maybe_yield()")
		e.out.linef("%%%s = musttail call tailcc ptr @%s(ptr %%%s)", result, functionName, sv)
		e.out.linef("ret ptr %%%s", result)
		return result, true, nil
	case isUserWord:
		e.out.linef("%%%s = call tailcc ptr @%s(ptr %%%s)", result, functionName, sv)
	default:
		e.out.linef("%%%s = call ptr @%s(ptr %%%s)", result, functionName, sv)
	}
	return result, false, nil
}

// codegenConstruct lowers a variant constructor call: the fields are on the
// stack in declaration order, the runtime packs them into a refcounted
// variant tagged with the interned variant symbol.
func (e *emitter) codegenConstruct(stackVar, variantName string) (string, bool, error) {
	_, v, err := e.g.findVariant(variantName)
	if err != nil {
		return "", false, err
	}
	sym := e.g.getSymbolGlobal(variantName)
	result := e.g.freshTemp()
	e.out.linef("%%%s = call ptr @patch_seq_make_variant(ptr %%%s, ptr %s, i64 %d)",
		result, stackVar, sym, len(v.Fields))
	return result, false, nil
}

// tryInlineOp lowers common scalar patterns entirely on the virtual stack.
func (e *emitter) tryInlineOp(stackVar, name string) (string, bool) {
	n := len(e.virt)
	switch name {
	case "add", "subtract", "multiply":
		if n < 2 || e.virt[n-1].disc != discInt || e.virt[n-2].disc != discInt {
			return "", false
		}
		op := map[string]string{"add": "add", "subtract": "sub", "multiply": "mul"}[name]
		a, b := e.virt[n-2], e.virt[n-1]
		t := e.g.freshTemp()
		e.out.linef("%%%s = %s i64 %s, %s", t, op, a.operand, b.operand)
		e.virt = e.virt[:n-2]
		e.virt = append(e.virt, virtualValue{disc: discInt, operand: "%" + t})
		return stackVar, true
	case "dup":
		if n == 0 {
			return "", false
		}
		if len(e.virt) >= maxVirtualStack {
			return "", false
		}
		e.virt = append(e.virt, e.virt[n-1])
		return stackVar, true
	case "drop":
		if n == 0 {
			return "", false
		}
		e.virt = e.virt[:n-1]
		return stackVar, true
	case "swap":
		if n < 2 {
			return "", false
		}
		e.virt[n-1], e.virt[n-2] = e.virt[n-2], e.virt[n-1]
		return stackVar, true
	}
	return "", false
}
