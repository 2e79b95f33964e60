package compiler

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/seqlang/seq/lang/ast"
)

// Generate emits the LLVM IR module for the program. It fails when no
// `main` word is defined, and on any internal inconsistency; all errors are
// fatal for the compilation.
func (g *CodeGen) Generate(prog *ast.Program) (string, error) {
	if prog.FindWord("main") == nil {
		return "", fmt.Errorf("no main word defined")
	}

	if err := g.generateFFIWrappers(); err != nil {
		return "", err
	}

	for _, w := range prog.Words {
		if err := g.codegenWord(w); err != nil {
			return "", err
		}
	}
	g.codegenMain()

	// assemble the final module
	var ir strings.Builder
	ir.WriteString("; ModuleID = 'main'\n")
	triple := g.opts.TargetTriple
	if triple == "" {
		triple = targetTriple()
	}
	fmt.Fprintf(&ir, "target triple = %q\n\n", triple)

	ir.WriteString("; Value type (tagged, 40 bytes)\n")
	ir.WriteString("%Value = type { i64, i64, i64, i64, i64 }\n\n")

	g.emitStringAndSymbolGlobals(&ir)
	if g.opts.Instrument {
		g.emitInstrumentationGlobals(&ir)
	}

	emitRuntimeDecls(&ir)

	if len(g.opts.ExternalBuiltins) > 0 {
		ir.WriteString("; External builtin declarations\n")
		names := make([]string, 0, len(g.opts.ExternalBuiltins))
		for name := range g.opts.ExternalBuiltins {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(&ir, "declare ptr @%s(ptr)\n", g.opts.ExternalBuiltins[name])
		}
		ir.WriteByte('\n')
	}

	if g.opts.FFI != nil && len(g.opts.FFI.Functions) > 0 {
		g.emitFFIDecls(&ir)
	}

	if g.ffiCode.Len() > 0 {
		ir.WriteString("; FFI wrapper functions\n")
		ir.WriteString(g.ffiCode.String())
	}

	if g.quotFuncs.Len() > 0 {
		ir.WriteString("; Quotation functions\n")
		ir.WriteString(g.quotFuncs.String())
	}

	ir.WriteString(g.output.String())
	return ir.String(), nil
}

// codegenWord emits one user word under the tailcc convention.
func (g *CodeGen) codegenWord(w *ast.WordDef) error {
	out := newWriter(&g.output)
	em := g.newEmitter(out)
	g.insideMain = false

	out.labelf("define tailcc ptr @%s(ptr %%stack) {", wordSymbol(w.Name))
	out.labelf("entry:")

	if g.opts.Instrument {
		id := g.wordInstrumentIDs[w.Name]
		ctr := g.freshTemp()
		out.linef("%%%s = getelementptr [%d x i64], ptr @seq_word_counters, i64 0, i64 %d",
			ctr, len(g.wordInstrumentIDs), id)
		old := g.freshTemp()
		out.linef("%%%s = atomicrmw add ptr %%%s, i64 1 monotonic", old, ctr)
	}

	final, terminated, err := em.codegenStatements(w.Body, "stack", true)
	if err != nil {
		return fmt.Errorf("word %s: %w", w.Name, err)
	}
	if !terminated {
		final = em.spillVirtualStack(final)
		out.linef("ret ptr %%%s", final)
	}
	out.labelf("}")
	out.labelf("")
	return nil
}

// codegenMain emits the C-ABI main: initialize arguments and the
// scheduler, spawn the user's main word as the first strand so all code
// runs in strand context, then run the scheduler to completion.
func (g *CodeGen) codegenMain() {
	out := newWriter(&g.output)
	g.insideMain = true
	defer func() { g.insideMain = false }()

	out.labelf("define i32 @main(i32 %%argc, ptr %%argv) {")
	out.labelf("entry:")
	out.linef("call void @patch_seq_args_init(i32 %%argc, ptr %%argv)")
	out.linef("call void @patch_seq_scheduler_init()")
	out.linef("%%0 = call i64 @patch_seq_strand_spawn(ptr @%s, ptr null)", wordSymbol("main"))
	out.linef("%%1 = call ptr @patch_seq_scheduler_run()")
	if g.opts.Instrument {
		n := len(g.wordInstrumentIDs)
		out.linef("call void @patch_seq_instrument_report(ptr @seq_word_counters, ptr @seq_word_names, i64 %d)", n)
	}
	out.linef("ret i32 0")
	out.labelf("}")
}

// emitStringAndSymbolGlobals writes the deduplicated private constants for
// string and symbol literals, in first-use order.
func (g *CodeGen) emitStringAndSymbolGlobals(ir *strings.Builder) {
	if len(g.stringOrder) > 0 {
		ir.WriteString("; String constants\n")
		for _, content := range g.stringOrder {
			name := g.stringConstants[content]
			fmt.Fprintf(ir, "@%s = private unnamed_addr constant [%d x i8] c\"%s\\00\"\n",
				name, len(content)+1, escapeIRBytes(content))
		}
		ir.WriteByte('\n')
	}
	if len(g.symbolOrder) > 0 {
		ir.WriteString("; Symbol constants\n")
		for _, content := range g.symbolOrder {
			name := g.symbolConstants[content]
			fmt.Fprintf(ir, "@%s = private unnamed_addr constant [%d x i8] c\"%s\\00\"\n",
				name, len(content)+1, escapeIRBytes(content))
		}
		ir.WriteByte('\n')
	}
}

// emitInstrumentationGlobals writes one 64-bit counter per word plus a
// parallel table of word-name C strings; the runtime prints the counters at
// exit.
func (g *CodeGen) emitInstrumentationGlobals(ir *strings.Builder) {
	n := len(g.instrumentOrder)
	if n == 0 {
		return
	}
	ir.WriteString("; Instrumentation globals (--instrument)\n")
	fmt.Fprintf(ir, "@seq_word_counters = global [%d x i64] zeroinitializer\n", n)
	for _, name := range g.instrumentOrder {
		id := g.wordInstrumentIDs[name]
		fmt.Fprintf(ir, "@seq_word_name_%d = private constant [%d x i8] c\"%s\\00\"\n",
			id, len(name)+1, escapeIRBytes(name))
	}
	ptrs := make([]string, n)
	for _, name := range g.instrumentOrder {
		id := g.wordInstrumentIDs[name]
		ptrs[id] = fmt.Sprintf("ptr @seq_word_name_%d", id)
	}
	fmt.Fprintf(ir, "@seq_word_names = private constant [%d x ptr] [%s]\n\n", n, strings.Join(ptrs, ", "))
}

// emitFFIDecls writes the C function declarations for the FFI bindings and
// the libc helpers the wrappers rely on.
func (g *CodeGen) emitFFIDecls(ir *strings.Builder) {
	ir.WriteString("; FFI C function declarations\n")
	ir.WriteString("declare ptr @malloc(i64)\n")
	ir.WriteString("declare void @free(ptr)\n")
	ir.WriteString("declare i64 @strlen(ptr)\n")
	ir.WriteString("declare ptr @memcpy(ptr, ptr, i64)\n")

	names := make([]string, 0, len(g.opts.FFI.Functions))
	for name := range g.opts.FFI.Functions {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fn := g.opts.FFI.Functions[name]
		fmt.Fprintf(ir, "declare %s @%s(%s)\n", ffiReturnType(fn.Return), fn.CName, ffiCArgs(fn.Args))
	}
	ir.WriteByte('\n')
}
