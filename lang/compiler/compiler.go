// Package compiler generates LLVM textual IR from a checked Seq program.
//
// Every user word becomes an IR function under the tailcc calling
// convention with the signature ptr -> ptr: it receives the stack pointer
// and returns the new stack pointer. Genuine tail calls between user words
// are emitted as musttail calls so recursion runs in constant C stack
// space. A small virtual register stack keeps recently pushed scalars in
// SSA form; it is spilled to memory before anything that observes the
// stack pointer.
package compiler

import (
	"fmt"
	"strings"

	"github.com/seqlang/seq/lang/ast"
	"github.com/seqlang/seq/lang/ffi"
	"github.com/seqlang/seq/lang/types"
)

// maxVirtualStack is the maximum number of scalar values kept in SSA
// registers instead of stack memory. Binary ops need 2, dup patterns 3;
// beyond 4 most operations trigger spills anyway.
const maxVirtualStack = 4

// Options configures code generation.
type Options struct {
	// Instrument emits per-word execution counters printed at exit.
	Instrument bool
	// ExternalBuiltins maps seq names to runtime symbols for words
	// registered by an embedding runtime extension.
	ExternalBuiltins map[string]string
	// FFI is the set of foreign function bindings, nil when unused.
	FFI *ffi.Bindings
	// TargetTriple overrides the emitted target triple; empty selects the
	// host triple.
	TargetTriple string
}

// CodeGen holds the state of one program's code generation. The zero value
// is not usable; use New.
type CodeGen struct {
	opts Options

	output    strings.Builder // user words and main
	quotFuncs strings.Builder // quotation wrapper/impl pairs
	ffiCode   strings.Builder // FFI wrapper functions

	tempCounter  int
	blockCounter int
	quotCounter  int

	stringCounter   int
	stringConstants map[string]string // content -> global name
	stringOrder     []string          // deterministic emission order

	symbolCounter   int
	symbolConstants map[string]string
	symbolOrder     []string

	quotCache map[string]quotationFuncs // body fingerprint -> emitted pair

	typeMap map[int]types.Type // quotation id -> inferred type
	unions  map[string]*ast.UnionDef
	words   map[string]*ast.WordDef

	wordInstrumentIDs map[string]int
	instrumentOrder   []string

	insideClosure   bool
	insideMain      bool
	insideQuotation bool
}

// quotationFuncs names the function pair generated for a quotation: a
// C-convention wrapper for runtime and indirect calls, and a tailcc
// implementation for direct tail calls.
type quotationFuncs struct {
	wrapper string
	impl    string
}

// New creates a generator for the program and the checker's quotation type
// table.
func New(prog *ast.Program, typeMap map[int]types.Type, opts Options) *CodeGen {
	g := &CodeGen{
		opts:            opts,
		stringConstants: make(map[string]string),
		symbolConstants: make(map[string]string),
		quotCache:       make(map[string]quotationFuncs),
		typeMap:         typeMap,
		unions:          make(map[string]*ast.UnionDef),
		words:           make(map[string]*ast.WordDef),
	}
	for _, u := range prog.Unions {
		g.unions[u.Name] = u
	}
	for _, w := range prog.Words {
		g.words[w.Name] = w
	}
	if opts.Instrument {
		g.wordInstrumentIDs = make(map[string]int, len(prog.Words))
		for i, w := range prog.Words {
			g.wordInstrumentIDs[w.Name] = i
			g.instrumentOrder = append(g.instrumentOrder, w.Name)
		}
	}
	return g
}

func (g *CodeGen) freshTemp() string {
	g.tempCounter++
	return fmt.Sprintf("t%d", g.tempCounter)
}

func (g *CodeGen) freshBlock(prefix string) string {
	g.blockCounter++
	return fmt.Sprintf("%s_%d", prefix, g.blockCounter)
}

// MangleName converts a Seq word name into a valid LLVM IR identifier.
// Hyphens become underscores; the punctuation that concatenative names use
// gets readable escapes; anything else is hex-encoded.
func MangleName(name string) string {
	var sb strings.Builder
	for _, c := range name {
		switch c {
		case '?':
			sb.WriteString("_Q_")
		case '>':
			sb.WriteString("_GT_")
		case '<':
			sb.WriteString("_LT_")
		case '!':
			sb.WriteString("_BANG_")
		case '*':
			sb.WriteString("_STAR_")
		case '/':
			sb.WriteString("_SLASH_")
		case '+':
			sb.WriteString("_PLUS_")
		case '=':
			sb.WriteString("_EQ_")
		case '-':
			sb.WriteByte('_')
		case '_', '.', '$':
			sb.WriteRune(c)
		default:
			if c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
				sb.WriteRune(c)
			} else {
				fmt.Fprintf(&sb, "_x%02X_", c)
			}
		}
	}
	return sb.String()
}

// wordSymbol is the IR symbol of a user word.
func wordSymbol(name string) string {
	return "seq_" + MangleName(name)
}

// getStringGlobal interns a string constant and returns the IR operand that
// points at it (a getelementptr constant expression is unnecessary since
// globals are already pointers under opaque pointer rules).
func (g *CodeGen) getStringGlobal(content string) string {
	if name, ok := g.stringConstants[content]; ok {
		return "@" + name
	}
	name := fmt.Sprintf("str_%d", g.stringCounter)
	g.stringCounter++
	g.stringConstants[content] = name
	g.stringOrder = append(g.stringOrder, content)
	return "@" + name
}

// getSymbolGlobal interns a symbol constant, kept in a separate table so
// the runtime can intern them for O(1) pointer equality.
func (g *CodeGen) getSymbolGlobal(name string) string {
	if gname, ok := g.symbolConstants[name]; ok {
		return "@" + gname
	}
	gname := fmt.Sprintf("sym_%d", g.symbolCounter)
	g.symbolCounter++
	g.symbolConstants[name] = gname
	g.symbolOrder = append(g.symbolOrder, name)
	return "@" + gname
}

// escapeIRBytes renders a byte string for a c"..." constant.
func escapeIRBytes(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		fmt.Fprintf(&sb, "\\%02X", s[i])
	}
	return sb.String()
}

// findVariant resolves a variant name to its union, field count and field
// names.
func (g *CodeGen) findVariant(name string) (*ast.UnionDef, *ast.Variant, error) {
	for _, u := range g.unions {
		if v := u.FindVariant(name); v != nil {
			return u, v, nil
		}
	}
	return nil, nil, fmt.Errorf("unknown variant %s", name)
}
