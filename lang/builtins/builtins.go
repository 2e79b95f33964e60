// Package builtins is the single registry of built-in words: their stack
// effects (used by the checker) and their runtime symbol names (used by the
// code generator). The two tables are kept in lockstep; a builtin present
// in one and not the other is a programming error caught by the tests.
package builtins

import (
	"github.com/seqlang/seq/lang/types"
)

func row(name string) types.RowVar { return types.RowVar{Name: name} }
func tvar(name string) types.Var   { return types.Var{Name: name} }

func eff(inputs, outputs types.StackType) *types.Effect {
	return types.NewEffect(inputs, outputs)
}

// Effects returns the name -> stack effect table for every builtin word.
// The table is rebuilt on each call; callers cache it as needed.
func Effects() map[string]*types.Effect {
	a := func() types.StackType { return row("a") }
	sigs := map[string]*types.Effect{
		// I/O
		"write_line":  eff(types.Push(a(), types.String), a()),
		"read_line":   eff(a(), types.Push(a(), types.String)),
		"int->string": eff(types.Push(a(), types.Int), types.Push(a(), types.String)),

		// stack ops, row-polymorphic over type variables
		"dup": eff(
			types.FromTypes(a(), tvar("T")),
			types.FromTypes(a(), tvar("T"), tvar("T"))),
		"drop": eff(types.FromTypes(a(), tvar("T")), a()),
		"swap": eff(
			types.FromTypes(a(), tvar("T"), tvar("U")),
			types.FromTypes(a(), tvar("U"), tvar("T"))),
		"over": eff(
			types.FromTypes(a(), tvar("T"), tvar("U")),
			types.FromTypes(a(), tvar("T"), tvar("U"), tvar("T"))),
		"rot": eff(
			types.FromTypes(a(), tvar("T"), tvar("U"), tvar("V")),
			types.FromTypes(a(), tvar("U"), tvar("V"), tvar("T"))),
		"nip": eff(
			types.FromTypes(a(), tvar("T"), tvar("U")),
			types.FromTypes(a(), tvar("U"))),
		"tuck": eff(
			types.FromTypes(a(), tvar("T"), tvar("U")),
			types.FromTypes(a(), tvar("U"), tvar("T"), tvar("U"))),

		// concurrency
		"make-channel":  eff(a(), types.Push(a(), types.Int)),
		"send":          eff(types.FromTypes(a(), tvar("T"), types.Int), a()),
		"receive":       eff(types.Push(a(), types.Int), types.Push(a(), tvar("T"))),
		"close-channel": eff(types.Push(a(), types.Int), a()),
		"yield":         eff(a(), a()),
		"strand.spawn": eff(
			types.Push(a(), anyQuotation()),
			a()),
		"strand.weave": eff(
			types.Push(a(), anyQuotation()),
			types.Push(a(), types.Int)),
		"strand.resume": eff(
			types.FromTypes(a(), types.Int, tvar("T")),
			types.FromTypes(a(), types.Int, tvar("T"), types.Bool)),
		"weave.yield": eff(
			types.FromTypes(a(), types.Int, tvar("T")),
			types.FromTypes(a(), types.Int, tvar("T"))),

		// test framework: assertions collect failures instead of aborting;
		// the test runner's wrapper main drives init/finish per test word
		// and exits non-zero through has-failures
		"test.init":          eff(types.Push(a(), types.String), a()),
		"test.finish":        eff(a(), a()),
		"test.has-failures":  eff(a(), types.Push(a(), types.Bool)),
		"test.assert":        eff(types.Push(a(), types.Bool), a()),
		"test.assert-not":    eff(types.Push(a(), types.Bool), a()),
		"test.assert-eq":     eff(types.FromTypes(a(), types.Int, types.Int), a()),
		"test.assert-eq-str": eff(types.FromTypes(a(), types.String, types.String), a()),

		// os.exit does not return; its effect is the identity for checking
		"os.exit": eff(types.Push(a(), types.Int), a()),

		// quotation call: the one signature the checker cannot express
		// precisely; it is instantiated specially at each call site from
		// the quotation's known type.
		"call": eff(
			types.Push(a(), anyQuotation()),
			row("b")),
	}

	// integer arithmetic ( ..a Int Int -- ..a Int )
	for _, op := range []string{"add", "subtract", "multiply", "divide", "modulo"} {
		sigs[op] = eff(
			types.FromTypes(a(), types.Int, types.Int),
			types.Push(a(), types.Int))
	}

	// integer comparisons return Bool
	for _, op := range []string{"=", "<", ">", "<=", ">=", "<>"} {
		sigs[op] = eff(
			types.FromTypes(a(), types.Int, types.Int),
			types.Push(a(), types.Bool))
	}

	// boolean connectives
	for _, op := range []string{"and", "or"} {
		sigs[op] = eff(
			types.FromTypes(a(), types.Bool, types.Bool),
			types.Push(a(), types.Bool))
	}
	sigs["not"] = eff(types.Push(a(), types.Bool), types.Push(a(), types.Bool))

	return sigs
}

func anyQuotation() *types.Quotation {
	return &types.Quotation{Effect: types.NewEffect(row("qin"), row("qout"))}
}

// symbols maps builtin names to the runtime symbols the generator emits
// calls to. "call" maps to the generic invoker; the checker types it
// specially from the quotation's known type.
var symbols = map[string]string{
	"call": "patch_seq_call_quotation",

	"dup":  "patch_seq_dup",
	"drop": "patch_seq_drop_op",
	"swap": "patch_seq_swap",
	"over": "patch_seq_over",
	"rot":  "patch_seq_rot",
	"nip":  "patch_seq_nip",
	"tuck": "patch_seq_tuck",

	"add":      "patch_seq_add",
	"subtract": "patch_seq_subtract",
	"multiply": "patch_seq_multiply",
	"divide":   "patch_seq_divide",
	"modulo":   "patch_seq_modulo",

	"=":  "patch_seq_eq",
	"<":  "patch_seq_lt",
	">":  "patch_seq_gt",
	"<=": "patch_seq_lte",
	">=": "patch_seq_gte",
	"<>": "patch_seq_neq",

	"and": "patch_seq_and",
	"or":  "patch_seq_or",
	"not": "patch_seq_not",

	"write_line":  "patch_seq_write_line",
	"read_line":   "patch_seq_read_line",
	"int->string": "patch_seq_int_to_string",

	"make-channel":  "patch_seq_make_channel",
	"send":          "patch_seq_send",
	"receive":       "patch_seq_receive",
	"close-channel": "patch_seq_close_channel",
	"yield":         "patch_seq_yield",
	"strand.spawn":  "patch_seq_spawn",
	"strand.weave":  "patch_seq_weave",
	"strand.resume": "patch_seq_resume",
	"weave.yield":   "patch_seq_weave_yield",

	"test.init":          "patch_seq_test_init",
	"test.finish":        "patch_seq_test_finish",
	"test.has-failures":  "patch_seq_test_has_failures",
	"test.assert":        "patch_seq_test_assert",
	"test.assert-not":    "patch_seq_test_assert_not",
	"test.assert-eq":     "patch_seq_test_assert_eq",
	"test.assert-eq-str": "patch_seq_test_assert_eq_str",

	"os.exit": "patch_seq_exit",
}

// Symbol returns the runtime symbol for a builtin word, if it has one.
func Symbol(name string) (string, bool) {
	s, ok := symbols[name]
	return s, ok
}

// Symbols returns a copy of the builtin name -> runtime symbol table.
func Symbols() map[string]string {
	m := make(map[string]string, len(symbols))
	for k, v := range symbols {
		m[k] = v
	}
	return m
}

// IsBuiltin reports whether name is a builtin word.
func IsBuiltin(name string) bool {
	if name == "call" {
		return true
	}
	_, ok := symbols[name]
	return ok
}
