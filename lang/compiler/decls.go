package compiler

import (
	"runtime"
	"strings"
)

// runtimeDecls are the runtime ABI symbols the generated module may call.
// Most entry points take and return the stack pointer; the literal pushers
// carry the value as an extra argument, and the remaining exceptions have
// the signatures declared below. Every one of them is
// documented contract: called only from compiler-generated code.
var runtimeDecls = []string{
	// literals
	"declare ptr @patch_seq_push_int(ptr, i64)",
	"declare ptr @patch_seq_push_float(ptr, double)",
	"declare ptr @patch_seq_push_bool(ptr, i64)",
	"declare ptr @patch_seq_push_string(ptr, ptr)",
	"declare ptr @patch_seq_push_symbol(ptr, ptr)",
	"declare ptr @patch_seq_push_quotation(ptr, i64, i64)",
	"declare ptr @patch_seq_push_closure(ptr, i64, i32)",
	"declare ptr @patch_seq_push_env(ptr, ptr, i64)",

	// stack discipline
	"declare ptr @patch_seq_pop_stack(ptr)",
	"declare ptr @patch_seq_dup(ptr)",
	"declare ptr @patch_seq_drop_op(ptr)",
	"declare ptr @patch_seq_swap(ptr)",
	"declare ptr @patch_seq_over(ptr)",
	"declare ptr @patch_seq_rot(ptr)",
	"declare ptr @patch_seq_nip(ptr)",
	"declare ptr @patch_seq_tuck(ptr)",
	"declare i64 @patch_seq_peek_int_value(ptr)",
	"declare i1 @patch_seq_peek_bool_value(ptr)",

	// arithmetic and comparisons
	"declare ptr @patch_seq_add(ptr)",
	"declare ptr @patch_seq_subtract(ptr)",
	"declare ptr @patch_seq_multiply(ptr)",
	"declare ptr @patch_seq_divide(ptr)",
	"declare ptr @patch_seq_modulo(ptr)",
	"declare ptr @patch_seq_eq(ptr)",
	"declare ptr @patch_seq_lt(ptr)",
	"declare ptr @patch_seq_gt(ptr)",
	"declare ptr @patch_seq_lte(ptr)",
	"declare ptr @patch_seq_gte(ptr)",
	"declare ptr @patch_seq_neq(ptr)",
	"declare ptr @patch_seq_and(ptr)",
	"declare ptr @patch_seq_or(ptr)",
	"declare ptr @patch_seq_not(ptr)",

	// I/O and conversions
	"declare ptr @patch_seq_write_line(ptr)",
	"declare ptr @patch_seq_read_line(ptr)",
	"declare ptr @patch_seq_int_to_string(ptr)",
	"declare ptr @patch_seq_string_to_cstring(ptr, ptr)",
	"declare ptr @patch_seq_cstring_to_string(ptr, ptr)",

	// concurrency
	"declare ptr @patch_seq_make_channel(ptr)",
	"declare ptr @patch_seq_send(ptr)",
	"declare ptr @patch_seq_receive(ptr)",
	"declare ptr @patch_seq_close_channel(ptr)",
	"declare ptr @patch_seq_yield(ptr)",
	"declare void @patch_seq_maybe_yield()",
	"declare ptr @patch_seq_spawn(ptr)",
	"declare ptr @patch_seq_weave(ptr)",
	"declare ptr @patch_seq_resume(ptr)",
	"declare ptr @patch_seq_weave_yield(ptr)",
	"declare void @patch_seq_scheduler_init()",
	"declare ptr @patch_seq_scheduler_run()",
	"declare i64 @patch_seq_strand_spawn(ptr, ptr)",
	"declare void @patch_seq_args_init(i32, ptr)",

	// test framework
	"declare ptr @patch_seq_test_init(ptr)",
	"declare ptr @patch_seq_test_finish(ptr)",
	"declare ptr @patch_seq_test_has_failures(ptr)",
	"declare ptr @patch_seq_test_assert(ptr)",
	"declare ptr @patch_seq_test_assert_not(ptr)",
	"declare ptr @patch_seq_test_assert_eq(ptr)",
	"declare ptr @patch_seq_test_assert_eq_str(ptr)",

	// process control
	"declare ptr @patch_seq_exit(ptr)",

	// quotation invocation
	"declare ptr @patch_seq_call_quotation(ptr)",

	// pattern matching
	"declare ptr @patch_seq_variant_tag(ptr)",
	"declare ptr @patch_seq_variant_field_at(ptr)",
	"declare ptr @patch_seq_unpack_variant(ptr, i64)",
	"declare ptr @patch_seq_symbol_eq_cstr(ptr, ptr)",
	"declare ptr @patch_seq_make_variant(ptr, ptr, i64)",

	// instrumentation
	"declare void @patch_seq_instrument_report(ptr, ptr, i64)",
}

func emitRuntimeDecls(sb *strings.Builder) {
	sb.WriteString("; Runtime declarations\n")
	for _, d := range runtimeDecls {
		sb.WriteString(d)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
}

// targetTriple returns the default target triple for the host platform.
func targetTriple() string {
	switch runtime.GOOS {
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "arm64-apple-macosx"
		}
		return "x86_64-apple-macosx"
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "aarch64-unknown-linux-gnu"
		}
		return "x86_64-unknown-linux-gnu"
	default:
		return "x86_64-unknown-linux-gnu"
	}
}
