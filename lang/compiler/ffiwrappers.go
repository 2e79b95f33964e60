package compiler

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/seqlang/seq/lang/ffi"
)

// generateFFIWrappers emits one stack-ABI wrapper per bound C function,
// bridging the Seq stack convention to the C register convention.
func (g *CodeGen) generateFFIWrappers() error {
	if g.opts.FFI == nil {
		return nil
	}
	// deterministic order
	names := make([]string, 0, len(g.opts.FFI.Functions))
	for name := range g.opts.FFI.Functions {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := g.generateFFIWrapper(g.opts.FFI.Functions[name]); err != nil {
			return err
		}
	}
	return nil
}

// ffiReturnType renders the C return type of a binding.
func ffiReturnType(ret *ffi.Return) string {
	if ret == nil {
		return "void"
	}
	switch ret.Type {
	case ffi.Int:
		return "i64"
	case ffi.String, ffi.Ptr:
		return "ptr"
	default:
		return "void"
	}
}

// ffiCArgs renders the C parameter list of a binding declaration.
func ffiCArgs(args []ffi.Arg) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a.Pass == ffi.ByRef {
			parts = append(parts, "ptr")
			continue
		}
		switch a.Type {
		case ffi.Int:
			parts = append(parts, "i64")
		case ffi.String, ffi.Ptr, ffi.Callback:
			parts = append(parts, "ptr")
		}
	}
	return strings.Join(parts, ", ")
}

// generateFFIWrapper emits one wrapper:
//
//  1. allocate stack storage for by_ref out parameters
//  2. pop each argument in reverse stack order and convert it
//  3. call the C function
//  4. free any C strings allocated for arguments
//  5. load by_ref outs back onto the stack
//  6. push the return value, honoring the ownership annotation
func (g *CodeGen) generateFFIWrapper(fn *ffi.Function) error {
	w := newWriter(&g.ffiCode)
	wrapperName := "seq_ffi_" + MangleName(fn.SeqName)

	w.labelf("define ptr @%s(ptr %%stack) {", wrapperName)
	w.labelf("entry:")

	stackVar := "stack"
	var cArgs []string
	var cstrVars []string
	type byRefVar struct {
		name string
		typ  ffi.ArgType
	}
	var byRefs []byRefVar

	// first pass: allocate storage for by_ref out parameters
	for i, arg := range fn.Args {
		if arg.Pass != ffi.ByRef {
			continue
		}
		name := fmt.Sprintf("out_param_%d", i)
		switch arg.Type {
		case ffi.Ptr:
			w.linef("%%%s = alloca ptr", name)
		case ffi.Int:
			w.linef("%%%s = alloca i64", name)
		default:
			return fmt.Errorf("ffi %s: unsupported type %s for by_ref parameter", fn.SeqName, arg.Type)
		}
		byRefs = append(byRefs, byRefVar{name: name, typ: arg.Type})
	}

	// second pass: pop arguments from the stack, last argument is on top
	for i := len(fn.Args) - 1; i >= 0; i-- {
		arg := fn.Args[i]
		cArg, cstr, err := g.ffiPopArg(w, i, &arg, &stackVar)
		if err != nil {
			return fmt.Errorf("ffi %s: %w", fn.SeqName, err)
		}
		cArgs = append(cArgs, cArg)
		if cstr != "" {
			cstrVars = append(cstrVars, cstr)
		}
	}
	// restore declaration order for the C call
	for i, j := 0, len(cArgs)-1; i < j; i, j = i+1, j-1 {
		cArgs[i], cArgs[j] = cArgs[j], cArgs[i]
	}

	retType := ffiReturnType(fn.Return)
	hasReturn := fn.Return != nil && fn.Return.Type != ffi.Void
	if hasReturn {
		w.linef("%%c_result = call %s @%s(%s)", retType, fn.CName, strings.Join(cArgs, ", "))
	} else {
		w.linef("call %s @%s(%s)", retType, fn.CName, strings.Join(cArgs, ", "))
	}

	for _, cstr := range cstrVars {
		w.linef("call void @free(ptr %%%s)", cstr)
	}

	for _, br := range byRefs {
		g.ffiPushByRef(w, br.name, br.typ, &stackVar)
	}

	if hasReturn && fn.Return.Type == ffi.String {
		g.ffiReturnString(w, stackVar, fn.Return.Ownership == ffi.CallerFrees)
	} else if hasReturn {
		g.ffiReturnSimple(w, fn.Return.Type, stackVar)
	} else {
		w.linef("ret ptr %%%s", stackVar)
	}

	w.labelf("}")
	w.labelf("")
	return nil
}

func (g *CodeGen) ffiPopArg(w *writer, i int, arg *ffi.Arg, stackVar *string) (cArg, cstrVar string, err error) {
	// fixed value arguments never touch the stack
	if arg.Value != "" {
		switch arg.Value {
		case "null", "NULL":
			return "ptr null", "", nil
		default:
			return "i64 " + arg.Value, "", nil
		}
	}

	switch {
	case arg.Pass == ffi.ByRef:
		return fmt.Sprintf("ptr %%out_param_%d", i), "", nil

	case arg.Type == ffi.String && arg.Pass == ffi.CString:
		cstr := fmt.Sprintf("cstr_%d", i)
		next := fmt.Sprintf("stack_after_pop_%d", i)
		w.linef("%%%s = call ptr @patch_seq_string_to_cstring(ptr %%%s, ptr null)", cstr, *stackVar)
		w.linef("%%%s = call ptr @patch_seq_pop_stack(ptr %%%s)", next, *stackVar)
		*stackVar = next
		return "ptr %" + cstr, cstr, nil

	case arg.Type == ffi.Int:
		iv := fmt.Sprintf("int_%d", i)
		next := fmt.Sprintf("stack_after_pop_%d", i)
		w.linef("%%%s = call i64 @patch_seq_peek_int_value(ptr %%%s)", iv, *stackVar)
		w.linef("%%%s = call ptr @patch_seq_pop_stack(ptr %%%s)", next, *stackVar)
		*stackVar = next
		return "i64 %" + iv, "", nil

	case arg.Type == ffi.Ptr && arg.Pass == ffi.PassPtr:
		iv := fmt.Sprintf("ptr_int_%d", i)
		pv := fmt.Sprintf("ptr_%d", i)
		next := fmt.Sprintf("stack_after_pop_%d", i)
		w.linef("%%%s = call i64 @patch_seq_peek_int_value(ptr %%%s)", iv, *stackVar)
		w.linef("%%%s = inttoptr i64 %%%s to ptr", pv, iv)
		w.linef("%%%s = call ptr @patch_seq_pop_stack(ptr %%%s)", next, *stackVar)
		*stackVar = next
		return "ptr %" + pv, "", nil
	}
	return "", "", fmt.Errorf("unsupported argument type %s with pass mode %s", arg.Type, arg.Pass)
}

func (g *CodeGen) ffiPushByRef(w *writer, name string, typ ffi.ArgType, stackVar *string) {
	next := "stack_after_byref_" + name
	switch typ {
	case ffi.Ptr:
		w.linef("%%%s_val = load ptr, ptr %%%s", name, name)
		w.linef("%%%s_int = ptrtoint ptr %%%s_val to i64", name, name)
		w.linef("%%%s = call ptr @patch_seq_push_int(ptr %%%s, i64 %%%s_int)", next, *stackVar, name)
	case ffi.Int:
		w.linef("%%%s_val = load i64, ptr %%%s", name, name)
		w.linef("%%%s = call ptr @patch_seq_push_int(ptr %%%s, i64 %%%s_val)", next, *stackVar, name)
	default:
		return
	}
	*stackVar = next
}

// ffiReturnString pushes a returned C string, handling null (an empty
// string is pushed instead) and the caller_frees annotation.
func (g *CodeGen) ffiReturnString(w *writer, stackVar string, callerFrees bool) {
	emptyStr := g.getStringGlobal("")
	w.linef("%%is_null = icmp eq ptr %%c_result, null")
	w.linef("br i1 %%is_null, label %%null_case, label %%valid_case")
	w.labelf("null_case:")
	w.linef("%%stack_null = call ptr @patch_seq_push_string(ptr %%%s, ptr %s)", stackVar, emptyStr)
	w.linef("br label %%done")
	w.labelf("valid_case:")
	w.linef("%%stack_with_result = call ptr @patch_seq_cstring_to_string(ptr %%%s, ptr %%c_result)", stackVar)
	if callerFrees {
		w.linef("call void @free(ptr %%c_result)")
	}
	w.linef("br label %%done")
	w.labelf("done:")
	w.linef("%%final_stack = phi ptr [ %%stack_null, %%null_case ], [ %%stack_with_result, %%valid_case ]")
	w.linef("ret ptr %%final_stack")
}

func (g *CodeGen) ffiReturnSimple(w *writer, typ ffi.ArgType, stackVar string) {
	switch typ {
	case ffi.Int:
		w.linef("%%stack_with_result = call ptr @patch_seq_push_int(ptr %%%s, i64 %%c_result)", stackVar)
		w.linef("ret ptr %%stack_with_result")
	case ffi.Ptr:
		w.linef("%%ptr_as_int = ptrtoint ptr %%c_result to i64")
		w.linef("%%stack_with_result = call ptr @patch_seq_push_int(ptr %%%s, i64 %%ptr_as_int)", stackVar)
		w.linef("ret ptr %%stack_with_result")
	default:
		w.linef("ret ptr %%%s", stackVar)
	}
}
