package compiler

import (
	"fmt"
	"strings"

	"github.com/seqlang/seq/lang/ast"
)

// branchResult describes the outcome of lowering one branch of an if or one
// match arm: the stack variable at its end, whether it ended in a tail call
// (and thus already returned), and the predecessor block for the phi.
type branchResult struct {
	stackVar   string
	terminated bool
	pred       string
}

// codegenBranch lowers a branch body and, unless every path returned,
// branches to the merge block. The returned predecessor is the block the
// merge phi must name.
func (e *emitter) codegenBranch(body []ast.Statement, stackVar string, pos tailPosition, mergeBlock, prefix string) (branchResult, error) {
	out, terminated, err := e.codegenStatements(body, stackVar, bool(pos))
	if err != nil {
		return branchResult{}, err
	}
	if terminated {
		return branchResult{stackVar: out, terminated: true}, nil
	}
	out = e.spillVirtualStack(out)
	pred := e.g.freshBlock(prefix + "_end")
	e.out.linef("br label %%%s", pred)
	e.out.labelf("%s:", pred)
	e.out.linef("br label %%%s", mergeBlock)
	return branchResult{stackVar: out, pred: pred}, nil
}

// codegenIf lowers an if statement: pop the Bool condition, branch, lower
// both branches from the popped stack, rejoin with a phi over the branches
// that did not end in a tail call.
func (e *emitter) codegenIf(stackVar string, stmt *ast.If, pos tailPosition) (string, bool, error) {
	sv := e.spillVirtualStack(stackVar)

	// peek the bool payload at slot 1 of the top value, then pop
	topPtr := e.g.freshTemp()
	e.out.linef("%%%s = getelementptr %%Value, ptr %%%s, i64 -1", topPtr, sv)
	slotPtr := e.g.freshTemp()
	e.out.linef("%%%s = getelementptr i64, ptr %%%s, i64 1", slotPtr, topPtr)
	condVal := e.g.freshTemp()
	e.out.linef("%%%s = load i64, ptr %%%s", condVal, slotPtr)
	popped := e.g.freshTemp()
	e.out.linef("%%%s = getelementptr %%Value, ptr %%%s, i64 -1", popped, sv)
	cmp := e.g.freshTemp()
	e.out.linef("%%%s = icmp ne i64 %%%s, 0", cmp, condVal)

	thenBlock := e.g.freshBlock("if_then")
	elseBlock := e.g.freshBlock("if_else")
	mergeBlock := e.g.freshBlock("if_merge")
	e.out.linef("br i1 %%%s, label %%%s, label %%%s", cmp, thenBlock, elseBlock)

	e.out.labelf("%s:", thenBlock)
	thenRes, err := e.codegenBranch(stmt.Then, popped, pos, mergeBlock, "if_then")
	if err != nil {
		return "", false, err
	}

	e.out.labelf("%s:", elseBlock)
	var elseRes branchResult
	if stmt.Else != nil {
		if elseRes, err = e.codegenBranch(stmt.Else, popped, pos, mergeBlock, "if_else"); err != nil {
			return "", false, err
		}
	} else {
		// no else clause: identity on the post-pop stack
		pred := e.g.freshBlock("if_else_end")
		e.out.linef("br label %%%s", pred)
		e.out.labelf("%s:", pred)
		e.out.linef("br label %%%s", mergeBlock)
		elseRes = branchResult{stackVar: popped, pred: pred}
	}

	return e.mergeBranches(mergeBlock, []branchResult{thenRes, elseRes})
}

// mergeBranches emits the merge block and its phi. If every branch ended in
// a tail call there is nothing to merge and the whole statement counts as
// terminated.
func (e *emitter) mergeBranches(mergeBlock string, results []branchResult) (string, bool, error) {
	var live []branchResult
	for _, r := range results {
		if !r.terminated {
			live = append(live, r)
		}
	}
	if len(live) == 0 {
		return results[0].stackVar, true, nil
	}

	e.out.labelf("%s:", mergeBlock)
	if len(live) == 1 {
		// phi with a single incoming edge still keeps the block structure
		// uniform and names the merged stack pointer
		result := e.g.freshTemp()
		e.out.linef("%%%s = phi ptr [ %%%s, %%%s ]", result, live[0].stackVar, live[0].pred)
		return result, false, nil
	}

	entries := make([]string, len(live))
	for i, r := range live {
		entries[i] = fmt.Sprintf("[ %%%s, %%%s ]", r.stackVar, r.pred)
	}
	result := e.g.freshTemp()
	e.out.linef("%%%s = phi ptr %s", result, strings.Join(entries, ", "))
	return result, false, nil
}

// codegenMatch lowers exhaustive dispatch over a union value as a cascade:
// duplicate the variant, extract its tag symbol, compare against each arm's
// interned variant name, branch into the arm on match. Arms unpack fields
// and may tail-call; the merge point works exactly as for if.
func (e *emitter) codegenMatch(stackVar string, stmt *ast.Match, pos tailPosition) (string, bool, error) {
	sv := e.spillVirtualStack(stackVar)

	// defense in depth: the checker already verified exhaustiveness
	if err := e.checkMatchExhaustiveness(stmt.Arms); err != nil {
		return "", false, err
	}

	// duplicate the variant so the tag extraction does not consume it
	dup := e.g.freshTemp()
	e.out.linef("%%%s = call ptr @patch_seq_dup(ptr %%%s)", dup, sv)
	tagged := e.g.freshTemp()
	e.out.linef("%%%s = call ptr @patch_seq_variant_tag(ptr %%%s)", tagged, dup)

	defaultBlock := e.g.freshBlock("match_unreachable")
	mergeBlock := e.g.freshBlock("match_merge")

	type armInfo struct {
		variant *ast.Variant
		block   string
	}
	infos := make([]armInfo, len(stmt.Arms))
	for i, arm := range stmt.Arms {
		_, v, err := e.g.findVariant(arm.Pattern.Variant)
		if err != nil {
			return "", false, err
		}
		infos[i] = armInfo{variant: v, block: e.g.freshBlock(fmt.Sprintf("match_arm_%d", i))}
	}

	// cascading dispatch on the interned tag symbol
	curTagStack := tagged
	for i, info := range infos {
		isLast := i == len(infos)-1
		nextCheck := defaultBlock
		if !isLast {
			nextCheck = e.g.freshBlock(fmt.Sprintf("match_check_%d", i+1))
		}

		compareStack := curTagStack
		if !isLast {
			d := e.g.freshTemp()
			e.out.linef("%%%s = call ptr @patch_seq_dup(ptr %%%s)", d, curTagStack)
			compareStack = d
		}

		strConst := e.g.getStringGlobal(info.variant.Name)
		cmpStack := e.g.freshTemp()
		e.out.linef("%%%s = call ptr @patch_seq_symbol_eq_cstr(ptr %%%s, ptr %s)", cmpStack, compareStack, strConst)
		cmpVal := e.g.freshTemp()
		e.out.linef("%%%s = call i1 @patch_seq_peek_bool_value(ptr %%%s)", cmpVal, cmpStack)
		popped := e.g.freshTemp()
		e.out.linef("%%%s = call ptr @patch_seq_pop_stack(ptr %%%s)", popped, cmpStack)
		e.out.linef("br i1 %%%s, label %%%s, label %%%s", cmpVal, info.block, nextCheck)

		if !isLast {
			e.out.labelf("%s:", nextCheck)
			curTagStack = popped
		}
	}
	e.out.labelf("%s:", defaultBlock)
	e.out.linef("unreachable")

	// arm bodies
	results := make([]branchResult, len(stmt.Arms))
	for i, arm := range stmt.Arms {
		info := infos[i]
		e.out.labelf("%s:", info.block)

		var unpacked string
		if !arm.Pattern.HasBindings() {
			r := e.g.freshTemp()
			e.out.linef("%%%s = call ptr @patch_seq_unpack_variant(ptr %%%s, i64 %d)",
				r, sv, len(info.variant.Fields))
			unpacked = r
		} else {
			var err error
			if unpacked, err = e.codegenExtractBindings(sv, arm.Pattern.Bindings, info.variant); err != nil {
				return "", false, err
			}
		}

		res, err := e.codegenBranch(arm.Body, unpacked, pos, mergeBlock, fmt.Sprintf("match_arm_%d", i))
		if err != nil {
			return "", false, err
		}
		results[i] = res
	}

	return e.mergeBranches(mergeBlock, results)
}

// codegenExtractBindings extracts only the named fields, in binding order.
// Middle fields keep the variant alive with dup+swap; the last binding
// consumes it. An empty binding list just drops the variant.
func (e *emitter) codegenExtractBindings(stackVar string, bindings []string, variant *ast.Variant) (string, error) {
	if len(bindings) == 0 {
		drop := e.g.freshTemp()
		e.out.linef("%%%s = call ptr @patch_seq_drop_op(ptr %%%s)", drop, stackVar)
		return drop, nil
	}

	fieldIndex := func(name string) (int, error) {
		for i, f := range variant.Fields {
			if f.Name == name {
				return i, nil
			}
		}
		return 0, fmt.Errorf("variant %s has no field %s", variant.Name, name)
	}

	cur := stackVar
	for bi, binding := range bindings {
		idx, err := fieldIndex(binding)
		if err != nil {
			return "", err
		}
		last := bi == len(bindings)-1
		if !last {
			dup := e.g.freshTemp()
			e.out.linef("%%%s = call ptr @patch_seq_dup(ptr %%%s)", dup, cur)
			idxStack := e.g.freshTemp()
			e.out.linef("%%%s = call ptr @patch_seq_push_int(ptr %%%s, i64 %d)", idxStack, dup, idx)
			field := e.g.freshTemp()
			e.out.linef("%%%s = call ptr @patch_seq_variant_field_at(ptr %%%s)", field, idxStack)
			swapped := e.g.freshTemp()
			e.out.linef("%%%s = call ptr @patch_seq_swap(ptr %%%s)", swapped, field)
			cur = swapped
		} else {
			idxStack := e.g.freshTemp()
			e.out.linef("%%%s = call ptr @patch_seq_push_int(ptr %%%s, i64 %d)", idxStack, cur, idx)
			field := e.g.freshTemp()
			e.out.linef("%%%s = call ptr @patch_seq_variant_field_at(ptr %%%s)", field, idxStack)
			cur = field
		}
	}
	return cur, nil
}

// checkMatchExhaustiveness re-verifies that the arms cover exactly the
// variants of one union.
func (e *emitter) checkMatchExhaustiveness(arms []ast.MatchArm) error {
	if len(arms) == 0 {
		return fmt.Errorf("match with no arms")
	}
	u, _, err := e.g.findVariant(arms[0].Pattern.Variant)
	if err != nil {
		return err
	}
	covered := make(map[string]bool, len(arms))
	for _, arm := range arms {
		if u.FindVariant(arm.Pattern.Variant) == nil {
			return fmt.Errorf("variant %s does not belong to union %s", arm.Pattern.Variant, u.Name)
		}
		covered[arm.Pattern.Variant] = true
	}
	var missing []string
	for _, v := range u.Variants {
		if !covered[v.Name] {
			missing = append(missing, v.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("non-exhaustive match on union %s. Missing variants: %s",
			u.Name, strings.Join(missing, ", "))
	}
	return nil
}
