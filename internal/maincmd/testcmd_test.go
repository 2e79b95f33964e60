package maincmd

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/mna/mainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqlang/seq/lang/ast"
	"github.com/seqlang/seq/lang/checker"
	"github.com/seqlang/seq/lang/compiler"
)

// stubClangScript replaces the clang invocation with one that writes a
// shell script as the "binary", so the run step produces the given stdout
// and exit code.
func stubClangScript(t *testing.T, stdoutLines string, exitCode int) {
	t.Helper()
	old := runClang
	runClang = func(_ context.Context, args []string, _ mainer.Stdio) error {
		for i, a := range args {
			if a == "-o" && i+1 < len(args) {
				script := "#!/bin/sh\n" + stdoutLines + "exit " + strconv.Itoa(exitCode) + "\n"
				require.NoError(t, os.WriteFile(args[i+1], []byte(script), 0o755))
			}
		}
		return nil
	}
	t.Cleanup(func() { runClang = old })
}

func TestMakeTestMainDrivesTestProtocol(t *testing.T) {
	main := makeTestMain([]string{"test-a", "test-b"})
	require.Equal(t, "main", main.Name)

	// per test word: "name" test.init name test.finish
	require.Len(t, main.Body, 2*4+2)
	for i, name := range []string{"test-a", "test-b"} {
		base := i * 4
		lit, ok := main.Body[base].(*ast.StringLit)
		require.True(t, ok)
		assert.Equal(t, name, lit.Value)
		assert.Equal(t, "test.init", main.Body[base+1].(*ast.WordCall).Name)
		assert.Equal(t, name, main.Body[base+2].(*ast.WordCall).Name)
		assert.Equal(t, "test.finish", main.Body[base+3].(*ast.WordCall).Name)
	}

	// trailer: test.has-failures if 1 os.exit then
	assert.Equal(t, "test.has-failures", main.Body[8].(*ast.WordCall).Name)
	ifStmt, ok := main.Body[9].(*ast.If)
	require.True(t, ok)
	require.Len(t, ifStmt.Then, 2)
	assert.Equal(t, int64(1), ifStmt.Then[0].(*ast.IntLit).Value)
	assert.Equal(t, "os.exit", ifStmt.Then[1].(*ast.WordCall).Name)
	assert.Nil(t, ifStmt.Else)
}

func TestSynthesizedMainCompiles(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "test-math.seq", `
: test-add ( -- ) 4 2 2 add test.assert-eq ;
: test-str ( -- ) "a" "a" test.assert-eq-str ;
`)

	res, err := resolveFile(src)
	require.NoError(t, err)
	res.prog.Words = append(res.prog.Words, makeTestMain([]string{"test-add", "test-str"}))

	chk, err := checker.Check(res.prog)
	require.NoError(t, err)

	gen := compiler.New(res.prog, chk.QuotationTypes, compiler.Options{})
	ir, err := gen.Generate(res.prog)
	require.NoError(t, err)

	for _, sym := range []string{
		"patch_seq_test_init",
		"patch_seq_test_finish",
		"patch_seq_test_has_failures",
		"patch_seq_test_assert_eq",
		"patch_seq_test_assert_eq_str",
		"patch_seq_exit",
	} {
		assert.Contains(t, ir, sym)
	}
}

func TestParseTestOutputLines(t *testing.T) {
	var stdout, stderr bytes.Buffer
	stdio := mainer.Stdio{Stdout: &stdout, Stderr: &stderr}

	ok := parseTestOutput(stdio, "f.seq", []byte("test-a ... ok\ntest-b ... ok\n"))
	assert.True(t, ok)

	ok = parseTestOutput(stdio, "f.seq", []byte("test-a ... ok\ntest-b ... FAILED\n"))
	assert.False(t, ok, "a FAILED line must fail the file")
	assert.Contains(t, stdout.String(), "f.seq: test-b ... FAILED")
}

func TestRunTestFileReportsFailure(t *testing.T) {
	stubClangScript(t, "echo \"test-add ... ok\"\necho \"test-bad ... FAILED\"\n", 1)
	dir := t.TempDir()
	file := writeFile(t, dir, "test-sample.seq", `
: test-add ( -- ) 4 2 2 add test.assert-eq ;
: test-bad ( -- ) 5 2 2 add test.assert-eq ;
`)

	var stdout, stderr bytes.Buffer
	c := &Cmd{}
	ok, err := c.runTestFile(context.Background(), mainer.Stdio{Stdout: &stdout, Stderr: &stderr}, file)
	require.NoError(t, err, "a failing test is a result, not a runner error")
	assert.False(t, ok)
	assert.Contains(t, stdout.String(), "test-add ... ok")
	assert.Contains(t, stdout.String(), "test-bad ... FAILED")
}

func TestCommandFailsOnFailingFile(t *testing.T) {
	stubClangScript(t, "echo \"test-bad ... FAILED\"\n", 1)
	dir := t.TempDir()
	writeFile(t, dir, "test-bad.seq", `: test-bad ( -- ) false test.assert ;`)

	var stdout, stderr bytes.Buffer
	c := &Cmd{}
	err := c.Test(context.Background(), mainer.Stdio{Stdout: &stdout, Stderr: &stderr}, []string{dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test file(s) failed")
}

func TestCommandPassesOnPassingFile(t *testing.T) {
	stubClangScript(t, "echo \"test-good ... ok\"\n", 0)
	dir := t.TempDir()
	writeFile(t, dir, "test-good.seq", `: test-good ( -- ) true test.assert ;`)

	var stdout, stderr bytes.Buffer
	c := &Cmd{}
	err := c.Test(context.Background(), mainer.Stdio{Stdout: &stdout, Stderr: &stderr}, []string{dir})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "test-good ... ok")
}
