package maincmd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mna/mainer"

	"github.com/seqlang/seq/lang/ast"
	"github.com/seqlang/seq/lang/checker"
	"github.com/seqlang/seq/lang/compiler"
)

// Test implements the test command: discover test-*.seq files under the
// given paths (default "."), assemble a wrapper main that calls each
// test-* word, compile once per file, run, and parse "name ... ok|FAILED"
// from stdout.
func (c *Cmd) Test(ctx context.Context, stdio mainer.Stdio, args []string) error {
	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}

	var files []string
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "%s\n", err)
			return err
		}
		if !fi.IsDir() {
			files = append(files, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "test-*.seq"))
		if err != nil {
			return err
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		fmt.Fprintln(stdio.Stdout, "no test files found")
		return nil
	}

	var failed int
	for _, file := range files {
		ok, err := c.runTestFile(ctx, stdio, file)
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "%s: %s\n", file, err)
			failed++
			continue
		}
		if !ok {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d test file(s) failed", failed)
	}
	return nil
}

// runTestFile compiles one test file with a synthesized main and runs it.
func (c *Cmd) runTestFile(ctx context.Context, stdio mainer.Stdio, file string) (bool, error) {
	res, err := resolveFile(file)
	if err != nil {
		return false, err
	}

	// collect test-* words and synthesize a main that runs each with its
	// "name ... ok|FAILED" bookkeeping
	var testWords []string
	for _, w := range res.prog.Words {
		if strings.HasPrefix(w.Name, "test-") {
			testWords = append(testWords, w.Name)
		}
	}
	if len(testWords) == 0 {
		fmt.Fprintf(stdio.Stdout, "%s: no test words\n", file)
		return true, nil
	}
	if res.prog.FindWord("main") == nil {
		res.prog.Words = append(res.prog.Words, makeTestMain(testWords))
	}

	chk, err := checker.Check(res.prog)
	if err != nil {
		return false, err
	}
	gen := compiler.New(res.prog, chk.QuotationTypes, compiler.Options{Instrument: c.Instrument})
	ir, err := gen.Generate(res.prog)
	if err != nil {
		return false, err
	}

	bin := filepath.Join(os.TempDir(), fmt.Sprintf("seq-test-%d-%s", os.Getpid(),
		strings.TrimSuffix(filepath.Base(file), ".seq")))
	defer os.Remove(bin)
	if err := c.link(ctx, stdio, ir, bin); err != nil {
		return false, err
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, bin)
	cmd.Stdout = &out
	cmd.Stderr = stdio.Stderr
	runErr := cmd.Run()

	ok := parseTestOutput(stdio, file, out.Bytes())
	if runErr != nil {
		if _, isExit := runErr.(*exec.ExitError); isExit {
			// the wrapper main exits 1 through os.exit when any test
			// failed; the FAILED lines have already been parsed
			return false, nil
		}
		return false, runErr
	}
	return ok, nil
}

// makeTestMain synthesizes the wrapper main that drives every test word
// through the test framework's protocol:
//
//	"test-x" test.init test-x test.finish ...
//	test.has-failures if 1 os.exit then
//
// test.finish prints the parseable "name ... ok|FAILED" status line from
// the assertions the test word registered, so a logically-wrong test fails
// without crashing the binary.
func makeTestMain(testWords []string) *ast.WordDef {
	var body []ast.Statement
	for _, name := range testWords {
		body = append(body,
			&ast.StringLit{Value: name},
			&ast.WordCall{Name: "test.init"},
			&ast.WordCall{Name: name},
			&ast.WordCall{Name: "test.finish"},
		)
	}
	body = append(body,
		&ast.WordCall{Name: "test.has-failures"},
		&ast.If{Then: []ast.Statement{
			&ast.IntLit{Value: 1},
			&ast.WordCall{Name: "os.exit"},
		}},
	)
	return &ast.WordDef{Name: "main", Effect: "--", Body: body}
}

// parseTestOutput scans "name ... ok|FAILED" lines and reports them.
func parseTestOutput(stdio mainer.Stdio, file string, out []byte) bool {
	ok := true
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasSuffix(line, " ... ok"):
			fmt.Fprintf(stdio.Stdout, "%s: %s\n", file, line)
		case strings.HasSuffix(line, " ... FAILED"):
			fmt.Fprintf(stdio.Stdout, "%s: %s\n", file, line)
			ok = false
		default:
			fmt.Fprintln(stdio.Stdout, line)
		}
	}
	return ok
}
