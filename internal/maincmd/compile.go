package maincmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mna/mainer"
	"golang.org/x/exp/slices"

	"github.com/seqlang/seq/lang/checker"
	"github.com/seqlang/seq/lang/compiler"
	"github.com/seqlang/seq/lang/ffi"
)

// runClang invokes the system clang; replaced in tests.
var runClang = func(ctx context.Context, args []string, stdio mainer.Stdio) error {
	cmd := exec.CommandContext(ctx, "clang", args...)
	cmd.Stdout = stdio.Stdout
	cmd.Stderr = stdio.Stderr
	return cmd.Run()
}

func (c *Cmd) optLevel() string {
	switch {
	case c.Opt0:
		return "-O0"
	case c.Opt1:
		return "-O1"
	case c.Opt2:
		return "-O2"
	default:
		return "-O3"
	}
}

// loadFFI loads the manifests named by the --ffi flag (comma-separated).
func (c *Cmd) loadFFI() (*ffi.Bindings, error) {
	if c.FFI == "" {
		return nil, nil
	}
	bindings := ffi.NewBindings()
	for _, path := range strings.Split(c.FFI, ",") {
		if err := bindings.LoadFile(strings.TrimSpace(path)); err != nil {
			return nil, err
		}
	}
	return bindings, nil
}

// buildIR runs the front half of the pipeline for one source file:
// parse, resolve includes, check, generate IR.
func (c *Cmd) buildIR(path string) (ir string, res *resolveResult, err error) {
	res, err = resolveFile(path)
	if err != nil {
		return "", nil, err
	}

	bindings, err := c.loadFFI()
	if err != nil {
		return "", nil, err
	}

	chk, err := c.checkProgram(res, bindings)
	if err != nil {
		return "", nil, err
	}

	gen := compiler.New(res.prog, chk.QuotationTypes, compiler.Options{
		Instrument: c.Instrument,
		FFI:        bindings,
	})
	ir, err = gen.Generate(res.prog)
	if err != nil {
		return "", nil, err
	}
	return ir, res, nil
}

func (c *Cmd) checkProgram(res *resolveResult, bindings *ffi.Bindings) (*checker.Result, error) {
	if bindings == nil {
		return checker.Check(res.prog)
	}
	return checker.CheckWithExternals(res.prog, bindings.Effects())
}

// Compile implements the compile command: source to native executable.
func (c *Cmd) Compile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	src := args[0]
	out := c.Output
	if out == "" {
		out = strings.TrimSuffix(filepath.Base(src), ".seq")
	}

	ir, _, err := c.buildIR(src)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return err
	}
	return c.link(ctx, stdio, ir, out)
}

// link writes the IR next to the output and invokes clang on it.
func (c *Cmd) link(ctx context.Context, stdio mainer.Stdio, ir, out string) error {
	llPath := out + ".ll"
	if err := os.WriteFile(llPath, []byte(ir), 0o644); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return err
	}
	defer os.Remove(llPath)

	clangArgs := []string{c.optLevel(), llPath, "-o", out}
	if c.LibraryPath != "" {
		clangArgs = append(clangArgs, "-L"+c.LibraryPath)
	}
	clangArgs = append(clangArgs, "-lseq_runtime")
	if c.ExternalLib != "" {
		clangArgs = append(clangArgs, "-l"+c.ExternalLib)
	}
	if bindings, err := c.loadFFI(); err == nil && bindings != nil {
		for _, link := range bindings.LinkFlags() {
			clangArgs = append(clangArgs, "-l"+link)
		}
	}
	if err := runClang(ctx, clangArgs, stdio); err != nil {
		fmt.Fprintf(stdio.Stderr, "linking failed: %s\n", err)
		return err
	}
	return nil
}

// Check implements the check command: analyze only, print word effects.
func (c *Cmd) Check(ctx context.Context, stdio mainer.Stdio, args []string) error {
	res, err := resolveFile(args[0])
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return err
	}
	bindings, err := c.loadFFI()
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return err
	}
	chk, err := c.checkProgram(res, bindings)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return err
	}

	names := make([]string, 0, len(chk.WordEffects))
	for name := range chk.WordEffects {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(stdio.Stdout, ": %s %s\n", name, chk.WordEffects[name])
	}
	for _, w := range chk.Warnings {
		fmt.Fprintf(stdio.Stderr, "warning: %s\n", w.Msg)
	}
	return nil
}
