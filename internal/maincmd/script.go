package maincmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mna/mainer"
	"golang.org/x/exp/slices"

	"github.com/seqlang/seq/lang/compiler"
	"github.com/seqlang/seq/stdlib"
)

// cacheDir returns $XDG_CACHE_HOME/seq or ~/.cache/seq.
func cacheDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" && filepath.IsAbs(xdg) {
		return filepath.Join(xdg, "seq"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine cache directory: %w", err)
	}
	return filepath.Join(home, ".cache", "seq"), nil
}

// computeCacheKey hashes the main source bytes, the sorted included file
// bytes and the sorted embedded stdlib module bytes into a SHA-256 hex
// key.
func computeCacheKey(sourcePath string, sourceFiles, embeddedModules []string) (string, error) {
	h := sha256.New()

	main, err := os.ReadFile(sourcePath)
	if err != nil {
		return "", fmt.Errorf("cannot read source file: %w", err)
	}
	h.Write(main)

	files := slices.Clone(sourceFiles)
	slices.Sort(files)
	for _, f := range files {
		if f == sourcePath {
			continue // the main file is already hashed
		}
		b, err := os.ReadFile(f)
		if err != nil {
			return "", fmt.Errorf("cannot read included file %s: %w", f, err)
		}
		h.Write(b)
	}

	mods := slices.Clone(embeddedModules)
	slices.Sort(mods)
	for _, m := range mods {
		if src, ok := stdlib.Get(m); ok {
			h.Write([]byte(src))
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// stripShebang replaces a leading #! line with a comment of the same
// length so line numbers in diagnostics stay correct.
func stripShebang(src []byte) []byte {
	if !strings.HasPrefix(string(src), "#!") {
		return src
	}
	nl := strings.IndexByte(string(src), '\n')
	if nl < 0 {
		return []byte("#")
	}
	out := make([]byte, len(src))
	copy(out, src)
	out[0] = '#'
	for i := 1; i < nl; i++ {
		out[i] = ' '
	}
	return out
}

// runScript implements script mode: compile with -O0 into the cache keyed
// by the source and include contents, then exec the cached binary with the
// remaining arguments.
func (c *Cmd) runScript(ctx context.Context, stdio mainer.Stdio, args []string) error {
	scriptPath, scriptArgs := args[0], args[1:]

	bin, err := c.prepareScript(ctx, stdio, scriptPath)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return &exitCodeError{code: 1, err: err}
	}

	cmd := exec.CommandContext(ctx, bin, scriptArgs...)
	cmd.Stdout = stdio.Stdout
	cmd.Stderr = stdio.Stderr
	cmd.Stdin = stdio.Stdin
	if err := cmd.Run(); err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return &exitCodeError{code: ee.ExitCode(), err: err}
		}
		return &exitCodeError{code: 2, err: err}
	}
	return nil
}

// prepareScript returns the cached binary for the script, compiling it on
// a cache miss. Temporary artifacts carry the pid so parallel compiles of
// the same script cannot collide; the loser of the rename race removes its
// temp file.
func (c *Cmd) prepareScript(ctx context.Context, stdio mainer.Stdio, scriptPath string) (string, error) {
	abs, err := filepath.Abs(scriptPath)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("cannot read script %s: %w", scriptPath, err)
	}
	src := stripShebang(raw)

	res, err := resolveSource(abs, src)
	if err != nil {
		return "", err
	}

	dir, err := cacheDir()
	if err != nil {
		return "", err
	}
	key, err := computeCacheKey(abs, res.sourceFiles, res.embeddedModules)
	if err != nil {
		return "", err
	}
	cached := filepath.Join(dir, key)
	if _, err := os.Stat(cached); err == nil {
		return cached, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create cache directory: %w", err)
	}

	bindings, err := c.loadFFI()
	if err != nil {
		return "", err
	}
	chk, err := c.checkProgram(res, bindings)
	if err != nil {
		return "", err
	}
	gen := compiler.New(res.prog, chk.QuotationTypes, compiler.Options{
		Instrument: c.Instrument,
		FFI:        bindings,
	})
	ir, err := gen.Generate(res.prog)
	if err != nil {
		return "", err
	}

	// compile with -O0 for fast turnaround, into a pid-tagged temp
	tmp := filepath.Join(dir, fmt.Sprintf("%s.%d.tmp", key, os.Getpid()))
	llPath := tmp + ".ll"
	if err := os.WriteFile(llPath, []byte(ir), 0o644); err != nil {
		return "", err
	}
	defer os.Remove(llPath)

	clangArgs := []string{"-O0", llPath, "-o", tmp}
	if c.LibraryPath != "" {
		clangArgs = append(clangArgs, "-L"+c.LibraryPath)
	}
	clangArgs = append(clangArgs, "-lseq_runtime")
	if err := runClang(ctx, clangArgs, stdio); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("compiling script failed: %w", err)
	}

	// atomic publish; if another process won the race, use its binary
	if err := os.Rename(tmp, cached); err != nil {
		os.Remove(tmp)
		if _, statErr := os.Stat(cached); statErr != nil {
			return "", err
		}
	}
	return cached, nil
}
