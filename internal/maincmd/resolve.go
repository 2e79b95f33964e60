package maincmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/seqlang/seq/lang/ast"
	"github.com/seqlang/seq/lang/parser"
	"github.com/seqlang/seq/stdlib"
)

// resolveResult is the outcome of include resolution: the merged program
// plus the inputs that participate in the script-cache key.
type resolveResult struct {
	prog *ast.Program
	// sourceFiles are the filesystem files read, main file included.
	sourceFiles []string
	// embeddedModules are the std: modules merged in.
	embeddedModules []string
}

// resolveFile parses the main source file and recursively resolves its
// includes, merging everything into one program. Include cycles are a
// validation error.
func resolveFile(path string) (*resolveResult, error) {
	r := &resolver{
		visited: make(map[string]bool),
		active:  make(map[string]bool),
	}
	prog, err := r.loadFile(path)
	if err != nil {
		return nil, err
	}
	ast.RenumberQuotations(prog)
	return &resolveResult{
		prog:            prog,
		sourceFiles:     r.files,
		embeddedModules: r.modules,
	}, nil
}

// resolveSource is resolveFile for in-memory source (script mode strips
// the shebang first).
func resolveSource(path string, src []byte) (*resolveResult, error) {
	r := &resolver{
		visited: make(map[string]bool),
		active:  make(map[string]bool),
	}
	prog, err := r.load(path, src)
	if err != nil {
		return nil, err
	}
	ast.RenumberQuotations(prog)
	return &resolveResult{
		prog:            prog,
		sourceFiles:     append([]string{path}, r.files...),
		embeddedModules: r.modules,
	}, nil
}

type resolver struct {
	visited map[string]bool // canonical path or std:name, already merged
	active  map[string]bool // include chain, for cycle detection
	files   []string
	modules []string
}

func (r *resolver) loadFile(path string) (*ast.Program, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	r.files = append(r.files, abs)
	return r.load(abs, src)
}

func (r *resolver) load(path string, src []byte) (*ast.Program, error) {
	if r.active[path] {
		return nil, fmt.Errorf("include cycle through %s", path)
	}
	r.active[path] = true
	defer delete(r.active, path)
	r.visited[path] = true

	prog, err := parser.Parse(path, src)
	if err != nil {
		return nil, err
	}

	merged := &ast.Program{Unions: prog.Unions, Words: prog.Words}
	for _, inc := range prog.Includes {
		sub, err := r.resolveInclude(path, inc)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			continue // already merged elsewhere
		}
		merged.Unions = append(merged.Unions, sub.Unions...)
		merged.Words = append(merged.Words, sub.Words...)
	}
	return merged, nil
}

func (r *resolver) resolveInclude(from string, inc ast.Include) (*ast.Program, error) {
	if name, ok := strings.CutPrefix(inc.Path, "std:"); ok {
		key := "std:" + name
		if r.active[key] {
			return nil, fmt.Errorf("include cycle through %s", key)
		}
		if r.visited[key] {
			return nil, nil
		}
		src, ok := stdlib.Get(name)
		if !ok {
			return nil, fmt.Errorf("%s: unknown stdlib module %s", from, name)
		}
		r.modules = append(r.modules, name)
		return r.load(key, []byte(src))
	}

	target := inc.Path
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(from), target)
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, err
	}
	if r.active[abs] {
		return nil, fmt.Errorf("include cycle through %s", inc.Path)
	}
	if r.visited[abs] {
		return nil, nil
	}
	return r.loadFile(abs)
}
