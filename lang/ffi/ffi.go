// Package ffi loads and validates TOML manifests describing foreign C
// functions callable from Seq code. FFI is purely a compiler and linker
// concern; the runtime stays free of external dependencies.
//
// A manifest looks like:
//
//	[[library]]
//	name = "readline"
//	link = "readline"
//
//	[[library.function]]
//	c_name       = "readline"
//	seq_name     = "readline"
//	stack_effect = "( String -- String )"
//
//	  [[library.function.args]]
//	  type = "string"
//	  pass = "c_string"
//
//	  [library.function.return]
//	  type      = "string"
//	  ownership = "caller_frees"
package ffi

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"

	"github.com/seqlang/seq/lang/types"
)

// ArgType is the C-side type of an argument or return value.
type ArgType string

// The argument and return types.
const (
	Int      ArgType = "int"
	String   ArgType = "string"
	Ptr      ArgType = "ptr"
	Void     ArgType = "void"
	Callback ArgType = "callback"
)

// PassMode describes how an argument is passed to C.
type PassMode string

// The passing modes.
const (
	CString PassMode = "c_string" // Seq String to null-terminated char*
	PassPtr PassMode = "ptr"      // raw pointer value
	PassInt PassMode = "int"      // C integer
	ByRef   PassMode = "by_ref"   // pointer to storage, for out parameters
)

// Ownership annotates who frees a returned allocation. The generator
// trusts it for convention only, never for memory safety.
type Ownership string

// The ownership annotations.
const (
	CallerFrees Ownership = "caller_frees"
	Static      Ownership = "static"
	Borrowed    Ownership = "borrowed"
)

// Arg is one argument of a bound function.
type Arg struct {
	Type     ArgType `toml:"type"`
	Pass     PassMode `toml:"pass"`
	Value    string   `toml:"value"`    // fixed value such as "null" or "0"
	Callback string   `toml:"callback"` // callback name when Type is Callback
}

// Return is the return specification of a bound function.
type Return struct {
	Type      ArgType   `toml:"type"`
	Ownership Ownership `toml:"ownership"`
}

// Function is one bound C function.
type Function struct {
	CName       string  `toml:"c_name"`
	SeqName     string  `toml:"seq_name"`
	StackEffect string  `toml:"stack_effect"`
	Args        []Arg   `toml:"args"`
	Return      *Return `toml:"return"`

	// Effect is the parsed StackEffect, filled during validation.
	Effect *types.Effect `toml:"-"`
}

// CallbackDef is a callback type definition.
type CallbackDef struct {
	Name      string  `toml:"name"`
	Args      []Arg   `toml:"args"`
	Return    *Return `toml:"return"`
	SeqEffect string  `toml:"seq_effect"`
}

// Library is one [[library]] entry of a manifest.
type Library struct {
	Name      string        `toml:"name"`
	Link      string        `toml:"link"`
	Callbacks []CallbackDef `toml:"callback"`
	Functions []Function    `toml:"function"`
}

type manifest struct {
	Libraries []Library `toml:"library"`
}

// Bindings is the validated union of one or more manifests.
type Bindings struct {
	Libraries []Library
	Functions map[string]*Function // keyed by seq name
}

// NewBindings returns an empty binding set.
func NewBindings() *Bindings {
	return &Bindings{Functions: make(map[string]*Function)}
}

// IsFunction reports whether name is a bound FFI function.
func (b *Bindings) IsFunction(name string) bool {
	if b == nil {
		return false
	}
	_, ok := b.Functions[name]
	return ok
}

// LinkFlags returns the -l linker flag payloads of every library.
func (b *Bindings) LinkFlags() []string {
	return lo.Map(b.Libraries, func(l Library, _ int) string { return l.Link })
}

// Effects returns the seq name -> parsed effect table for the checker.
func (b *Bindings) Effects() map[string]*types.Effect {
	effects := make(map[string]*types.Effect, len(b.Functions))
	for name, fn := range b.Functions {
		effects[name] = fn.Effect
	}
	return effects
}

// linkFlagRe restricts the linker flag payload so a manifest cannot inject
// arbitrary linker options.
var linkFlagRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// LoadFile reads a manifest file and merges it into b.
func (b *Bindings) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ffi manifest %s: %w", path, err)
	}
	if err := b.Load(data); err != nil {
		return fmt.Errorf("ffi manifest %s: %w", path, err)
	}
	return nil
}

// Load parses and validates a manifest and merges it into b.
func (b *Bindings) Load(data []byte) error {
	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return err
	}
	for i := range m.Libraries {
		lib := &m.Libraries[i]
		if err := validateLibrary(lib); err != nil {
			return err
		}
		b.Libraries = append(b.Libraries, *lib)
		for j := range lib.Functions {
			fn := &lib.Functions[j]
			if _, dup := b.Functions[fn.SeqName]; dup {
				return fmt.Errorf("library %s: duplicate ffi function %s", lib.Name, fn.SeqName)
			}
			b.Functions[fn.SeqName] = fn
		}
	}
	return nil
}

func validateLibrary(lib *Library) error {
	if lib.Name == "" {
		return fmt.Errorf("library with empty name")
	}
	if lib.Link == "" || !linkFlagRe.MatchString(lib.Link) {
		return fmt.Errorf("library %s: invalid link flag %q", lib.Name, lib.Link)
	}

	callbackNames := lo.SliceToMap(lib.Callbacks, func(cb CallbackDef) (string, bool) {
		return cb.Name, true
	})

	for i := range lib.Functions {
		fn := &lib.Functions[i]
		if fn.CName == "" || fn.SeqName == "" {
			return fmt.Errorf("library %s: function with empty c_name or seq_name", lib.Name)
		}
		eff, err := types.ParseEffect(fn.StackEffect)
		if err != nil {
			return fmt.Errorf("library %s: function %s: %w", lib.Name, fn.SeqName, err)
		}
		fn.Effect = eff

		for ai := range fn.Args {
			arg := &fn.Args[ai]
			if arg.Pass == "" {
				arg.Pass = CString
			}
			if arg.Type == Callback {
				if arg.Callback == "" {
					return fmt.Errorf("library %s: function %s: callback argument without callback name",
						lib.Name, fn.SeqName)
				}
				if !callbackNames[arg.Callback] {
					return fmt.Errorf("library %s: function %s: unknown callback %s",
						lib.Name, fn.SeqName, arg.Callback)
				}
			}
		}
		if fn.Return != nil && fn.Return.Ownership == "" {
			fn.Return.Ownership = Borrowed
		}
	}
	return nil
}
