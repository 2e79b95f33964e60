package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mna/mainer"
)

const binName = "seqc"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command>|<script.seq> [<path>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> [<path>...]
       %[1]s <script.seq> [<arg>...]
       %[1]s -h|--help
       %[1]s -v|--version

Compiler and all-in-one tool for the Seq programming language.

The <command> can be one of:
       compile                   Compile a .seq source file to a native
                                 executable.
       check                     Type-check a .seq source file and print
                                 the inferred word effects.
       test                      Discover test-*.seq files, compile and
                                 run them, and report results.

Invoking %[1]s with a .seq file runs it in script mode: the compiled
binary is cached under $XDG_CACHE_HOME/seq and re-run on a cache hit.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       -o --output <path>        Output executable path (compile).
       --O0 --O1 --O2 --O3       Optimization level (default --O3).
       --instrument              Emit per-word execution counters.
       --ffi <manifest.toml>     FFI manifest; comma-separate to repeat.
       --external-lib <name>     Extra library name passed to the linker.
       --library-path <dir>      Extra library search path.
`, binName)
)

// Cmd is the seqc command-line tool.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	Output      string `flag:"o,output"`
	Opt0        bool   `flag:"O0"`
	Opt1        bool   `flag:"O1"`
	Opt2        bool   `flag:"O2"`
	Opt3        bool   `flag:"O3"`
	Instrument  bool   `flag:"instrument"`
	FFI         string `flag:"ffi"`
	ExternalLib string `flag:"external-lib"`
	LibraryPath string `flag:"library-path"`

	args  []string
	flags map[string]bool
	cmdFn func(context.Context, mainer.Stdio, []string) error
}

// SetArgs implements mainer.ArgsSetter.
func (c *Cmd) SetArgs(args []string) {
	c.args = args
}

// SetFlags implements mainer.FlagsSetter.
func (c *Cmd) SetFlags(flags map[string]bool) {
	c.flags = flags
}

// Validate implements mainer.Validator.
func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}

	if len(c.args) == 0 {
		return errors.New("no command or script specified")
	}

	cmdName := c.args[0]

	// script mode: seqc <script.seq> [args...]
	if strings.HasSuffix(cmdName, ".seq") {
		c.cmdFn = c.runScript
		return nil
	}

	commands := buildCmds(c)
	c.cmdFn = commands[cmdName]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", cmdName)
	}
	// commands receive the args after the command name
	c.args = c.args[1:]

	if cmdName == "compile" || cmdName == "check" {
		if len(c.args) == 0 {
			return fmt.Errorf("%s: a source file must be provided", cmdName)
		}
	}
	return nil
}

// Main is the tool's entry point.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success

	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args); err != nil {
		// each command prints its own diagnostics; script mode surfaces the
		// script's own exit code
		var ec *exitCodeError
		if errors.As(err, &ec) {
			return mainer.ExitCode(ec.code)
		}
		return mainer.Failure
	}
	return mainer.Success
}

// exitCodeError propagates a specific process exit code to Main.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit code %d", e.code)
}

func (e *exitCodeError) Unwrap() error { return e.err }

// valid commands are methods that take a context, a mainer.Stdio and a
// slice of strings as input, and return an error.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type

		// must take 4 parameters (including receiver) and return 1
		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}
		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
