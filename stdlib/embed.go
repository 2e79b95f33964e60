// Package stdlib embeds the Seq standard library modules shipped with the
// compiler. A module is included from source as `include std:<name>` and
// participates in the script-cache key.
package stdlib

import (
	"embed"
	"sort"
	"strings"
)

//go:embed *.seq
var modules embed.FS

// Get returns the source of the named module ("prelude", not
// "prelude.seq"), and whether it exists.
func Get(name string) (string, bool) {
	b, err := modules.ReadFile(name + ".seq")
	if err != nil {
		return "", false
	}
	return string(b), true
}

// Names lists the embedded module names, sorted.
func Names() []string {
	entries, err := modules.ReadDir(".")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".seq"))
	}
	sort.Strings(names)
	return names
}
