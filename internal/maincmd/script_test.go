package maincmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestComputeCacheKeyStable(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "main.seq", `: main ( -- ) "hi" write_line ;`)

	k1, err := computeCacheKey(src, []string{src}, nil)
	require.NoError(t, err)
	k2, err := computeCacheKey(src, []string{src}, nil)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64) // sha-256 hex
}

func TestComputeCacheKeyChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "main.seq", `: main ( -- ) "hi" write_line ;`)
	k1, err := computeCacheKey(src, []string{src}, nil)
	require.NoError(t, err)

	writeFile(t, dir, "main.seq", `: main ( -- ) "bye" write_line ;`)
	k2, err := computeCacheKey(src, []string{src}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestComputeCacheKeyIncludesDeps(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "main.seq", `include "util.seq"`+"\n"+`: main ( -- ) ;`)
	util := writeFile(t, dir, "util.seq", `: helper ( -- ) ;`)

	k1, err := computeCacheKey(src, []string{src, util}, nil)
	require.NoError(t, err)

	writeFile(t, dir, "util.seq", `: helper ( -- ) yield ;`)
	k2, err := computeCacheKey(src, []string{src, util}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2, "a changed include must change the cache key")

	// the embedded stdlib participates in the key as well
	k3, err := computeCacheKey(src, []string{src}, []string{"prelude"})
	require.NoError(t, err)
	k4, err := computeCacheKey(src, []string{src}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, k3, k4)
}

func TestStripShebang(t *testing.T) {
	src := []byte("#!/usr/bin/env seqc\n: main ( -- ) ;\n")
	out := stripShebang(src)

	assert.Equal(t, len(src), len(out), "length preserved so line numbers stay correct")
	assert.Equal(t, byte('#'), out[0])
	assert.NotContains(t, string(out), "!/usr/bin")
	assert.Contains(t, string(out), ": main ( -- ) ;")

	// no shebang: unchanged
	plain := []byte(": main ( -- ) ;")
	assert.Equal(t, plain, stripShebang(plain))

	// shebang only, no newline
	assert.Equal(t, []byte("#"), stripShebang([]byte("#!seqc")))
}

func TestCacheDirRespectsXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-test")
	dir, err := cacheDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg-test", "seq"), dir)

	// relative XDG_CACHE_HOME is ignored per the spec
	t.Setenv("XDG_CACHE_HOME", "relative/path")
	dir, err = cacheDir()
	require.NoError(t, err)
	assert.Contains(t, dir, filepath.Join(".cache", "seq"))
}

func TestResolveIncludesAndCycles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "util.seq", `: helper ( -- ) ;`)
	main := writeFile(t, dir, "main.seq", `include "util.seq"`+"\n"+`: main ( -- ) helper ;`)

	res, err := resolveFile(main)
	require.NoError(t, err)
	assert.NotNil(t, res.prog.FindWord("helper"))
	assert.NotNil(t, res.prog.FindWord("main"))
	assert.Len(t, res.sourceFiles, 2)

	// cycle: a includes b includes a
	writeFile(t, dir, "a.seq", `include "b.seq"`+"\n"+`: a ( -- ) ;`)
	writeFile(t, dir, "b.seq", `include "a.seq"`+"\n"+`: b ( -- ) ;`)
	_, err = resolveFile(filepath.Join(dir, "a.seq"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestResolveStdlibInclude(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.seq", "include std:prelude\n: main ( -- ) 1 2 max drop ;")

	res, err := resolveFile(main)
	require.NoError(t, err)
	assert.NotNil(t, res.prog.FindWord("max"))
	assert.Equal(t, []string{"prelude"}, res.embeddedModules)
}

func TestResolveDiamondIncludeMergesOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.seq", `: base ( -- ) ;`)
	writeFile(t, dir, "l.seq", `include "base.seq"`+"\n"+`: l ( -- ) ;`)
	writeFile(t, dir, "r.seq", `include "base.seq"`+"\n"+`: r ( -- ) ;`)
	main := writeFile(t, dir, "main.seq",
		`include "l.seq"`+"\n"+`include "r.seq"`+"\n"+`: main ( -- ) ;`)

	res, err := resolveFile(main)
	require.NoError(t, err)

	count := 0
	for _, w := range res.prog.Words {
		if w.Name == "base" {
			count++
		}
	}
	assert.Equal(t, 1, count, "diamond include must merge base once")
}
