package parser_test

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqlang/seq/internal/filetest"
	"github.com/seqlang/seq/lang/ast"
	"github.com/seqlang/seq/lang/parser"
)

var testUpdateParserTests = flag.Bool("test.update-parser-tests", false, "If set, replace expected parser test results with actual results.")

func TestParserGolden(t *testing.T) {
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".seq") {
		t.Run(fi.Name(), func(t *testing.T) {
			b, err := os.ReadFile(filepath.Join(srcDir, fi.Name()))
			require.NoError(t, err)

			prog, err := parser.Parse(fi.Name(), b)
			require.NoError(t, err)

			var buf bytes.Buffer
			ast.Fprint(&buf, prog)
			filetest.DiffOutput(t, fi, buf.String(), resultDir, testUpdateParserTests)
		})
	}
}

func TestParseUnion(t *testing.T) {
	src := `union Shape { Circle { r: Int } Square { s: Int } Point }`
	prog, err := parser.Parse("test.seq", []byte(src))
	require.NoError(t, err)

	require.Len(t, prog.Unions, 1)
	u := prog.Unions[0]
	assert.Equal(t, "Shape", u.Name)
	require.Len(t, u.Variants, 3)

	assert.Equal(t, 0, u.Variants[0].Tag)
	assert.Equal(t, 1, u.Variants[1].Tag)
	assert.Equal(t, 2, u.Variants[2].Tag)

	require.Len(t, u.Variants[0].Fields, 1)
	assert.Equal(t, "r", u.Variants[0].Fields[0].Name)
	assert.Equal(t, "Int", u.Variants[0].Fields[0].TypeName)
	assert.Empty(t, u.Variants[2].Fields)
}

func TestParseMatchBindings(t *testing.T) {
	src := `
union Pair { P { a: Int b: Int } }
: f ( Pair -- Int ) match { P { a b -> add } } ;
`
	prog, err := parser.Parse("test.seq", []byte(src))
	require.NoError(t, err)

	m := prog.Words[0].Body[0].(*ast.Match)
	require.Len(t, m.Arms, 1)
	assert.Equal(t, "P", m.Arms[0].Pattern.Variant)
	assert.Equal(t, []string{"a", "b"}, m.Arms[0].Pattern.Bindings)
	require.Len(t, m.Arms[0].Body, 1)
}

func TestParseMatchBareArm(t *testing.T) {
	src := `
union Shape { Circle { r: Int } }
: f ( Shape -- Int ) match { Circle { dup multiply } } ;
`
	prog, err := parser.Parse("test.seq", []byte(src))
	require.NoError(t, err)

	m := prog.Words[0].Body[0].(*ast.Match)
	assert.Nil(t, m.Arms[0].Pattern.Bindings)
	assert.False(t, m.Arms[0].Pattern.HasBindings())
	assert.Len(t, m.Arms[0].Body, 2)
}

func TestParseQuotationIDs(t *testing.T) {
	src := `: f ( -- ) [ 1 ] drop [ 2 ] drop ;`
	prog, err := parser.Parse("test.seq", []byte(src))
	require.NoError(t, err)

	q0 := prog.Words[0].Body[0].(*ast.Quotation)
	q1 := prog.Words[0].Body[2].(*ast.Quotation)
	assert.NotEqual(t, q0.ID, q1.ID)
}

func TestParseIncludes(t *testing.T) {
	src := `
include "util.seq"
include std:prelude
: main ( -- ) ;
`
	prog, err := parser.Parse("test.seq", []byte(src))
	require.NoError(t, err)
	require.Len(t, prog.Includes, 2)
	assert.Equal(t, "util.seq", prog.Includes[0].Path)
	assert.Equal(t, "std:prelude", prog.Includes[1].Path)
}

func TestParseNestedQuotations(t *testing.T) {
	src := `: f ( -- ) [ [ 1 ] call ] call ;`
	prog, err := parser.Parse("test.seq", []byte(src))
	require.NoError(t, err)

	outer := prog.Words[0].Body[0].(*ast.Quotation)
	inner := outer.Body[0].(*ast.Quotation)
	assert.NotEqual(t, outer.ID, inner.ID)
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		`: main ( -- ) "unclosed ;`,
		`: main ( -- `,
		`union { }`,
		`: main ( -- ) match { } ;`,
	}
	for _, src := range cases {
		_, err := parser.Parse("test.seq", []byte(src))
		assert.Error(t, err, "source: %s", src)
	}
}

func TestRenumberQuotations(t *testing.T) {
	src := `: f ( -- ) [ 1 ] drop ;`
	p1, err := parser.Parse("a.seq", []byte(src))
	require.NoError(t, err)
	p2, err := parser.Parse("b.seq", []byte(src))
	require.NoError(t, err)

	merged := &ast.Program{Words: append(p1.Words, p2.Words...)}
	merged.Words[1].Name = "g"
	ast.RenumberQuotations(merged)

	ids := make(map[int]bool)
	for _, w := range merged.Words {
		ast.Walk(w.Body, func(s ast.Statement) {
			if q, ok := s.(*ast.Quotation); ok {
				assert.False(t, ids[q.ID], "duplicate quotation id after renumbering")
				ids[q.ID] = true
			}
		})
	}
}
