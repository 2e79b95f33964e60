package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPop(t *testing.T) {
	st := FromTypes(Empty{}, Int, Bool)

	rest, top, ok := Pop(st)
	require.True(t, ok)
	assert.Equal(t, Bool, top)

	rest2, top2, ok := Pop(rest)
	require.True(t, ok)
	assert.Equal(t, Int, top2)
	assert.True(t, EqualStacks(Empty{}, rest2))

	_, _, ok = Pop(rest2)
	assert.False(t, ok)
}

func TestPopRowVar(t *testing.T) {
	st := Push(RowVar{Name: "a"}, Int)
	rest, top, ok := Pop(st)
	require.True(t, ok)
	assert.Equal(t, Int, top)
	assert.True(t, EqualStacks(RowVar{Name: "a"}, rest))
}

func TestStackString(t *testing.T) {
	cases := []struct {
		st   StackType
		want string
	}{
		{Empty{}, "()"},
		{RowVar{Name: "a"}, "..a"},
		{Push(Empty{}, Int), "(Int)"},
		{FromTypes(RowVar{Name: "a"}, Int, Float), "(..a Int Float)"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.st.String())
	}
}

func TestEffectString(t *testing.T) {
	eff := NewEffect(
		Push(RowVar{Name: "a"}, Int),
		Push(RowVar{Name: "a"}, Bool),
	)
	assert.Equal(t, "( ..a Int -- ..a Bool )", eff.String())

	empty := NewEffect(Empty{}, Empty{})
	assert.Equal(t, "( -- )", empty.String())
}

func TestParseEffectBasic(t *testing.T) {
	eff, err := ParseEffect("..a Int -- ..a Bool")
	require.NoError(t, err)
	assert.Equal(t, "( ..a Int -- ..a Bool )", eff.String())

	// surrounding parens are accepted
	eff2, err := ParseEffect("( ..a Int -- ..a Bool )")
	require.NoError(t, err)
	assert.True(t, EqualStacks(eff.Inputs, eff2.Inputs))
	assert.True(t, EqualStacks(eff.Outputs, eff2.Outputs))
}

func TestParseEffectEmpty(t *testing.T) {
	eff, err := ParseEffect("--")
	require.NoError(t, err)
	assert.True(t, EqualStacks(Empty{}, eff.Inputs))
	assert.True(t, EqualStacks(Empty{}, eff.Outputs))
}

func TestParseEffectQuotationType(t *testing.T) {
	eff, err := ParseEffect("Int [ ..q -- ..q Int ] -- Int")
	require.NoError(t, err)

	_, top, ok := Pop(eff.Inputs)
	require.True(t, ok)
	q, ok := top.(*Quotation)
	require.True(t, ok)
	require.NotNil(t, q.Effect)
	assert.Equal(t, "( ..q -- ..q Int )", q.Effect.String())
}

func TestParseEffectBareClosureAndQuotation(t *testing.T) {
	eff, err := ParseEffect("Int -- Closure")
	require.NoError(t, err)
	_, top, ok := Pop(eff.Outputs)
	require.True(t, ok)
	cl, ok := top.(*Closure)
	require.True(t, ok)
	assert.Nil(t, cl.Effect)

	eff, err = ParseEffect("Quotation -- ")
	require.NoError(t, err)
	_, top, ok = Pop(eff.Inputs)
	require.True(t, ok)
	q, ok := top.(*Quotation)
	require.True(t, ok)
	assert.Nil(t, q.Effect)
}

func TestParseEffectNames(t *testing.T) {
	eff, err := ParseEffect("T Shape -- T")
	require.NoError(t, err)

	rest, top, ok := Pop(eff.Inputs)
	require.True(t, ok)
	assert.Equal(t, Union{Name: "Shape"}, top)
	_, under, ok := Pop(rest)
	require.True(t, ok)
	assert.Equal(t, Var{Name: "T"}, under)
}

func TestParseEffectErrors(t *testing.T) {
	_, err := ParseEffect("Int Int")
	assert.Error(t, err, "missing separator")

	_, err = ParseEffect("Int ..a -- Int")
	assert.Error(t, err, "row variable not at bottom")

	_, err = ParseEffect("..a [ ..q -- ..q -- Int")
	assert.Error(t, err, "unclosed quotation type")

	_, err = ParseEffect("..a 1nt -- ..a")
	assert.Error(t, err, "invalid type name")
}

func TestSymbolIsString(t *testing.T) {
	eff, err := ParseEffect("Symbol -- String")
	require.NoError(t, err)
	_, in, _ := Pop(eff.Inputs)
	_, out, _ := Pop(eff.Outputs)
	assert.Equal(t, in, out)
}
