package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenString(t *testing.T) {
	for tok := Token(0); tok < maxToken; tok++ {
		if tok.String() == "" {
			t.Errorf("missing string representation of token %d", tok)
		}
	}
}

func TestLookupKw(t *testing.T) {
	for tok := Token(0); tok < maxToken; tok++ {
		expect := tok >= kwStart && tok <= kwEnd
		val := LookupKw(tok.String())
		if expect {
			require.Equal(t, tok, val)
		} else {
			require.Equal(t, IDENT, val)
		}
	}
}

func TestPosRoundTrip(t *testing.T) {
	cases := [][2]int{{1, 1}, {42, 7}, {MaxLines, MaxCols}}
	for _, c := range cases {
		p := MakePos(c[0], c[1])
		l, col := p.LineCol()
		require.Equal(t, c[0], l)
		require.Equal(t, c[1], col)
		require.False(t, p.Unknown())
	}
	require.True(t, Pos(0).Unknown())
}

func TestPositionString(t *testing.T) {
	require.Equal(t, "f.seq:3:7", MakePos(3, 7).ToPosition("f.seq").String())
	require.Equal(t, "3:7", MakePos(3, 7).ToPosition("").String())
	require.Equal(t, "f.seq", Pos(0).ToPosition("f.seq").String())
	require.Equal(t, "-", Pos(0).ToPosition("").String())
}
