package token

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goGuard/internal/errs"
)

func TestCodecRandomSizes(t *testing.T) {
	c := New()

	for _, n := range []int{6, 12, 32, 60} {
		raw, err := c.Random(n)
		require.NoError(t, err)
		require.Len(t, raw, n)
		require.Len(t, Hex(raw), n*2)
	}

	_, err := c.Random(0)
	require.Error(t, err)
}

func TestCodecRandomExhaustedSource(t *testing.T) {
	c := NewWithReader(bytes.NewReader([]byte{1, 2, 3}))

	_, err := c.Random(6)
	require.Error(t, err)
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestCodecHashIsSHA256Hex(t *testing.T) {
	c := New()

	// sha256("abc")
	require.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		c.Hash([]byte("abc")),
	)
}

func TestParseSplitRoundTrip(t *testing.T) {
	c := New()
	sel, err := c.Random(6)
	require.NoError(t, err)
	tok, err := c.Random(32)
	require.NoError(t, err)

	cred := Split{Selector: Hex(sel), Token: Hex(tok)}.String()

	got, err := ParseSplit(cred)
	require.NoError(t, err)
	require.Equal(t, Hex(sel), got.Selector)

	raw, err := got.TokenBytes()
	require.NoError(t, err)
	require.Equal(t, tok, raw)
}

func TestParseSplitURLEncoded(t *testing.T) {
	got, err := ParseSplit("a1b2c3%3Ad4e5f6")
	require.NoError(t, err)
	require.Equal(t, Split{Selector: "a1b2c3", Token: "d4e5f6"}, got)
}

func TestParseSplitMalformed(t *testing.T) {
	cases := []string{
		"",
		"abcdef",
		":abcd",
		"abcd:",
		"zz:abcd",
		"abc:abcd",
		"%zz",
	}
	for _, in := range cases {
		_, err := ParseSplit(in)
		require.Error(t, err, "input %q", in)
		require.True(t, errors.Is(err, ErrMalformed), "input %q", in)
		require.True(t, errs.IsValidation(err), "input %q", in)
	}
}

func TestParseSplitUsesFirstSeparator(t *testing.T) {
	_, err := ParseSplit("abcd:ef:01")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "not hex"))
}
