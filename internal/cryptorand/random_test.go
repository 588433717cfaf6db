package cryptorand_test

import (
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"github.com/jrsteele09/go-identity-client/internal/cryptorand"
	"github.com/stretchr/testify/require"
)

func TestS256(t *testing.T) {
	// RFC 7636 appendix B
	require.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", cryptorand.S256("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"))
}

func TestUniqueID(t *testing.T) {
	a, err := cryptorand.UniqueID()
	require.NoError(t, err)
	b, err := cryptorand.UniqueID()
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	require.Len(t, raw, 32)
	require.NotContains(t, a, "=")
}

func TestNonce(t *testing.T) {
	n, err := cryptorand.Nonce()
	require.NoError(t, err)
	raw, err := base64.RawURLEncoding.DecodeString(n)
	require.NoError(t, err)
	require.Len(t, raw, 64)
}

func TestRandomBytesFrom(t *testing.T) {
	b, err := cryptorand.RandomBytesFrom(strings.NewReader("0123456789"), 4)
	require.NoError(t, err)
	require.Equal(t, []byte("0123"), b)

	_, err = cryptorand.RandomBytesFrom(strings.NewReader("012"), 4)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Contains(t, err.Error(), "[cryptorand.RandomBytes]")
}
