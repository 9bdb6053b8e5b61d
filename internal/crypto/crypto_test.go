package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccountHasher_KeySize(t *testing.T) {
	_, err := NewAccountHasher(make([]byte, MaxKeySize+1))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = NewAccountHasher(make([]byte, MaxKeySize))
	assert.NoError(t, err)
}

func TestAccountHasher_Secure(t *testing.T) {
	h, err := NewAccountHasher(nil)
	require.NoError(t, err)

	a, err := h.Secure("011000015", "12345678")
	require.NoError(t, err)
	b, err := h.Secure("011000015", "12345678")
	require.NoError(t, err)
	c, err := h.Secure("011000015", "12345679")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
	assert.NotContains(t, a, "12345678")
}

func TestAccountHasher_KeyChangesHash(t *testing.T) {
	plain, err := NewAccountHasherFromString("")
	require.NoError(t, err)
	keyed, err := NewAccountHasherFromString(base64.StdEncoding.EncodeToString([]byte("secret-key")))
	require.NoError(t, err)
	raw, err := NewAccountHasherFromString("secret-key")
	require.NoError(t, err)

	p, _ := plain.Secure("1", "2")
	k, _ := keyed.Secure("1", "2")
	r, _ := raw.Secure("1", "2")

	assert.NotEqual(t, p, k)
	assert.Equal(t, k, r, "a base64 key and its raw form hash the same")
}

func TestNormalizeRouting(t *testing.T) {
	assert.Equal(t, "011000015", NormalizeRouting("11000015"))
	assert.Equal(t, "011000015", NormalizeRouting("0110 00015"))
	assert.Equal(t, "", NormalizeRouting(""))
	assert.Equal(t, "1234567890", NormalizeRouting("1234567890"))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****5678", Mask("12345678"))
	assert.Equal(t, "5678", Mask("5678"))
	assert.Equal(t, strings.Repeat("*", 6)+"7890", Mask(NormalizeAccount("12 34 56 7890")))
}
