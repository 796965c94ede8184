package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_BoundToInfo(t *testing.T) {
	master := bytes.Repeat([]byte{7}, KeySize)

	a, err := DeriveKey(master, "session:a.myshopify.com")
	require.NoError(t, err)
	b, err := DeriveKey(master, "session:b.myshopify.com")
	require.NoError(t, err)
	again, err := DeriveKey(master, "session:a.myshopify.com")
	require.NoError(t, err)

	assert.Len(t, a, KeySize)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, again)
}

func TestDeriveKey_RejectsShortMaster(t *testing.T) {
	_, err := DeriveKey([]byte("short"), "x")
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestAESGCM_WrongKeyFails(t *testing.T) {
	key := MustRandom(KeySize)
	blob, err := EncryptAESGCM(key, []byte("shpat_secret"))
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "shpat_secret")

	plain, err := DecryptAESGCM(key, blob)
	require.NoError(t, err)
	assert.Equal(t, "shpat_secret", string(plain))

	_, err = DecryptAESGCM(MustRandom(KeySize), blob)
	assert.Error(t, err)

	_, err = DecryptAESGCM(key, blob[:4])
	assert.Error(t, err)
}

func TestParseKeyHex(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	parsed, err := ParseKeyHex("  " + hex.EncodeToString(key) + "\n")
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = ParseKeyHex("zz")
	assert.Error(t, err)
	_, err = ParseKeyHex("abcd")
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}
