package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of master and derived keys.
const KeySize = 32

// DeriveKey derives a 32-byte subkey bound to info using HKDF-SHA256.
func DeriveKey(master []byte, info string) ([]byte, error) {
	if len(master) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	h := hkdf.New(sha256.New, master, nil, []byte(info))
	out := make([]byte, KeySize)
	if _, err := io.ReadFull(h, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseKeyHex decodes a 64-character hex master key.
func ParseKeyHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("master key hex decode error: %w", err)
	}
	if len(b) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	return b, nil
}

// GenerateKey returns a random master key.
func GenerateKey() ([]byte, error) {
	return generateRandomBytes(KeySize)
}

// MustRandom returns n random bytes or panics.
func MustRandom(n int) []byte {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		panic(err)
	}
	return b
}
