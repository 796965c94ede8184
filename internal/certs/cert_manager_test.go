package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePair(t *testing.T, dir string, notAfter time.Time) (string, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    notAfter.Add(-48 * time.Hour),
		NotAfter:     notAfter,
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}

func TestLoad_Valid(t *testing.T) {
	certFile, keyFile := writePair(t, t.TempDir(), time.Now().Add(10*24*time.Hour))
	cm := NewCertManager(certFile, keyFile)

	leaf, err := cm.Load()
	require.NoError(t, err)
	assert.Equal(t, "localhost", leaf.Subject.CommonName)
	assert.False(t, cm.ExpiresWithin(24*time.Hour))
	assert.True(t, cm.ExpiresWithin(30*24*time.Hour))

	got, err := cm.GetCertificate(nil)
	require.NoError(t, err)
	assert.Equal(t, leaf, got.Leaf)
	assert.Equal(t, uint16(0x0303), cm.TLSConfig().MinVersion)
}

func TestLoad_Expired(t *testing.T) {
	certFile, keyFile := writePair(t, t.TempDir(), time.Now().Add(-time.Hour))
	_, err := NewCertManager(certFile, keyFile).Load()
	assert.ErrorIs(t, err, ErrExpired)
}

func TestLoad_Missing(t *testing.T) {
	cm := NewCertManager("/nonexistent/server.crt", "/nonexistent/server.key")
	_, err := cm.Load()
	assert.Error(t, err)
	_, err = cm.GetCertificate(nil)
	assert.Error(t, err)
	assert.Nil(t, cm.Leaf())
}
