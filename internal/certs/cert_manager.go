// Package certs loads the server's TLS certificate and watches its expiry.
package certs

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// ErrExpired is returned when the configured certificate is past NotAfter.
var ErrExpired = errors.New("certificate expired")

// CertManager serves a certificate pair from disk and reloads it when the
// files change.
type CertManager struct {
	certFile string
	keyFile  string

	mu      sync.RWMutex
	cert    *tls.Certificate
	leaf    *x509.Certificate
	modTime time.Time
	now     func() time.Time
}

func NewCertManager(certFile, keyFile string) *CertManager {
	return &CertManager{certFile: certFile, keyFile: keyFile, now: time.Now}
}

// Load reads the pair and rejects an expired certificate.
func (cm *CertManager) Load() (*x509.Certificate, error) {
	pair, err := tls.LoadX509KeyPair(cm.certFile, cm.keyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	if cm.IsExpired(leaf) {
		return nil, fmt.Errorf("%s: %w at %s", cm.certFile, ErrExpired, leaf.NotAfter.Format(time.RFC3339))
	}
	pair.Leaf = leaf

	info, err := os.Stat(cm.certFile)
	if err != nil {
		return nil, err
	}

	cm.mu.Lock()
	cm.cert = &pair
	cm.leaf = leaf
	cm.modTime = info.ModTime()
	cm.mu.Unlock()
	return leaf, nil
}

// IsExpired checks if a certificate is expired.
func (cm *CertManager) IsExpired(cert *x509.Certificate) bool {
	return cert.NotAfter.Before(cm.now())
}

// ExpiresWithin reports whether the loaded certificate expires inside d.
func (cm *CertManager) ExpiresWithin(d time.Duration) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.leaf != nil && cm.leaf.NotAfter.Before(cm.now().Add(d))
}

// Leaf returns the current certificate, or nil before Load.
func (cm *CertManager) Leaf() *x509.Certificate {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.leaf
}

// GetCertificate is a tls.Config hook. It reloads the pair when the
// certificate file's modification time changes and keeps serving the old
// pair if the new one fails to load.
func (cm *CertManager) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	if info, err := os.Stat(cm.certFile); err == nil {
		cm.mu.RLock()
		changed := !info.ModTime().Equal(cm.modTime)
		cm.mu.RUnlock()
		if changed {
			_, _ = cm.Load()
		}
	}

	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if cm.cert == nil {
		return nil, errors.New("no certificate loaded")
	}
	return cm.cert, nil
}

func (cm *CertManager) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: cm.GetCertificate,
	}
}
