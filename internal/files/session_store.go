package files

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/harrylevesque/orderscan/internal/crypto"
	"github.com/harrylevesque/orderscan/internal/models"
)

// ErrSessionNotFound is returned when no session is stored for a shop.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps one file per shop. With a master key the file is
// <shop>.json.enc sealed with a per-shop HKDF subkey; without one it is
// plain <shop>.json.
type SessionStore struct {
	dir       string
	masterKey []byte
	mu        sync.RWMutex
}

func NewSessionStore(dir string, masterKey []byte) *SessionStore {
	return &SessionStore{dir: dir, masterKey: masterKey}
}

// Encrypted reports whether sessions are sealed at rest.
func (s *SessionStore) Encrypted() bool { return s.masterKey != nil }

func (s *SessionStore) Save(sess *models.Session) error {
	if sess.Shop == "" {
		return errors.New("session shop is empty")
	}
	plain, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}
	data := plain
	if s.Encrypted() {
		key, err := s.shopKey(sess.Shop)
		if err != nil {
			return err
		}
		if data, err = crypto.EncryptAESGCM(key, plain); err != nil {
			return fmt.Errorf("seal session: %w", err)
		}
	}
	return os.WriteFile(s.path(sess.Shop), data, 0600)
}

func (s *SessionStore) Load(shop string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(shop))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if s.Encrypted() {
		key, err := s.shopKey(shop)
		if err != nil {
			return nil, err
		}
		if data, err = crypto.DecryptAESGCM(key, data); err != nil {
			return nil, fmt.Errorf("open session: %w", err)
		}
	}
	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SessionStore) Delete(shop string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(shop)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *SessionStore) shopKey(shop string) ([]byte, error) {
	return crypto.DeriveKey(s.masterKey, "session:"+shop)
}

func (s *SessionStore) path(shop string) string {
	name := sanitize(shop) + ".json"
	if s.Encrypted() {
		name += ".enc"
	}
	return filepath.Join(s.dir, name)
}

// sanitize keeps shop domains from escaping the session directory.
func sanitize(shop string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, strings.ReplaceAll(shop, "..", "_"))
}
