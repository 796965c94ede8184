package files

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/harrylevesque/orderscan/internal/crypto"
)

// ReadMasterKey returns the session master key from keyHex, falling back to
// the key file. (nil, nil) means no key is configured and sessions are stored
// unencrypted.
func ReadMasterKey(keyHex, keyFile string) ([]byte, error) {
	if keyHex == "" && keyFile != "" {
		data, err := os.ReadFile(keyFile)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, nil
			}
			return nil, fmt.Errorf("read %s: %w", keyFile, err)
		}
		keyHex = string(data)
	}
	if keyHex == "" {
		return nil, nil
	}
	return crypto.ParseKeyHex(keyHex)
}

// WriteMasterKey generates a key and writes it hex-encoded to path. It
// refuses to overwrite an existing file.
func WriteMasterKey(path string) error {
	if FileExists(path) {
		return fmt.Errorf("%s already exists, refusing to overwrite", path)
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	return os.WriteFile(path, []byte(hex.EncodeToString(key)+"\n"), 0600)
}

// FileExists checks if the given file exists.
func FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return !os.IsNotExist(err)
}
