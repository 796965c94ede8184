package utils

import (
	"os"
	"path/filepath"
)

// GetProjectRoot returns the absolute path to the project root directory.
func GetProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "." // fallback
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached root
		}
		dir = parent
	}
	return "." // fallback
}

// ResolvePath makes a relative path absolute against the project root.
func ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GetProjectRoot(), p)
}

// SessionDir is where encrypted shop sessions live under dataDir.
func SessionDir(dataDir string) string {
	return filepath.Join(ResolvePath(dataDir), "sessions")
}

// QRStorePath is the QR share history file under dataDir.
func QRStorePath(dataDir string) string {
	return filepath.Join(ResolvePath(dataDir), "qr_store.json")
}
