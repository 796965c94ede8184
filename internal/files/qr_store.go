package files

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harrylevesque/orderscan/internal/models"
)

// QRCodeStore manages the storage and retrieval of QR share records
type QRCodeStore struct {
	filePath string
	mu       sync.RWMutex
}

// NewQRCodeStore creates a store backed by filePath. The file is created on
// first save.
func NewQRCodeStore(filePath string) *QRCodeStore {
	return &QRCodeStore{filePath: filePath}
}

// Save records qr. If the same link was already recorded, the existing record
// is returned and nothing is written.
func (s *QRCodeStore) Save(qr *models.QRCode) (*models.QRCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qrs, err := s.load()
	if err != nil {
		return nil, err
	}

	for i := range qrs {
		if qrs[i].Data == qr.Data {
			return &qrs[i], nil
		}
	}

	rec := *qr
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now().UTC()
	qrs = append(qrs, rec)

	data, err := json.MarshalIndent(qrs, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(s.filePath, data, 0644); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetAll retrieves all records, newest first.
func (s *QRCodeStore) GetAll() ([]models.QRCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qrs, err := s.load()
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(qrs)-1; i < j; i, j = i+1, j-1 {
		qrs[i], qrs[j] = qrs[j], qrs[i]
	}
	return qrs, nil
}

// Clear removes all records
func (s *QRCodeStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// load reads the records file. A missing file is an empty store.
func (s *QRCodeStore) load() ([]models.QRCode, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.QRCode{}, nil
		}
		return nil, err
	}
	qrs := []models.QRCode{}
	if err := json.Unmarshal(data, &qrs); err != nil {
		return nil, err
	}
	return qrs, nil
}
