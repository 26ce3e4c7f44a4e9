package watchlist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"wavescope/pkg/model"
)

// FileStore keeps the watchlist in a single JSON file. The file is the whole
// truth: Save rewrites it from scratch and Load reads it whole.
type FileStore struct {
	path string
}

// NewFileStore creates the data directory and points the store at
// watchlist.json inside it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, "watchlist.json")}, nil
}

// Load reads the full list; a missing file is an empty list, not an error.
func (s *FileStore) Load() ([]model.Stock, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var stocks []model.Stock
	if err := json.Unmarshal(data, &stocks); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	return stocks, nil
}

// Save rewrites the file with the full list.
func (s *FileStore) Save(stocks []model.Stock) error {
	if stocks == nil {
		stocks = []model.Stock{}
	}
	data, err := json.MarshalIndent(stocks, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}
