package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bft-labs/preflight/internal/domain"
)

// StatusFileRepository implements ports.StatusRepository using a JSON file.
type StatusFileRepository struct {
	path string
}

// NewStatusFileRepository creates a repository writing to path.
func NewStatusFileRepository(path string) *StatusFileRepository {
	return &StatusFileRepository{path: path}
}

// Load reads the status file.
// Returns a zero Status and nil error if the file does not exist.
func (r *StatusFileRepository) Load(ctx context.Context) (domain.Status, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Status{}, nil
		}
		return domain.Status{}, err
	}

	var status domain.Status
	if err := json.Unmarshal(data, &status); err != nil {
		return domain.Status{}, err
	}

	return status, nil
}

// Save writes the status atomically (temp file, then rename).
func (r *StatusFileRepository) Save(ctx context.Context, status domain.Status) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}

	return os.Rename(tmp, r.path)
}

// Remove deletes the status file. A missing file is not an error.
func (r *StatusFileRepository) Remove() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Path returns the status file path.
func (r *StatusFileRepository) Path() string {
	return r.path
}
