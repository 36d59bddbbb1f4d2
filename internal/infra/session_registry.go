package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

// SessionFileName is the snapshot file inside the data directory.
const SessionFileName = "session.json"

// FileSessionRegistry implements domain.SessionRegistry using a JSON file.
// The running monitor publishes; the status command reads.
type FileSessionRegistry struct {
	path string
}

// NewFileSessionRegistry creates a registry at path.
func NewFileSessionRegistry(path string) *FileSessionRegistry {
	return &FileSessionRegistry{path: path}
}

// Path returns the snapshot file path.
func (r *FileSessionRegistry) Path() string {
	return r.path
}

// Publish replaces the snapshot.
func (r *FileSessionRegistry) Publish(snapshot domain.SessionSnapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return writeFileAtomic(r.path, data, 0600)
}

// Read returns the last published snapshot, or nil if no monitor has
// published one.
func (r *FileSessionRegistry) Read() (*domain.SessionSnapshot, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var snapshot domain.SessionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("corrupt session file %s: %w", r.path, err)
	}
	return &snapshot, nil
}

// Clear removes the snapshot.
func (r *FileSessionRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

var _ domain.SessionRegistry = (*FileSessionRegistry)(nil)
