package infra

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

const (
	shameKeyFile = ".shame.key"
	shameKeyLen  = 32
)

// FileKeyProvider keeps the shame database key as a hex line in a 0600 file
// beside the database. Hex is also what the SQLCipher raw-key pragma takes.
type FileKeyProvider struct {
	keyPath string
}

func NewFileKeyProvider(shameDir string) *FileKeyProvider {
	return &FileKeyProvider{keyPath: filepath.Join(shameDir, shameKeyFile)}
}

// Path is the key file location.
func (p *FileKeyProvider) Path() string {
	return p.keyPath
}

// GetKey reads the key. Surrounding whitespace is ignored so the file can be
// restored by hand from a backup.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	raw, err := os.ReadFile(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("read shame key %s: %w", p.keyPath, err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("shame key %s is not hex: %w", p.keyPath, err)
	}
	if err := checkShameKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

func (p *FileKeyProvider) StoreKey(key []byte) error {
	if err := checkShameKey(key); err != nil {
		return err
	}
	line := hex.EncodeToString(key) + "\n"
	if err := writeFileAtomic(p.keyPath, []byte(line), 0600); err != nil {
		return fmt.Errorf("write shame key: %w", err)
	}
	return nil
}

func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.keyPath)
	return err == nil
}

func checkShameKey(key []byte) error {
	if len(key) != shameKeyLen {
		return fmt.Errorf("shame key must be %d bytes, got %d", shameKeyLen, len(key))
	}
	return nil
}

// GenerateKey returns a fresh random shame database key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, shameKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate shame key: %w", err)
	}
	return key, nil
}

// EnsureKey returns the stored key, generating one on first use.
// The shame database is unreadable without it, so it is never regenerated
// once a file exists.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := provider.StoreKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

var _ domain.KeyProvider = (*FileKeyProvider)(nil)
