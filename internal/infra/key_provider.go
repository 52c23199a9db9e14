package infra

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

const (
	keyFileName = ".store.key"
	keySize     = 32 // 256-bit SQLCipher key
)

// ErrKeyExists is returned by StoreKey when a key is already on disk.
// Replacing it would leave every encrypted store and session unreadable.
var ErrKeyExists = errors.New("store key already exists")

// FileKeyProvider implements domain.KeyProvider with a base64 key file in
// the data directory, shared by the watchdog and outreach stores.
type FileKeyProvider struct {
	keyPath string
}

func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return &FileKeyProvider{keyPath: filepath.Join(dataDir, keyFileName)}
}

// GetKey reads the key file. A file readable by group or others is refused.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	info, err := os.Stat(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return nil, fmt.Errorf("key file %s is accessible by others (mode %04o), expected 0600", p.keyPath, perm)
	}

	encoded, err := os.ReadFile(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	return key, nil
}

// StoreKey writes a new key. It never overwrites an existing one, and two
// agents racing on first start cannot both create it.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	if err := os.MkdirAll(filepath.Dir(p.keyPath), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.keyPath), keyFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	_, err = tmp.WriteString(base64.StdEncoding.EncodeToString(key))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}

	// Link fails if the target exists, unlike Rename.
	if err := os.Link(tmpPath, p.keyPath); err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrKeyExists
		}
		return fmt.Errorf("failed to install key file: %w", err)
	}
	return nil
}

func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.keyPath)
	return err == nil
}

// GenerateKey creates a new random 256-bit key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}
	return key, nil
}

// EnsureKey returns the stored key, creating one on first use. When another
// process creates the key first, its key is returned.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := provider.StoreKey(key); err != nil {
		if errors.Is(err, ErrKeyExists) {
			return provider.GetKey()
		}
		return nil, err
	}
	return key, nil
}

var _ domain.KeyProvider = (*FileKeyProvider)(nil)
