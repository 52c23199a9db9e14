package infra

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKeyProvider(t *testing.T) {
	tests := []struct {
		name    string
		content string // written to the key file before the test, if set
		testFn  func(t *testing.T, provider *FileKeyProvider)
	}{
		{
			name: "missing key file",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				assert.False(t, provider.KeyExists())
				_, err := provider.GetKey()
				assert.Error(t, err)
			},
		},
		{
			name: "stored key round trips with 0600 permissions",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				key, err := GenerateKey()
				require.NoError(t, err)
				require.NoError(t, provider.StoreKey(key))

				info, err := os.Stat(provider.keyPath)
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

				got, err := provider.GetKey()
				require.NoError(t, err)
				assert.Equal(t, key, got)
			},
		},
		{
			name: "short key refused on store",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				err := provider.StoreKey([]byte("tooshort"))
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid key size")
				assert.False(t, provider.KeyExists())
			},
		},
		{
			name: "existing key is never overwritten",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				first, err := GenerateKey()
				require.NoError(t, err)
				require.NoError(t, provider.StoreKey(first))

				second, err := GenerateKey()
				require.NoError(t, err)
				assert.ErrorIs(t, provider.StoreKey(second), ErrKeyExists)

				got, err := provider.GetKey()
				require.NoError(t, err)
				assert.Equal(t, first, got)

				matches, err := filepath.Glob(provider.keyPath + ".*.tmp")
				require.NoError(t, err)
				assert.Empty(t, matches)
			},
		},
		{
			name: "world-readable key file refused",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				key, err := GenerateKey()
				require.NoError(t, err)
				require.NoError(t, provider.StoreKey(key))
				require.NoError(t, os.Chmod(provider.keyPath, 0644))

				_, err = provider.GetKey()
				require.Error(t, err)
				assert.Contains(t, err.Error(), "accessible by others")
			},
		},
		{
			name:    "trailing newline in key file is tolerated",
			content: base64.StdEncoding.EncodeToString(make([]byte, keySize)) + "\n",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				key, err := provider.GetKey()
				require.NoError(t, err)
				assert.Len(t, key, keySize)
			},
		},
		{
			name:    "garbage key file",
			content: "not base64 !!",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				_, err := provider.GetKey()
				require.Error(t, err)
				assert.Contains(t, err.Error(), "decode")
			},
		},
		{
			name:    "key file of the wrong size",
			content: base64.StdEncoding.EncodeToString([]byte("sixteen byte key")),
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				_, err := provider.GetKey()
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid key size")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dataDir := t.TempDir()
			if tt.content != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dataDir, keyFileName), []byte(tt.content), 0600))
			}
			tt.testFn(t, NewFileKeyProvider(dataDir))
		})
	}
}

func TestGenerateKey_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		key, err := GenerateKey()
		require.NoError(t, err)
		require.Len(t, key, keySize)
		assert.False(t, seen[string(key)], "duplicate key generated")
		seen[string(key)] = true
	}
}

func TestEnsureKey(t *testing.T) {
	t.Run("creates the key under a missing data directory", func(t *testing.T) {
		dataDir := filepath.Join(t.TempDir(), "nested", "chatmon")
		provider := NewFileKeyProvider(dataDir)

		key, err := EnsureKey(provider)
		require.NoError(t, err)
		assert.Len(t, key, keySize)
		assert.FileExists(t, filepath.Join(dataDir, keyFileName))
	})

	t.Run("is stable across calls", func(t *testing.T) {
		provider := NewFileKeyProvider(t.TempDir())

		first, err := EnsureKey(provider)
		require.NoError(t, err)
		second, err := EnsureKey(NewFileKeyProvider(filepath.Dir(provider.keyPath)))
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestEnsureKey_ConcurrentFirstStart(t *testing.T) {
	dataDir := t.TempDir()

	var wg sync.WaitGroup
	keys := make([][]byte, 6)
	for i := range keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key, err := EnsureKey(NewFileKeyProvider(dataDir))
			assert.NoError(t, err)
			keys[i] = key
		}(i)
	}
	wg.Wait()

	for _, k := range keys[1:] {
		assert.Equal(t, keys[0], k, "every agent ends up with the same key")
	}
}
