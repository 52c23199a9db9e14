package infra

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

const (
	storeDBName = "state.db"
)

// EncryptedDSN builds a SQLCipher DSN for path keyed with key.
// The whatsmeow session store uses the same form.
func EncryptedDSN(path string, key []byte, extra string) string {
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", path, hex.EncodeToString(key))
	if extra != "" {
		dsn += "&" + extra
	}
	return dsn
}

// EncryptedStore implements domain.KeyValueStore on a SQLCipher encrypted
// SQLite database. Documents are stored as JSON text.
type EncryptedStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedStore opens (or creates) the encrypted state database.
func NewEncryptedStore(dataDir string, key []byte) (*EncryptedStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, storeDBName)
	db, err := sql.Open("sqlite3", EncryptedDSN(dbPath, key, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// A wrong key only surfaces on first access.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	s := &EncryptedStore{db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *EncryptedStore) createTables() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS documents (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`)
	return err
}

// Load decodes the document stored under key into v.
func (s *EncryptedStore) Load(key string, v any) (bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM documents WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, &domain.PersistenceError{Op: "load", Key: key, Err: err}
	}
	if err := json.Unmarshal([]byte(value), v); err != nil {
		return false, &domain.PersistenceError{Op: "load", Key: key, Err: err}
	}
	return true, nil
}

// Save upserts the JSON encoding of v under key.
func (s *EncryptedStore) Save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &domain.PersistenceError{Op: "save", Key: key, Err: err}
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO documents (key, value, updated_at) VALUES (?, ?, ?)`,
		key, string(data), time.Now().Unix())
	if err != nil {
		return &domain.PersistenceError{Op: "save", Key: key, Err: err}
	}
	return nil
}

// Keys lists stored document keys (for the status command).
func (s *EncryptedStore) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM documents ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Path returns the database file path.
func (s *EncryptedStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure EncryptedStore implements domain.KeyValueStore.
var _ domain.KeyValueStore = (*EncryptedStore)(nil)
