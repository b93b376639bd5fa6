package storage

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens (creating if needed) the client database and applies migrations.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; sqlite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := NewMigrationRunner(db).Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// CredentialStore persists the session credential under a fixed key.
type CredentialStore struct {
	db  *sql.DB
	key string
}

func NewCredentialStore(db *sql.DB, key string) *CredentialStore {
	return &CredentialStore{db: db, key: key}
}

// Get returns the stored credential, or "" when none is present.
func (s *CredentialStore) Get() (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM credentials WHERE key = ?", s.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}
	return value, nil
}

func (s *CredentialStore) Set(token string) error {
	_, err := s.db.Exec(`
	INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		s.key, token)
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) Clear() error {
	if _, err := s.db.Exec("DELETE FROM credentials WHERE key = ?", s.key); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// Export is one saved report or chart file.
type Export struct {
	ID        int64
	Kind      string
	Location  string
	SizeBytes int64
	CreatedAt string
}

// ExportLog records where exported files were written.
type ExportLog struct {
	db *sql.DB
}

func NewExportLog(db *sql.DB) *ExportLog {
	return &ExportLog{db: db}
}

func (l *ExportLog) Record(kind, location string, size int64) error {
	_, err := l.db.Exec("INSERT INTO exports (kind, location, size_bytes) VALUES (?, ?, ?)", kind, location, size)
	if err != nil {
		return fmt.Errorf("failed to record export: %w", err)
	}
	return nil
}

// Recent returns up to limit exports, newest first.
func (l *ExportLog) Recent(limit int) ([]Export, error) {
	rows, err := l.db.Query(
		"SELECT id, kind, location, size_bytes, created_at FROM exports ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query exports: %w", err)
	}
	defer rows.Close()

	var exports []Export
	for rows.Next() {
		var e Export
		if err := rows.Scan(&e.ID, &e.Kind, &e.Location, &e.SizeBytes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		exports = append(exports, e)
	}
	return exports, rows.Err()
}
