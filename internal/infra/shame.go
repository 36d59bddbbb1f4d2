package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mutecomm/go-sqlcipher/v4" // registers the sqlite3 (SQLCipher) driver
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

const shameDBName = "shame.db"

// LogShameRecorder writes punishments to the log only.
type LogShameRecorder struct {
	logger *zap.Logger
}

// NewLogShameRecorder creates a log-only recorder.
func NewLogShameRecorder(logger *zap.Logger) *LogShameRecorder {
	return &LogShameRecorder{logger: logger}
}

// Record logs the punishment.
func (r *LogShameRecorder) Record(_ context.Context, record domain.ShameRecord) error {
	r.logger.Warn("session punished",
		zap.String("session_id", record.SessionID),
		zap.String("reason", record.Reason),
		zap.String("window_title", record.WindowTitle),
		zap.String("process_name", record.ProcessName),
		zap.Time("at", record.CreatedAt))
	return nil
}

// EncryptedShameStore keeps punishment records in a SQLCipher database.
type EncryptedShameStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedShameStore opens (or creates) the shame database in dataDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedShameStore(dataDir string, key []byte) (*EncryptedShameStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, shameDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// A wrong key only surfaces on first use
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	store := &EncryptedShameStore{db: db, dbPath: dbPath}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

func (s *EncryptedShameStore) createTables() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS shame (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		window_title TEXT DEFAULT '',
		process_name TEXT DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS shame_created_at ON shame (created_at);
	`)
	return err
}

// Record inserts a punishment. Missing IDs and timestamps are filled in.
func (s *EncryptedShameStore) Record(ctx context.Context, record domain.ShameRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shame (id, session_id, reason, window_title, process_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID, record.SessionID, record.Reason, record.WindowTitle, record.ProcessName,
		record.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record shame: %w", err)
	}
	return nil
}

// List returns the newest records first. limit <= 0 means all.
func (s *EncryptedShameStore) List(ctx context.Context, limit int) ([]domain.ShameRecord, error) {
	query := `SELECT id, session_id, reason, window_title, process_name, created_at
		FROM shame ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.ShameRecord
	for rows.Next() {
		var r domain.ShameRecord
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Reason, &r.WindowTitle, &r.ProcessName, &createdAt); err != nil {
			return nil, err
		}
		r.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Path returns the database file path.
func (s *EncryptedShameStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedShameStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var (
	_ domain.ShameRecorder = (*LogShameRecorder)(nil)
	_ domain.ShameStore    = (*EncryptedShameStore)(nil)
)
