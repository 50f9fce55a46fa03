// internal/store/sqlite.go
package store

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/quizlens/client/internal/domain/user"
)

const schema = `
CREATE TABLE IF NOT EXISTS auth (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    token TEXT NOT NULL,
    user_json TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
    job_id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    file_name TEXT NOT NULL,
    status TEXT NOT NULL,
    items_count INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    completed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
`

// SQLiteStore is the on-device replacement for the app's key-value shim:
// the auth credential, the cached user record, and the history of
// submitted extraction jobs. Unlike the in-memory shim it survives process
// restarts on every platform.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Auth
// ============================================================================

// SaveAuth stores the bearer token and user record, replacing any previous
// login.
func (s *SQLiteStore) SaveAuth(token string, u user.User) error {
	userJSON, err := json.Marshal(u)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO auth (id, token, user_json, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET token = excluded.token, user_json = excluded.user_json, updated_at = excluded.updated_at`,
		token, string(userJSON), time.Now().Unix())
	return err
}

// Auth returns the stored token and user record, or ErrNotFound when the
// device has no login.
func (s *SQLiteStore) Auth() (string, user.User, error) {
	var token, userJSON string
	err := s.db.QueryRow("SELECT token, user_json FROM auth WHERE id = 1").Scan(&token, &userJSON)
	if err == sql.ErrNoRows {
		return "", user.User{}, ErrNotFound
	}
	if err != nil {
		return "", user.User{}, err
	}

	var u user.User
	if err := json.Unmarshal([]byte(userJSON), &u); err != nil {
		return "", user.User{}, err
	}
	return token, u, nil
}

// ClearAuth removes the stored login.
func (s *SQLiteStore) ClearAuth() error {
	_, err := s.db.Exec("DELETE FROM auth WHERE id = 1")
	return err
}

// ============================================================================
// Job history
// ============================================================================

// RecordJob remembers a freshly submitted job as pending.
func (s *SQLiteStore) RecordJob(rec JobRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO jobs (job_id, session_id, file_name, status, items_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.JobID, rec.SessionID, rec.FileName, rec.Status, rec.ItemsCount, createdAt.Unix())
	return err
}

// CompleteJob marks a job's terminal outcome.
func (s *SQLiteStore) CompleteJob(jobID, status string, itemsCount int) error {
	res, err := s.db.Exec(`
		UPDATE jobs SET status = ?, items_count = ?, completed_at = ? WHERE job_id = ?`,
		status, itemsCount, time.Now().Unix(), jobID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Job returns one job record by identifier.
func (s *SQLiteStore) Job(jobID string) (*JobRecord, error) {
	row := s.db.QueryRow(`
		SELECT job_id, session_id, file_name, status, items_count, created_at, completed_at
		FROM jobs WHERE job_id = ?`, jobID)
	return scanJob(row)
}

// Jobs returns the most recent job records, newest first.
func (s *SQLiteStore) Jobs(limit int) ([]JobRecord, error) {
	rows, err := s.db.Query(`
		SELECT job_id, session_id, file_name, status, items_count, created_at, completed_at
		FROM jobs ORDER BY created_at DESC, job_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*JobRecord, error) {
	var rec JobRecord
	var createdAt int64
	var completedAt sql.NullInt64
	err := row.Scan(&rec.JobID, &rec.SessionID, &rec.FileName, &rec.Status, &rec.ItemsCount, &createdAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0)
		rec.CompletedAt = &t
	}
	return &rec, nil
}
