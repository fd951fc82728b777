package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteStore persists keys in a single SQLite database shared by the
// request-serving and worker roles.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite initializes or connects to the state database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS kv_entries (
            key TEXT PRIMARY KEY,
            value BLOB NOT NULL,
            expires_at TEXT,
            updated_at TEXT NOT NULL
        )`)
	if err != nil {
		return fmt.Errorf("create kv table: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	if s == nil {
		return ""
	}
	return filepath.Clean(s.path)
}

// Get returns the stored value, treating expired rows as missing.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value   []byte
		expires sql.NullString
	)
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT value, expires_at FROM kv_entries WHERE key = ?`, key)
		return row.Scan(&value, &expires)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if expires.Valid {
		deadline, parseErr := time.Parse(time.RFC3339Nano, expires.String)
		if parseErr == nil && time.Now().UTC().After(deadline) {
			// Lazy expiry; the cron sweep is the bulk path.
			_ = s.Delete(ctx, key)
			return nil, ErrNotFound
		}
	}
	return value, nil
}

// Set writes the value with expiry ttl from now.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	var expires any
	if ttl > 0 {
		expires = now.Add(ttl).Format(time.RFC3339Nano)
	}
	err := retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT INTO kv_entries (key, value, expires_at, updated_at)
             VALUES (?, ?, ?, ?)
             ON CONFLICT(key) DO UPDATE SET
                 value = excluded.value,
                 expires_at = excluded.expires_at,
                 updated_at = excluded.updated_at`,
			key, value, expires, now.Format(time.RFC3339Nano))
		return execErr
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes the key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	err := retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Keys returns the live keys matching prefix, skipping expired rows.
func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var keys []string
	err := retryOnBusy(ctx, func() error {
		rows, queryErr := s.db.QueryContext(ctx,
			`SELECT key FROM kv_entries
             WHERE key LIKE ? || '%'
               AND (expires_at IS NULL OR expires_at >= ?)
             ORDER BY key`, prefix, now)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()
		keys = keys[:0]
		for rows.Next() {
			var key string
			if scanErr := rows.Scan(&key); scanErr != nil {
				return scanErr
			}
			keys = append(keys, key)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return keys, nil
}

// SweepExpired removes all rows whose expiry has passed and reports the
// number removed.
func (s *SQLiteStore) SweepExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx,
			`DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at < ?`, now)
		if execErr != nil {
			return execErr
		}
		removed, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("sweep expired: %w", err)
	}
	return removed, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
