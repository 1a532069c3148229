package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/soyeahso/witness/internal/domain"
	"github.com/soyeahso/witness/internal/logging"
)

// SQLiteStore keeps the same JSON documents as FileStore in SQLite rows,
// with the key columns extracted for lookup and ordering.
type SQLiteStore struct {
	sql *sql.DB
	log *logging.Logger
}

// OpenSQLite opens (or creates) a SQLite database at the given path and runs
// migrations. Use ":memory:" for an in-memory database (useful for tests).
func OpenSQLite(path string, log *logging.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, storageErr("creating db directory", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storageErr("opening sqlite", err)
	}
	if path == ":memory:" {
		// Each connection would get its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}

	// WAL mode for better concurrent read performance
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		sqlDB.Close()
		return nil, storageErr("setting WAL mode", err)
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout=5000"); err != nil {
		sqlDB.Close()
		return nil, storageErr("setting busy timeout", err)
	}

	s := &SQLiteStore{sql: sqlDB, log: log.Sub("store")}

	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, storageErr("running migrations", err)
	}

	s.log.Info().Str("path", path).Str("type", "sqlite").Msg("store opened")
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.log.Info().Msg("closing database")
	return s.sql.Close()
}

// SaveInteraction upserts the interaction row.
func (s *SQLiteStore) SaveInteraction(ctx context.Context, i domain.Interaction) error {
	if err := domain.ValidateSessionID(i.SessionID); err != nil {
		return err
	}
	if err := checkWitnessID(i.ID.Value); err != nil {
		return err
	}
	record, err := json.Marshal(i)
	if err != nil {
		return storageErr("encoding interaction", err)
	}
	_, err = s.sql.ExecContext(ctx,
		`INSERT INTO interactions (session_id, witness_id, captured_at, record)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id, witness_id) DO UPDATE SET
		   captured_at = excluded.captured_at,
		   record = excluded.record`,
		i.SessionID, i.ID.Value, i.Timestamp.UnixNano(), string(record),
	)
	if err != nil {
		return storageErr("saving interaction "+i.ID.Value, err)
	}
	s.log.Debug().Str("witnessId", i.ID.Value).Str("sessionId", i.SessionID).Msg("interaction saved")
	return nil
}

// GetInteraction loads one interaction. Without a session id the row from
// the most recently created session wins.
func (s *SQLiteStore) GetInteraction(ctx context.Context, witnessID, sessionID string) (domain.Interaction, error) {
	if err := checkWitnessID(witnessID); err != nil {
		return domain.Interaction{}, err
	}

	var row *sql.Row
	if sessionID != "" {
		row = s.sql.QueryRowContext(ctx,
			`SELECT record FROM interactions WHERE session_id = ? AND witness_id = ?`,
			sessionID, witnessID)
	} else {
		row = s.sql.QueryRowContext(ctx,
			`SELECT i.record
			 FROM interactions i
			 LEFT JOIN sessions s ON s.id = i.session_id
			 WHERE i.witness_id = ?
			 ORDER BY s.created_at IS NULL, s.created_at DESC, i.session_id DESC
			 LIMIT 1`,
			witnessID)
	}

	var record string
	if err := row.Scan(&record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Interaction{}, notFound(witnessID, sessionID)
		}
		return domain.Interaction{}, storageErr("loading interaction "+witnessID, err)
	}
	var i domain.Interaction
	if err := json.Unmarshal([]byte(record), &i); err != nil {
		return domain.Interaction{}, storageErr("decoding interaction "+witnessID, err)
	}
	return i, nil
}

// ListInteractions returns a session's interactions newest first.
func (s *SQLiteStore) ListInteractions(ctx context.Context, sessionID string, limit int) ([]domain.Interaction, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sql.QueryContext(ctx,
		`SELECT record FROM interactions
		 WHERE session_id = ?
		 ORDER BY captured_at DESC, witness_id DESC
		 LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, storageErr("listing interactions", err)
	}
	defer rows.Close()

	var list []domain.Interaction
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, storageErr("scanning interaction", err)
		}
		var i domain.Interaction
		if err := json.Unmarshal([]byte(record), &i); err != nil {
			s.log.Warn().Err(err).Str("sessionId", sessionID).Msg("skipping undecodable interaction")
			continue
		}
		list = append(list, i)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("listing interactions", err)
	}
	return list, nil
}

// CountInteractions counts a session's interactions.
func (s *SQLiteStore) CountInteractions(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.sql.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM interactions WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, storageErr("counting interactions", err)
	}
	return n, nil
}

// SaveSession upserts the session row.
func (s *SQLiteStore) SaveSession(ctx context.Context, sess domain.Session) error {
	if err := domain.ValidateSessionID(sess.ID); err != nil {
		return err
	}
	record, err := json.Marshal(sess)
	if err != nil {
		return storageErr("encoding session", err)
	}
	_, err = s.sql.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at, record)
		 VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   created_at = excluded.created_at,
		   record = excluded.record`,
		sess.ID, sess.CreatedAt.UnixNano(), string(record),
	)
	if err != nil {
		return storageErr("saving session "+sess.ID, err)
	}
	return nil
}

// GetSession loads one session.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (domain.Session, error) {
	var record string
	err := s.sql.QueryRowContext(ctx, `SELECT record FROM sessions WHERE id = ?`, id).Scan(&record)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
		}
		return domain.Session{}, storageErr("loading session "+id, err)
	}
	var sess domain.Session
	if err := json.Unmarshal([]byte(record), &sess); err != nil {
		return domain.Session{}, storageErr("decoding session "+id, err)
	}
	return sess, nil
}

// ListSessions returns sessions most recently created first.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sql.QueryContext(ctx,
		`SELECT record FROM sessions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, storageErr("listing sessions", err)
	}
	defer rows.Close()

	var list []domain.Session
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, storageErr("scanning session", err)
		}
		var sess domain.Session
		if err := json.Unmarshal([]byte(record), &sess); err != nil {
			s.log.Warn().Err(err).Msg("skipping undecodable session")
			continue
		}
		list = append(list, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("listing sessions", err)
	}
	return list, nil
}

// CountSessions counts stored sessions.
func (s *SQLiteStore) CountSessions(ctx context.Context) (int, error) {
	var n int
	if err := s.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, storageErr("counting sessions", err)
	}
	return n, nil
}

// migrate runs all pending migrations.
func (s *SQLiteStore) migrate() error {
	// Create migrations tracking table
	if _, err := s.sql.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	for _, m := range migrations {
		applied, err := s.isMigrationApplied(m.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		s.log.Info().Int("version", m.Version).Str("name", m.Name).Msg("applying migration")

		tx, err := s.sql.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *SQLiteStore) isMigrationApplied(version int) (bool, error) {
	var count int
	err := s.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking migration %d: %w", version, err)
	}
	return count > 0, nil
}
