package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/nholik/craft-sentinel/internal/health"
	"github.com/rs/zerolog"

	// SQLite driver
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS flags (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS applied_options (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS opened_ports (
	port TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

const (
	metaFingerprint   = "resource_fingerprint"
	metaStatusLevel   = "status_level"
	metaStatusMessage = "status_message"
	metaStatusUpdated = "status_updated_at"
)

// SQLiteStore persists state in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(ctx context.Context, path string, logger zerolog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping state database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the full state.
func (s *SQLiteStore) Load(ctx context.Context) (State, error) {
	state := Empty()

	names, err := s.queryStrings(ctx, `SELECT name FROM flags`)
	if err != nil {
		return State{}, err
	}
	for _, name := range names {
		state.Flags[name] = true
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM applied_options`)
	if err != nil {
		return State{}, fmt.Errorf("load options: %w", err)
	}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			_ = rows.Close()
			return State{}, fmt.Errorf("scan option: %w", err)
		}
		state.Applied[name] = value
	}
	if err := rows.Close(); err != nil {
		return State{}, err
	}

	ports, err := s.queryStrings(ctx, `SELECT port FROM opened_ports ORDER BY port`)
	if err != nil {
		return State{}, err
	}
	if len(ports) > 0 {
		state.Ports = ports
	}

	meta, err := s.loadMeta(ctx)
	if err != nil {
		return State{}, err
	}
	state.ResourceFingerprint = meta[metaFingerprint]
	state.Status.Level = health.Level(meta[metaStatusLevel])
	state.Status.Message = meta[metaStatusMessage]
	if raw := meta[metaStatusUpdated]; raw != "" {
		updated, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			s.logger.Warn().Err(err).Str("value", raw).Msg("ignoring unparseable status timestamp")
		} else {
			state.Status.UpdatedAt = updated
		}
	}

	return state, nil
}

// Save replaces the stored state in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, state State) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin state transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"flags", "applied_options", "opened_ports", "meta"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, name := range state.Flags.Names() {
		if _, err = tx.ExecContext(ctx, `INSERT INTO flags (name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("insert flag: %w", err)
		}
	}

	names := make([]string, 0, len(state.Applied))
	for name := range state.Applied {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err = tx.ExecContext(ctx, `INSERT INTO applied_options (name, value) VALUES (?, ?)`, name, state.Applied[name]); err != nil {
			return fmt.Errorf("insert option: %w", err)
		}
	}

	for _, port := range state.Ports {
		if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO opened_ports (port) VALUES (?)`, port); err != nil {
			return fmt.Errorf("insert port: %w", err)
		}
	}

	meta := map[string]string{
		metaFingerprint:   state.ResourceFingerprint,
		metaStatusLevel:   string(state.Status.Level),
		metaStatusMessage: state.Status.Message,
	}
	if !state.Status.UpdatedAt.IsZero() {
		meta[metaStatusUpdated] = state.Status.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	for key, value := range meta {
		if value == "" {
			continue
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("insert meta: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		out = append(out, value)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadMeta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("load meta: %w", err)
	}
	defer rows.Close()

	meta := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		meta[key] = value
	}
	return meta, rows.Err()
}
