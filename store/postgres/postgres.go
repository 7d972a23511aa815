// Package postgres is a store.Storage backed by Postgres.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Comcast/scxml/store"

	_ "github.com/lib/pq"
)

// Storage keeps documents and session records in two tables.
type Storage struct {
	// DSN is the connection string.  If empty, one is built from
	// the usual PG* environment variables.
	DSN string

	db *sql.DB
}

func NewStorage(dsn string) *Storage {
	return &Storage{
		DSN: dsn,
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// EnvDSN makes a connection string from PGHOST, PGPORT, PGUSER,
// PGDATABASE, and PGPASSWORD.
func EnvDSN() string {
	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "scxml")
	dbname := getEnv("PGDATABASE", "scxml")
	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port, user, dbname)
	if password := os.Getenv("PGPASSWORD"); password != "" {
		dsn += " password=" + password
	}
	return dsn
}

func (s *Storage) Open(ctx context.Context) error {
	dsn := s.DSN
	if dsn == "" {
		dsn = EnvDSN()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}
	s.db = db
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (s *Storage) Close(ctx context.Context) error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Storage) createTables(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS scxml_documents (
			name    TEXT PRIMARY KEY,
			src     BYTEA NOT NULL,
			updated TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS scxml_sessions (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			parent     TEXT,
			invokeid   TEXT,
			final      JSONB NOT NULL,
			terminated TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_scxml_sessions_name ON scxml_sessions(name);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *Storage) GetDocument(ctx context.Context, name string) ([]byte, error) {
	var src []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT src FROM scxml_documents WHERE name = $1`, name).Scan(&src)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", name, store.NotFound)
	}
	return src, err
}

func (s *Storage) PutDocument(ctx context.Context, name string, src []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scxml_documents (name, src) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET src = EXCLUDED.src, updated = now()
	`, name, src)
	return err
}

func (s *Storage) RemDocument(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scxml_documents WHERE name = $1`, name)
	return err
}

func (s *Storage) ListDocuments(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM scxml_documents ORDER BY name COLLATE "C"`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var acc []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		acc = append(acc, name)
	}
	return acc, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Storage) WriteSession(ctx context.Context, r *store.SessionRecord) error {
	final, err := json.Marshal(r.Final)
	if err != nil {
		return fmt.Errorf("failed to marshal final configuration: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scxml_sessions (id, name, parent, invokeid, final, terminated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			parent = EXCLUDED.parent,
			invokeid = EXCLUDED.invokeid,
			final = EXCLUDED.final,
			terminated = EXCLUDED.terminated
	`, r.Id, r.Name, nullable(r.Parent), nullable(r.InvokeId), final, r.Terminated)
	return err
}

func (s *Storage) GetSession(ctx context.Context, id string) (*store.SessionRecord, error) {
	var (
		r                store.SessionRecord
		parent, invokeId sql.NullString
		final            []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, parent, invokeid, final, terminated
		FROM scxml_sessions WHERE id = $1
	`, id).Scan(&r.Id, &r.Name, &parent, &invokeId, &final, &r.Terminated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, store.NotFound)
	}
	if err != nil {
		return nil, err
	}
	r.Parent = parent.String
	r.InvokeId = invokeId.String
	if err := json.Unmarshal(final, &r.Final); err != nil {
		return nil, fmt.Errorf("failed to unmarshal final configuration: %w", err)
	}
	return &r, nil
}
