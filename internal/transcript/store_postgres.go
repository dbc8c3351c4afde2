package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS ws_transcripts (
	session_id   TEXT        NOT NULL,
	seq          BIGINT      NOT NULL,
	kind         TEXT        NOT NULL,
	direction    TEXT        NOT NULL,
	payload_type TEXT        NOT NULL DEFAULT '',
	data         BYTEA,
	code         INTEGER     NOT NULL DEFAULT 0,
	reason       TEXT        NOT NULL DEFAULT '',
	at           TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, seq)
)`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate ws_transcripts: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, e *Entry) error {
	if e == nil || strings.TrimSpace(e.SessionID) == "" {
		return ErrInvalidEntry
	}
	const q = `
		INSERT INTO ws_transcripts (session_id, seq, kind, direction, payload_type, data, code, reason, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id, seq) DO NOTHING`
	_, err := s.db.ExecContext(ctx, q,
		e.SessionID, e.Seq, string(e.Kind), string(e.Direction), e.PayloadType,
		e.Data, e.Code, e.Reason, e.At,
	)
	if err != nil {
		return fmt.Errorf("insert transcript entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, sessionID string, limit int) ([]*Entry, error) {
	q := `
		SELECT session_id, seq, kind, direction, payload_type, data, code, reason, at
		FROM ws_transcripts
		WHERE session_id = $1
		ORDER BY seq ASC`
	args := []any{sessionID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var (
			e         Entry
			kind, dir string
		)
		if err := rows.Scan(&e.SessionID, &e.Seq, &kind, &dir, &e.PayloadType, &e.Data, &e.Code, &e.Reason, &e.At); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		e.Kind, e.Direction = Kind(kind), Direction(dir)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
