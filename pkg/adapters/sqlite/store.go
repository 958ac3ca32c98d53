// Package sqlite persists refinement sessions in a SQLite database, together with a
// queryable ledger of every iteration.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/quill/pkg/domain"
	_ "modernc.org/sqlite"
)

const schemaV1 = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id      TEXT PRIMARY KEY,
	status          TEXT NOT NULL DEFAULT 'pending',
	is_complete     INTEGER NOT NULL DEFAULT 0,
	state_json      TEXT NOT NULL,
	created_at_unix INTEGER NOT NULL DEFAULT 0,
	updated_at_unix INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS iterations (
	session_id      TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
	iteration       INTEGER NOT NULL,
	score           INTEGER NOT NULL DEFAULT 0,
	decision        TEXT NOT NULL,
	reason          TEXT NOT NULL DEFAULT '',
	draft_failed    INTEGER NOT NULL DEFAULT 0,
	draft_length    INTEGER NOT NULL DEFAULT 0,
	key_issues_json TEXT NOT NULL DEFAULT '[]',
	completed_at    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (session_id, iteration)
);
`

// Store implements ports.SessionStore on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and migrates it.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer; WAL still lets readers in.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaV1); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts the session row and rewrites its iteration ledger in one transaction.
func (s *Store) Save(ctx context.Context, sessionID string, state *domain.State) error {
	if sessionID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sessionID, err)
	}
	complete, _ := state.Values[domain.KeyIsComplete].(bool)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, status, is_complete, state_json, created_at_unix, updated_at_unix)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			status = excluded.status,
			is_complete = excluded.is_complete,
			state_json = excluded.state_json,
			updated_at_unix = excluded.updated_at_unix`,
		sessionID, string(state.Status), complete, string(data),
		state.CreatedAt.Unix(), state.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", sessionID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM iterations WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear ledger for %s: %w", sessionID, err)
	}
	for _, rec := range state.History {
		issues, err := json.Marshal(rec.KeyIssues)
		if err != nil {
			return fmt.Errorf("marshal key issues: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO iterations (session_id, iteration, score, decision, reason, draft_failed, draft_length, key_issues_json, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sessionID, rec.Iteration, rec.Score, string(rec.Decision), string(rec.Reason),
			rec.DraftFailed, rec.DraftLength, string(issues), rec.CompletedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("record iteration %d of %s: %w", rec.Iteration, sessionID, err)
		}
	}
	return tx.Commit()
}

// Load reads a session. Numbers are decoded as json.Number.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM sessions WHERE session_id = ?`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var state domain.State
	if err := dec.Decode(&state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &state, nil
}

// Delete removes a session and its ledger.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM iterations WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete ledger for %s: %w", sessionID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return tx.Commit()
}

// List returns all session IDs in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id FROM sessions ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Iterations returns the ledger of a session in iteration order.
func (s *Store) Iterations(ctx context.Context, sessionID string) ([]domain.IterationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT iteration, score, decision, reason, draft_failed, draft_length, key_issues_json, completed_at
		FROM iterations WHERE session_id = ? ORDER BY iteration`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query iterations of %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []domain.IterationRecord
	for rows.Next() {
		var (
			rec              domain.IterationRecord
			decision, reason string
			issues           string
			completedAt      int64
		)
		if err := rows.Scan(&rec.Iteration, &rec.Score, &decision, &reason,
			&rec.DraftFailed, &rec.DraftLength, &issues, &completedAt); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		rec.Decision = domain.Decision(decision)
		rec.Reason = domain.Reason(reason)
		rec.CompletedAt = time.UnixMilli(completedAt).UTC()
		if err := json.Unmarshal([]byte(issues), &rec.KeyIssues); err != nil {
			return nil, fmt.Errorf("decode key issues: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ScoreStats summarises the final scores of completed sessions.
type ScoreStats struct {
	Sessions int     `json:"sessions"`
	Average  float64 `json:"average"`
	Best     int     `json:"best"`
}

// Stats aggregates the last recorded score of every completed session.
func (s *Store) Stats(ctx context.Context) (ScoreStats, error) {
	var (
		stats ScoreStats
		avg   sql.NullFloat64
		best  sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(i.score), MAX(i.score)
		FROM sessions s
		JOIN iterations i ON i.session_id = s.session_id
		WHERE s.is_complete = 1
		  AND i.iteration = (SELECT MAX(iteration) FROM iterations WHERE session_id = s.session_id)`).
		Scan(&stats.Sessions, &avg, &best)
	if err != nil {
		return ScoreStats{}, fmt.Errorf("score stats: %w", err)
	}
	stats.Average = avg.Float64
	stats.Best = int(best.Int64)
	return stats, nil
}
