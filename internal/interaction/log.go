package interaction

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"unicode/utf8"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS interactions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id     TEXT NOT NULL,
	session_id  TEXT NOT NULL,
	text        TEXT NOT NULL,
	text_length INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_session ON interactions(session_id, id);
CREATE INDEX IF NOT EXISTS idx_interactions_user ON interactions(user_id, id);
`

// #endregion schema

// #region log-struct
// Log appends interactions to SQLite and answers history queries.
type Log struct {
	db *sql.DB
}

// NewLog migrates the interactions table on db.
func NewLog(db *sql.DB) (*Log, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate interactions: %w", err)
	}
	return &Log{db: db}, nil
}

// #endregion log-struct

// #region append
// Append records e and returns it with ID, TextLength and CreatedAt filled in.
func (l *Log) Append(ctx context.Context, e Entry) (Entry, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.TextLength = utf8.RuneCountInString(e.Text)

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO interactions (user_id, session_id, text, text_length, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.UserID, e.SessionID, e.Text, e.TextLength, e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return e, fmt.Errorf("log interaction: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return e, nil
}

// #endregion append

// #region history
// SessionHistory returns the last limit entries of a session, oldest first.
func (l *Log) SessionHistory(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	return l.history(ctx, "session_id", sessionID, limit)
}

// UserHistory returns the last limit entries of a user, oldest first.
func (l *Log) UserHistory(ctx context.Context, userID string, limit int) ([]Entry, error) {
	return l.history(ctx, "user_id", userID, limit)
}

func (l *Log) history(ctx context.Context, column, value string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	// column is one of two constants above, never user input.
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, user_id, session_id, text, text_length, created_at FROM (
		   SELECT * FROM interactions WHERE `+column+` = ? ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`, value, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var createdStr string
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.Text, &e.TextLength, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
			return nil, fmt.Errorf("parse created_at for interaction %d: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountSession returns how many interactions a session has logged.
func (l *Log) CountSession(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM interactions WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count session: %w", err)
	}
	return n, nil
}

// #endregion history

// #region scan
// Each calls fn for every logged interaction in insertion order and stops at
// the first error fn returns.
func (l *Log) Each(ctx context.Context, fn func(Entry) error) error {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, user_id, session_id, text, text_length, created_at FROM interactions ORDER BY id ASC`)
	if err != nil {
		return fmt.Errorf("scan interactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Entry
		var createdStr string
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.Text, &e.TextLength, &createdStr); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
			return fmt.Errorf("parse created_at for interaction %d: %w", e.ID, err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// #endregion scan
