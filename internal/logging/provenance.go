package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS fusion_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	decision_id   TEXT NOT NULL UNIQUE,
	user_id       TEXT NOT NULL,
	session_id    TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	coherence     REAL NOT NULL,
	rules_version TEXT,
	record_json   TEXT,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fusion_log_user ON fusion_log(user_id, id);
`

// EnsureSchema creates the fusion_log table on db.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate fusion_log: %w", err)
	}
	return nil
}

// #endregion schema

// #region log-decision
// LogDecision writes a decision entry to the fusion_log table.
func LogDecision(db *sql.DB, entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO fusion_log (decision_id, user_id, session_id, decision, reason, coherence, rules_version, record_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.DecisionID,
		entry.UserID,
		nullIfEmpty(entry.SessionID),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.Coherence,
		nullIfEmpty(entry.RulesVersion),
		nullIfEmpty(entry.RecordJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// EncodeRecord marshals rec for DecisionEntry.RecordJSON.
func EncodeRecord(rec DecisionRecord) (string, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode decision record: %w", err)
	}
	return string(b), nil
}

// #endregion log-decision

// #region recent
// Recent returns the last limit decisions, newest first.
func Recent(db *sql.DB, limit int) ([]DecisionEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(
		`SELECT id, decision_id, user_id, session_id, decision, reason, coherence, rules_version, record_json, created_at
		 FROM fusion_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query fusion_log: %w", err)
	}
	defer rows.Close()

	var out []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		var session, reason, version, record sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ID, &e.DecisionID, &e.UserID, &session, &e.Decision, &reason,
			&e.Coherence, &version, &record, &createdStr); err != nil {
			return nil, fmt.Errorf("scan fusion_log: %w", err)
		}
		e.SessionID = session.String
		e.Reason = reason.String
		e.RulesVersion = version.String
		e.RecordJSON = record.String
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
			return nil, fmt.Errorf("parse created_at for decision %s: %w", e.DecisionID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Records decodes the DecisionRecord of each entry, skipping rows without
// one or with malformed JSON.
func Records(entries []DecisionEntry) []DecisionRecord {
	var out []DecisionRecord
	for _, e := range entries {
		if e.RecordJSON == "" {
			continue
		}
		var rec DecisionRecord
		if err := json.Unmarshal([]byte(e.RecordJSON), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// #endregion recent

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
