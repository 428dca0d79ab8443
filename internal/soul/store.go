package soul

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS souls (
	user_id           TEXT PRIMARY KEY,
	vector            BLOB NOT NULL,
	alignment_score   REAL NOT NULL,
	interaction_count INTEGER NOT NULL DEFAULT 0,
	preferences       TEXT NOT NULL DEFAULT '{}',
	created_at        TEXT NOT NULL,
	last_updated      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS soul_versions (
	version_id        TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	vector            BLOB NOT NULL,
	alignment_score   REAL NOT NULL,
	interaction_count INTEGER NOT NULL,
	coherence         REAL NOT NULL,
	delta_norm        REAL NOT NULL,
	decision          TEXT NOT NULL,
	created_at        TEXT NOT NULL,
	FOREIGN KEY (user_id) REFERENCES souls(user_id)
);
CREATE INDEX IF NOT EXISTS idx_soul_versions_user ON soul_versions(user_id, created_at);
`

// #endregion schema

// #region store-struct
// Store persists soul records in SQLite, one row per user.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// OpenDB opens a SQLite database with WAL journaling and foreign keys.
// Pragmas go through the DSN so every pooled connection gets them.
func OpenDB(dbPath string) (*sql.DB, error) {
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// NewStore runs migrations on db and returns a Store.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate souls: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region save
// Save upserts rec.
func (s *Store) Save(ctx context.Context, rec Record) error {
	prefs, err := json.Marshal(rec.Preferences)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO souls (user_id, vector, alignment_score, interaction_count, preferences, created_at, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   vector = excluded.vector,
		   alignment_score = excluded.alignment_score,
		   interaction_count = excluded.interaction_count,
		   preferences = excluded.preferences,
		   last_updated = excluded.last_updated`,
		rec.UserID, encodeVector(rec.Vector), rec.Alignment, rec.InteractionCount, string(prefs),
		rec.CreatedAt.Format(time.RFC3339Nano), rec.LastUpdated.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save soul %s: %w", rec.UserID, err)
	}
	return nil
}

// #endregion save

// #region load
// Load reads one user's record.
func (s *Store) Load(ctx context.Context, userID string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, vector, alignment_score, interaction_count, preferences, created_at, last_updated
		 FROM souls WHERE user_id = ?`, userID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	return rec, err
}

// LoadAll reads every record ordered by user id.
func (s *Store) LoadAll(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, vector, alignment_score, interaction_count, preferences, created_at, last_updated
		 FROM souls ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list souls: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var rec Record
	var vecBlob []byte
	var prefs, createdStr, updatedStr string
	if err := sc.Scan(&rec.UserID, &vecBlob, &rec.Alignment, &rec.InteractionCount, &prefs, &createdStr, &updatedStr); err != nil {
		return Record{}, err
	}
	rec.Vector = decodeVector(vecBlob)
	if err := json.Unmarshal([]byte(prefs), &rec.Preferences); err != nil {
		return Record{}, fmt.Errorf("unmarshal preferences for %s: %w", rec.UserID, err)
	}
	if rec.Preferences == nil {
		rec.Preferences = map[string]any{}
	}
	var err error
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
		return Record{}, fmt.Errorf("parse created_at for %s: %w", rec.UserID, err)
	}
	if rec.LastUpdated, err = time.Parse(time.RFC3339Nano, updatedStr); err != nil {
		return Record{}, fmt.Errorf("parse last_updated for %s: %w", rec.UserID, err)
	}
	return rec, nil
}

// #endregion load

// #region versions
// AppendVersion records one committed update.
func (s *Store) AppendVersion(ctx context.Context, v Version) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO soul_versions (version_id, user_id, vector, alignment_score, interaction_count, coherence, delta_norm, decision, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.VersionID, v.UserID, encodeVector(v.Vector), v.Alignment, v.InteractionCount,
		v.Coherence, v.DeltaNorm, v.Decision, v.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append version: %w", err)
	}
	return nil
}

// History returns a user's most recent versions, newest first.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]Version, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT version_id, user_id, vector, alignment_score, interaction_count, coherence, delta_norm, decision, created_at
		 FROM soul_versions WHERE user_id = ? ORDER BY interaction_count DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("soul history: %w", err)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		var v Version
		var vecBlob []byte
		var createdStr string
		if err := rows.Scan(&v.VersionID, &v.UserID, &vecBlob, &v.Alignment, &v.InteractionCount,
			&v.Coherence, &v.DeltaNorm, &v.Decision, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		v.Vector = decodeVector(vecBlob)
		if v.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
			return nil, fmt.Errorf("parse created_at for version %s: %w", v.VersionID, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// #endregion versions

// #region vector-encoding
func encodeVector(v signals.Affect) []byte {
	buf := make([]byte, signals.Dim*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte) signals.Affect {
	var v signals.Affect
	for i := range v {
		if i*8+8 <= len(b) {
			v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
		}
	}
	return v
}

// #endregion vector-encoding
