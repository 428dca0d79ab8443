package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS concepts (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL,
    lemma       TEXT NOT NULL,
    entity_type TEXT NOT NULL DEFAULT '',
    pos_tag     TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT '',
    frequency   INTEGER NOT NULL DEFAULT 1,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL,
    UNIQUE(name, entity_type)
);
CREATE INDEX IF NOT EXISTS idx_concepts_lemma ON concepts(lemma);

CREATE TABLE IF NOT EXISTS relationships (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    subject_id      INTEGER NOT NULL REFERENCES concepts(id),
    predicate       TEXT NOT NULL,
    predicate_lemma TEXT NOT NULL,
    object_id       INTEGER NOT NULL REFERENCES concepts(id),
    dependency_type TEXT NOT NULL DEFAULT '',
    strength        REAL NOT NULL DEFAULT 0.1,
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL,
    UNIQUE(subject_id, predicate_lemma, object_id)
);
CREATE INDEX IF NOT EXISTS idx_rel_subject ON relationships(subject_id);
CREATE INDEX IF NOT EXISTS idx_rel_object ON relationships(object_id);
`

// #endregion schema

// #region types

// ErrUnknownConcept is returned when a relationship endpoint is not stored.
var ErrUnknownConcept = errors.New("graph: unknown concept")

// ConceptRow is a stored concept with its observation count.
type ConceptRow struct {
	ID         int64
	Name       string
	Lemma      string
	EntityType string
	POSTag     string
	Category   string
	Frequency  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Edge is a stored relationship from one concept to another.
type Edge struct {
	ID             int64
	Subject        string
	Predicate      string
	PredicateLemma string
	Object         string
	DependencyType string
	Strength       float64
	UpdatedAt      time.Time
}

// WalkResult holds an ordered path from a graph walk.
type WalkResult struct {
	Names  []string  // concept names in walk order
	Scores []float64 // cumulative scores at each node
}

// ConceptStore manages the concepts and relationships tables.
type ConceptStore struct {
	db              *sql.DB
	initialStrength float64
}

// #endregion types

// #region constructor

// NewConceptStore creates tables and returns a ConceptStore.
func NewConceptStore(db *sql.DB) (*ConceptStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("graph schema: %w", err)
	}
	return &ConceptStore{db: db, initialStrength: 0.1}, nil
}

// #endregion constructor

// #region upsert-concepts

// UpsertConcepts stores each concept, incrementing frequency for ones
// already known under the same name and entity type.
func (g *ConceptStore) UpsertConcepts(ctx context.Context, concepts []signals.Concept) error {
	if len(concepts) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, c := range concepts {
		lemma := c.Lemma
		if lemma == "" {
			lemma = strings.ToLower(c.Name)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO concepts (name, lemma, entity_type, pos_tag, category, frequency, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?, ?)
			 ON CONFLICT(name, entity_type) DO UPDATE SET
			   frequency = concepts.frequency + 1,
			   updated_at = ?`,
			c.Name, lemma, c.EntityType, c.POSTag, c.Category, now, now,
			now,
		); err != nil {
			return fmt.Errorf("upsert concept %q: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

// #endregion upsert-concepts

// #region add-relationships

// AddRelationships stores relationships whose subject and object resolve to
// known concepts and reinforces ones already stored. It returns how many
// were stored; unresolved triples are skipped.
func (g *ConceptStore) AddRelationships(ctx context.Context, rels []signals.Relationship) (int, error) {
	stored := 0
	for _, r := range rels {
		subj, ok, err := g.resolve(ctx, r.Subject)
		if err != nil {
			return stored, err
		}
		if !ok {
			continue
		}
		obj, ok, err := g.resolve(ctx, r.Object)
		if err != nil {
			return stored, err
		}
		if !ok {
			continue
		}
		lemma := r.PredicateLemma
		if lemma == "" {
			lemma = strings.ToLower(r.Predicate)
		}
		if err := g.upsertEdge(ctx, subj, r.Predicate, lemma, obj, r.DependencyType, g.initialStrength); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}

// resolve finds the most frequent concept matching name or lemma.
func (g *ConceptStore) resolve(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	err := g.db.QueryRowContext(ctx,
		`SELECT id FROM concepts WHERE lower(name) = lower(?) OR lemma = lower(?)
		 ORDER BY frequency DESC, id ASC LIMIT 1`,
		name, name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolve concept %q: %w", name, err)
	}
	return id, true, nil
}

func (g *ConceptStore) upsertEdge(ctx context.Context, subj int64, predicate, lemma string, obj int64, depType string, delta float64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := g.db.ExecContext(ctx,
		`INSERT INTO relationships (subject_id, predicate, predicate_lemma, object_id, dependency_type, strength, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(subject_id, predicate_lemma, object_id) DO UPDATE SET
		   strength = MIN(1.0, relationships.strength + ?),
		   updated_at = ?`,
		subj, predicate, lemma, obj, depType, math.Min(1, delta), now, now,
		delta, now,
	)
	if err != nil {
		return fmt.Errorf("upsert relationship: %w", err)
	}
	return nil
}

// ReinforceRelationship increases the strength of subject-predicate-object
// by delta, capped at 1.0, creating it when both concepts are known.
func (g *ConceptStore) ReinforceRelationship(ctx context.Context, subject, predicateLemma, object string, delta float64) error {
	subj, ok, err := g.resolve(ctx, subject)
	if err != nil || !ok {
		return notFound(err, subject)
	}
	obj, ok, err := g.resolve(ctx, object)
	if err != nil || !ok {
		return notFound(err, object)
	}
	return g.upsertEdge(ctx, subj, predicateLemma, predicateLemma, obj, "", delta)
}

func notFound(err error, name string) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnknownConcept, name)
}

// #endregion add-relationships

// #region queries

// ConceptCount returns the number of distinct stored concepts.
func (g *ConceptStore) ConceptCount(ctx context.Context) (int, error) {
	var n int
	if err := g.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM concepts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count concepts: %w", err)
	}
	return n, nil
}

// RelationshipCount returns the number of stored relationships.
func (g *ConceptStore) RelationshipCount(ctx context.Context) (int, error) {
	var n int
	if err := g.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relationships`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count relationships: %w", err)
	}
	return n, nil
}

// TopConcepts returns the most frequently observed concepts.
func (g *ConceptStore) TopConcepts(ctx context.Context, limit int) ([]ConceptRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := g.db.QueryContext(ctx,
		`SELECT id, name, lemma, entity_type, pos_tag, category, frequency, created_at, updated_at
		 FROM concepts ORDER BY frequency DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top concepts: %w", err)
	}
	defer rows.Close()

	var out []ConceptRow
	for rows.Next() {
		var c ConceptRow
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Lemma, &c.EntityType, &c.POSTag, &c.Category,
			&c.Frequency, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at for concept %q: %w", c.Name, err)
		}
		if c.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at for concept %q: %w", c.Name, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Neighbors returns relationships from the named concept with strength >=
// minStrength, strongest first.
func (g *ConceptStore) Neighbors(ctx context.Context, name string, minStrength float64) ([]Edge, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT r.id, s.name, r.predicate, r.predicate_lemma, o.name, r.dependency_type, r.strength, r.updated_at
		 FROM relationships r
		 JOIN concepts s ON s.id = r.subject_id
		 JOIN concepts o ON o.id = r.object_id
		 WHERE (lower(s.name) = lower(?) OR s.lemma = lower(?)) AND r.strength >= ?
		 ORDER BY r.strength DESC, r.id ASC`,
		name, name, minStrength,
	)
	if err != nil {
		return nil, fmt.Errorf("neighbors of %q: %w", name, err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		var updatedAt string
		if err := rows.Scan(&e.ID, &e.Subject, &e.Predicate, &e.PredicateLemma, &e.Object,
			&e.DependencyType, &e.Strength, &updatedAt); err != nil {
			return nil, err
		}
		if e.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at for relationship %d: %w", e.ID, err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// #endregion queries

// #region walk

// Walk performs a BFS from entry, following relationships with strength >=
// minStrength, up to maxDepth hops and maxNodes total. Returns concepts in
// visit order with cumulative scores.
func (g *ConceptStore) Walk(ctx context.Context, entry string, maxDepth int, minStrength float64, maxNodes int) (WalkResult, error) {
	if maxDepth <= 0 {
		maxDepth = 5
	}
	if maxNodes <= 0 {
		maxNodes = 10
	}

	result := WalkResult{
		Names:  []string{entry},
		Scores: []float64{1.0},
	}
	visited := map[string]bool{strings.ToLower(entry): true}

	type queueItem struct {
		name  string
		depth int
		score float64
	}
	queue := []queueItem{{entry, 0, 1.0}}

	for len(queue) > 0 && len(result.Names) < maxNodes {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= maxDepth {
			continue
		}

		neighbors, err := g.Neighbors(ctx, current.name, minStrength)
		if err != nil {
			return result, fmt.Errorf("walk neighbors: %w", err)
		}
		for _, edge := range neighbors {
			if len(result.Names) >= maxNodes {
				break
			}
			key := strings.ToLower(edge.Object)
			if visited[key] {
				continue
			}
			visited[key] = true
			cumScore := current.score * edge.Strength
			result.Names = append(result.Names, edge.Object)
			result.Scores = append(result.Scores, cumScore)
			queue = append(queue, queueItem{edge.Object, current.depth + 1, cumScore})
		}
	}
	return result, nil
}

// #endregion walk

// #region decay

// DecayAll applies exponential decay to relationship strengths based on time
// since last update. Relationships that fall below 0.01 are deleted; the
// number deleted is returned.
func (g *ConceptStore) DecayAll(ctx context.Context, halfLifeHours float64) (int64, error) {
	if halfLifeHours <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	halfLifeSec := halfLifeHours * 3600.0

	rows, err := g.db.QueryContext(ctx, `SELECT id, strength, updated_at FROM relationships`)
	if err != nil {
		return 0, err
	}

	type decayItem struct {
		id       int64
		strength float64
	}
	var updates []decayItem
	var deletes []int64
	for rows.Next() {
		var id int64
		var strength float64
		var updatedAt string
		if err := rows.Scan(&id, &strength, &updatedAt); err != nil {
			rows.Close()
			return 0, err
		}
		t, err := time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			rows.Close()
			return 0, fmt.Errorf("parse updated_at for relationship %d: %w", id, err)
		}
		ageSec := now.Sub(t).Seconds()
		if ageSec <= 0 {
			continue
		}
		decayed := strength * math.Exp(-ageSec*math.Ln2/halfLifeSec)
		if decayed < 0.01 {
			deletes = append(deletes, id)
		} else {
			updates = append(updates, decayItem{id, decayed})
		}
	}
	rows.Close()

	nowStr := now.Format(time.RFC3339)
	for _, u := range updates {
		if _, err := g.db.ExecContext(ctx, `UPDATE relationships SET strength = ?, updated_at = ? WHERE id = ?`, u.strength, nowStr, u.id); err != nil {
			return 0, err
		}
	}
	for _, id := range deletes {
		if _, err := g.db.ExecContext(ctx, `DELETE FROM relationships WHERE id = ?`, id); err != nil {
			return 0, err
		}
	}
	return int64(len(deletes)), nil
}

// #endregion decay
