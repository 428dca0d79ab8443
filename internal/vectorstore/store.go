package vectorstore

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// #region store

// Store is an in-memory cosine-similarity index persisted through a Backend
// after every mutation.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
	nextSeq uint64
	backend Backend
}

// Open builds a Store and loads every record the backend holds.
// A nil backend behaves like NopBackend.
func Open(backend Backend) (*Store, error) {
	if backend == nil {
		backend = NopBackend{}
	}
	recs, err := backend.LoadAll()
	if err != nil {
		return nil, err
	}
	s := &Store{records: make(map[string]*Record, len(recs)), backend: backend}
	for i := range recs {
		rec := recs[i]
		s.records[rec.ID] = &rec
		if rec.Seq >= s.nextSeq {
			s.nextSeq = rec.Seq + 1
		}
	}
	log.Info().Str("component", "vectorstore").Int("records", len(recs)).Msg("vector store opened")
	return s, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// #endregion store

// #region mutations

// Upsert inserts or replaces the record with id. A replaced record keeps its
// original insertion position. The in-memory record is kept even when
// persistence fails; the persistence error is returned.
func (s *Store) Upsert(id string, vector []float32, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &Record{
		ID:       id,
		Vector:   slices.Clone(vector),
		Metadata: maps.Clone(metadata),
	}
	if old, ok := s.records[id]; ok {
		rec.Seq = old.Seq
	} else {
		rec.Seq = s.nextSeq
		s.nextSeq++
	}
	s.records[id] = rec

	if err := s.backend.Put(*rec); err != nil {
		log.Error().Err(err).Str("component", "vectorstore").Str("id", id).Msg("persist vector failed")
		return fmt.Errorf("persist vector %s: %w", id, err)
	}
	return nil
}

// Delete removes id. It returns ErrNotFound for unknown ids.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	if err := s.backend.Delete(id); err != nil {
		log.Error().Err(err).Str("component", "vectorstore").Str("id", id).Msg("persist delete failed")
		return fmt.Errorf("persist delete %s: %w", id, err)
	}
	return nil
}

// #endregion mutations

// #region queries

// Get returns a copy of the record with id.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return Record{
		ID:       rec.ID,
		Seq:      rec.Seq,
		Vector:   slices.Clone(rec.Vector),
		Metadata: maps.Clone(rec.Metadata),
	}, true
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Search returns up to k records most cosine-similar to query, descending.
// Records of a different dimensionality and zero-norm vectors are skipped;
// equal similarities keep insertion order.
func (s *Store) Search(query []float32, k int) []Match {
	if k <= 0 {
		return nil
	}
	qNorm := norm(query)
	if qNorm == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		rec *Record
		sim float64
	}
	candidates := make([]scored, 0, len(s.records))
	for _, rec := range s.records {
		if len(rec.Vector) != len(query) {
			continue
		}
		rNorm := norm(rec.Vector)
		if rNorm == 0 {
			continue
		}
		candidates = append(candidates, scored{rec: rec, sim: dot(query, rec.Vector) / (qNorm * rNorm)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].sim != candidates[j].sim {
			return candidates[i].sim > candidates[j].sim
		}
		return candidates[i].rec.Seq < candidates[j].rec.Seq
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]Match, len(candidates))
	for i, c := range candidates {
		out[i] = Match{ID: c.rec.ID, Similarity: c.sim, Metadata: maps.Clone(c.rec.Metadata)}
	}
	return out
}

// #endregion queries

// #region helpers

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func norm(v []float32) float64 {
	n := math.Sqrt(dot(v, v))
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

// #endregion helpers
