package soul

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/metrics"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/update"
)

// Persister is the durable side of the manager. *Store implements it.
type Persister interface {
	Save(ctx context.Context, rec Record) error
	AppendVersion(ctx context.Context, v Version) error
}

// #region manager
// Manager owns every soul in memory and writes through to a Persister.
// Updates to the same user are serialized; different users proceed in
// parallel. The in-memory record stays authoritative when a write fails.
type Manager struct {
	mu    sync.RWMutex
	souls map[string]*Record
	locks map[string]*sync.Mutex

	store  Persister
	config update.Config
	random func() float64
}

// NewManager builds a manager seeded from records (typically Store.LoadAll).
// store may be nil for a purely in-memory manager.
func NewManager(store Persister, config update.Config, records []Record) *Manager {
	m := &Manager{
		souls:  make(map[string]*Record, len(records)),
		locks:  make(map[string]*sync.Mutex),
		store:  store,
		config: config,
		random: rand.Float64,
	}
	for _, rec := range records {
		r := rec.Clone()
		if _, ok := r.Vector.Normalized(); !ok {
			r.Vector = signals.Uniform()
		}
		m.souls[r.UserID] = &r
	}
	metrics.SoulCount.Set(float64(len(m.souls)))
	return m
}

// #endregion manager

// #region get-or-create
// GetOrCreate returns a snapshot of userID's record, creating it with a
// random unit vector and alignment 0.5 if absent.
func (m *Manager) GetOrCreate(ctx context.Context, userID string) Record {
	m.mu.RLock()
	rec, ok := m.souls[userID]
	if ok {
		out := rec.Clone()
		m.mu.RUnlock()
		return out
	}
	m.mu.RUnlock()

	m.mu.Lock()
	rec, created := m.createLocked(userID)
	out := rec.Clone()
	m.mu.Unlock()

	if created {
		m.persist(ctx, out)
		log.Info().Str("component", "soul").Str("user_id", userID).Msg("created soul")
	}
	return out
}

// createLocked returns the record for userID, inserting a fresh one if
// needed. Caller holds m.mu for writing.
func (m *Manager) createLocked(userID string) (*Record, bool) {
	if rec, ok := m.souls[userID]; ok {
		return rec, false
	}
	now := time.Now().UTC()
	rec := &Record{
		UserID:      userID,
		Vector:      m.randomUnit(),
		Alignment:   0.5,
		Preferences: map[string]any{},
		CreatedAt:   now,
		LastUpdated: now,
	}
	m.souls[userID] = rec
	metrics.SoulCount.Set(float64(len(m.souls)))
	return rec, true
}

func (m *Manager) randomUnit() signals.Affect {
	var v signals.Affect
	for i := range v {
		v[i] = m.random()
	}
	if n, ok := v.Normalized(); ok {
		return n
	}
	return signals.Uniform()
}

// #endregion get-or-create

// #region update
// Update applies one moving-average step for userID and persists the
// result. The returned error reports persistence failure only; the
// in-memory update has been applied either way.
func (m *Manager) Update(ctx context.Context, userID string, signal signals.Affect, coherence float64) (Record, update.Metrics, error) {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	rec, _ := m.createLocked(userID)
	old := update.State{
		Vector:           rec.Vector,
		Alignment:        rec.Alignment,
		InteractionCount: rec.InteractionCount,
		LastUpdated:      rec.LastUpdated,
	}
	m.mu.Unlock()

	res := update.Update(old, signal, coherence, m.config)

	m.mu.Lock()
	rec.Vector = res.State.Vector
	rec.Alignment = res.State.Alignment
	rec.InteractionCount = res.State.InteractionCount
	rec.LastUpdated = res.State.LastUpdated
	out := rec.Clone()
	m.mu.Unlock()

	metrics.SoulUpdates.WithLabelValues(res.Decision.Action).Inc()
	if res.Metrics.Degenerate {
		log.Warn().Str("component", "soul").Str("user_id", userID).
			Str("reason", res.Decision.Reason).Msg("kept previous vector")
	}

	var err error
	if m.store != nil {
		if serr := m.store.Save(ctx, out); serr != nil {
			err = serr
		} else if verr := m.store.AppendVersion(ctx, Version{
			VersionID:        uuid.New().String(),
			UserID:           userID,
			Vector:           out.Vector,
			Alignment:        out.Alignment,
			InteractionCount: out.InteractionCount,
			Coherence:        coherence,
			DeltaNorm:        res.Metrics.DeltaNorm,
			Decision:         res.Decision.Action,
			CreatedAt:        out.LastUpdated,
		}); verr != nil {
			err = verr
		}
		if err != nil {
			metrics.PersistErrors.WithLabelValues("soul").Inc()
			log.Error().Err(err).Str("component", "soul").Str("user_id", userID).Msg("persist failed")
		}
	}
	return out, res.Metrics, err
}

func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	return l
}

// #endregion update

// #region accessors
// Snapshot returns a copy of userID's record.
func (m *Manager) Snapshot(userID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.souls[userID]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	return rec.Clone(), nil
}

// Vector returns userID's soul vector, creating the soul if needed.
func (m *Manager) Vector(ctx context.Context, userID string) signals.Affect {
	return m.GetOrCreate(ctx, userID).Vector
}

// Alignment returns userID's alignment, creating the soul if needed.
func (m *Manager) Alignment(ctx context.Context, userID string) float64 {
	return m.GetOrCreate(ctx, userID).Alignment
}

// SetPreference stores key=value for userID, creating the soul if needed.
func (m *Manager) SetPreference(ctx context.Context, userID, key string, value any) error {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	rec, _ := m.createLocked(userID)
	if rec.Preferences == nil {
		rec.Preferences = map[string]any{}
	}
	rec.Preferences[key] = value
	out := rec.Clone()
	m.mu.Unlock()

	return m.persist(ctx, out)
}

// GetPreference returns the stored value for key, or def when unset.
func (m *Manager) GetPreference(userID, key string, def any) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.souls[userID]
	if !ok {
		return def
	}
	v, ok := rec.Preferences[key]
	if !ok {
		return def
	}
	return v
}

// Users returns all known user ids, sorted.
func (m *Manager) Users() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.souls))
	for id := range m.souls {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// #endregion accessors

// #region stats
// Stats aggregates across all users. With no users every field is zero.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s Stats
	if len(m.souls) == 0 {
		return s
	}
	s.TotalUsers = len(m.souls)
	s.MinAlignment = math.Inf(1)
	s.MaxAlignment = math.Inf(-1)
	var sum float64
	for _, rec := range m.souls {
		sum += rec.Alignment
		s.MinAlignment = min(s.MinAlignment, rec.Alignment)
		s.MaxAlignment = max(s.MaxAlignment, rec.Alignment)
		s.TotalInteractions += rec.InteractionCount
	}
	s.AvgAlignment = sum / float64(len(m.souls))
	return s
}

// UserStats describes one user's soul.
func (m *Manager) UserStats(userID string) (UserStats, error) {
	rec, err := m.Snapshot(userID)
	if err != nil {
		return UserStats{}, err
	}
	return UserStats{
		UserID:           rec.UserID,
		Alignment:        rec.Alignment,
		InteractionCount: rec.InteractionCount,
		VectorMagnitude:  rec.Vector.Norm(),
		Vector:           rec.Vector,
		Preferences:      rec.Preferences,
		CreatedAt:        rec.CreatedAt,
		LastUpdated:      rec.LastUpdated,
	}, nil
}

// #endregion stats

// #region scan
// Scan calls fn with a snapshot of every record in user id order. It stops
// at the first error from fn or when ctx is done.
func (m *Manager) Scan(ctx context.Context, fn func(Record) error) error {
	for _, id := range m.Users() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := m.Snapshot(id)
		if err != nil {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// #endregion scan

func (m *Manager) persist(ctx context.Context, rec Record) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Save(ctx, rec); err != nil {
		metrics.PersistErrors.WithLabelValues("soul").Inc()
		log.Error().Err(err).Str("component", "soul").Str("user_id", rec.UserID).Msg("persist failed")
		return err
	}
	return nil
}
