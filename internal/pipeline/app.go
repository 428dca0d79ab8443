// Package pipeline wires every component into one application context and
// runs the three triads for each interaction.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/codec"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/config"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/fusion"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/gate"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/graph"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/interaction"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/logging"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/maintenance"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/metrics"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/retrieval"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/rules"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/soul"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/update"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/vectorstore"
)

// #region app-struct

// App is the application context. It is built once at start-up and shared
// by every request; all of its methods are safe for concurrent use.
type App struct {
	config *config.Config
	db     *sql.DB

	vectors      *vectorstore.Store
	concepts     *graph.ConceptStore
	soulStore    *soul.Store
	souls        *soul.Manager
	interactions *interaction.Log

	producer  *signals.Producer
	codec     *codec.CodecClient // nil in basic mode
	arbiter   *fusion.Arbiter
	rules     *rules.Holder
	watcher   *rules.Watcher
	retriever *retrieval.Retriever
	related   *retrieval.GraphRetriever
	scheduler *maintenance.Scheduler

	rulesMu       sync.Mutex
	rulesLoadedAt time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// #endregion app-struct

// #region constructor

// New opens every store named by cfg and starts the background workers:
// the rules watcher and, when enabled, the maintenance scheduler.
func New(cfg *config.Config) (app *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	a := &App{config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.db, err = soul.OpenDB(cfg.Path(cfg.Database))
	if err != nil {
		return nil, err
	}
	if err = a.openStores(); err != nil {
		return nil, err
	}
	if err = a.openSignals(); err != nil {
		return nil, err
	}

	g := gate.NewGate(gate.MatchConfig{
		MinLemmaLen:       cfg.Match.MinLemmaLen,
		MinRootCompareLen: cfg.Match.MinRootCompareLen,
		RootTrim:          cfg.Match.RootTrim,
		MinRootLen:        cfg.Match.MinRootLen,
		MaxCommandMatches: cfg.Match.MaxCommandMatches,
	})
	a.arbiter = fusion.NewArbiter(g, fusion.Config{
		Weights:      weightsFromConfig(cfg.Fusion.Weights),
		LearningRate: cfg.Fusion.LearningRate,
		MinWeight:    cfg.Fusion.MinWeight,
		MaxWeight:    cfg.Fusion.MaxWeight,
	})
	publishWeights(a.arbiter.Weights())

	rc := retrieval.DefaultConfig()
	rc.TopK = cfg.Retrieval.TopK
	rc.SimilarityThreshold = cfg.Retrieval.SimilarityThreshold
	rc.SameUserOnly = cfg.Retrieval.SameUserOnly
	a.retriever = retrieval.NewRetriever(a.vectors, rc)
	a.related = retrieval.NewGraphRetriever(a.concepts)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.startRules(ctx)

	cycle := maintenance.NewCycle(a.vectors, a.concepts, a.souls, nil)
	cycle.DecayHalfLifeHours = cfg.Maintenance.DecayHalfLifeHours
	a.scheduler, err = maintenance.NewScheduler(cycle, cfg.Maintenance.Schedule)
	if err != nil {
		return nil, err
	}
	if cfg.Maintenance.Enabled {
		a.scheduler.Start()
	}

	log.Info().Str("component", "pipeline").
		Str("mode", string(a.producer.Mode())).
		Str("data_dir", cfg.DataDir).
		Int("vectors", a.vectors.Count()).
		Int("souls", len(a.souls.Users())).
		Str("rules_version", a.rules.Current().Version).
		Msg("application ready")
	return a, nil
}

func (a *App) openStores() error {
	var backend vectorstore.Backend = vectorstore.NopBackend{}
	if a.config.VectorDir != "" {
		b, err := vectorstore.OpenBadger(vectorstore.BadgerConfig{
			Path:       a.config.Path(a.config.VectorDir),
			SyncWrites: true,
		})
		if err != nil {
			return err
		}
		backend = b
	}
	vs, err := vectorstore.Open(backend)
	if err != nil {
		backend.Close()
		return fmt.Errorf("load vectors: %w", err)
	}
	a.vectors = vs

	if a.concepts, err = graph.NewConceptStore(a.db); err != nil {
		return err
	}
	if a.interactions, err = interaction.NewLog(a.db); err != nil {
		return err
	}
	if err = logging.EnsureSchema(a.db); err != nil {
		return err
	}
	if a.soulStore, err = soul.NewStore(a.db); err != nil {
		return err
	}
	records, err := a.soulStore.LoadAll(context.Background())
	if err != nil {
		return fmt.Errorf("load souls: %w", err)
	}
	a.souls = soul.NewManager(a.soulStore, update.Config{
		VectorRetention:    a.config.Soul.VectorRetention,
		AlignmentRetention: a.config.Soul.AlignmentRetention,
	}, records)
	return nil
}

func (a *App) openSignals() error {
	sc := a.config.Signals
	pc := signals.ProducerConfig{
		Mode:               signals.Mode(sc.Mode),
		EmbeddingInfluence: sc.EmbeddingInfluence,
		KeywordBoost:       sc.KeywordBoost,
	}
	if pc.Mode != signals.ModeEnhanced {
		a.producer = signals.NewProducer(signals.LexiconEmotion{}, nil, signals.LexiconLinguistics{}, pc)
		return nil
	}
	client, err := codec.NewCodecClient(sc.CodecAddr, sc.Timeout)
	if err != nil {
		return fmt.Errorf("connect codec %s: %w", sc.CodecAddr, err)
	}
	a.codec = client
	a.producer = signals.NewProducer(client, client, client, pc)
	return nil
}

// startRules loads the rules file and watches it for changes. A missing
// rules directory disables hot reload but not the pipeline.
func (a *App) startRules(ctx context.Context) {
	path := a.config.Path(a.config.RulesPath)
	if path == "" {
		a.rules = rules.NewHolder(rules.Default())
	} else {
		a.rules = rules.NewHolder(rules.Load(path))
	}
	a.rulesLoadedAt = time.Now().UTC()
	if path == "" {
		return
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		log.Warn().Err(err).Str("component", "pipeline").Msg("rules directory missing, hot reload disabled")
		return
	}

	w, err := rules.NewWatcher(path, a.rules)
	if err != nil {
		log.Warn().Err(err).Str("component", "pipeline").Msg("rules watcher unavailable, hot reload disabled")
		return
	}
	w.OnReload(func(rules.RuleSet) {
		a.rulesMu.Lock()
		a.rulesLoadedAt = time.Now().UTC()
		a.rulesMu.Unlock()
	})
	a.watcher = w
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		w.Start(ctx)
	}()
}

// #endregion constructor

// #region close

// Close stops the background workers and releases every store. It is safe
// to call more than once.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		if a.scheduler != nil {
			a.scheduler.Stop()
		}
		if a.cancel != nil {
			a.cancel()
		}
		if a.watcher != nil {
			if err := a.watcher.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		a.wg.Wait()
		if a.vectors != nil {
			if err := a.vectors.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close vectors: %w", err))
			}
		}
		if a.codec != nil {
			if err := a.codec.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close codec: %w", err))
			}
		}
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close db: %w", err))
			}
		}
	})
	return errors.Join(errs...)
}

// #endregion close

// #region accessors

// Rules returns the rule set currently in force.
func (a *App) Rules() rules.RuleSet {
	return a.rules.Current()
}

// Souls returns the soul manager.
func (a *App) Souls() *soul.Manager {
	return a.souls
}

// DB returns the shared SQLite handle.
func (a *App) DB() *sql.DB {
	return a.db
}

// Weights returns the current fusion weights keyed by source name.
func (a *App) Weights() map[string]float64 {
	return weightsToMap(a.arbiter.Weights())
}

// UpdateWeights applies performance feedback to the fusion weights.
func (a *App) UpdateWeights(feedback map[string]float64) map[string]float64 {
	fb := make(map[fusion.Source]float64, len(feedback))
	for k, v := range feedback {
		fb[fusion.Source(k)] = v
	}
	w := a.arbiter.UpdateWeights(fb)
	publishWeights(w)
	log.Info().Str("component", "pipeline").Interface("weights", w).Msg("fusion weights updated")
	return weightsToMap(w)
}

// SoulHistory returns the most recent committed versions of a user's soul.
func (a *App) SoulHistory(ctx context.Context, userID string, limit int) ([]soul.Version, error) {
	return a.soulStore.History(ctx, userID, limit)
}

// SessionHistory returns the last limit interactions of a session.
func (a *App) SessionHistory(ctx context.Context, sessionID string, limit int) ([]interaction.Entry, error) {
	return a.interactions.SessionHistory(ctx, sessionID, limit)
}

// RecentDecisions returns the newest fusion log entries.
func (a *App) RecentDecisions(limit int) ([]logging.DecisionEntry, error) {
	return logging.Recent(a.db, limit)
}

// Sleep runs a maintenance cycle now.
func (a *App) Sleep(ctx context.Context) maintenance.Report {
	return a.scheduler.Trigger(ctx)
}

// MaintenanceStatus reports the scheduler state.
func (a *App) MaintenanceStatus() maintenance.Status {
	return a.scheduler.Status()
}

// #endregion accessors

// #region health

// Health reports store sizes and component state. A failing concept count
// marks the application degraded.
func (a *App) Health(ctx context.Context) Health {
	rs := a.rules.Current()
	a.rulesMu.Lock()
	loaded := a.rulesLoadedAt
	a.rulesMu.Unlock()

	h := Health{
		Status:        "healthy",
		Mode:          string(a.producer.Mode()),
		Vectors:       a.vectors.Count(),
		Souls:         len(a.souls.Users()),
		RulesVersion:  rs.Version,
		RulesLoadedAt: loaded,
		Maintenance:   a.scheduler.Status(),
		Weights:       a.Weights(),
	}
	n, err := a.concepts.ConceptCount(ctx)
	if err != nil {
		h.Status = "degraded"
		h.Errors = append(h.Errors, fmt.Sprintf("concepts: %v", err))
	}
	h.Concepts = n
	return h
}

// #endregion health

// #region weights-helpers

func weightsFromConfig(m map[string]float64) fusion.Weights {
	if len(m) == 0 {
		return nil
	}
	w := make(fusion.Weights, len(m))
	for k, v := range m {
		w[fusion.Source(k)] = v
	}
	return w
}

func weightsToMap(w fusion.Weights) map[string]float64 {
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[string(k)] = v
	}
	return out
}

func publishWeights(w fusion.Weights) {
	for _, src := range fusion.Sources {
		metrics.SourceWeight.WithLabelValues(string(src)).Set(w[src])
	}
}

// #endregion weights-helpers
