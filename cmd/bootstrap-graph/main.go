// Command bootstrap-graph rebuilds the concept graph from the interaction log.
// Phase 1 re-extracts concepts and relationships from every logged text.
// Phase 2 links the lead concepts of consecutive interactions in a session.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/codec"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/config"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/graph"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/interaction"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/logging"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/signals"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/soul"
)

// followsPredicate labels the session edges written in phase 2.
const followsPredicate = "follows"

// #region main
func main() {
	var (
		configPath string
		dbPath     string
		window     time.Duration
		force      bool
	)

	cmd := &cobra.Command{
		Use:           "bootstrap-graph",
		Short:         "Rebuild the concept graph from the interaction log",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := logging.Setup(cfg.Logging.Level, true, nil); err != nil {
				return err
			}
			if dbPath == "" {
				dbPath = cfg.Path(cfg.Database)
			}
			return run(cmd.Context(), cfg, dbPath, window, force)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "daemon config file")
	cmd.Flags().StringVar(&dbPath, "db", "", "database path (overrides --config)")
	cmd.Flags().DurationVar(&window, "window", 30*time.Minute, "max gap between linked session interactions")
	cmd.Flags().BoolVar(&force, "force", false, "run even when the graph already has concepts")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region run
func run(ctx context.Context, cfg *config.Config, dbPath string, window time.Duration, force bool) error {
	db, err := soul.OpenDB(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	concepts, err := graph.NewConceptStore(db)
	if err != nil {
		return err
	}
	interactions, err := interaction.NewLog(db)
	if err != nil {
		return err
	}
	existing, err := concepts.ConceptCount(ctx)
	if err != nil {
		return err
	}
	if existing > 0 && !force {
		return fmt.Errorf("graph already holds %d concepts; pass --force to reinforce it", existing)
	}

	producer, closeFn, err := linguisticProducer(cfg.Signals)
	if err != nil {
		return err
	}
	defer closeFn()

	fmt.Println("=== Graph Bootstrap Tool ===")
	fmt.Printf("  DB: %s | Mode: %s | Window: %s\n", dbPath, producer.Mode(), window)

	// Phase 1: per-interaction extraction
	fmt.Println("\n--- Phase 1: Concepts ---")
	type lead struct {
		concept string
		at      time.Time
	}
	lastLead := make(map[string]lead)
	var processed, conceptCount, relCount, followCount int

	err = interactions.Each(ctx, func(e interaction.Entry) error {
		out := producer.Linguistic(ctx, e.Text)
		if err := concepts.UpsertConcepts(ctx, out.Concepts); err != nil {
			return err
		}
		n, err := concepts.AddRelationships(ctx, out.Relationships)
		if err != nil {
			return err
		}
		processed++
		conceptCount += len(out.Concepts)
		relCount += n

		// Phase 2 runs inline: entries arrive in insertion order, so the
		// previous lead of a session is always the nearest earlier one.
		if len(out.Concepts) > 0 {
			cur := lead{concept: out.Concepts[0].Name, at: e.CreatedAt}
			if prev, ok := lastLead[e.SessionID]; ok && prev.concept != cur.concept {
				gap := cur.at.Sub(prev.at)
				if gap >= 0 && gap <= window {
					w := 0.1 * math.Exp(-gap.Minutes()/window.Minutes())
					if err := concepts.ReinforceRelationship(ctx, prev.concept, followsPredicate, cur.concept, w); err != nil {
						log.Warn().Err(err).Str("component", "bootstrap").Int64("interaction_id", e.ID).Msg("session edge skipped")
					} else {
						followCount++
					}
				}
			}
			lastLead[e.SessionID] = cur
		}

		if processed%50 == 0 {
			fmt.Printf("  [%d] processed, %d relationships so far\n", processed, relCount)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	total, err := concepts.ConceptCount(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\n=== Bootstrap Complete ===\n")
	fmt.Printf("  Interactions: %d\n", processed)
	fmt.Printf("  Concepts seen: %d (%d distinct)\n", conceptCount, total)
	fmt.Printf("  Relationships: %d\n", relCount)
	fmt.Printf("  Session edges: %d\n", followCount)
	return nil
}

// #endregion run

// #region helpers
func linguisticProducer(sc config.SignalsConfig) (*signals.Producer, func(), error) {
	pc := signals.ProducerConfig{Mode: signals.Mode(sc.Mode)}
	if pc.Mode != signals.ModeEnhanced {
		return signals.NewProducer(nil, nil, signals.LexiconLinguistics{}, pc), func() {}, nil
	}
	client, err := codec.NewCodecClient(sc.CodecAddr, sc.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("connect codec %s: %w", sc.CodecAddr, err)
	}
	return signals.NewProducer(nil, nil, client, pc), func() { client.Close() }, nil
}

// #endregion helpers
