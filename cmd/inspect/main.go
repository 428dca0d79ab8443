// Command inspect prints souls, soul histories, the fusion log and the
// concept graph from a daemon database.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/config"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/graph"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/logging"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/soul"
)

// #region main

func main() {
	var (
		configPath string
		dbPath     string
		jsonOut    bool
		db         *sql.DB
	)

	rootCmd := &cobra.Command{
		Use:           "inspect",
		Short:         "Inspect the daemon database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if dbPath == "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				dbPath = cfg.Path(cfg.Database)
			}
			var err error
			db, err = soul.OpenDB(dbPath)
			return err
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if db == nil {
				return nil
			}
			return db.Close()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "daemon config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides --config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")

	var last int
	soulsCmd := &cobra.Command{
		Use:   "souls",
		Short: "List every soul",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSoulsList(cmd.Context(), db, jsonOut)
		},
	}
	soulCmd := &cobra.Command{
		Use:   "soul [user-id]",
		Short: "Show one soul and its recent versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSoulDetail(cmd.Context(), db, args[0], last, jsonOut)
		},
	}
	soulCmd.Flags().IntVar(&last, "last", 20, "show N most recent versions")

	var decisionsLast int
	decisionsCmd := &cobra.Command{
		Use:   "decisions",
		Short: "List the most recent fusion decisions",
		RunE: func(*cobra.Command, []string) error {
			return runDecisions(db, decisionsLast, jsonOut)
		},
	}
	decisionsCmd.Flags().IntVar(&decisionsLast, "last", 20, "show N most recent decisions")

	var top int
	conceptsCmd := &cobra.Command{
		Use:   "concepts [name]",
		Short: "List the most frequent concepts, or one concept's edges",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runNeighbors(cmd.Context(), db, args[0], jsonOut)
			}
			return runConcepts(cmd.Context(), db, top, jsonOut)
		},
	}
	conceptsCmd.Flags().IntVar(&top, "top", 20, "number of concepts")

	rootCmd.AddCommand(soulsCmd, soulCmd, decisionsCmd, conceptsCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region souls

type soulRow struct {
	UserID           string  `json:"user_id"`
	Alignment        float64 `json:"alignment_score"`
	InteractionCount int     `json:"interaction_count"`
	VectorNorm       float64 `json:"vector_norm"`
	Dominant         string  `json:"dominant_color"`
	LastUpdated      string  `json:"last_updated"`
}

var colorNames = [...]string{"red", "orange", "yellow", "green", "blue", "indigo", "violet"}

func runSoulsList(ctx context.Context, db *sql.DB, jsonOut bool) error {
	store, err := soul.NewStore(db)
	if err != nil {
		return err
	}
	recs, err := store.LoadAll(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(os.Stderr, "no souls found")
		return nil
	}

	rows := make([]soulRow, len(recs))
	for i, r := range recs {
		rows[i] = soulRow{
			UserID:           r.UserID,
			Alignment:        r.Alignment,
			InteractionCount: r.InteractionCount,
			VectorNorm:       r.Vector.Norm(),
			Dominant:         dominantColor(r.Vector),
			LastUpdated:      r.LastUpdated.Format("2006-01-02T15:04:05Z"),
		}
	}
	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-16s  %9s  %6s  %6s  %-8s  %s\n", "User", "Alignment", "Count", "Norm", "Dominant", "Updated")
	fmt.Printf("%-16s+-%9s+-%6s+-%6s+-%-8s+-%s\n",
		"----------------", "---------", "------", "------", "--------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-16s  %9.4f  %6d  %6.4f  %-8s  %s\n",
			shortID(r.UserID, 16), r.Alignment, r.InteractionCount, r.VectorNorm, r.Dominant, r.LastUpdated)
	}
	return nil
}

type soulDetail struct {
	Soul     soul.Record    `json:"soul"`
	Versions []soul.Version `json:"versions"`
}

func runSoulDetail(ctx context.Context, db *sql.DB, userID string, last int, jsonOut bool) error {
	store, err := soul.NewStore(db)
	if err != nil {
		return err
	}
	rec, err := store.Load(ctx, userID)
	if err != nil {
		return err
	}
	versions, err := store.History(ctx, userID, last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(soulDetail{Soul: rec, Versions: versions})
	}

	fmt.Printf("User:         %s\n", rec.UserID)
	fmt.Printf("Alignment:    %.4f\n", rec.Alignment)
	fmt.Printf("Interactions: %d\n", rec.InteractionCount)
	fmt.Printf("Created:      %s\n", rec.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Updated:      %s\n", rec.LastUpdated.Format("2006-01-02T15:04:05Z"))
	if len(rec.Preferences) > 0 {
		fmt.Printf("Preferences:  %v\n", rec.Preferences)
	}

	fmt.Printf("\nVector:\n")
	for i, v := range rec.Vector {
		fmt.Printf("  %-8s %.4f\n", colorNames[i], v)
	}

	if len(versions) == 0 {
		return nil
	}
	fmt.Printf("\n%-10s  %6s  %9s  %9s  %8s  %-13s  %s\n",
		"Version", "Count", "Alignment", "Coherence", "Delta", "Decision", "Time")
	for _, v := range versions {
		fmt.Printf("%-10s  %6d  %9.4f  %9.4f  %8.4f  %-13s  %s\n",
			shortID(v.VersionID, 8), v.InteractionCount, v.Alignment, v.Coherence, v.DeltaNorm,
			v.Decision, v.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

func dominantColor(v [7]float64) string {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return colorNames[best]
}

// #endregion souls

// #region decisions

type decisionRow struct {
	DecisionID     string   `json:"decision_id"`
	UserID         string   `json:"user_id"`
	Decision       string   `json:"decision"`
	Coherence      float64  `json:"coherence"`
	RulesVersion   string   `json:"rules_version"`
	ViolationTypes []string `json:"violation_types,omitempty"`
	Text           string   `json:"text,omitempty"`
	CreatedAt      string   `json:"created_at"`
}

func runDecisions(db *sql.DB, last int, jsonOut bool) error {
	if err := logging.EnsureSchema(db); err != nil {
		return err
	}
	entries, err := logging.Recent(db, last)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no decisions found")
		return nil
	}

	records := make(map[string]logging.DecisionRecord)
	for _, r := range logging.Records(entries) {
		records[r.DecisionID] = r
	}
	// entries are newest first; print chronologically
	rows := make([]decisionRow, len(entries))
	for i, e := range entries {
		rec := records[e.DecisionID]
		rows[len(entries)-1-i] = decisionRow{
			DecisionID:     e.DecisionID,
			UserID:         e.UserID,
			Decision:       e.Decision,
			Coherence:      e.Coherence,
			RulesVersion:   e.RulesVersion,
			ViolationTypes: rec.ViolationTypes,
			Text:           rec.Text,
			CreatedAt:      e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}
	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-10s  %-12s  %-8s  %9s  %-7s  %-20s  %s\n",
		"Decision", "User", "Result", "Coherence", "Rules", "Time", "Violations")
	for _, r := range rows {
		fmt.Printf("%-10s  %-12s  %-8s  %9.4f  %-7s  %-20s  %s\n",
			shortID(r.DecisionID, 8), shortID(r.UserID, 12), r.Decision, r.Coherence, r.RulesVersion,
			r.CreatedAt, strings.Join(r.ViolationTypes, ","))
	}
	return nil
}

// #endregion decisions

// #region concepts

func runConcepts(ctx context.Context, db *sql.DB, top int, jsonOut bool) error {
	g, err := graph.NewConceptStore(db)
	if err != nil {
		return err
	}
	rows, err := g.TopConcepts(ctx, top)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-20s  %-16s  %-10s  %s\n", "Concept", "Lemma", "Type", "Frequency")
	for _, r := range rows {
		fmt.Printf("%-20s  %-16s  %-10s  %d\n", shortID(r.Name, 20), shortID(r.Lemma, 16), r.EntityType, r.Frequency)
	}
	return nil
}

func runNeighbors(ctx context.Context, db *sql.DB, name string, jsonOut bool) error {
	g, err := graph.NewConceptStore(db)
	if err != nil {
		return err
	}
	edges, err := g.Neighbors(ctx, name, 0)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(edges)
	}
	if len(edges) == 0 {
		fmt.Fprintf(os.Stderr, "no relationships from %q\n", name)
		return nil
	}
	for _, e := range edges {
		fmt.Printf("  %s --%s--> %s  (%.3f)\n", e.Subject, e.PredicateLemma, e.Object, e.Strength)
	}
	return nil
}

// #endregion concepts

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string, n int) string {
	if len(id) > n {
		return id[:n]
	}
	return id
}

// #endregion output
