// Command replay re-evaluates logged fusion decisions under a candidate rule
// set and reports the decisions that would flip.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/config"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/gate"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/logging"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/replay"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/rules"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/soul"
)

// errDiverged makes the process exit 1 without printing usage.
var errDiverged = errors.New("replay diverged")

// #region main
func main() {
	var (
		configPath  string
		dbPath      string
		rulesPath   string
		fixturePath string
		limit       int
		failOnFlip  bool
	)

	cmd := &cobra.Command{
		Use:           "replay",
		Short:         "Replay logged decisions under a candidate rule set",
		Long:          "DB mode replays the fusion log (--db or the database named by --config) under --rules.\nFixture mode replays a JSON fixture and compares against its expected results.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if fixturePath != "" {
				return runFixtureMode(cmd.OutOrStdout(), fixturePath)
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dbPath == "" {
				dbPath = cfg.Path(cfg.Database)
			}
			rs := rules.Default()
			if rulesPath != "" {
				if rs, err = rules.ReadFile(rulesPath); err != nil {
					return err
				}
			}
			mc := gate.MatchConfig{
				MinLemmaLen:       cfg.Match.MinLemmaLen,
				MinRootCompareLen: cfg.Match.MinRootCompareLen,
				RootTrim:          cfg.Match.RootTrim,
				MinRootLen:        cfg.Match.MinRootLen,
				MaxCommandMatches: cfg.Match.MaxCommandMatches,
			}
			return runDBMode(cmd.OutOrStdout(), dbPath, limit, rs, mc, failOnFlip)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "daemon config file")
	cmd.Flags().StringVar(&dbPath, "db", "", "database holding the fusion log")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "candidate rules file (JSON or YAML); built-in defaults when empty")
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "fixture JSON (fixture mode)")
	cmd.Flags().IntVar(&limit, "limit", 1000, "most recent decisions to replay")
	cmd.Flags().BoolVar(&failOnFlip, "fail-on-flip", false, "exit 1 when any decision flips")
	cmd.MarkFlagsMutuallyExclusive("fixture", "db")
	cmd.MarkFlagsMutuallyExclusive("fixture", "rules")

	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errDiverged) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

// #endregion main

// #region db-mode
func runDBMode(w io.Writer, dbPath string, limit int, rs rules.RuleSet, mc gate.MatchConfig, failOnFlip bool) error {
	db, err := soul.OpenDB(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := logging.EnsureSchema(db); err != nil {
		return err
	}

	entries, err := logging.Recent(db, limit)
	if err != nil {
		return err
	}
	// Recent is newest first; replay in logged order
	slices.Reverse(entries)
	records := logging.Records(entries)
	if len(records) == 0 {
		fmt.Fprintln(w, "no decisions with replayable records in fusion_log")
		return nil
	}

	results := replay.Replay(records, rs, gate.NewGate(mc))
	printResults(w, results)
	s := replay.Summarize(results, rs)
	printSummary(w, s)

	if failOnFlip && s.PassToReject+s.RejectToPass > 0 {
		return errDiverged
	}
	return nil
}

// #endregion db-mode

// #region fixture-mode
func runFixtureMode(w io.Writer, path string) error {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return err
	}
	if f.Description != "" {
		fmt.Fprintf(w, "%s\n\n", f.Description)
	}
	results := f.Run()
	printResults(w, results)
	printSummary(w, replay.Summarize(results, f.RuleSet()))

	expected := make(map[string]replay.FixtureExpectedResult, len(f.ExpectedResults))
	for _, e := range f.ExpectedResults {
		expected[e.DecisionID] = e
	}
	diverge := 0
	for _, r := range results {
		e, ok := expected[r.DecisionID]
		if !ok {
			continue
		}
		if e.Compliant != r.Replayed || e.Flip != r.Flip {
			diverge++
			fmt.Fprintf(w, "DIFF %s: expected compliant=%v flip=%q, got compliant=%v flip=%q\n",
				r.DecisionID, e.Compliant, e.Flip, r.Replayed, r.Flip)
		}
	}
	fmt.Fprintf(w, "\nExpected: %d checked, %d diverge\n", len(expected), diverge)
	if diverge > 0 {
		return errDiverged
	}
	return nil
}

// #endregion fixture-mode

// #region output
func printResults(w io.Writer, results []replay.ReplayResult) {
	fmt.Fprintf(w, "%-12s| %-9s| %-9s| %-15s| %s\n", "Decision", "Logged", "Replayed", "Flip", "Violations")
	fmt.Fprintf(w, "%-12s+%-10s+%-10s+%-16s+%s\n",
		"------------", "----------", "----------", "----------------", "------------")
	for _, r := range results {
		flip := string(r.Flip)
		if flip == "" {
			flip = "-"
		}
		fmt.Fprintf(w, "%-12s| %-9s| %-9s| %-15s| %s\n",
			shortID(r.DecisionID), verdict(r.Original), verdict(r.Replayed), flip,
			strings.Join(r.ViolationTypes, ","))
	}
}

func printSummary(w io.Writer, s replay.ReplaySummary) {
	fmt.Fprintf(w, "\nRules %s: %d total, %d accept, %d reject, %d unchanged, %d pass->reject, %d reject->pass\n",
		s.RulesVersion, s.Total, s.Accepts, s.Rejects, s.Unchanged, s.PassToReject, s.RejectToPass)
}

func verdict(compliant bool) string {
	if compliant {
		return "accept"
	}
	return "reject"
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion output
