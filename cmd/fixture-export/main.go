// Command fixture-export snapshots recent fusion-log decisions into a replay
// fixture. The expected results are the outcomes under the embedded rules at
// export time, so the fixture pins current behavior as a regression test.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/config"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/logging"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/replay"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/rules"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/soul"
)

// #region main

func main() {
	var (
		configPath string
		dbPath     string
		rulesPath  string
		outPath    string
		last       int
	)

	cmd := &cobra.Command{
		Use:           "fixture-export",
		Short:         "Export recent fusion decisions as a replay fixture",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if dbPath == "" {
				dbPath = cfg.Path(cfg.Database)
			}
			if rulesPath == "" {
				rulesPath = cfg.Path(cfg.RulesPath)
			}
			f, err := export(dbPath, last, rules.Load(rulesPath), cfg.Match)
			if err != nil {
				return err
			}
			return writeFixture(f, outPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "daemon config file")
	cmd.Flags().StringVar(&dbPath, "db", "", "database holding the fusion log")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "rules to embed (defaults to the daemon's rules file)")
	cmd.Flags().StringVar(&outPath, "out", "", "output fixture JSON path")
	cmd.Flags().IntVar(&last, "last", 4, "number of most recent decisions to export")
	cmd.MarkFlagRequired("out")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func export(dbPath string, last int, rs rules.RuleSet, mc config.MatchConfig) (replay.Fixture, error) {
	db, err := soul.OpenDB(dbPath)
	if err != nil {
		return replay.Fixture{}, err
	}
	defer db.Close()
	if err := logging.EnsureSchema(db); err != nil {
		return replay.Fixture{}, err
	}

	entries, err := logging.Recent(db, last)
	if err != nil {
		return replay.Fixture{}, err
	}
	slices.Reverse(entries)
	records := logging.Records(entries)
	if len(records) == 0 {
		return replay.Fixture{}, fmt.Errorf("no replayable records in last %d decisions", last)
	}
	fmt.Printf("Found %d decision records\n", len(records))

	f := replay.Fixture{
		Description: fmt.Sprintf("Fusion log export: %d decisions under rules %s", len(records), rs.Version),
		Rules:       &rs,
		Match: &replay.FixtureMatchConfig{
			MinLemmaLen:       mc.MinLemmaLen,
			MinRootCompareLen: mc.MinRootCompareLen,
			RootTrim:          mc.RootTrim,
			MinRootLen:        mc.MinRootLen,
			MaxCommandMatches: mc.MaxCommandMatches,
		},
		Records: records,
	}
	for _, r := range f.Run() {
		f.ExpectedResults = append(f.ExpectedResults, replay.FixtureExpectedResult{
			DecisionID: r.DecisionID,
			Compliant:  r.Replayed,
			Flip:       r.Flip,
		})
	}
	return f, nil
}

// #endregion extract

// #region output

func writeFixture(f replay.Fixture, outPath string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	fmt.Printf("Wrote fixture to %s (%d bytes, %d records)\n", outPath, len(data), len(f.Records))
	return nil
}

// #endregion output
