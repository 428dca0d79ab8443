// Command daemon runs the triad fusion pipeline: as a long-running service,
// an interactive loop, or one-shot administrative commands.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/config"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/logging"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/metrics"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/pipeline"
)

var version = "dev"

// #region main
func main() {
	var (
		configPath string
		logLevel   string
		pretty     bool
		cfg        *config.Config
	)

	rootCmd := &cobra.Command{
		Use:           "daemon",
		Short:         "Triad fusion controller",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = logLevel
			}
			if cmd.Flags().Changed("pretty") {
				cfg.Logging.Pretty = pretty
			}
			return logging.Setup(cfg.Logging.Level, cfg.Logging.Pretty, nil)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML); DAEMON_* env vars override")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "human-readable logs")

	withApp := func(fn func(ctx context.Context, app *pipeline.App, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			app, err := pipeline.New(cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return fn(ctx, app, cmd, args)
		}
	}

	rootCmd.AddCommand(
		serveCmd(withApp, func() *config.Config { return cfg }),
		replCmd(withApp),
		processCmd(withApp),
		soulCmd(withApp),
		prefCmd(withApp),
		statsCmd(withApp),
		sleepCmd(withApp),
		healthCmd(withApp),
		weightsCmd(withApp),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// #endregion main

type runner func(fn func(ctx context.Context, app *pipeline.App, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error

// #region serve
func serveCmd(withApp runner, cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the maintenance scheduler, rules watcher and metrics endpoint until interrupted",
		RunE: withApp(func(ctx context.Context, app *pipeline.App, _ *cobra.Command, _ []string) error {
			c := cfg()
			var srv *http.Server
			if c.Metrics.Enabled {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					json.NewEncoder(w).Encode(app.Health(r.Context()))
				})
				srv = &http.Server{Addr: c.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error().Err(err).Str("component", "daemon").Msg("metrics server failed")
					}
				}()
				log.Info().Str("component", "daemon").Str("addr", c.Metrics.Addr).Msg("metrics endpoint listening")
			}

			log.Info().Str("component", "daemon").Msg("serving, press Ctrl-C to stop")
			<-ctx.Done()

			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Warn().Err(err).Str("component", "daemon").Msg("metrics server shutdown")
				}
			}
			log.Info().Str("component", "daemon").Msg("shutting down")
			return nil
		}),
	}
}

// #endregion serve

// #region repl
func replCmd(withApp runner) *cobra.Command {
	var userID, sessionID string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Read interactions from stdin, one per line",
		RunE: withApp(func(ctx context.Context, app *pipeline.App, cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Triad fusion controller ready.")
			fmt.Fprintf(out, "  User: %s | Rules: %s\n", userID, app.Rules().Version)
			fmt.Fprintln(out, "Type a message (or 'quit' to exit):")

			scanner := bufio.NewScanner(cmd.InOrStdin())
			turn := 0
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					break
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					continue
				}
				if text == "quit" || text == "exit" {
					break
				}
				turn++

				res, err := app.Process(ctx, pipeline.Request{Text: text, UserID: userID, SessionID: sessionID})
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					log.Error().Err(err).Str("component", "daemon").Msg("process failed")
					continue
				}
				sessionID = res.SessionID

				if !res.Fused.Success {
					fmt.Fprintf(out, "\n[rejected] %s: %s\n\n", res.Fused.Reason,
						strings.Join(res.Fused.Compliance.ViolationTypes(), ", "))
					continue
				}
				fmt.Fprintf(out, "\n%s\n\n", res.Fused.Response)
				fmt.Fprintf(out, "[turn-%d] coherence=%.4f alignment=%.4f similar=%d\n",
					turn, res.Fused.Coherence, res.Soul.Alignment, res.Fused.Summary.SimilarCount)
			}
			return scanner.Err()
		}),
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "local", "user id")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id (generated when empty)")
	return cmd
}

// #endregion repl

// #region process
func processCmd(withApp runner) *cobra.Command {
	var userID, sessionID string
	cmd := &cobra.Command{
		Use:   "process [text]",
		Short: "Process one interaction and print the outcome as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(ctx context.Context, app *pipeline.App, cmd *cobra.Command, args []string) error {
			res, err := app.Process(ctx, pipeline.Request{
				Text:      strings.Join(args, " "),
				UserID:    userID,
				SessionID: sessionID,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		}),
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "local", "user id")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id")
	return cmd
}

// #endregion process

// #region soul
func soulCmd(withApp runner) *cobra.Command {
	var history int
	cmd := &cobra.Command{
		Use:   "soul [user-id]",
		Short: "Show a user's soul state and recent versions",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, app *pipeline.App, cmd *cobra.Command, args []string) error {
			st, err := app.Souls().UserStats(args[0])
			if err != nil {
				return err
			}
			versions, err := app.SoulHistory(ctx, args[0], history)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"soul": st, "history": versions})
		}),
	}
	cmd.Flags().IntVar(&history, "history", 5, "number of versions to show")
	return cmd
}

func prefCmd(withApp runner) *cobra.Command {
	return &cobra.Command{
		Use:   "pref [user-id] [key] [value]",
		Short: "Get or set a user preference",
		Args:  cobra.RangeArgs(2, 3),
		RunE: withApp(func(ctx context.Context, app *pipeline.App, cmd *cobra.Command, args []string) error {
			user, key := args[0], args[1]
			if len(args) == 3 {
				if err := app.Souls().SetPreference(ctx, user, key, args[2]); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s.%s = %v\n", user, key, app.Souls().GetPreference(user, key, nil))
			return nil
		}),
	}
}

func statsCmd(withApp runner) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Aggregate soul statistics",
		RunE: withApp(func(_ context.Context, app *pipeline.App, cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, app.Souls().Stats())
		}),
	}
}

// #endregion soul

// #region maintenance
func sleepCmd(withApp runner) *cobra.Command {
	return &cobra.Command{
		Use:   "sleep",
		Short: "Run a maintenance cycle now",
		RunE: withApp(func(ctx context.Context, app *pipeline.App, cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, app.Sleep(ctx))
		}),
	}
}

func healthCmd(withApp runner) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Report component health",
		RunE: withApp(func(ctx context.Context, app *pipeline.App, cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, app.Health(ctx))
		}),
	}
}

func weightsCmd(withApp runner) *cobra.Command {
	var feedback map[string]string
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Show fusion weights, or adapt them with --feedback source=score",
		RunE: withApp(func(_ context.Context, app *pipeline.App, cmd *cobra.Command, _ []string) error {
			if len(feedback) == 0 {
				return printJSON(cmd, app.Weights())
			}
			fb := make(map[string]float64, len(feedback))
			for k, v := range feedback {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return fmt.Errorf("feedback %s: %w", k, err)
				}
				fb[k] = f
			}
			return printJSON(cmd, app.UpdateWeights(fb))
		}),
	}
	cmd.Flags().StringToStringVar(&feedback, "feedback", nil, "performance per source, e.g. emotion=0.8,linguistic=0.6")
	return cmd
}

// #endregion maintenance

// #region helpers
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers
