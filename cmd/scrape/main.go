// Command scrape runs a single salary sync and exits. A failure names the
// phase that failed and exits non-zero.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nba_salaries/ingestion/internal/bootstrap"
	"nba_salaries/ingestion/internal/config"
	"nba_salaries/ingestion/internal/pipeline"

	crerr "github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type flags struct {
	year        int
	sink        string
	exportDir   string
	url         string
	maxAttempts int
	dryRun      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		phase := pipeline.PhaseConfig
		var phaseErr *pipeline.PhaseError
		if crerr.As(err, &phaseErr) {
			phase = phaseErr.Phase
		}
		log.Error().Err(err).Str("phase", phase).Msg("Salary sync failed")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:           "scrape",
		Short:         "Scrape the salary ranking page once and store the result.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}

	cmd.Flags().IntVar(&f.year, "year", 0, "Season year stamped on player rows (default SEASON_YEAR or current year)")
	cmd.Flags().StringVar(&f.sink, "sink", "", "Sink to write to: postgres or csv (default SINK)")
	cmd.Flags().StringVar(&f.exportDir, "export-dir", "", "Directory for the csv sink (default EXPORT_DIR)")
	cmd.Flags().StringVar(&f.url, "url", "", "Ranking page URL (default SOURCE_URL)")
	cmd.Flags().IntVar(&f.maxAttempts, "max-attempts", 0, "Fetch attempts before giving up (default FETCH_MAX_ATTEMPTS)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Fetch, extract and resolve teams without writing")

	return cmd
}

// apply copies explicitly set flags over the environment configuration
func (f *flags) apply(cmd *cobra.Command) func(*config.Config) {
	return func(c *config.Config) {
		if cmd.Flags().Changed("year") {
			c.SeasonYear = f.year
		}
		if cmd.Flags().Changed("sink") {
			c.Sink = f.sink
		}
		if cmd.Flags().Changed("export-dir") {
			c.ExportDir = f.exportDir
		}
		if cmd.Flags().Changed("url") {
			c.SourceURL = f.url
		}
		if cmd.Flags().Changed("max-attempts") {
			c.FetchMaxAttempts = f.maxAttempts
		}
		if cmd.Flags().Changed("dry-run") {
			c.DryRun = f.dryRun
		}
	}
}

func run(cmd *cobra.Command, f *flags) error {
	ctx := cmd.Context()

	cfg, err := config.Load(f.apply(cmd))
	if err != nil {
		return &pipeline.PhaseError{Phase: pipeline.PhaseConfig, Err: err}
	}
	setupLogger(cfg)

	rt, err := bootstrap.Setup(ctx, cfg)
	if err != nil {
		return &pipeline.PhaseError{Phase: pipeline.PhaseConfig, Err: crerr.Wrap(err, "open sink")}
	}
	defer rt.Close()

	summary, err := rt.Pipeline.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"extracted=%d teams=%d considered=%d written=%d duration=%s\n",
		summary.Extracted, len(summary.Teams), summary.Players.Considered, summary.Players.Written,
		summary.Duration.Round(time.Millisecond))
	return nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg *config.Config) {
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
