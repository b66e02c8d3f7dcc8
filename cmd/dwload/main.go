package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tordrt/dwload"
	"github.com/tordrt/dwload/internal/config"
	"github.com/tordrt/dwload/internal/formatter"
)

// errFailures marks a run that completed but left failed or skipped tables
var errFailures = errors.New("one or more tables failed")

type stageFunc func(context.Context, *dwload.Config, *dwload.Options) (*dwload.Report, error)

// cli holds the flag values shared by every subcommand
type cli struct {
	configFile string
	verbose    bool
	policy     string
	format     string
	useColor   bool
	out        io.Writer
	errOut     io.Writer
}

func newRootCmd(out, errOut io.Writer, useColor bool) *cobra.Command {
	c := &cli{out: out, errOut: errOut, useColor: useColor}

	root := &cobra.Command{
		Use:   "dwload",
		Short: "Provision and load the operational database and the data warehouse",
		Long: `dwload recreates an operational database and a data warehouse, loads the
operational database from JSON and CSV exports, and copies it into the
warehouse. Settings come from dwload.yaml, a .env file and DWLOAD_* variables.`,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "Config file (default: ./dwload.yaml if present)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&c.policy, "policy", "", "Failure policy: continue, skip-dependents or abort (overrides config)")
	root.PersistentFlags().StringVarP(&c.format, "format", "f", "text", "Output format: text or markdown")

	root.AddCommand(
		c.stageCmd("provision", "Drop and recreate both databases and their tables", dwload.Provision),
		c.stageCmd("load-operational", "Load the source files into the operational database", dwload.LoadOperational),
		c.stageCmd("load-warehouse", "Copy the operational database into the warehouse", dwload.LoadWarehouse),
		c.stageCmd("run", "Provision, then load the operational database and the warehouse", dwload.Run),
		c.inspectCmd(),
	)
	return root
}

func (c *cli) stageCmd(use, short string, stage stageFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := c.logger()
			cfg, err := c.loadConfig(logger)
			if err != nil {
				return err
			}
			f, err := formatter.New(c.format, c.out, c.useColor)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			report, err := stage(cmd.Context(), cfg, &dwload.Options{Logger: logger})
			if report != nil {
				if ferr := f.FormatReport(report.Outcomes); ferr != nil {
					logger.Warn("failed to write report", "error", ferr)
				}
			}
			if err != nil {
				return err
			}
			if report.Failed() {
				return errFailures
			}
			return nil
		},
	}
}

func (c *cli) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [database...]",
		Short: "Show tables, columns and row counts (default: both databases)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := c.logger()
			cfg, err := c.loadConfig(logger)
			if err != nil {
				return err
			}
			f, err := formatter.New(c.format, c.out, c.useColor)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			databases := args
			if len(databases) == 0 {
				databases = []string{cfg.Databases.Operational, cfg.Databases.Warehouse}
			}
			for i, database := range databases {
				snap, err := dwload.Inspect(cmd.Context(), cfg, database)
				if err != nil {
					return fmt.Errorf("failed to inspect %s: %w", database, err)
				}
				if i > 0 {
					_, _ = fmt.Fprintln(c.out)
				}
				if err := f.FormatSnapshot(snap); err != nil {
					return fmt.Errorf("failed to format output: %w", err)
				}
			}
			return nil
		},
	}
}

func (c *cli) logger() *slog.Logger {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(c.errOut, &slog.HandlerOptions{Level: level}))
}

func (c *cli) loadConfig(logger *slog.Logger) (*dwload.Config, error) {
	cfg, err := dwload.LoadConfig(logger, c.configFile)
	if err != nil {
		return nil, err
	}
	if c.policy != "" {
		policy, err := config.ParseFailurePolicy(c.policy)
		if err != nil {
			return nil, err
		}
		cfg.FailurePolicy = policy
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr, !color.NoColor)
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
