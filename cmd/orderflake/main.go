package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/unbound-force/orderflake/internal/config"
	"github.com/unbound-force/orderflake/internal/report"
	"github.com/unbound-force/orderflake/internal/scaffold"
	"github.com/unbound-force/orderflake/internal/scan"
)

// logger is the application-wide structured logger (writes to stderr).
// It stays quiet below warn level so a clean scan prints nothing.
var logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: false,
	Level:           charmlog.WarnLevel,
})

// Set by build flags.
var version = "dev"

// errFlakyFound is returned by scan --fail when findings exist.
var errFlakyFound = errors.New("flaky tests found")

func main() {
	root := &cobra.Command{
		Use:   "orderflake",
		Short: "orderflake: find tests that depend on unordered query results",
		Long: `orderflake scans test suites for tests that fetch rows from a
source without a guaranteed order and then assert on two or more
positions of the result. Such tests pass or fail depending on the
order the database happens to return.`,
		Version: version,
	}

	root.AddCommand(newScanCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newSchemaCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// scanParams holds the parsed flags for the scan command.
type scanParams struct {
	ctx         context.Context
	path        string
	format      string
	configPath  string
	verbose     bool
	interactive bool
	fail        bool
	stdout      io.Writer
	stderr      io.Writer
}

// runScan is the extracted, testable body of the scan command.
func runScan(p scanParams) error {
	if p.format != "text" && p.format != "json" {
		return fmt.Errorf("invalid format %q: must be 'text' or 'json'", p.format)
	}
	if p.ctx == nil {
		p.ctx = context.Background()
	}
	if p.verbose {
		logger.SetLevel(charmlog.DebugLevel)
	}

	info, err := os.Stat(p.path)
	if err != nil {
		return fmt.Errorf("scan path: %w", err)
	}
	cfgRoot := p.path
	if !info.IsDir() {
		cfgRoot = filepath.Dir(p.path)
	}
	cfg, cfgPath, err := config.Resolve(p.configPath, cfgRoot)
	if err != nil {
		return err
	}
	if cfgPath != "" {
		logger.Debug("loaded config", "path", cfgPath)
	}

	logger.Debug("scanning", "path", p.path)
	rpt, err := scan.Scan(p.ctx, p.path, scan.Options{
		Config:  cfg,
		Logger:  logger,
		Version: version,
	})
	if err != nil {
		return err
	}

	if p.interactive {
		if err := runInteractiveScan(rpt); err != nil {
			return err
		}
	} else {
		var werr error
		switch p.format {
		case "json":
			werr = report.WriteJSON(p.stdout, rpt)
		default:
			werr = report.WriteText(p.stdout, rpt, report.TextOptions{Verbose: p.verbose})
		}
		if werr != nil {
			return werr
		}
	}

	if p.fail {
		printCISummary(p.stderr, len(rpt.Findings))
	}
	return checkFail(p.fail, len(rpt.Findings))
}

// printCISummary prints a one-line CI summary for --fail runs.
func printCISummary(w io.Writer, flaky int) {
	status := "PASS"
	if flaky > 0 {
		status = "FAIL"
	}
	fmt.Fprintf(w, "Flaky tests: %d (%s)\n", flaky, status)
}

// checkFail returns errFlakyFound when fail is set and findings exist.
func checkFail(fail bool, flaky int) error {
	if fail && flaky > 0 {
		return fmt.Errorf("%w: %d", errFlakyFound, flaky)
	}
	return nil
}

func newScanCmd() *cobra.Command {
	var (
		format      string
		configPath  string
		verbose     bool
		interactive bool
		fail        bool
	)

	cmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "Report tests that assert on positions of unordered query results",
		Long: `Scan a directory (or a single file) for order-dependent tests.
Python files whose name starts with the configured test prefix and Go
_test.go files are analyzed; every other source file is read for model
declarations. Each finding prints one line:

  Found flaky test: <test> (<file>)

No findings produce no output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(scanParams{
				ctx:         cmd.Context(),
				path:        args[0],
				format:      format,
				configPath:  configPath,
				verbose:     verbose,
				interactive: interactive,
				fail:        fail,
				stdout:      os.Stdout,
				stderr:      os.Stderr,
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "text",
		"output format: text or json")
	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"path to .orderflake.yaml or pyproject.toml (default: found under <path>)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"show evidence, skipped files and a summary; log at debug level")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false,
		"launch interactive TUI for browsing findings")
	cmd.Flags().BoolVar(&fail, "fail", false,
		"exit with status 1 when flaky tests are found")

	return cmd
}

// initParams holds the parsed flags for the init command.
type initParams struct {
	dir    string
	force  bool
	stdout io.Writer
}

// runInit is the extracted, testable body of the init command.
func runInit(p initParams) error {
	_, err := scaffold.Run(scaffold.Options{
		TargetDir: p.dir,
		Force:     p.force,
		Version:   version,
		Stdout:    p.stdout,
	})
	return err
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default .orderflake.yaml",
		Long: `Write a commented .orderflake.yaml holding the default settings
into dir (default: the current directory). Existing files are kept
unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(initParams{
				dir:    dir,
				force:  force,
				stdout: cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false,
		"overwrite an existing configuration file")

	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for orderflake scan output",
		Long: `Print the JSON Schema (Draft 2020-12) that documents the
structure of orderflake scan --format=json output. Useful for
validating output or generating client types.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), report.Schema)
			return err
		},
	}
}
