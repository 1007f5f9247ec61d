package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/buildgate/internal/analyzer"
	"github.com/blackwell-systems/buildgate/internal/config"
	"github.com/blackwell-systems/buildgate/internal/fsutil"
	"github.com/blackwell-systems/buildgate/internal/logging"
	"github.com/blackwell-systems/buildgate/internal/output"
	"github.com/blackwell-systems/buildgate/internal/snapshots"
	"github.com/blackwell-systems/buildgate/internal/store"
	"github.com/blackwell-systems/buildgate/internal/watcher"
)

var (
	sizeBeforeDir   string
	sizeAfterDir    string
	sizeResultsPath string
	sizeVerbose     bool
	sizeHistoryDB   string
	sizeConfigPath  string

	historyLimit     int
	historyPruneDays int

	// SizeDiffCmd is the root command for binary-size-differ
	SizeDiffCmd = &cobra.Command{
		Use:   "binary-size-differ",
		Short: "Fail a trybot when packages grow too much",
		Long: `binary-size-differ compares the package size summaries of two builds, one
without and one with a patch, and writes a trybot result file.

A package fails the check when its compressed size grows by 12 KiB or more.
The result file records the per-package growth, a status code (0 pass,
1 fail) and an HTML-ready summary. The command exits 0 whenever the result
file was written, even when the check failed.

Each build directory must contain sizes/package_sizes.json.`,
		Example: `  # Compare two builds
  binary-size-differ --before-dir out/before --after-dir out/after \
    --results-path /tmp/size_result.json

  # Also record the run in a history database
  binary-size-differ --before-dir out/before --after-dir out/after \
    --results-path /tmp/size_result.json --history-db ~/.buildgate/history.db

  # Recompute whenever either build changes
  binary-size-differ watch --before-dir out/before --after-dir out/after \
    --results-path /tmp/size_result.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runSizeDiff,
	}

	sizeWatchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Recompute the size report whenever a sizes file changes",
		Long: `Watch both builds' sizes/package_sizes.json and rewrite the result file
each time either one changes. Runs until interrupted.`,
		RunE: runSizeWatch,
	}

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List recorded size checks",
		RunE:  runHistory,
	}

	historyShowCmd = &cobra.Command{
		Use:   "show <id>",
		Short: "Show per-package growth for one recorded check",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	}

	historyPruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Delete recorded checks older than --days",
		RunE:  runHistoryPrune,
	}
)

func init() {
	pf := SizeDiffCmd.PersistentFlags()
	pf.StringVar(&sizeBeforeDir, "before-dir", "", "Location of the build without the patch")
	pf.StringVar(&sizeAfterDir, "after-dir", "", "Location of the build with the patch")
	pf.StringVar(&sizeResultsPath, "results-path", "", "Output path for the trybot result .json file")
	pf.BoolVarP(&sizeVerbose, "verbose", "v", false, "Enable verbose output")
	pf.StringVar(&sizeHistoryDB, "history-db", "", "Record runs in this SQLite database")
	pf.StringVar(&sizeConfigPath, "config", "", "Config file (default: ~/.config/buildgate/config.toml)")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to list (0 for all)")
	historyPruneCmd.Flags().IntVar(&historyPruneDays, "days", 30, "Delete runs older than this many days")

	SizeDiffCmd.SuggestionsMinimumDistance = 2

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
	SizeDiffCmd.AddCommand(sizeWatchCmd)
	SizeDiffCmd.AddCommand(historyCmd)
}

// ExecuteSizeDiff runs binary-size-differ and returns the process exit code.
// Errors are printed to stdout.
func ExecuteSizeDiff() int {
	return executeSizeDiff(os.Args[1:], os.Stdout)
}

func executeSizeDiff(args []string, stdout io.Writer) int {
	SizeDiffCmd.SetArgs(args)
	SizeDiffCmd.SetOut(stdout)

	if err := SizeDiffCmd.Execute(); err != nil {
		fmt.Fprintln(stdout, err)
		return 1
	}
	return 0
}

// sizeCheck is one comparison of two builds.
type sizeCheck struct {
	BeforeDir   string
	AfterDir    string
	ResultsPath string
	HistoryDB   string
	Verbose     bool
}

func sizeCheckFromFlags() (sizeCheck, error) {
	if sizeBeforeDir == "" || sizeAfterDir == "" || sizeResultsPath == "" {
		return sizeCheck{}, errors.New("--before-dir, --after-dir and --results-path are required")
	}

	cfg, err := config.Load(sizeConfigPath)
	if err != nil {
		return sizeCheck{}, err
	}

	check := sizeCheck{Verbose: sizeVerbose, HistoryDB: sizeHistoryDB}
	if check.HistoryDB == "" {
		check.HistoryDB = cfg.SizeDiff.HistoryDB
	}

	for _, p := range []struct {
		in  string
		out *string
	}{
		{sizeBeforeDir, &check.BeforeDir},
		{sizeAfterDir, &check.AfterDir},
		{sizeResultsPath, &check.ResultsPath},
	} {
		resolved, err := fsutil.ResolvePath(p.in)
		if err != nil {
			return sizeCheck{}, fmt.Errorf("failed to resolve %s: %w", p.in, err)
		}
		*p.out = resolved
	}
	return check, nil
}

func runSizeDiff(cmd *cobra.Command, args []string) error {
	logging.ConfigureRuntime("binary-size-differ", sizeVerbose)

	check, err := sizeCheckFromFlags()
	if err != nil {
		return err
	}

	if check.Verbose {
		printSizeArgs(cmd.OutOrStdout(), check)
	}

	_, err = performSizeCheck(cmd.Context(), cmd.OutOrStdout(), check)
	return err
}

func printSizeArgs(w io.Writer, check sizeCheck) {
	wd, _ := os.Getwd()
	fmt.Fprintln(w, "Binary sizes")
	fmt.Fprintln(w, "Working directory", wd)
	fmt.Fprintln(w, "Args:")
	fmt.Fprintf(w, "  before_dir: %s\n", check.BeforeDir)
	fmt.Fprintf(w, "  after_dir: %s\n", check.AfterDir)
	fmt.Fprintf(w, "  results_path: %s\n", check.ResultsPath)
	fmt.Fprintf(w, "  verbose: %t\n", check.Verbose)
	fmt.Fprintf(w, "  history_db: %s\n", check.HistoryDB)
}

// performSizeCheck loads both builds, writes the result file and, when
// configured, records the run. The report is returned even if recording
// fails, since the result file is already on disk at that point.
func performSizeCheck(ctx context.Context, w io.Writer, check sizeCheck) (*analyzer.GrowthReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	before, after, err := snapshots.LoadPair(ctx, check.BeforeDir, check.AfterDir)
	if err != nil {
		return nil, err
	}

	report, err := analyzer.ComputePackageDiffs(before, after)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}
	if err := fsutil.WriteFileAtomic(check.ResultsPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write results: %w", err)
	}
	log.Debug().Str("path", check.ResultsPath).Int("status_code", report.StatusCode).Msg("results written")

	if check.Verbose {
		fmt.Fprintln(w)
		fmt.Fprint(w, output.RenderGrowthTable(report))
	}

	if check.HistoryDB != "" {
		if err := recordRun(check, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func recordRun(check sizeCheck, report *analyzer.GrowthReport) error {
	st, err := openHistory(check.HistoryDB)
	if err != nil {
		return err
	}
	defer st.Close()

	rec := &store.RunRecord{
		CreatedAt:  time.Now(),
		BeforeDir:  check.BeforeDir,
		AfterDir:   check.AfterDir,
		StatusCode: report.StatusCode,
		Summary:    report.Summary,
	}
	for _, name := range report.Packages {
		rec.Packages = append(rec.Packages, store.RunPackage{
			Package:           name,
			CompressedDelta:   report.Compressed[name],
			UncompressedDelta: report.Uncompressed[name],
		})
	}

	id, err := st.InsertRun(rec)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	log.Debug().Int64("run_id", id).Msg("run recorded")
	return nil
}

// openHistory opens the history database, creating the schema if needed.
func openHistory(path string) (*store.Store, error) {
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := st.CreateSchema(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return st, nil
}

func runSizeWatch(cmd *cobra.Command, args []string) error {
	logging.ConfigureRuntime("binary-size-differ", sizeVerbose)

	check, err := sizeCheckFromFlags()
	if err != nil {
		return err
	}
	if check.Verbose {
		printSizeArgs(cmd.OutOrStdout(), check)
	}

	out := cmd.OutOrStdout()
	w, err := watcher.New([]string{
		snapshots.SizesPath(check.BeforeDir),
		snapshots.SizesPath(check.AfterDir),
	}, func() error {
		report, err := performSizeCheck(cmd.Context(), out, check)
		if err != nil {
			fmt.Fprintln(out, err)
			return err
		}
		fmt.Fprintln(out, output.RenderVerdict(report))
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Watching %s and %s (Ctrl+C to stop)\n", check.BeforeDir, check.AfterDir)
	return w.RunUntilSignal()
}

func historyDBFromFlags() (string, error) {
	if sizeHistoryDB != "" {
		return sizeHistoryDB, nil
	}
	cfg, err := config.Load(sizeConfigPath)
	if err != nil {
		return "", err
	}
	if cfg.SizeDiff.HistoryDB == "" {
		return "", errors.New("no history database: pass --history-db or set size_diff.history_db in the config file")
	}
	return cfg.SizeDiff.HistoryDB, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	logging.ConfigureRuntime("binary-size-differ", sizeVerbose)

	path, err := historyDBFromFlags()
	if err != nil {
		return err
	}
	st, err := openHistory(path)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	fmt.Fprint(out, output.RenderRunTable(runs))

	total, failed, err := st.CountRuns()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d runs recorded, %d failed\n", total, failed)
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	logging.ConfigureRuntime("binary-size-differ", sizeVerbose)

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", args[0])
	}

	path, err := historyDBFromFlags()
	if err != nil {
		return err
	}
	st, err := openHistory(path)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.GetRun(id)
	if err != nil {
		return err
	}
	pkgs, err := st.GetRunPackages(id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	status := "PASS"
	if run.StatusCode == analyzer.StatusFail {
		status = "FAIL"
	}
	fmt.Fprintf(out, "Run %d (%s) %s\n", run.ID, run.CreatedAt.Local().Format(time.RFC3339), status)
	fmt.Fprintf(out, "  before: %s\n", run.BeforeDir)
	fmt.Fprintf(out, "  after:  %s\n\n", run.AfterDir)
	fmt.Fprint(out, output.RenderRunPackagesTable(pkgs))
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	logging.ConfigureRuntime("binary-size-differ", sizeVerbose)

	if historyPruneDays <= 0 {
		return fmt.Errorf("invalid days: %d (must be positive)", historyPruneDays)
	}

	path, err := historyDBFromFlags()
	if err != nil {
		return err
	}
	st, err := openHistory(path)
	if err != nil {
		return err
	}
	defer st.Close()

	cutoff := time.Now().AddDate(0, 0, -historyPruneDays)
	n, err := st.PruneRuns(cutoff)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d runs older than %d days.\n", n, historyPruneDays)
	return nil
}
