package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/buildgate/internal/config"
	"github.com/blackwell-systems/buildgate/internal/logging"
	"github.com/blackwell-systems/buildgate/internal/output"
	"github.com/blackwell-systems/buildgate/internal/target"
	"github.com/blackwell-systems/buildgate/internal/testrunner"
)

var (
	trOpts       testrunner.Options
	trDeviceTool string
	trConfigPath string

	// testRunnerExitCode is the exit code of the last package run.
	testRunnerExitCode int

	// TestRunnerCmd is the root command for test-runner
	TestRunnerCmd = &cobra.Command{
		Use:   "test-runner [flags] [-- child args...]",
		Short: "Deploy a test package to a device and run it",
		Long: `test-runner starts a target device, deploys a test package to it and runs
the package with test launcher flags. Positional arguments are passed to the
test process after the generated launcher flags.

The device is driven through an external device tool (--device-tool), which
must understand the start, push, pull, stop, run and test-server verbs.

The process exits with the test package's exit code. Setup failures exit 1.`,
		Example: `  # Run base_unittests on an emulator
  test-runner --output-directory out/default \
    --package out/default/base_unittests.far --package-name base_unittests

  # Bot run with a filter file and summary output
  test-runner --output-directory out/default \
    --package out/default/net_unittests.far --package-name net_unittests \
    --test-launcher-bot-mode --enable-test-server \
    --test-launcher-filter-file testing/filters/net.filter \
    --test-launcher-summary-output /tmp/net_summary.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTestRunner,
	}
)

func init() {
	f := TestRunnerCmd.Flags()

	f.StringVar(&trOpts.OutputDirectory, "output-directory", "", "Path to the build output directory")
	f.StringVar(&trOpts.Package, "package", "", "Path to the package to run")
	f.StringVar(&trOpts.PackageName, "package-name", "", "Name of the package to run")
	f.StringVar(&trOpts.TargetCPU, "target-cpu", "x64", "Target CPU architecture")
	f.StringVar(&trOpts.Device, "device", "", "Device to use (default: start an emulator)")
	f.StringVar(&trOpts.Host, "host", "", "Host address of an already running device")
	f.IntVar(&trOpts.Port, "port", 0, "SSH port of the device")
	f.StringVar(&trOpts.SSHConfig, "ssh-config", "", "SSH config file for the device")
	f.StringVar(&trOpts.SystemLogFile, "system-log-file", "", "File to write the device system log to")
	f.BoolVarP(&trOpts.Verbose, "verbose", "v", false, "Enable debug logging")

	f.StringVar(&trOpts.GTestFilter, "gtest_filter", "", "GTest filter to use in place of any default")
	f.StringVar(&trOpts.GTestRepeat, "gtest_repeat", "", "GTest repeat value to use. This also disables the test launcher timeout")
	f.IntVar(&trOpts.QemuImgRetries, "qemu-img-retries", 0, "Number of times that the qemu-img command can be retried")
	f.StringVar(&trOpts.RetryLimit, "test-launcher-retry-limit", "", "Number of times that test suite will retry failing tests. This is multiplicative with --gtest_repeat")
	f.BoolVar(&trOpts.BreakOnFailure, "gtest_break_on_failure", false, "Should GTest break on failure; useful with --gtest_repeat")
	f.BoolVar(&trOpts.SingleProcessTests, "single-process-tests", false, "Runs the tests and the launcher in the same process. Useful for debugging")
	f.IntVar(&trOpts.BatchLimit, "test-launcher-batch-limit", 0, "Sets the limit of test batch to run in a single process")
	f.StringVar(&trOpts.FilterFile, "test-launcher-filter-file", "", "Override default filter file passed to target test process")
	f.IntVar(&trOpts.Jobs, "test-launcher-jobs", 0, "Sets the number of parallel test jobs")
	f.StringVar(&trOpts.SummaryOutput, "test-launcher-summary-output", "", "Where the test launcher will output its json")
	f.BoolVar(&trOpts.EnableTestServer, "enable-test-server", false, "Enable the test server spawner")
	f.BoolVar(&trOpts.BotMode, "test-launcher-bot-mode", false, "Informs the test launcher that it should enable special allowances for running on a test bot")
	f.StringArrayVar(&trOpts.ChildArgs, "child-arg", nil, "Arguments for the test process (repeatable)")

	f.StringVar(&trDeviceTool, "device-tool", target.DefaultTool, "Device tool used to drive the target")
	f.StringVar(&trConfigPath, "config", "", "Config file (default: ~/.config/buildgate/config.toml)")
}

// ExecuteTestRunner runs test-runner and returns the process exit code.
// SIGINT and SIGTERM cancel the run; the target is still shut down.
func ExecuteTestRunner() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return executeTestRunner(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func executeTestRunner(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	testRunnerExitCode = 0
	TestRunnerCmd.SetArgs(args)
	TestRunnerCmd.SetOut(stdout)
	TestRunnerCmd.SetErr(stderr)

	if err := TestRunnerCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return testRunnerExitCode
}

// applyTestRunnerConfig fills options the user did not set on the command
// line from the config file.
func applyTestRunnerConfig(cmd *cobra.Command, opts *testrunner.Options, tool *string, cfg config.TestRunner) {
	changed := cmd.Flags().Changed

	if !changed("device-tool") && cfg.DeviceTool != "" {
		*tool = cfg.DeviceTool
	}
	if !changed("target-cpu") && cfg.TargetCPU != "" {
		opts.TargetCPU = cfg.TargetCPU
	}
	if !changed("device") && cfg.Device != "" {
		opts.Device = cfg.Device
	}
	if !changed("host") && cfg.Host != "" {
		opts.Host = cfg.Host
	}
	if !changed("port") && cfg.Port != 0 {
		opts.Port = cfg.Port
	}
	if !changed("ssh-config") && cfg.SSHConfig != "" {
		opts.SSHConfig = cfg.SSHConfig
	}
	if !changed("test-launcher-jobs") && cfg.Jobs != 0 {
		opts.Jobs = cfg.Jobs
	}
}

func runTestRunner(cmd *cobra.Command, args []string) error {
	logging.ConfigureRuntime("test-runner", trOpts.Verbose)

	if trOpts.OutputDirectory == "" || trOpts.Package == "" || trOpts.PackageName == "" {
		return fmt.Errorf("--output-directory, --package and --package-name are required")
	}

	cfg, err := config.Load(trConfigPath)
	if err != nil {
		return err
	}

	opts := trOpts
	opts.PositionalArgs = args
	tool := trDeviceTool
	applyTestRunnerConfig(cmd, &opts, &tool, cfg.TestRunner)

	tools := target.ExecRunner{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}
	r := &testrunner.Runner{
		NewTarget: spinnerTargets(target.Factory(tool, tools), cmd.ErrOrStderr()),
		Servers:   &target.ToolServerLauncher{Tool: tool, Runner: tools},
		Packages:  &target.ToolPackageRunner{Tool: tool, Runner: tools},
	}

	code, err := r.Run(cmd.Context(), opts)
	if err != nil {
		return err
	}
	testRunnerExitCode = code
	return nil
}

// spinnerTarget shows a spinner while the device boots.
type spinnerTarget struct {
	testrunner.Target
	spinner *output.Spinner
}

func (t *spinnerTarget) Start(ctx context.Context) error {
	t.spinner.Start()
	err := t.Target.Start(ctx)
	if err != nil {
		t.spinner.StopWithMessage("✗ Target failed to start")
		return err
	}
	t.spinner.StopWithMessage("✓ Target started")
	return nil
}

func spinnerTargets(factory testrunner.TargetFactory, w io.Writer) testrunner.TargetFactory {
	return func(ctx context.Context, opts testrunner.Options, requireKVM bool) (testrunner.Target, error) {
		t, err := factory(ctx, opts, requireKVM)
		if err != nil {
			return nil, err
		}
		return &spinnerTarget{Target: t, spinner: output.NewSpinner(w, "Starting target")}, nil
	}
}
