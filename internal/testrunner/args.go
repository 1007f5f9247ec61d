package testrunner

import (
	"fmt"
	"strconv"
)

// Concurrency returns the number of parallel test jobs for opts.
func Concurrency(opts Options) int {
	if opts.Jobs > 0 {
		return opts.Jobs
	}
	return DefaultTestConcurrency
}

// RequireKVM reports whether the target must run with KVM, which x64 test
// bots need.
func RequireKVM(opts Options) bool {
	return opts.BotMode && opts.TargetCPU == "x64"
}

// BuildChildArgs returns the test launcher arguments passed to the package.
// The filter file argument is added later, once the file is on the device.
func BuildChildArgs(opts Options) []string {
	args := []string{"--test-launcher-retry-limit=0"}

	if opts.SingleProcessTests {
		args = append(args, "--single-process-tests")
	}
	if opts.BotMode {
		args = append(args, "--test-launcher-bot-mode")
	}
	if opts.BatchLimit > 0 {
		args = append(args, fmt.Sprintf("--test-launcher-batch-limit=%d", opts.BatchLimit))
	}

	args = append(args, "--test-launcher-jobs="+strconv.Itoa(Concurrency(opts)))

	if opts.GTestFilter != "" {
		args = append(args, "--gtest_filter="+opts.GTestFilter)
	}
	if opts.GTestRepeat != "" {
		args = append(args, "--gtest_repeat="+opts.GTestRepeat, "--test-launcher-timeout=-1")
	}
	// A later retry limit overrides the leading default of 0.
	if opts.RetryLimit != "" {
		args = append(args, "--test-launcher-retry-limit="+opts.RetryLimit)
	}
	if opts.BreakOnFailure {
		args = append(args, "--gtest_break_on_failure")
	}
	if opts.SummaryOutput != "" {
		args = append(args, "--test-launcher-summary-output="+TestResultPath)
	}

	args = append(args, opts.ChildArgs...)
	args = append(args, opts.PositionalArgs...)
	return args
}
