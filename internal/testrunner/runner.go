// Package testrunner deploys a test package to a target device, runs it with
// test launcher flags, and collects its results.
//
// Talking to the device is left to the Target, ServerLauncher and
// PackageRunner collaborators; this package only decides what to ask them
// and in which order.
package testrunner

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Runner runs test packages using injected collaborators.
type Runner struct {
	NewTarget TargetFactory
	Servers   ServerLauncher
	Packages  PackageRunner
}

// Run deploys and runs the test package described by opts and returns the
// package's exit code. Errors from the collaborators are returned wrapped;
// the exit code is only meaningful when err is nil.
func (r *Runner) Run(ctx context.Context, opts Options) (code int, err error) {
	if opts.Package == "" || opts.PackageName == "" {
		return 0, errors.New("package and package name are required")
	}
	if opts.EnableTestServer && r.Servers == nil {
		return 0, errors.New("test server requested but no server launcher configured")
	}

	childArgs := BuildChildArgs(opts)
	requireKVM := RequireKVM(opts)

	target, err := r.NewTarget(ctx, opts, requireKVM)
	if err != nil {
		return 0, fmt.Errorf("failed to create target: %w", err)
	}
	defer func() {
		if closeErr := target.Close(); closeErr != nil {
			if err == nil {
				err = fmt.Errorf("failed to close target: %w", closeErr)
			} else {
				log.Warn().Err(closeErr).Msg("closing target after failure")
			}
		}
	}()

	log.Debug().Bool("require_kvm", requireKVM).Str("cpu", opts.TargetCPU).Msg("starting target")
	if err := target.Start(ctx); err != nil {
		return 0, fmt.Errorf("failed to start target: %w", err)
	}

	if opts.FilterFile != "" {
		if err := target.PutFile(ctx, opts.FilterFile, TestFilterPath, opts.PackageName); err != nil {
			return 0, fmt.Errorf("failed to push test filter file: %w", err)
		}
		childArgs = append(childArgs, "--test-launcher-filter-file="+TestFilterPath)
	}

	var server TestServer
	if opts.EnableTestServer {
		server, err = r.Servers.Setup(ctx, target, Concurrency(opts), opts.PackageName)
		if err != nil {
			return 0, fmt.Errorf("failed to set up test server: %w", err)
		}
	}

	log.Debug().Strs("child_args", childArgs).Str("package", opts.PackageName).Msg("running package")
	code, err = r.Packages.RunPackage(ctx, opts.OutputDirectory, target, opts.Package, opts.PackageName,
		childArgs, RunPackageArgsFromOptions(opts))
	if err != nil {
		if server != nil {
			if stopErr := server.Stop(); stopErr != nil {
				log.Warn().Err(stopErr).Msg("stopping test server after failure")
			}
		}
		return 0, fmt.Errorf("failed to run package %s: %w", opts.PackageName, err)
	}

	if server != nil {
		if err := server.Stop(); err != nil {
			return 0, fmt.Errorf("failed to stop test server: %w", err)
		}
	}

	if opts.SummaryOutput != "" {
		if err := target.GetFile(ctx, TestResultPath, opts.SummaryOutput, opts.PackageName); err != nil {
			return 0, fmt.Errorf("failed to fetch test summary: %w", err)
		}
	}

	log.Debug().Int("exit_code", code).Msg("package finished")
	return code, nil
}
