// Package target drives test devices through an external device tool.
//
// Each operation maps to one verb of the tool (start, push, pull, stop, run,
// test-server) so the runner can stay ignorant of how devices are reached.
package target

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/blackwell-systems/buildgate/internal/testrunner"
)

// DefaultTool is the device tool used when none is configured.
const DefaultTool = "devicetool"

// ToolTarget is a testrunner.Target backed by the device tool.
type ToolTarget struct {
	tool       string
	runner     CommandRunner
	opts       testrunner.Options
	requireKVM bool
}

// NewToolTarget returns a target for opts. It does not start the device.
func NewToolTarget(tool string, runner CommandRunner, opts testrunner.Options, requireKVM bool) *ToolTarget {
	if tool == "" {
		tool = DefaultTool
	}
	return &ToolTarget{tool: tool, runner: runner, opts: opts, requireKVM: requireKVM}
}

// Factory returns a testrunner.TargetFactory creating ToolTargets.
func Factory(tool string, runner CommandRunner) testrunner.TargetFactory {
	return func(ctx context.Context, opts testrunner.Options, requireKVM bool) (testrunner.Target, error) {
		return NewToolTarget(tool, runner, opts, requireKVM), nil
	}
}

// Start boots or connects to the device.
func (t *ToolTarget) Start(ctx context.Context) error {
	return t.exec(ctx, t.startArgs()...)
}

func (t *ToolTarget) startArgs() []string {
	args := []string{"start"}
	if t.opts.TargetCPU != "" {
		args = append(args, "--cpu", t.opts.TargetCPU)
	}
	if t.opts.Device != "" {
		args = append(args, "--device", t.opts.Device)
	}
	if t.opts.Host != "" {
		args = append(args, "--host", t.opts.Host)
	}
	if t.opts.Port > 0 {
		args = append(args, "--port", strconv.Itoa(t.opts.Port))
	}
	if t.opts.SSHConfig != "" {
		args = append(args, "--ssh-config", t.opts.SSHConfig)
	}
	if t.requireKVM {
		args = append(args, "--require-kvm")
	}
	if t.opts.QemuImgRetries > 0 {
		args = append(args, "--qemu-img-retries", strconv.Itoa(t.opts.QemuImgRetries))
	}
	return args
}

// PutFile copies a host file into the package's namespace on the device.
func (t *ToolTarget) PutFile(ctx context.Context, src, dst, forPackage string) error {
	return t.exec(ctx, "push", "--package", forPackage, src, dst)
}

// GetFile copies a device file from the package's namespace to the host.
func (t *ToolTarget) GetFile(ctx context.Context, src, dst, forPackage string) error {
	return t.exec(ctx, "pull", "--package", forPackage, src, dst)
}

// Close shuts the device down.
func (t *ToolTarget) Close() error {
	return t.exec(context.Background(), "stop")
}

func (t *ToolTarget) exec(ctx context.Context, args ...string) error {
	log.Debug().Str("tool", t.tool).Strs("args", args).Msg("device tool")
	out, err := t.runner.Run(ctx, t.tool, args...)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w (output: %s)", t.tool, args[0], err, string(out))
	}
	return nil
}

// ToolPackageRunner runs packages with the device tool's run verb.
type ToolPackageRunner struct {
	Tool   string
	Runner CommandRunner
}

// RunPackage runs pkg on the device and returns the tool's exit code, which
// is the package's exit code.
func (r *ToolPackageRunner) RunPackage(ctx context.Context, outputDir string, _ testrunner.Target, pkg, pkgName string, childArgs []string, args testrunner.RunPackageArgs) (int, error) {
	tool := r.Tool
	if tool == "" {
		tool = DefaultTool
	}

	cmdArgs := []string{"run", "--package-name", pkgName, "--output-directory", outputDir}
	if args.SystemLogFile != "" {
		cmdArgs = append(cmdArgs, "--system-log-file", args.SystemLogFile)
	}
	cmdArgs = append(cmdArgs, pkg, "--")
	cmdArgs = append(cmdArgs, childArgs...)

	if args.Verbose {
		log.Info().Str("tool", tool).Strs("args", cmdArgs).Msg("running package")
	}

	_, err := r.Runner.Run(ctx, tool, cmdArgs...)
	if err == nil {
		return 0, nil
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code >= 0 {
		return exitErr.Code, nil
	}
	return 0, fmt.Errorf("%s run failed: %w", tool, err)
}

// ToolServerLauncher starts test servers with the device tool's test-server
// verb.
type ToolServerLauncher struct {
	Tool   string
	Runner CommandRunner
}

// Setup starts a test server for packageName. The server keeps running
// until Stop is called on the returned value.
func (l *ToolServerLauncher) Setup(ctx context.Context, _ testrunner.Target, concurrency int, packageName string) (testrunner.TestServer, error) {
	tool := l.Tool
	if tool == "" {
		tool = DefaultTool
	}

	p, err := l.Runner.Start(ctx, tool, "test-server", "--package", packageName, "--jobs", strconv.Itoa(concurrency))
	if err != nil {
		return nil, fmt.Errorf("%s test-server failed: %w", tool, err)
	}
	return p, nil
}
