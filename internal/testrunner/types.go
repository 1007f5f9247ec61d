package testrunner

import "context"

const (
	// TestResultPath is where the test launcher writes its JSON summary on
	// the device.
	TestResultPath = "/data/test_summary.json"

	// TestFilterPath is where a test filter file is pushed on the device.
	TestFilterPath = "/data/test_filter.txt"

	// DefaultTestConcurrency is the number of parallel test jobs when
	// --test-launcher-jobs is not given.
	DefaultTestConcurrency = 4
)

// Options carries the target arguments and the test launcher flags of one
// test-runner invocation.
type Options struct {
	// Deployment target.
	OutputDirectory string
	Package         string
	PackageName     string
	TargetCPU       string
	Device          string
	Host            string
	Port            int
	SSHConfig       string
	SystemLogFile   string
	QemuImgRetries  int
	Verbose         bool

	// Test launcher passthrough.
	GTestFilter        string
	GTestRepeat        string
	RetryLimit         string
	BreakOnFailure     bool
	SingleProcessTests bool
	BatchLimit         int
	FilterFile         string
	Jobs               int
	SummaryOutput      string
	EnableTestServer   bool
	BotMode            bool
	ChildArgs          []string
	PositionalArgs     []string
}

// Target is a device that test packages are deployed to.
type Target interface {
	Start(ctx context.Context) error
	PutFile(ctx context.Context, src, dst, forPackage string) error
	GetFile(ctx context.Context, src, dst, forPackage string) error
	Close() error
}

// TargetFactory creates the target described by opts.
type TargetFactory func(ctx context.Context, opts Options, requireKVM bool) (Target, error)

// TestServer is a running test server spawned for a test package.
type TestServer interface {
	Stop() error
}

// ServerLauncher starts test servers reachable from the target.
type ServerLauncher interface {
	Setup(ctx context.Context, target Target, concurrency int, packageName string) (TestServer, error)
}

// RunPackageArgs are the package execution settings derived from the
// common target arguments.
type RunPackageArgs struct {
	SystemLogFile string
	Verbose       bool
}

// RunPackageArgsFromOptions extracts the package execution settings.
func RunPackageArgsFromOptions(opts Options) RunPackageArgs {
	return RunPackageArgs{
		SystemLogFile: opts.SystemLogFile,
		Verbose:       opts.Verbose,
	}
}

// PackageRunner runs a package on a target and returns its exit code.
type PackageRunner interface {
	RunPackage(ctx context.Context, outputDir string, target Target, pkg, pkgName string, childArgs []string, args RunPackageArgs) (int, error)
}
