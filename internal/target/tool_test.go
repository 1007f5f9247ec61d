package target

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/blackwell-systems/buildgate/internal/logging"
	"github.com/blackwell-systems/buildgate/internal/testrunner"
)

func init() {
	logging.ConfigureTests()
}

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls    []call
	started  []call
	out      []byte
	err      error
	startErr error
	proc     *fakeProcess
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	return f.out, f.err
}

func (f *fakeRunner) Start(ctx context.Context, name string, args ...string) (Process, error) {
	f.started = append(f.started, call{name: name, args: args})
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.proc = &fakeProcess{}
	return f.proc, nil
}

type fakeProcess struct {
	stopped bool
}

func (p *fakeProcess) Stop() error {
	p.stopped = true
	return nil
}

func TestToolTarget_StartArgs(t *testing.T) {
	tests := []struct {
		name       string
		opts       testrunner.Options
		requireKVM bool
		want       []string
	}{
		{
			name: "no options",
			want: []string{"start"},
		},
		{
			name:       "emulator",
			opts:       testrunner.Options{TargetCPU: "x64", QemuImgRetries: 2},
			requireKVM: true,
			want:       []string{"start", "--cpu", "x64", "--require-kvm", "--qemu-img-retries", "2"},
		},
		{
			name: "remote device",
			opts: testrunner.Options{
				TargetCPU: "arm64",
				Device:    "device-1",
				Host:      "192.168.1.2",
				Port:      8022,
				SSHConfig: "/home/u/.ssh/config",
			},
			want: []string{
				"start", "--cpu", "arm64", "--device", "device-1", "--host", "192.168.1.2",
				"--port", "8022", "--ssh-config", "/home/u/.ssh/config",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{}
			target := NewToolTarget("", r, tt.opts, tt.requireKVM)
			if err := target.Start(context.Background()); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			if len(r.calls) != 1 {
				t.Fatalf("expected 1 call, got %d", len(r.calls))
			}
			if r.calls[0].name != DefaultTool {
				t.Errorf("tool = %q, want %q", r.calls[0].name, DefaultTool)
			}
			if !reflect.DeepEqual(r.calls[0].args, tt.want) {
				t.Errorf("args = %q, want %q", r.calls[0].args, tt.want)
			}
		})
	}
}

func TestToolTarget_FileTransfer(t *testing.T) {
	r := &fakeRunner{}
	target := NewToolTarget("ffx-wrapper", r, testrunner.Options{}, false)
	ctx := context.Background()

	if err := target.PutFile(ctx, "/host/filter.txt", testrunner.TestFilterPath, "base_unittests"); err != nil {
		t.Fatalf("PutFile() error = %v", err)
	}
	if err := target.GetFile(ctx, testrunner.TestResultPath, "/host/summary.json", "base_unittests"); err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if err := target.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	want := []call{
		{"ffx-wrapper", []string{"push", "--package", "base_unittests", "/host/filter.txt", testrunner.TestFilterPath}},
		{"ffx-wrapper", []string{"pull", "--package", "base_unittests", testrunner.TestResultPath, "/host/summary.json"}},
		{"ffx-wrapper", []string{"stop"}},
	}
	if !reflect.DeepEqual(r.calls, want) {
		t.Errorf("calls = %+v, want %+v", r.calls, want)
	}
}

func TestToolTarget_ErrorIncludesOutput(t *testing.T) {
	r := &fakeRunner{out: []byte("no device found"), err: &ExitError{Code: 2}}
	target := NewToolTarget("", r, testrunner.Options{}, false)

	err := target.Start(context.Background())
	if err == nil {
		t.Fatal("Start() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "start failed") || !strings.Contains(err.Error(), "no device found") {
		t.Errorf("error = %q", err)
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 2 {
		t.Errorf("error should wrap ExitError with code 2, got %v", err)
	}
}

func TestFactory(t *testing.T) {
	r := &fakeRunner{}
	factory := Factory("tool", r)

	tgt, err := factory(context.Background(), testrunner.Options{TargetCPU: "x64"}, true)
	if err != nil {
		t.Fatalf("factory error = %v", err)
	}
	if err := tgt.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	want := []string{"start", "--cpu", "x64", "--require-kvm"}
	if !reflect.DeepEqual(r.calls[0].args, want) {
		t.Errorf("args = %q, want %q", r.calls[0].args, want)
	}
}

func TestToolPackageRunner(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  bool
	}{
		{"success", nil, 0, false},
		{"tests failed", &ExitError{Code: 1}, 1, false},
		{"crash", &ExitError{Code: 139}, 139, false},
		{"tool missing", errors.New("executable file not found"), 0, true},
		{"killed by signal", &ExitError{Code: -1}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{err: tt.err}
			pr := &ToolPackageRunner{Runner: r}

			code, err := pr.RunPackage(context.Background(), "/out/default", nil, "/out/default/pkg.far", "pkg",
				[]string{"--test-launcher-jobs=4"}, testrunner.RunPackageArgs{SystemLogFile: "/tmp/log.txt"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("RunPackage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if code != tt.wantCode {
				t.Errorf("RunPackage() code = %d, want %d", code, tt.wantCode)
			}

			want := []string{
				"run", "--package-name", "pkg", "--output-directory", "/out/default",
				"--system-log-file", "/tmp/log.txt",
				"/out/default/pkg.far", "--", "--test-launcher-jobs=4",
			}
			if !reflect.DeepEqual(r.calls[0].args, want) {
				t.Errorf("args = %q, want %q", r.calls[0].args, want)
			}
		})
	}
}

func TestToolServerLauncher(t *testing.T) {
	r := &fakeRunner{}
	l := &ToolServerLauncher{Tool: "tool", Runner: r}

	server, err := l.Setup(context.Background(), nil, 6, "net_unittests")
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	want := []string{"test-server", "--package", "net_unittests", "--jobs", "6"}
	if !reflect.DeepEqual(r.started[0].args, want) {
		t.Errorf("args = %q, want %q", r.started[0].args, want)
	}

	if err := server.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !r.proc.stopped {
		t.Error("expected background process to be stopped")
	}
}

func TestToolServerLauncher_StartError(t *testing.T) {
	r := &fakeRunner{startErr: errors.New("cannot start")}
	l := &ToolServerLauncher{Runner: r}

	if _, err := l.Setup(context.Background(), nil, 4, "pkg"); err == nil {
		t.Fatal("Setup() expected error, got nil")
	}
}

func TestExitError_Message(t *testing.T) {
	if got := (&ExitError{Code: 3}).Error(); got != "exit status 3" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&ExitError{Code: 1, Stderr: "boom"}).Error(); got != "exit status 1: boom" {
		t.Errorf("Error() = %q", got)
	}
}
