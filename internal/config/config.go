// Package config loads buildgate's TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the config file looked up in Dir() when --config is not given.
const FileName = "config.toml"

// Dir returns the buildgate config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/buildgate if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "buildgate"), nil
}

// TestRunner holds defaults for the test-runner command. Command-line flags
// take precedence over these values.
type TestRunner struct {
	DeviceTool string
	TargetCPU  string
	Device     string
	Host       string
	Port       int
	SSHConfig  string
	Jobs       int
}

// SizeDiff holds defaults for the binary-size-differ command.
type SizeDiff struct {
	HistoryDB string
}

// Config is the parsed configuration file.
type Config struct {
	TestRunner TestRunner
	SizeDiff   SizeDiff
}

type fileConfig struct {
	TestRunner struct {
		DeviceTool string `toml:"device_tool"`
		TargetCPU  string `toml:"target_cpu"`
		Device     string `toml:"device"`
		Host       string `toml:"host"`
		Port       int    `toml:"port"`
		SSHConfig  string `toml:"ssh_config"`
		Jobs       int    `toml:"jobs"`
	} `toml:"test_runner"`
	SizeDiff struct {
		HistoryDB string `toml:"history_db"`
	} `toml:"size_diff"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		TestRunner: TestRunner{
			DeviceTool: "devicetool",
			TargetCPU:  "x64",
		},
	}
}

// Load reads the config file at path. An empty path means the default file
// in Dir(); a missing default file is not an error, a missing explicit one is.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		dir, err := Dir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(dir, FileName)
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return Config{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	tr := raw.TestRunner
	if meta.IsDefined("test_runner", "device_tool") {
		cfg.TestRunner.DeviceTool = strings.TrimSpace(tr.DeviceTool)
	}
	if meta.IsDefined("test_runner", "target_cpu") {
		cfg.TestRunner.TargetCPU = strings.TrimSpace(tr.TargetCPU)
	}
	if meta.IsDefined("test_runner", "device") {
		cfg.TestRunner.Device = strings.TrimSpace(tr.Device)
	}
	if meta.IsDefined("test_runner", "host") {
		cfg.TestRunner.Host = strings.TrimSpace(tr.Host)
	}
	if meta.IsDefined("test_runner", "port") {
		if tr.Port < 0 || tr.Port > 65535 {
			return Config{}, fmt.Errorf("load config %s: test_runner.port out of range: %d", path, tr.Port)
		}
		cfg.TestRunner.Port = tr.Port
	}
	if meta.IsDefined("test_runner", "ssh_config") {
		cfg.TestRunner.SSHConfig = strings.TrimSpace(tr.SSHConfig)
	}
	if meta.IsDefined("test_runner", "jobs") {
		if tr.Jobs < 0 {
			return Config{}, fmt.Errorf("load config %s: test_runner.jobs must not be negative", path)
		}
		cfg.TestRunner.Jobs = tr.Jobs
	}

	if meta.IsDefined("size_diff", "history_db") {
		cfg.SizeDiff.HistoryDB = strings.TrimSpace(raw.SizeDiff.HistoryDB)
	}

	return cfg, nil
}
