// Copyright 2024 rplc Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package builder assembles process-wide configuration: the static
// subset decoded from environment variables via struct2env, the handful
// of values that stay dynamically adjustable at runtime via dflag, and
// the flag-set wiring shared by cmd/rplc and cmd/rplcctl.
package builder // import "github.com/rplcgo/rplc/builder"

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fortio.org/dflag"
	"fortio.org/duration"
	"fortio.org/log"
	"fortio.org/struct2env"

	"github.com/rplcgo/rplc/version"
)

// Config is the static process configuration, decoded from environment
// variables (PLC_<FIELD>) via struct2env and overridable by flags.
type Config struct {
	Name        string `env:"NAME"`
	Description string `env:"DESCRIPTION"`
	VarDir      string `env:"VAR_DIR"`

	StopTimeout duration.Duration `env:"-"`
	StackSize   int               `env:"STACK_SIZE"`

	EAPIActionPoolSize int `env:"EAPI_ACTION_POOL_SIZE"`
}

// DefaultStopTimeout bounds how long an orderly shutdown may take before
// the watchdog force-exits the process.
const DefaultStopTimeout = 30

// DefaultEAPIActionPoolSize is the default size of the event-bus action
// worker pool when PLC_EAPI_ACTION_POOL_SIZE is unset.
const DefaultEAPIActionPoolSize = 1

// DefaultConfig returns a Config with every field at its documented
// default, suitable as the base struct2env.Decode reads into.
func DefaultConfig(name, description string) Config {
	return Config{
		Name:               name,
		Description:        description,
		VarDir:             defaultVarDir(),
		StopTimeout:        duration.Duration(DefaultStopTimeout * 1e9),
		EAPIActionPoolSize: DefaultEAPIActionPoolSize,
	}
}

func defaultVarDir() string {
	if d := os.Getenv("PLC_VAR_DIR"); d != "" {
		return d
	}
	return filepath.Join(os.TempDir(), "rplc")
}

// Load decodes environment-variable overrides (PLC_NAME, PLC_VAR_DIR,
// PLC_STACK_SIZE, PLC_EAPI_ACTION_POOL_SIZE, ...) on top of cfg's
// defaults, in the same environment-driven config style used
// (struct2env, as used for dynamic flag persistence elsewhere in the
// stack).
func Load(cfg *Config) error {
	if err := struct2env.SetFromEnv("PLC", cfg); err != nil {
		return fmt.Errorf("builder: decoding environment config: %w", err)
	}
	if v := os.Getenv("PLC_STOP_TIMEOUT"); v != "" {
		var d duration.Duration
		if err := d.Set(v); err != nil {
			return fmt.Errorf("builder: invalid PLC_STOP_TIMEOUT: %w", err)
		}
		cfg.StopTimeout = d
	}
	return nil
}

// RegisterFlags adds flag.FlagSet entries for every Config field,
// pre-populated from cfg, following a "flags as the single source of
// documented defaults" convention.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Name, "name", cfg.Name, "controller name, used in the control socket path")
	fs.StringVar(&cfg.Description, "description", cfg.Description, "human readable controller description")
	fs.StringVar(&cfg.VarDir, "var-dir", cfg.VarDir, "directory for the pid file and control socket")
	fs.IntVar(&cfg.StackSize, "stack-size", cfg.StackSize, "advisory goroutine stack size hint in bytes (0 = default)")
	fs.IntVar(&cfg.EAPIActionPoolSize, "eapi-action-pool-size", cfg.EAPIActionPoolSize, "event-bus action worker pool size")
	fs.Var(&cfg.StopTimeout, "stop-timeout", "maximum duration an orderly shutdown may take before a forced exit")
}

// Dynamic holds the subset of configuration that may be changed while
// the process runs, via fortio.org/dflag: the log level and the
// interval at which thread stats may be auto-reset (0 disables).
type Dynamic struct {
	LogLevel        *dflag.DynStringValue
	StatsResetEvery *dflag.DynDurationValue
}

// RegisterDynamic wires the runtime-adjustable flags into fs, returning
// a handle used to read their current values.
func RegisterDynamic(fs *flag.FlagSet) *Dynamic {
	d := &Dynamic{}
	d.LogLevel = dflag.DynString(fs, "log-level", log.GetLogLevel().String(), "dynamically adjustable log level").
		WithValidator(func(v string) error {
			_, err := log.ParseLevel(v)
			return err
		})
	d.LogLevel.WithNotifier(func(_, newValue string) {
		if lvl, err := log.ParseLevel(newValue); err == nil {
			log.SetLogLevel(lvl)
		}
	})
	d.StatsResetEvery = dflag.DynDuration(fs, "stats-reset-every", 0, "auto-reset thread stats on this interval, 0 to disable")
	return d
}

// Validate rejects a Config that could never produce a running
// controller: an empty Name (used to derive the socket/pid file names)
// or a non-positive pool size.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("builder: Name must not be empty")
	}
	if c.EAPIActionPoolSize <= 0 {
		return fmt.Errorf("builder: EAPIActionPoolSize must be positive, got %d", c.EAPIActionPoolSize)
	}
	return nil
}

// SocketPath returns the control API's well-known Unix socket path,
// derived from VarDir and Name.
func (c *Config) SocketPath() string {
	return filepath.Join(c.VarDir, c.Name+".plcsock")
}

// PidFilePath returns the pid file's path, derived the same way.
func (c *Config) PidFilePath() string {
	return filepath.Join(c.VarDir, c.Name+".pid")
}

// StopTimeoutDuration converts the flag-parsed StopTimeout into a plain
// time.Duration for tasks.RunOptions.
func (c *Config) StopTimeoutDuration() time.Duration {
	return time.Duration(c.StopTimeout)
}

// ProjectVersion is the build version reported by the "info" RPC and
// the cmd binaries' -version flag.
func ProjectVersion() string { return version.Short() }
