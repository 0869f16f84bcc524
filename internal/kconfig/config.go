// Package kconfig loads the kernel's startup configuration from a JSON
// file with an optional .env overlay for secrets/environment-specific
// overrides — the same two-file shape as the teacher's utils/config
// package (ConfigKernel + CargarVariablesEntorno), generalized here from
// per-component network config to this kernel's scheduling knobs (spec
// §9's fixed configuration list).
package kconfig

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/azzaros-labs/threadkernel/internal/klog"
)

// Config mirrors spec §9's "fixed at init, not runtime-tunable" list, plus
// the ambient logging knob every component in this port carries.
type Config struct {
	MaxThreads         int    `json:"max_threads"`
	DonationChainDepth int    `json:"donation_chain_depth"`
	MLFQSMode          bool   `json:"mlfqs_mode"`
	TimerFrequencyHz   int    `json:"timer_frequency_hz"`
	TimeSliceTicks     int64  `json:"time_slice_ticks"`
	LogLevel           string `json:"log_level"`
}

// Default mirrors original_source/src/threads/init.c's compiled-in
// defaults: 8 levels of donation chaining, MLFQS off, TIMER_FREQ=100Hz, a
// one-tick time slice.
func Default() Config {
	return Config{
		MaxThreads:         0,
		DonationChainDepth: 8,
		MLFQSMode:          false,
		TimerFrequencyHz:   100,
		TimeSliceTicks:     1,
		LogLevel:           "info",
	}
}

// Load reads a JSON config file at path, overlaying values from envPath
// (if present) into the process environment first so JSON values can
// reference them with ${VAR} expansion — matching CargarConfiguracion's
// CargarVariablesEntorno-then-json.Unmarshal order. A missing config file
// is not an error: Load falls back to Default().
func Load(path string, envPath string) (Config, error) {
	loadDotEnv(envPath)

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			klog.Warn("config file not found, using defaults", path)
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "kconfig: reading %s", path)
	}

	expanded := os.Expand(string(data), os.Getenv)
	if err := json.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, errors.Wrapf(err, "kconfig: parsing %s", path)
	}
	return cfg, nil
}

// loadDotEnv sets process environment variables from a simple KEY=VALUE
// file, skipping blanks, comments, and keys already set — mirroring the
// teacher's CargarVariablesEntorno.
func loadDotEnv(path string) {
	if path == "" {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, val)
		}
	}
}
