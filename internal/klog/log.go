// Package klog is the kernel's tracing façade: a small set of named,
// structured log points, one per event the spec calls out as observable
// (thread creation, state transitions, donation, wakeups, priority
// recomputation), mirroring the teacher's utils/logueador package — which
// wraps a single configured logger behind named helpers like
// CambioDeEstado(pid, before, after) rather than scattering ad-hoc log
// calls through the codebase. Where logueador wraps log/slog, this wraps
// github.com/rs/zerolog (see SPEC_FULL.md's ambient stack section for why
// zerolog was chosen over slog for this port).
package klog

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(io.Discard).With().Timestamp().Logger()

// Configure points the kernel's tracing output at w, filtered to level
// (one of "debug", "info", "warn", "error", "disabled"), mirroring the
// teacher's ConfigurarLogger(nombreArchivoLog, nivelLog).
func Configure(w io.Writer, level string) {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	logger = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// ThreadCreated logs spec §4.3's create() — new descriptor allocated,
// initial priority assigned.
func ThreadCreated(tid int, name string, priority int) {
	logger.Info().Int("tid", tid).Str("name", name).Int("priority", priority).Msg("thread created")
}

// ThreadSwitched logs a baton handoff between two thread goroutines.
func ThreadSwitched(fromTID int, fromName string, toTID int, toName string) {
	logger.Debug().
		Int("from_tid", fromTID).Str("from_name", fromName).
		Int("to_tid", toTID).Str("to_name", toName).
		Msg("thread switched")
}

// ThreadExited logs spec §4.3's exit() reaching DYING and being reclaimed.
func ThreadExited(tid int, name string) {
	logger.Info().Int("tid", tid).Str("name", name).Msg("thread exited")
}

// PriorityChanged logs any change to a thread's effective priority,
// whether from set_priority, donation, or an MLFQS recompute pass (spec
// §4.4, §4.7).
func PriorityChanged(tid int, name string, oldPriority, newPriority int) {
	if oldPriority == newPriority {
		return
	}
	logger.Debug().
		Int("tid", tid).Str("name", name).
		Int("old_priority", oldPriority).Int("new_priority", newPriority).
		Msg("effective priority changed")
}

// Donation logs a priority donated from a waiter to the thread currently
// holding the lock it is blocked on (spec §4.4).
func Donation(waiterTID int, holderTID int, priority int, depth int) {
	logger.Info().
		Int("waiter_tid", waiterTID).Int("holder_tid", holderTID).
		Int("donated_priority", priority).Int("chain_depth", depth).
		Msg("priority donated")
}

// ThreadWoken logs the alarm facility waking a sleeper (spec §4.6).
func ThreadWoken(tid int, name string, atTick uint64) {
	logger.Debug().Int("tid", tid).Str("name", name).Uint64("tick", atTick).Msg("thread woken")
}

// LoadAvgUpdated logs internal/mlfqs's once-per-second system load average
// recompute (spec §4.7).
func LoadAvgUpdated(loadAvgFixedPoint int32, readyCount int) {
	logger.Debug().Int32("load_avg_raw", loadAvgFixedPoint).Int("ready_count", readyCount).Msg("load average updated")
}

// Fatal logs an invariant violation immediately before the kernel panics
// (spec §7).
func Fatal(msg string, tid int, name string) {
	logger.Error().Int("tid", tid).Str("name", name).Msg(msg)
}

// Warn logs a recoverable condition that is not an invariant violation —
// e.g. kconfig falling back to defaults when no config file is present.
func Warn(msg string, path string) {
	logger.Warn().Str("path", path).Msg(msg)
}

// ThreadSnapshot logs one row of a diagnostic dump over every live thread
// (spec §9's thread_foreach, exposed as kthread.ForEach).
func ThreadSnapshot(tid int, name string, state string, basePriority, effectivePriority int) {
	logger.Info().
		Int("tid", tid).Str("name", name).Str("state", state).
		Int("base_priority", basePriority).Int("effective_priority", effectivePriority).
		Msg("thread snapshot")
}
