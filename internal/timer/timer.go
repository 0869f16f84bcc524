// Package timer implements the spec §4.6 timer-tick handler: advance the
// tick counter, wake sleepers whose deadline has arrived, and — when
// MLFQS mode is on — run the once-per-second load-average/recent-CPU
// decay and the every-fourth-tick priority recompute, grounded on
// original_source/src/devices/timer.c's timer_interrupt and the
// thread_update_recent_cpu/thread_update_priority_mlfqs doc comments in
// src/threads/thread.h.
package timer

import (
	"github.com/azzaros-labs/threadkernel/internal/fixedpoint"
	"github.com/azzaros-labs/threadkernel/internal/intr"
	"github.com/azzaros-labs/threadkernel/internal/klog"
	"github.com/azzaros-labs/threadkernel/internal/kthread"
	"github.com/azzaros-labs/threadkernel/internal/mlfqs"
)

// priorityRecomputeInterval mirrors original_source's every-4-ticks MLFQS
// priority recompute cadence.
const priorityRecomputeInterval = 4

var loadAvg fixedpoint.FP

// LoadAvg returns the current system load average, for diagnostics.
func LoadAvg() fixedpoint.FP { return loadAvg }

// ResetForTest zeroes the package's load average, for test isolation.
func ResetForTest() { loadAvg = 0 }

// Tick is the timer interrupt handler (spec §4.6 steps 1-4): it runs with
// interrupts disabled for its entire body, exactly as a real timer
// interrupt would, and is the sole place ticks advance.
func Tick(freqHz int) {
	intr.WithDisabled(func() {
		now := kthread.AdvanceTick()
		kthread.DrainSleepList()

		if kthread.MLFQSMode() {
			if cur := kthread.Current(); cur != nil && cur.TID != kthread.IdleTID() {
				cur.RecentCPU = mlfqs.IncrementRecentCPU(cur.RecentCPU)
			}
			if freqHz > 0 && now%uint64(freqHz) == 0 {
				recomputeDecayLocked()
			}
			if now%priorityRecomputeInterval == 0 {
				kthread.ForEachLocked(kthread.RecomputeMLFQSPriority)
			}
		}

		kthread.NoteTimerTick()
	})
}

func recomputeDecayLocked() {
	ready := kthread.ReadyThreadCountLocked()
	loadAvg = mlfqs.UpdateLoadAvg(loadAvg, ready)
	klog.LoadAvgUpdated(int32(loadAvg), ready)
	kthread.ForEachLocked(func(t *kthread.Thread) {
		t.RecentCPU = mlfqs.UpdateRecentCPU(t.RecentCPU, t.Nice, loadAvg)
	})
}
