// Package mlfqs implements the multilevel feedback queue scheduler
// formulas of spec §4.7: priority derived from recent_cpu and nice, and
// the recent_cpu/load_avg decay recurrences, all in 17.14 fixed point
// (internal/fixedpoint) per the doc comments on
// original_source/src/threads/thread.h's thread_update_recent_cpu and
// thread_update_priority_mlfqs — no floating point anywhere in the call
// chain.
//
// This package is deliberately Thread-agnostic (it takes and returns
// plain fixedpoint.FP/int values) so internal/kthread can import it
// without internal/kthread and internal/mlfqs forming a cycle; kthread
// is the one that owns a Thread's recent_cpu/nice fields and calls these
// functions against them.
package mlfqs

import "github.com/azzaros-labs/threadkernel/internal/fixedpoint"

// PriMin and PriMax mirror internal/kthread's priority bounds (spec §3);
// duplicated here rather than imported to keep this package free of any
// dependency on the thread table.
const (
	PriMin = 0
	PriMax = 63
)

var (
	coeff59 = fixedpoint.FromInt(59).Div(fixedpoint.FromInt(60))
	coeff1  = fixedpoint.FromInt(1).Div(fixedpoint.FromInt(60))
)

// Priority computes priority = PRI_MAX - (recent_cpu/4) - (nice*2),
// clamped to [PriMin,PriMax] (spec §4.7).
func Priority(recentCPU fixedpoint.FP, nice int) int {
	p := fixedpoint.FromInt(PriMax).Sub(recentCPU.DivInt(4)).SubInt(nice * 2)
	n := p.ToIntTrunc()
	if n < PriMin {
		return PriMin
	}
	if n > PriMax {
		return PriMax
	}
	return n
}

// IncrementRecentCPU adds one whole tick of CPU time to recentCPU,
// applied to the running thread on every timer tick that isn't an
// idle tick (spec §4.7's "recent_cpu ticks up by 1 each tick the thread
// runs").
func IncrementRecentCPU(recentCPU fixedpoint.FP) fixedpoint.FP {
	return recentCPU.AddInt(1)
}

// UpdateRecentCPU applies the once-per-second decay recurrence
// recent_cpu = (2*load_avg)/(2*load_avg+1) * recent_cpu + nice (spec
// §4.7).
func UpdateRecentCPU(recentCPU fixedpoint.FP, nice int, loadAvg fixedpoint.FP) fixedpoint.FP {
	twiceLoad := loadAvg.MulInt(2)
	coeff := twiceLoad.Div(twiceLoad.AddInt(1))
	return coeff.Mul(recentCPU).AddInt(nice)
}

// UpdateLoadAvg applies the once-per-second recurrence
// load_avg = (59/60)*load_avg + (1/60)*ready_threads (spec §4.7; see
// original_source/src/threads/thread.h's thread_get_load_avg). readyThreads
// counts the running thread too when it is not idle.
func UpdateLoadAvg(loadAvg fixedpoint.FP, readyThreads int) fixedpoint.FP {
	return coeff59.Mul(loadAvg).Add(coeff1.MulInt(readyThreads))
}
