package mlfqs

import (
	"testing"

	"github.com/azzaros-labs/threadkernel/internal/fixedpoint"
)

func TestPriorityDecreasesWithRecentCPU(t *testing.T) {
	base := Priority(fixedpoint.FromInt(0), 0)
	loaded := Priority(fixedpoint.FromInt(40), 0)
	if loaded >= base {
		t.Fatalf("priority with recent_cpu=40 (%d) should be lower than recent_cpu=0 (%d)", loaded, base)
	}
}

func TestPriorityClampsToBounds(t *testing.T) {
	if p := Priority(fixedpoint.FromInt(1000), NiceMax()); p != PriMin {
		t.Fatalf("priority = %d, want clamped to PriMin", p)
	}
	if p := Priority(fixedpoint.FromInt(-1000), -20); p != PriMax {
		t.Fatalf("priority = %d, want clamped to PriMax", p)
	}
}

func NiceMax() int { return 20 }

func TestLoadAvgConvergesTowardReadyCount(t *testing.T) {
	avg := fixedpoint.FromInt(0)
	for i := 0; i < 500; i++ {
		avg = UpdateLoadAvg(avg, 1)
	}
	if got := avg.ToIntRound(); got != 1 {
		t.Fatalf("load_avg converged to %d, want 1", got)
	}
}

func TestRecentCPUDecaysTowardNice(t *testing.T) {
	cpu := fixedpoint.FromInt(100)
	loadAvg := fixedpoint.FromInt(1)
	for i := 0; i < 2000; i++ {
		cpu = UpdateRecentCPU(cpu, 0, loadAvg)
	}
	if got := cpu.ToIntRound(); got != 0 {
		t.Fatalf("recent_cpu decayed to %d, want ~0", got)
	}
}

func TestIncrementRecentCPU(t *testing.T) {
	cpu := fixedpoint.FromInt(5)
	cpu = IncrementRecentCPU(cpu)
	if got := cpu.ToIntTrunc(); got != 6 {
		t.Fatalf("recent_cpu = %d, want 6", got)
	}
}
