package kthread

import (
	"github.com/azzaros-labs/threadkernel/internal/intr"
	"github.com/azzaros-labs/threadkernel/internal/klist"
	"github.com/azzaros-labs/threadkernel/internal/klog"
)

// sleepList holds blocked threads ordered by ascending WakeTick — spec
// §4.6's alarm facility, grounded on original_source/src/devices/timer.c's
// timer_sleep (the original wait_list/wake_tick design maps directly onto
// klist.InsertOrdered).
var sleepList = klist.New[*Thread]()

func sleepLess(a, b *Thread) bool { return a.WakeTick < b.WakeTick }

// Sleep blocks the calling thread until at least numTicks timer ticks
// have elapsed (spec §4.5's sleep(num_ticks)). numTicks <= 0 returns
// immediately without blocking or yielding — spec §4.5's "n ≤ 0: returns
// immediately" and §8's boundary behavior "sleep(0) is a no-op" (the
// original_source timer_sleep has no such guard at all, inserting a
// wake_tick at or before the current tick; spec's explicit redesign here
// is a true no-op rather than an immediate self-wake next tick).
func Sleep(numTicks int64) {
	if numTicks <= 0 {
		return
	}
	intr.WithDisabled(func() {
		t := currentThread
		t.WakeTick = ticks + uint64(numTicks)
		sleepList.InsertOrdered(&t.sleepNode, sleepLess)
		t.State = StateBlocked
		scheduleLocked()
	})
}

// DrainSleepList wakes every thread whose WakeTick has arrived. Called
// once per tick by internal/timer with interrupts already disabled (spec
// §4.6 step 2: "wake any sleepers whose deadline has arrived").
func DrainSleepList() {
	mustDisabled("DrainSleepList")
	for {
		front := sleepList.Front()
		if front == nil || front.Value.WakeTick > ticks {
			return
		}
		t := front.Value
		sleepList.Remove(&t.sleepNode)
		unblockLocked(t)
		klog.ThreadWoken(int(t.TID), t.Name, ticks)
	}
}
