package kthread

import (
	"runtime"

	"github.com/azzaros-labs/threadkernel/internal/intr"
	"github.com/azzaros-labs/threadkernel/internal/klog"
	"github.com/azzaros-labs/threadkernel/internal/mlfqs"
)

// preemptPending is the deferred-yield flag a timer interrupt raises
// instead of switching directly (see NoteTimerTick). Only ever touched
// with interrupts disabled.
var preemptPending bool

func pickNextLocked() *Thread {
	n := readyQueue.PopFront()
	if n == nil {
		return idleThread
	}
	return n.Value
}

// scheduleLocked performs the baton handoff: wake next's goroutine, then
// park the calling (outgoing) goroutine on its own channel until some
// later schedule hands the baton back to it. mu (internal/intr) stays
// locked across the handoff, so the resuming thread inherits "interrupts
// disabled" exactly as the outgoing thread left it — see internal/intr's
// package doc for why this is safe under the single-baton invariant.
func scheduleLocked() {
	mustDisabled("schedule")
	prev := currentThread
	next := pickNextLocked()
	if next == nil {
		Fatalf(prev, "no runnable thread (idle thread not installed)")
	}
	checkMagic(prev)
	checkMagic(next)
	next.State = StateRunning
	currentThread = next
	if next != prev {
		klog.ThreadSwitched(int(prev.TID), prev.Name, int(next.TID), next.Name)
	}
	if next == prev {
		return
	}
	if prev.State == StateDying {
		// Reclaim the descriptor before next starts running, so nothing
		// touches the thread table concurrently with it.
		delete(allThreads, prev.TID)
		klog.ThreadExited(int(prev.TID), prev.Name)
		next.cont <- struct{}{}
		return
	}
	next.cont <- struct{}{}
	<-prev.cont
}

// Block puts the calling thread to sleep (spec §4.1's block()). The
// caller (internal/synch) must already be running with interrupts
// disabled and remains responsible for re-enabling them once Block
// returns, since that happens on whatever later call resumes this
// thread, not on this call stack.
func Block() {
	mustDisabled("Block")
	currentThread.State = StateBlocked
	scheduleLocked()
}

func unblockLocked(t *Thread) {
	if t.State != StateBlocked {
		Fatalf(t, "Unblock called on thread in state %s, want BLOCKED", t.State)
	}
	t.State = StateReady
	readyQueue.InsertOrdered(&t.readyNode, readyLess)
}

// Unblock moves a blocked thread to READY (spec §4.3's unblock(tid)). Like
// Block, it must be called with interrupts already disabled (its caller,
// internal/synch, is always inside its own disabled section). It does not
// itself yield; a release that hands ownership to a higher-priority
// waiter calls CheckShouldYield separately.
func Unblock(t *Thread) {
	mustDisabled("Unblock")
	unblockLocked(t)
}

func yieldLocked() {
	mustDisabled("yield")
	if currentThread != idleThread {
		currentThread.State = StateReady
		readyQueue.InsertOrdered(&currentThread.readyNode, readyLess)
	} else {
		// idle is never queued (spec §3); mark it parked rather than
		// leaving a stale RUNNING state on a thread that is not.
		currentThread.State = StateBlocked
	}
	scheduleLocked()
}

// Yield gives up the CPU without blocking (spec §4.3's yield()); the
// calling thread stays READY and is re-dispatched under ordinary
// priority rules.
func Yield() {
	intr.WithDisabled(yieldLocked)
}

func checkShouldYieldLocked() {
	mustDisabled("checkShouldYield")
	if currentThread == nil {
		return
	}
	if front := readyQueue.Front(); front != nil && front.Value.EffectivePriority > currentThread.EffectivePriority {
		yieldLocked()
	}
}

// CheckShouldYield yields immediately if the ready queue's highest
// priority exceeds the calling thread's — the non-interrupt-context half
// of spec §4.3's preemption rule.
func CheckShouldYield() {
	intr.WithDisabled(checkShouldYieldLocked)
}

// NoteTimerTick is called by internal/timer once per tick, with
// interrupts already disabled. A timer tick can't perform the goroutine
// baton handoff itself — it isn't a thread and holds no resume channel —
// so it only raises a deferred-yield flag (spec §4.3: interrupt context
// defers the yield to "interrupt return"). PollPreempt is this kernel's
// stand-in for that return point.
func NoteTimerTick() {
	mustDisabled("NoteTimerTick")
	if currentThread == nil {
		return
	}
	if front := readyQueue.Front(); front != nil && front.Value.EffectivePriority > currentThread.EffectivePriority {
		preemptPending = true
	}
}

// PollPreempt consumes a pending deferred-yield flag, if any. Thread
// bodies and the idle loop call this at their own natural checkpoints,
// since nothing here can interrupt a goroutine mid-instruction.
func PollPreempt() {
	intr.WithDisabled(func() {
		if preemptPending {
			preemptPending = false
			yieldLocked()
		}
	})
}

// Exit tears the calling thread down (spec §4.3's exit()): it transitions
// straight to DYING and never returns to its caller. The disabled section
// it opens is handed to the next thread together with the CPU, and the
// exiting goroutine ends.
func Exit() {
	intr.Disable()
	currentThread.State = StateDying
	scheduleLocked()
	runtime.Goexit()
}

func setEffectivePriorityLocked(t *Thread, p int) {
	if t.EffectivePriority == p {
		return
	}
	old := t.EffectivePriority
	t.EffectivePriority = p
	switch {
	case t.State == StateReady:
		readyQueue.Remove(&t.readyNode)
		readyQueue.InsertOrdered(&t.readyNode, readyLess)
	case t.WaiterList != nil:
		t.WaiterList.Reposition(t)
	}
	klog.PriorityChanged(int(t.TID), t.Name, old, p)
}

// RecomputeEffectivePriority sets t's effective priority to the greater
// of its base priority and the highest priority among threads waiting on
// any lock t holds (spec §4.4's donation rule), then repositions t in
// whatever ordered list currently holds it.
func RecomputeEffectivePriority(t *Thread) {
	mustDisabled("RecomputeEffectivePriority")
	best := t.BasePriority
	if max := t.HeldLocks.Max(holdsAscendingByMaxWaiter); max != nil {
		if w := max.Value.DoneeMaxWaiterPriority(); w > best {
			best = w
		}
	}
	setEffectivePriorityLocked(t, best)
}

// Donate walks the donation chain from a blocked waiter through the lock
// it is waiting on, bumping each holder's effective priority in turn,
// bounded by DonationDepth() (spec §4.4: "bound the chain depth", spec §9
// default 8). A no-op under MLFQS, which derives priority automatically
// instead (spec §4.4: "donation is disabled when mlfqs_mode is true").
func Donate(waiting Donee, depth int) {
	mustDisabled("Donate")
	if depth <= 0 || MLFQSMode() || waiting == nil {
		return
	}
	holder := waiting.DoneeHolder()
	if holder == nil {
		return
	}
	if currentThread != nil {
		klog.Donation(int(currentThread.TID), int(holder.TID), currentThread.EffectivePriority, depth)
	}
	RecomputeEffectivePriority(holder)
	if holder.WaitingOn != nil {
		Donate(holder.WaitingOn, depth-1)
	}
}

// SetPriority sets the calling thread's base priority (spec §4.3's
// set_priority(priority)), clamped to [PriMin,PriMax] rather than
// asserted (see DESIGN.md's error-handling redesign note). A no-op while
// MLFQS mode is deriving priority automatically (spec §4.7).
func SetPriority(priority int) {
	intr.WithDisabled(func() {
		if MLFQSMode() {
			return
		}
		t := currentThread
		t.BasePriority = clampPriority(priority)
		RecomputeEffectivePriority(t)
	})
	CheckShouldYield()
}

// SetNice sets the calling thread's nice value (spec §4.7), immediately
// recomputing its MLFQS-derived priority.
func SetNice(nice int) {
	intr.WithDisabled(func() {
		if nice < NiceMin {
			nice = NiceMin
		} else if nice > NiceMax {
			nice = NiceMax
		}
		currentThread.Nice = nice
		mlfqsRecomputePriorityLocked(currentThread)
	})
	CheckShouldYield()
}

// Nice returns the calling thread's nice value.
func Nice() int {
	if currentThread == nil {
		return 0
	}
	return currentThread.Nice
}

// mlfqsRecomputePriorityLocked derives t's priority from recent_cpu and
// nice (spec §4.7's priority formula) and repositions it in the ready
// queue or in the semaphore waiter list that holds it. Donation plays no
// part in MLFQS mode, so base and effective track together.
func mlfqsRecomputePriorityLocked(t *Thread) {
	if t == idleThread {
		return
	}
	p := mlfqs.Priority(t.RecentCPU, t.Nice)
	t.BasePriority = p
	setEffectivePriorityLocked(t, p)
}

// RecomputeMLFQSPriority is the exported hook internal/timer's per-second
// and per-tick recompute passes call for every thread.
func RecomputeMLFQSPriority(t *Thread) {
	mustDisabled("RecomputeMLFQSPriority")
	mlfqsRecomputePriorityLocked(t)
}
