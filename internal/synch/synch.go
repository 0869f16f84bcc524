// Package synch implements the synchronization primitives of spec §4.4:
// a counting semaphore, a priority-donating lock built on top of it, and
// a condition variable built on top of locks and private one-shot
// semaphores — the same layering original_source/src/threads/synch.h
// documents ("locks are stronger than semaphores... condition variables
// are a higher-level form of synchronization than locks").
//
// Every blocking operation here composes with internal/kthread's "*Locked"
// discipline: each public entry point disables interrupts exactly once
// and delegates to an unexported, already-disabled twin so that, e.g.,
// Lock.Acquire can drive a Semaphore's internals and a donation walk
// within a single critical section instead of nesting disables.
package synch

import (
	"github.com/azzaros-labs/threadkernel/internal/intr"
	"github.com/azzaros-labs/threadkernel/internal/klist"
	"github.com/azzaros-labs/threadkernel/internal/kthread"
)

// waiterLess orders a waiter list by descending effective priority, ties
// broken FIFO — spec §4.4's "waiters are, logically, priority-ordered".
func waiterLess(a, b *kthread.Thread) bool { return a.EffectivePriority > b.EffectivePriority }

// Semaphore is a classic counting semaphore (spec §4.4): Down blocks
// while the count is zero, Up increments it and wakes the
// highest-priority waiter.
type Semaphore struct {
	value   int
	waiters *klist.List[*kthread.Thread]
}

// NewSemaphore returns a semaphore initialized to the given count.
func NewSemaphore(initial int) *Semaphore {
	return &Semaphore{value: initial, waiters: klist.New[*kthread.Thread]()}
}

// Reposition re-sorts t within the waiter list after t's priority
// changes post-enqueue (spec §4.4's donation-triggered re-sort);
// implements kthread.Repositionable.
func (s *Semaphore) Reposition(t *kthread.Thread) {
	s.waiters.Remove(t.WaiterNode())
	s.waiters.InsertOrdered(t.WaiterNode(), waiterLess)
}

func (s *Semaphore) downLocked() {
	for s.value == 0 {
		t := kthread.Current()
		t.WaiterList = s
		s.waiters.InsertOrdered(t.WaiterNode(), waiterLess)
		kthread.Block()
		t.WaiterList = nil
	}
	s.value--
}

// Down blocks the calling thread until the count is positive, then
// decrements it.
func (s *Semaphore) Down() {
	intr.WithDisabled(s.downLocked)
}

// TryDownLocked decrements the count and returns true without blocking if
// the count is already positive, or returns false unchanged otherwise.
// Assumes interrupts are already disabled.
func (s *Semaphore) TryDownLocked() bool {
	if s.value > 0 {
		s.value--
		return true
	}
	return false
}

// TryDown is TryDownLocked's self-disabling public counterpart.
func (s *Semaphore) TryDown() bool {
	ok := false
	intr.WithDisabled(func() { ok = s.TryDownLocked() })
	return ok
}

func (s *Semaphore) upLocked() *kthread.Thread {
	s.value++
	// s.waiters is kept sorted descending by effective priority at all
	// times: InsertOrdered places new waiters in order, and kthread
	// repositions a waiter on this list whenever its priority changes
	// (see kthread.setEffectivePriorityLocked's WaiterList.Reposition
	// call), so the front is always the highest-priority waiter — no
	// rescan needed.
	front := s.waiters.Front()
	if front == nil {
		return nil
	}
	t := front.Value
	s.waiters.Remove(t.WaiterNode())
	kthread.Unblock(t)
	return t
}

// Up increments the count and wakes the highest-priority waiter, if any.
// A release that unblocks a strictly higher-priority thread makes the
// calling thread yield immediately (spec §4.4).
func (s *Semaphore) Up() {
	intr.WithDisabled(func() { s.upLocked() })
	kthread.CheckShouldYield()
}

// Value returns the current count, for diagnostics only — real kernel
// code should never branch on it instead of calling Down/TryDown.
func (s *Semaphore) Value() int { return s.value }

// Lock is a binary semaphore with an owner, supporting priority donation
// (spec §4.4): acquiring a held lock donates the acquirer's effective
// priority to the holder (and transitively, up the chain), and releasing
// drops exactly the donation attributable to this lock.
type Lock struct {
	sema     *Semaphore
	holder   *kthread.Thread
	heldNode klist.Node[kthread.Donee]
}

// NewLock returns an unheld lock.
func NewLock() *Lock {
	l := &Lock{sema: NewSemaphore(1)}
	l.heldNode.Value = l
	return l
}

// DoneeHolder implements kthread.Donee.
func (l *Lock) DoneeHolder() *kthread.Thread { return l.holder }

// DoneeMaxWaiterPriority implements kthread.Donee: the highest effective
// priority among threads currently blocked acquiring l, or PriMin if none
// are waiting. l.sema.waiters is always sorted with the highest-priority
// waiter at the front (see Semaphore.upLocked), so Front() suffices.
func (l *Lock) DoneeMaxWaiterPriority() int {
	if front := l.sema.waiters.Front(); front != nil {
		return front.Value.EffectivePriority
	}
	return kthread.PriMin
}

// Acquire blocks until the lock is free, then takes ownership. If the
// lock is currently held, the calling thread enqueues itself on the
// lock's waiter list and donates its effective priority up the holder's
// donation chain before blocking (spec §4.4), bounded by
// kthread.DonationDepth(); donation is skipped entirely under MLFQS
// (kthread.Donate is a no-op there). The enqueue must happen before the
// donation walk, not after, so DoneeMaxWaiterPriority sees this waiter
// while recomputing the holder's effective priority.
func (l *Lock) Acquire() {
	t := kthread.Current()
	intr.WithDisabled(func() {
		for l.sema.value == 0 {
			t.WaitingOn = l
			t.WaiterList = l.sema
			l.sema.waiters.InsertOrdered(t.WaiterNode(), waiterLess)
			kthread.Donate(l, kthread.DonationDepth())
			kthread.Block()
			t.WaiterList = nil
			t.WaitingOn = nil
		}
		l.sema.value--
		l.holder = t
		t.HeldLocks.PushBack(&l.heldNode)
	})
}

// TryAcquire takes ownership without blocking if the lock is free,
// reporting whether it succeeded.
func (l *Lock) TryAcquire() bool {
	ok := false
	t := kthread.Current()
	intr.WithDisabled(func() {
		if l.holder == nil && l.sema.TryDownLocked() {
			l.holder = t
			t.HeldLocks.PushBack(&l.heldNode)
			ok = true
		}
	})
	return ok
}

// Release gives up ownership, drops any donation attributable to this
// lock from the releasing thread's effective priority, and wakes the
// highest-priority waiter, if any. A release that hands the lock to a
// strictly higher-priority thread yields immediately (spec §4.4).
func (l *Lock) Release() {
	t := kthread.Current()
	intr.WithDisabled(func() {
		if !l.IsHeldByCurrentThread() {
			kthread.Fatalf(t, "Release called on lock not held by caller")
		}
		l.holder = nil
		t.HeldLocks.Remove(&l.heldNode)
		kthread.RecomputeEffectivePriority(t)
		l.sema.upLocked()
	})
	kthread.CheckShouldYield()
}

// IsHeldByCurrentThread reports whether the calling thread owns l.
func (l *Lock) IsHeldByCurrentThread() bool {
	return l.holder == kthread.Current()
}

// Cond is a condition variable built from private one-shot semaphores
// (spec §4.4), one per waiter — original_source/src/threads/synch.c's
// semaphore_elem pattern: cond_wait releases the associated lock, blocks
// on a semaphore private to that call, and reacquires the lock once
// woken, so a signal can never be "lost" between check and wait.
type Cond struct {
	waiters *klist.List[*waiterSlot]
}

type waiterSlot struct {
	sema   *Semaphore
	thread *kthread.Thread
	node   klist.Node[*waiterSlot]
}

// NewCond returns a condition variable with no waiters.
func NewCond() *Cond {
	return &Cond{waiters: klist.New[*waiterSlot]()}
}

// slotLess orders c.waiters by descending effective priority at Wait
// time — used only for InsertOrdered's initial placement.
func slotLess(a, b *waiterSlot) bool { return a.thread.EffectivePriority > b.thread.EffectivePriority }

// slotAscending is slotLess's true ascending counterpart
// (a.priority < b.priority), for use with klist.List.Max: Max's
// "replace best whenever less(best, cur)" algorithm only finds the
// greatest element when less is a genuine ascending "<" — feeding it
// slotLess (which encodes ">") would make it return the *lowest*
// priority waiter instead. c.waiters is never repositioned after
// InsertOrdered (unlike a semaphore's waiter list, no kthread hook walks
// it on a donation-driven priority change), so signal must rescan for
// the live maximum rather than trust insertion order — spec §4.4:
// "Selection of the highest-priority waiter under signal must examine
// current effective priorities (priorities may have changed since
// wait)".
func slotAscending(a, b *waiterSlot) bool { return a.thread.EffectivePriority < b.thread.EffectivePriority }

// Wait atomically releases l and blocks the calling thread until Signal
// or Broadcast wakes it, then reacquires l before returning — spec
// §4.4's cond_wait(cond, lock). l must be held by the calling thread.
func (c *Cond) Wait(l *Lock) {
	slot := &waiterSlot{sema: NewSemaphore(0), thread: kthread.Current()}
	slot.node.Value = slot
	intr.WithDisabled(func() {
		c.waiters.InsertOrdered(&slot.node, slotLess)
	})
	l.Release()
	slot.sema.Down()
	l.Acquire()
}

// Signal wakes the waiter whose currently-enqueued thread has the
// highest effective priority, if any (spec §4.4's cond_signal). The
// list is re-scanned for its live maximum rather than relying on
// insertion order, since donation may have reordered priorities after
// Wait enqueued them.
func (c *Cond) Signal() {
	intr.WithDisabled(func() {
		max := c.waiters.Max(slotAscending)
		if max == nil {
			return
		}
		c.waiters.Remove(&max.Value.node)
		max.Value.sema.upLocked()
	})
}

// Broadcast wakes every waiter (spec §4.4's cond_broadcast).
func (c *Cond) Broadcast() {
	for !c.waiters.Empty() {
		c.Signal()
	}
}
