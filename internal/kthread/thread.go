// Package kthread implements the thread table, ready queue, and thread
// lifecycle operations of spec §4.3 — the core the rest of the kernel
// (internal/synch, internal/timer, internal/mlfqs) is built around.
//
// There is no physical kernel stack or context-switch instruction to call
// into from a Go program, so each thread is backed by one goroutine parked
// on a buffered, capacity-1 "resume" channel. Scheduling a thread in is a
// single buffered send to that channel; scheduling a thread out is the
// same goroutine receiving on its own channel. Because a send to a
// buffered channel never blocks on a receiver being ready, this baton
// handoff needs no separate dispatcher goroutine — exactly one thread's
// goroutine is ever unblocked at a time, which is the uniprocessor
// invariant the rest of the package leans on. See DESIGN.md for why this
// is the chosen stand-in for "the opaque context-switch primitive".
package kthread

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/azzaros-labs/threadkernel/internal/fixedpoint"
	"github.com/azzaros-labs/threadkernel/internal/intr"
	"github.com/azzaros-labs/threadkernel/internal/klist"
	"github.com/azzaros-labs/threadkernel/internal/klog"
)

// TID identifies a thread. TIDError is returned by Create on resource
// exhaustion.
type TID int32

// TIDError is the sentinel "no thread was created" return value.
const TIDError TID = -1

// State is a thread's position in the spec §3 lifecycle state machine.
type State uint8

const (
	StateReady State = iota
	StateRunning
	StateBlocked
	StateDying
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateBlocked:
		return "BLOCKED"
	case StateDying:
		return "DYING"
	default:
		return "UNKNOWN"
	}
}

// Priority bounds, spec §3: base_priority and effective_priority ∈ [0,63].
const (
	PriMin = 0
	PriMax = 63
)

// Nice bounds, spec §3/§4.7: nice ∈ [-20,20].
const (
	NiceMin = -20
	NiceMax = 20
)

// magicSentinel mirrors the integrity-check constant carried by both
// original_source/src/threads/thread.h (THREAD_MAGIC) and
// zhoujunjun-apple-xinu-go/include/process.go (StackMagic) — kept here as
// a plain field check rather than a literal stack-overflow guard, since a
// goroutine's stack is managed by the Go runtime, not by this kernel.
const magicSentinel uint32 = 0x0A0AAAA9

const maxNameLen = 15

// ErrNoFreePages is returned by Create when the configured thread-table
// capacity is exhausted (spec §7 "resource exhaustion").
var ErrNoFreePages = errors.New("kthread: no free thread pages")

// Donee is implemented by anything a thread can be WaitingOn for priority
// donation purposes — in practice *synch.Lock. Declared here (rather than
// kthread depending on synch) so Thread can hold a reference without an
// import cycle between the thread table and the synchronization layer
// built on top of it.
type Donee interface {
	DoneeHolder() *Thread
	DoneeMaxWaiterPriority() int
}

// Repositionable is implemented by whatever ordered waiter list a thread
// is currently queued in (in practice *synch.Semaphore), so a donation
// walk can re-sort that list when the thread's priority changes after
// enqueue.
type Repositionable interface {
	Reposition(t *Thread)
}

// Thread is one kernel thread descriptor (spec §3).
type Thread struct {
	TID  TID
	Name string

	State State

	BasePriority      int
	EffectivePriority int

	HeldLocks  *klist.List[Donee]
	WaitingOn  Donee
	WaiterList Repositionable

	Nice      int
	RecentCPU fixedpoint.FP

	WakeTick uint64

	Magic uint32

	readyNode  klist.Node[*Thread]
	sleepNode  klist.Node[*Thread]
	waiterNode klist.Node[*Thread]

	cont  chan struct{}
	entry func(any)
	aux   any
}

// ReadyNode, SleepNode and WaiterNode expose the thread's three distinct
// intrusive link slots to the packages that own each list (kthread's own
// ready/sleep queues, and synch's semaphore waiter lists) — spec §9's
// "dual-use link field" note resolved by giving each role its own slot.
func (t *Thread) ReadyNode() *klist.Node[*Thread]  { return &t.readyNode }
func (t *Thread) SleepNode() *klist.Node[*Thread]  { return &t.sleepNode }
func (t *Thread) WaiterNode() *klist.Node[*Thread] { return &t.waiterNode }

func clampPriority(p int) int {
	if p < PriMin {
		return PriMin
	}
	if p > PriMax {
		return PriMax
	}
	return p
}

func truncateName(name string) string {
	if len(name) > maxNameLen {
		return name[:maxNameLen]
	}
	return name
}

// Fatalf reports an invariant violation (spec §7): it always includes the
// offending thread's tid and name, and it never returns.
func Fatalf(t *Thread, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if t != nil {
		panic(fmt.Sprintf("kthread: fatal invariant violation (tid=%d name=%q): %s", t.TID, t.Name, msg))
	}
	panic(fmt.Sprintf("kthread: fatal invariant violation: %s", msg))
}

func mustDisabled(op string) {
	if intr.Current() != intr.LevelDisabled {
		Fatalf(currentUnsafe(), "%s invoked with interrupts enabled", op)
	}
}

func currentUnsafe() *Thread {
	return currentThread
}

// checkMagic enforces invariant I6: a thread descriptor's Magic field must
// still read magicSentinel at every scheduling decision (spec §7's
// magic-mismatch fatal-assertion example), catching stack/descriptor
// overwrites the way original_source/src/threads/thread.h's ASSERT
// (t->magic == THREAD_MAGIC) does in thread_schedule.
func checkMagic(t *Thread) {
	if t.Magic != magicSentinel {
		Fatalf(t, "thread descriptor corrupted: magic = %#x, want %#x", t.Magic, magicSentinel)
	}
}

var (
	allThreads    = map[TID]*Thread{}
	nextTID       TID
	readyQueue    = klist.New[*Thread]()
	currentThread *Thread
	idleThread    *Thread
	ticks         uint64
	mlfqsMode     bool
	maxThreads    int
	donationDepth = 8
)

// Configure sets process-wide limits before Start is called (spec §9's
// fixed init order: this must run before any Create).
func Configure(maxThreadCount, chainDonationDepth int, mlfqs bool) {
	maxThreads = maxThreadCount
	if chainDonationDepth > 0 {
		donationDepth = chainDonationDepth
	}
	mlfqsMode = mlfqs
}

// DonationDepth returns the configured bounded chain-walk depth (spec §9,
// "bound chain depth (8 is customary)").
func DonationDepth() int { return donationDepth }

// MLFQSMode reports whether donation is disabled in favor of derived
// MLFQS priorities (spec §4.4: "Donation is disabled when mlfqs_mode is
// true").
func MLFQSMode() bool { return mlfqsMode }

// Current returns the running thread.
func Current() *Thread {
	return currentThread
}

// Ticks returns the current tick counter.
func Ticks() uint64 { return ticks }

// AdvanceTick increments and returns the tick counter. Called once per
// timer interrupt by internal/timer; the caller is expected to already be
// running with interrupts disabled (spec §4.6 step 1).
func AdvanceTick() uint64 {
	mustDisabled("AdvanceTick")
	ticks++
	return ticks
}

// readyLess orders the ready queue by descending effective priority,
// ties broken FIFO by klist.InsertOrdered's insertion-order rule.
func readyLess(a, b *Thread) bool {
	return a.EffectivePriority > b.EffectivePriority
}

// holdsAscendingByMaxWaiter is a genuine ascending "<" comparator for use
// with klist.List.Max: Max's "replace best whenever less(best, cur)"
// algorithm only finds the greatest element when less is truly ascending
// — a descending ">" comparator (the convention used elsewhere in this
// package for InsertOrdered, e.g. readyLess) would make Max return the
// *lowest* donee instead. HeldLocks is only ever appended to
// (synch.Lock.Acquire/TryAcquire push, never InsertOrdered), so it is
// never sorted; RecomputeEffectivePriority must scan for the live
// maximum rather than trust any position in the list.
func holdsAscendingByMaxWaiter(a, b Donee) bool {
	return a.DoneeMaxWaiterPriority() < b.DoneeMaxWaiterPriority()
}

// Create allocates a new thread descriptor, starts its backing goroutine
// parked on its resume channel, and inserts it into the ready queue —
// spec §4.3's create(name, priority, entry_fn, aux) → tid.
func Create(name string, priority int, entryFn func(aux any), aux any) (TID, error) {
	var (
		tid TID
		t   *Thread
		err error
	)
	intr.WithDisabled(func() {
		if maxThreads > 0 && len(allThreads) >= maxThreads {
			err = errors.WithStack(ErrNoFreePages)
			return
		}
		nextTID++
		t = &Thread{
			TID:               nextTID,
			Name:              truncateName(name),
			BasePriority:      clampPriority(priority),
			EffectivePriority: clampPriority(priority),
			HeldLocks:         klist.New[Donee](),
			Magic:             magicSentinel,
			cont:              make(chan struct{}, 1),
			entry:             entryFn,
			aux:               aux,
		}
		t.readyNode.Value = t
		t.sleepNode.Value = t
		t.waiterNode.Value = t
		allThreads[t.TID] = t

		t.State = StateBlocked
		unblockLocked(t)

		go runThread(t)
		tid = t.TID
		klog.ThreadCreated(int(t.TID), t.Name, t.BasePriority)
	})
	if err != nil {
		return TIDError, err
	}
	// "If the new thread's priority exceeds the caller's, the caller
	// yields immediately" — outside the disabled section, non-interrupt
	// context, matching Yield()'s own precondition.
	CheckShouldYield()
	return tid, nil
}

func runThread(t *Thread) {
	<-t.cont
	// The thread that handed over the CPU left the gate disabled; a new
	// thread has no disabled section to return through, so it re-enables
	// interrupts itself before entering its body.
	intr.Enable()
	t.entry(t.aux)
	Exit()
}

func forEachLocked(fn func(*Thread)) {
	mustDisabled("ForEach")
	for _, t := range allThreads {
		fn(t)
	}
}

// ForEach calls fn for every live thread, matching Pintos'
// thread_foreach(func, aux) (original_source/src/threads/thread.h),
// exposed here for the MLFQS recompute pass and diagnostics.
func ForEach(fn func(*Thread)) {
	intr.WithDisabled(func() { forEachLocked(fn) })
}

// ForEachLocked is ForEach's already-disabled twin, for callers (like
// internal/timer's tick handler) composing it into a larger disabled
// section instead of nesting a second Disable/Enable pair.
func ForEachLocked(fn func(*Thread)) {
	forEachLocked(fn)
}

// ReadyThreadCountLocked returns the number of threads eligible for the
// MLFQS load average's ready_threads term: everything in the ready queue,
// plus the running thread if it is not idle (spec §4.7; see
// original_source/src/threads/thread.h's load_avg/ready_threads
// commentary around thread_mlfqs).
func ReadyThreadCountLocked() int {
	mustDisabled("ReadyThreadCountLocked")
	n := readyQueue.Len()
	if currentThread != nil && currentThread != idleThread {
		n++
	}
	return n
}

// IdleTID returns the singleton idle thread's TID, or TIDError if Start
// has not run yet.
func IdleTID() TID {
	if idleThread == nil {
		return TIDError
	}
	return idleThread.TID
}

// SetIdleThread registers the singleton created by internal/kernel.Start;
// it is never itself inserted into the ready queue (spec §3: "idle_thread:
// singleton that runs when no other thread is READY").
func SetIdleThread(t *Thread) {
	idleThread = t
}

// Lookup returns the live thread descriptor for tid, or nil if it has
// exited or never existed.
func Lookup(tid TID) *Thread {
	return allThreads[tid]
}

// ResetForTest tears down all package-level scheduler state so each test
// can bootstrap a fresh thread table. Never called outside _test.go files.
func ResetForTest() {
	allThreads = map[TID]*Thread{}
	nextTID = 0
	readyQueue = klist.New[*Thread]()
	currentThread = nil
	idleThread = nil
	ticks = 0
	mlfqsMode = false
	maxThreads = 0
	donationDepth = 8
	preemptPending = false
	sleepList = klist.New[*Thread]()
}

// NewMainThread installs the calling goroutine itself as a thread
// descriptor and makes it the running thread, without spawning a backing
// goroutine (there already is one: the caller). This is the synthetic
// "boot context becomes a thread" step every real kernel needs — Pintos'
// thread_init() does the same for the goroutine-less boot stack — and it
// is what makes Yield/Block/Sleep work uniformly for the code that calls
// kernel.Init/Start, not just for threads created afterwards. Must be
// called exactly once, before any other kthread operation.
func NewMainThread(name string, priority int) *Thread {
	var t *Thread
	intr.WithDisabled(func() {
		nextTID++
		t = &Thread{
			TID:               nextTID,
			Name:              truncateName(name),
			BasePriority:      clampPriority(priority),
			EffectivePriority: clampPriority(priority),
			HeldLocks:         klist.New[Donee](),
			Magic:             magicSentinel,
			cont:              make(chan struct{}, 1),
		}
		t.readyNode.Value = t
		t.sleepNode.Value = t
		t.waiterNode.Value = t
		allThreads[t.TID] = t
		t.State = StateRunning
		currentThread = t
	})
	return t
}

// CreateIdle installs the singleton idle thread (spec §3: "runs when no
// other thread is READY"). Unlike Create, it is never inserted into the
// ready queue — pickNextLocked falls back to it explicitly when the ready
// queue is empty.
func CreateIdle(entryFn func(aux any), aux any) TID {
	var t *Thread
	intr.WithDisabled(func() {
		nextTID++
		t = &Thread{
			TID:               nextTID,
			Name:              "idle",
			BasePriority:      PriMin,
			EffectivePriority: PriMin,
			HeldLocks:         klist.New[Donee](),
			Magic:             magicSentinel,
			cont:              make(chan struct{}, 1),
			entry:             entryFn,
			aux:               aux,
			State:             StateBlocked,
		}
		t.readyNode.Value = t
		t.sleepNode.Value = t
		t.waiterNode.Value = t
		allThreads[t.TID] = t
		go runThread(t)
	})
	idleThread = t
	return t.TID
}
