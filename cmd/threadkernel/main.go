// Command threadkernel is a demo/harness binary: it boots the kernel,
// runs four of the spec's end-to-end scenarios (1, 2, 3 and 5) back to
// back, and logs the
// interleaving through internal/klog so the scheduling decisions are
// observable — the way the teacher's kernel.go wires config-load,
// logger-configure, and its handshake/syscall handlers into one main().
package main

import (
	"os"

	flag "github.com/spf13/pflag"

	"github.com/azzaros-labs/threadkernel/internal/kconfig"
	"github.com/azzaros-labs/threadkernel/internal/kernel"
	"github.com/azzaros-labs/threadkernel/internal/klog"
	"github.com/azzaros-labs/threadkernel/internal/kthread"
	"github.com/azzaros-labs/threadkernel/internal/synch"
)

func main() {
	var (
		configPath = flag.String("config", "threadkernel.json", "path to the kernel config file")
		envPath    = flag.String("env", ".env", "path to an optional .env overlay")
		mlfqs      = flag.Bool("mlfqs", false, "run the multi-level feedback queue scheduler instead of strict priority")
	)
	flag.Parse()

	cfg, err := kconfig.Load(*configPath, *envPath)
	if err != nil {
		os.Exit(1)
	}
	if flag.CommandLine.Changed("mlfqs") {
		cfg.MLFQSMode = *mlfqs
	}

	k := kernel.Init(cfg, os.Stderr)
	k.Start("main", kthread.PriMin+1)
	defer k.Stop()

	runSleepOrdering()
	runPriorityPreemption()
	runPriorityDonation()
	runCondvarSignal()
	dumpThreadTable()
}

// dumpThreadTable logs one snapshot row per live thread, exercising
// kthread.ForEach the way original_source's thread_foreach(func, aux) is
// used for diagnostics (spec §9's supplemented feature).
func dumpThreadTable() {
	kthread.ForEach(func(t *kthread.Thread) {
		klog.ThreadSnapshot(int(t.TID), t.Name, t.State.String(), t.BasePriority, t.EffectivePriority)
	})
}

// runSleepOrdering reproduces scenario 1: three threads issue sleeps of
// different lengths at tick 0 and must wake in ascending deadline order.
func runSleepOrdering() {
	done := synch.NewSemaphore(0)
	spawn := func(name string, ticks int64) {
		kthread.Create(name, 31, func(any) {
			kthread.Sleep(ticks)
			done.Up()
		}, nil)
	}
	spawn("sleeper-a", 30)
	spawn("sleeper-b", 10)
	spawn("sleeper-c", 20)
	done.Down()
	done.Down()
	done.Down()
}

// runPriorityPreemption reproduces scenario 2: a higher-priority thread
// created while the caller is running takes the CPU immediately.
func runPriorityPreemption() {
	done := synch.NewSemaphore(0)
	kthread.Create("high", 40, func(any) { done.Up() }, nil)
	done.Down()
}

// runPriorityDonation reproduces scenario 3: a lock held by a
// low-priority thread is contended by two higher-priority threads in
// turn, donating up to the highest waiter.
func runPriorityDonation() {
	lock := synch.NewLock()
	proceed := synch.NewSemaphore(0)
	done := synch.NewSemaphore(0)

	kthread.Create("holder", 20, func(any) {
		lock.Acquire()
		proceed.Down()
		lock.Release()
		done.Up()
	}, nil)
	kthread.Create("waiter-mid", 30, func(any) {
		lock.Acquire()
		lock.Release()
		done.Up()
	}, nil)
	kthread.Create("waiter-high", 40, func(any) {
		lock.Acquire()
		lock.Release()
		done.Up()
	}, nil)

	proceed.Up()
	done.Down()
	done.Down()
	done.Down()
}

// runCondvarSignal reproduces scenario 5: cond.Signal wakes the
// highest-priority waiter, not the first to have called Wait.
func runCondvarSignal() {
	lock := synch.NewLock()
	cond := synch.NewCond()
	done := synch.NewSemaphore(0)

	kthread.Create("low-waiter", 25, func(any) {
		lock.Acquire()
		cond.Wait(lock)
		lock.Release()
		done.Up()
	}, nil)
	kthread.Create("high-waiter", 45, func(any) {
		lock.Acquire()
		cond.Wait(lock)
		lock.Release()
		done.Up()
	}, nil)

	lock.Acquire()
	cond.Signal()
	lock.Release()
	done.Down()
}
