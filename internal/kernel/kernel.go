// Package kernel is this module's public entry point: spec §9's fixed
// init order (configure limits, install the boot thread, start the timer,
// spawn idle) collapsed into Init/Start/Stop, the way the teacher's
// kernel.go wires its own config-load → logger-configure → server-start
// sequence in main(). cmd/threadkernel is the only intended caller.
package kernel

import (
	"io"

	"github.com/azzaros-labs/threadkernel/internal/kconfig"
	"github.com/azzaros-labs/threadkernel/internal/klog"
	"github.com/azzaros-labs/threadkernel/internal/kthread"
	"github.com/azzaros-labs/threadkernel/internal/timer"
	"github.com/azzaros-labs/threadkernel/internal/timerdrv"
)

// Kernel holds the handles Start produces so Stop can unwind them.
type Kernel struct {
	cfg    kconfig.Config
	driver *timerdrv.Driver
}

// Init applies cfg to the scheduler (spec §9 step 1: "configure limits")
// and points the tracing log at w. Must run before Start and before any
// kthread.Create call.
func Init(cfg kconfig.Config, logWriter io.Writer) *Kernel {
	klog.Configure(logWriter, cfg.LogLevel)
	kthread.Configure(cfg.MaxThreads, cfg.DonationChainDepth, cfg.MLFQSMode)
	return &Kernel{cfg: cfg}
}

// Start installs the calling goroutine as the boot ("main") thread,
// starts the timer driver, and spawns the idle thread (spec §9 steps
// 2-4). The boot thread is what every later kthread.Create/Yield/Sleep
// call in the caller's own goroutine operates on.
func (k *Kernel) Start(bootThreadName string, bootPriority int) {
	kthread.NewMainThread(bootThreadName, bootPriority)

	k.driver = timerdrv.New(k.cfg.TimerFrequencyHz)
	k.driver.Start(func() { timer.Tick(k.cfg.TimerFrequencyHz) })

	kthread.CreateIdle(idleLoop, nil)
}

// idleLoop is the body of the singleton idle thread (spec §3): it never
// does real work, just repeatedly yields the CPU back whenever anything
// else becomes ready, and otherwise gets immediately re-picked by
// pickNextLocked's fallback.
func idleLoop(any) {
	for {
		kthread.PollPreempt()
		kthread.Yield()
	}
}

// Stop halts the timer driver. Running threads are left exactly as they
// are; this is a clean shutdown of the simulated hardware, not a thread
// teardown.
func (k *Kernel) Stop() {
	if k.driver != nil {
		k.driver.Stop()
	}
}
