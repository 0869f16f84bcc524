package kernel

import (
	"io"
	"testing"
	"time"

	"github.com/azzaros-labs/threadkernel/internal/kconfig"
	"github.com/azzaros-labs/threadkernel/internal/kthread"
	"github.com/azzaros-labs/threadkernel/internal/timer"
)

func TestStartDrivesRealSleepsToCompletion(t *testing.T) {
	kthread.ResetForTest()
	timer.ResetForTest()

	cfg := kconfig.Default()
	cfg.TimerFrequencyHz = 1000
	k := Init(cfg, io.Discard)
	// lower than the sleeper so Create's own preemption check runs it up
	// to its Sleep(20) call before the real-time pause below.
	k.Start("main", 5)
	defer k.Stop()

	woke := false
	kthread.Create("sleeper", 10, func(any) {
		kthread.Sleep(20) // 20ms of simulated time at 1kHz
		woke = true
	}, nil)

	// Real wall-clock pause while the ticker goroutine advances ticks
	// and wakes the sleeper in the background.
	time.Sleep(60 * time.Millisecond)

	kthread.Yield() // let the now-ready sleeper actually run
	if !woke {
		t.Fatal("sleeper should have woken after real time elapsed past its deadline")
	}
}
