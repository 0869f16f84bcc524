package timerdrv

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDriverTicksPeriodically(t *testing.T) {
	var count int64
	d := New(200) // 5ms per tick
	d.Start(func() { atomic.AddInt64(&count, 1) })
	time.Sleep(55 * time.Millisecond)
	d.Stop()

	got := atomic.LoadInt64(&count)
	if got < 5 || got > 15 {
		t.Fatalf("tick count = %d, want roughly 10 over 55ms at 200Hz", got)
	}
}

func TestBusyWaitTakesNonZeroTime(t *testing.T) {
	start := time.Now()
	BusyWait(50_000_000)
	if time.Since(start) <= 0 {
		t.Fatal("BusyWait returned instantaneously")
	}
}

func TestCalibrateReturnsPositiveLoopCount(t *testing.T) {
	loops := Calibrate(2 * time.Millisecond)
	if loops == 0 {
		t.Fatal("Calibrate returned 0 loops")
	}
}
