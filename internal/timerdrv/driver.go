// Package timerdrv is the one piece of this kernel backed by a real
// clock: it drives internal/timer.Tick from a time.Ticker goroutine, and
// supplies the busy-wait/calibration helpers spec §9 lists as
// out-of-scope for the scheduler core but still part of a complete
// timer device — grounded on original_source/src/devices/timer.c's
// timer_calibrate/real_time_delay (doubling-search loop count, busy-wait
// primitive).
package timerdrv

import "time"

// Driver periodically invokes an onTick callback at freqHz, standing in
// for the 8254 PIT interrupt original_source's timer_init configures.
// This goroutine is the kernel's one genuine source of concurrency
// against whichever thread goroutine currently holds the baton — see
// internal/intr's package doc for why that is safe.
type Driver struct {
	freqHz int
	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}
}

// New returns a driver that will tick freqHz times per second once
// Start is called.
func New(freqHz int) *Driver {
	return &Driver{freqHz: freqHz}
}

// Start begins ticking, calling onTick from a dedicated goroutine once
// per tick until Stop is called.
func (d *Driver) Start(onTick func()) {
	interval := time.Second / time.Duration(d.freqHz)
	d.ticker = time.NewTicker(interval)
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go func() {
		defer close(d.done)
		for {
			select {
			case <-d.ticker.C:
				onTick()
			case <-d.stop:
				return
			}
		}
	}()
}

// Stop halts ticking and waits for the driver goroutine to exit.
func (d *Driver) Stop() {
	if d.ticker == nil {
		return
	}
	d.ticker.Stop()
	close(d.stop)
	<-d.done
}

// sink defends BusyWait's loop against dead-code elimination; its value
// is never meaningful, only its side effect of being written.
var sink uint64

// BusyWait spins for approximately loops iterations, standing in for
// original_source's busy_wait(int64_t loops) — real_time_delay's
// interrupts-need-not-be-on path for sub-tick delays.
func BusyWait(loops uint64) {
	for i := uint64(0); i < loops; i++ {
		sink += i
	}
}

// Calibrate approximates how many BusyWait loops fit in one tick of the
// given duration, by doubling a trial loop count until it overshoots and
// then refining the next 9 bits — original_source's timer_calibrate
// algorithm exactly, minus the PIT-specific printf.
func Calibrate(tick time.Duration) uint64 {
	loops := uint64(1024)
	for !tooManyLoops(loops<<1, tick) {
		loops <<= 1
	}
	highBit := loops
	for testBit := highBit >> 1; testBit != highBit>>10; testBit >>= 1 {
		if !tooManyLoops(loops|testBit, tick) {
			loops |= testBit
		}
	}
	return loops
}

func tooManyLoops(loops uint64, tick time.Duration) bool {
	start := time.Now()
	BusyWait(loops)
	return time.Since(start) >= tick
}
