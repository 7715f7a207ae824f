// Copyright (c) 2026 procwatt authors under MIT License
// Package watchdog detects when the probe itself is consuming abnormal CPU
// and reports a lockdown state the sniffer and aggregator both consult,
// mirroring UsageWatchdog.cpp's calibrate-then-threshold behavior.
package watchdog

import (
	"math"
	"sync/atomic"
	"time"
)

// calibrationWindow is the fixed 1200-second calibration period.
const calibrationWindow = 1200 * time.Second

// lockdownFactor is the hard-coded multiplier UsageWatchdog.cpp uses; its
// never-consulted treshold_ field is deliberately not reproduced.
const lockdownFactor = 3

// Watchdog calibrates to the probe's own steady-state CPU fraction over its
// first 1200 seconds, then reports lockdown whenever a subsequent sample
// exceeds 3x that average.
type Watchdog struct {
	enabled   bool
	startTime time.Time

	calibrated atomic.Bool
	sum        float64
	count      int
	avg        float64

	last atomic.Uint64 // last CPU fraction, as math.Float64bits
}

// New creates a Watchdog. now is the probe's start time. If enabled is
// false, IsLockdown always reports false regardless of samples pushed.
func New(enabled bool, now time.Time) *Watchdog {
	return &Watchdog{enabled: enabled, startTime: now}
}

// Push records the probe's own CPU fraction for this tick. Samples pushed
// during the first 1200 seconds accumulate into the calibration average;
// once calibrated, Push only updates the "last" sample -- the average
// never re-adapts.
func (w *Watchdog) Push(cpuFrac float64, now time.Time) {
	w.last.Store(math.Float64bits(cpuFrac))

	if w.calibrated.Load() {
		return
	}

	w.sum += cpuFrac
	w.count++

	if now.Sub(w.startTime) >= calibrationWindow {
		if w.count > 0 {
			w.avg = w.sum / float64(w.count)
		}
		w.calibrated.Store(true)
	}
}

// IsLockdown reports whether the most recent sample exceeds 3x the
// calibrated average. Always false before calibration completes or when
// the watchdog is disabled.
func (w *Watchdog) IsLockdown() bool {
	if !w.enabled || !w.calibrated.Load() {
		return false
	}
	last := math.Float64frombits(w.last.Load())
	return last > lockdownFactor*w.avg
}

// Average returns the calibrated average CPU fraction, or 0 before
// calibration completes.
func (w *Watchdog) Average() float64 {
	return w.avg
}

// Calibrated reports whether the 1200-second calibration window has
// elapsed.
func (w *Watchdog) Calibrated() bool {
	return w.calibrated.Load()
}

