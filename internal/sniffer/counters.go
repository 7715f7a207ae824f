package sniffer

import (
	"sync"
	"sync/atomic"
)

// portSpace is the number of 16-bit port counters, one tx and one rx slot
// per possible local port number.
const portSpace = 1 << 16

// Counters is the shared tx[]/rx[] byte-counter pair:
// many writers (one per capture worker, via AddTx/AddRx), one reader/
// resetter (the sampler, via SumTx/SumRx and Reset). Each slot is an
// atomic.Uint64 so increments never need a lock; Reset takes a mutex only
// across its own bulk-zeroing pass, matching the "single lock held only
// across the reset" discipline from the spec's concurrency model.
type Counters struct {
	tx [portSpace]atomic.Uint64
	rx [portSpace]atomic.Uint64

	resetMu sync.Mutex
}

// NewCounters returns a ready-to-use Counters.
func NewCounters() *Counters {
	return &Counters{}
}

// AddTx charges n bytes to tx[port].
func (c *Counters) AddTx(port uint16, n uint64) {
	c.tx[port].Add(n)
}

// AddRx charges n bytes to rx[port].
func (c *Counters) AddRx(port uint16, n uint64) {
	c.rx[port].Add(n)
}

// SumTx returns the sum of tx[p] for every port p in ports.
func (c *Counters) SumTx(ports map[uint16]struct{}) uint64 {
	var total uint64
	for p := range ports {
		total += c.tx[p].Load()
	}
	return total
}

// SumRx returns the sum of rx[p] for every port p in ports.
func (c *Counters) SumRx(ports map[uint16]struct{}) uint64 {
	var total uint64
	for p := range ports {
		total += c.rx[p].Load()
	}
	return total
}

// Reset zeroes every tx[] and rx[] slot. Called once per tick by the
// sampler after it has finished reading the snapshot for this interval.
func (c *Counters) Reset() {
	c.resetMu.Lock()
	defer c.resetMu.Unlock()
	for i := range c.tx {
		c.tx[i].Store(0)
		c.rx[i].Store(0)
	}
}
