// Copyright (c) 2026 procwatt authors under MIT License
// Package counterstore keeps the per-PID last-seen CPU and I/O counters that
// the CPU and disk samplers diff against each tick.
package counterstore

// CPUTimes is a delta-source snapshot of a process's cumulative CPU
// occupancy plus the wall-clock moment it was taken.
type CPUTimes struct {
	User   float64 // cumulative user-mode seconds
	Kernel float64 // cumulative kernel-mode seconds
	WallNS int64   // wall-clock snapshot, unix nanoseconds
}

// IOCounters is a process's cumulative byte totals.
type IOCounters struct {
	BytesRead    uint64
	BytesWritten uint64
}

type entry struct {
	cpu      CPUTimes
	io       IOCounters
	lastTick uint64
}

// Store is the process-wide PID -> (CPUTimes, IOCounters) mapping. It is
// accessed only from the single sampling goroutine; no locking is used.
type Store struct {
	entries map[int32]entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[int32]entry)}
}

// Exists reports whether pid has ever been written to the store. Callers
// use this to distinguish "first observation" (where the CPU formula
// treats the current sample as its own prior) from a PID that already has
// a real delta source.
func (s *Store) Exists(pid int32) bool {
	_, ok := s.entries[pid]
	return ok
}

// ReadCPU returns the prior CPUTimes for pid, or the zero value if this is
// the first observation of pid.
func (s *Store) ReadCPU(pid int32) CPUTimes {
	return s.entries[pid].cpu
}

// ReadIO returns the prior IOCounters for pid, or the zero value if this is
// the first observation of pid.
func (s *Store) ReadIO(pid int32) IOCounters {
	return s.entries[pid].io
}

// WriteCPU overwrites the stored CPUTimes for pid and marks it seen at tick.
func (s *Store) WriteCPU(pid int32, cpu CPUTimes, tick uint64) {
	e := s.entries[pid]
	e.cpu = cpu
	e.lastTick = tick
	s.entries[pid] = e
}

// WriteIO overwrites the stored IOCounters for pid and marks it seen at tick.
func (s *Store) WriteIO(pid int32, io IOCounters, tick uint64) {
	e := s.entries[pid]
	e.io = io
	e.lastTick = tick
	s.entries[pid] = e
}

// Touch marks pid as observed at tick without changing its counters, so a
// PID that is seen without fresh counter values is not purged prematurely.
func (s *Store) Touch(pid int32, tick uint64) {
	e := s.entries[pid]
	e.lastTick = tick
	s.entries[pid] = e
}

// Purge removes every entry not observed in the last k ticks (its lastTick
// is k or more ticks behind the current tick), keeping the store from
// growing unboundedly across a long-running invocation. k must be >= 4 per
// the lifecycle invariant.
func (s *Store) Purge(tick uint64, k uint64) {
	for pid, e := range s.entries {
		if tick-e.lastTick >= k {
			delete(s.entries, pid)
		}
	}
}

// Len reports the number of tracked PIDs, mainly for tests and metrics.
func (s *Store) Len() int {
	return len(s.entries)
}
