// Copyright (c) 2026 procwatt authors under MIT License
// Package portmap builds the PID -> local-port-set mapping the sniffer's
// byte counters are attributed through, by snapshotting the OS TCP/UDP
// tables via gopsutil/v4/net (which itself walks /proc/net/{tcp,tcp6,udp,
// udp6} on Linux) the same way context-labs-mactop pulls process and
// connection tables through gopsutil rather than hand-rolled syscalls.
package portmap

import (
	"context"
	"sync/atomic"

	gnet "github.com/shirou/gopsutil/v4/net"
)

// kinds lists the OS tables to enumerate, in the required order: TCP v4,
// TCP v6, UDP v4, UDP v6.
var kinds = []string{"tcp4", "tcp6", "udp4", "udp6"}

// Map is a snapshot of PID -> set of local ports.
type Map map[int32]map[uint16]struct{}

// Ports returns the local ports owned by pid in this snapshot.
func (m Map) Ports(pid int32) map[uint16]struct{} {
	return m[pid]
}

// Resolver owns the current PortMap snapshot and rebuilds it from the OS
// connection tables once per tick.
type Resolver struct {
	current   atomic.Pointer[Map]
	rebuilding atomic.Bool
}

// New returns a Resolver with an empty initial snapshot.
func New() *Resolver {
	r := &Resolver{}
	empty := Map{}
	r.current.Store(&empty)
	return r
}

// Current returns the most recently completed snapshot. Safe to call
// concurrently with Rebuild; a reader never observes a partially built map.
func (r *Resolver) Current() Map {
	return *r.current.Load()
}

// Rebuild replaces the PortMap snapshot atomically. If a rebuild is already
// in progress, the call is a no-op and returns immediately (the sampling
// loop is the sole caller, so a concurrent call can only happen if a
// previous rebuild is still running when the next tick fires).
func (r *Resolver) Rebuild(ctx context.Context) error {
	if !r.rebuilding.CompareAndSwap(false, true) {
		return nil
	}
	defer r.rebuilding.Store(false)

	var rows []portOwner
	for _, kind := range kinds {
		conns, err := gnet.ConnectionsWithContext(ctx, kind)
		if err != nil {
			// OS enumeration failure: skip this table for this tick, keep
			// whatever the other tables contributed.
			continue
		}
		for _, c := range conns {
			if c.Pid == 0 {
				continue
			}
			rows = append(rows, portOwner{pid: c.Pid, port: uint16(c.Laddr.Port)})
		}
	}

	next := buildMap(rows)
	r.current.Store(&next)
	return nil
}

// portOwner is a single (pid, local port) row pulled from one of the OS
// connection tables, before last-wins resolution.
type portOwner struct {
	pid  int32
	port uint16
}

// buildMap folds rows into a Map, applying the spec's last-wins rule: if a
// port already belongs to an earlier row's PID, that earlier PID loses the
// port the moment a later row claims it, so no port ever appears under two
// PIDs in the returned snapshot (e.g. an SO_REUSEPORT listener or a shared
// socket across a fork, which the OS may legitimately report once per
// owning PID).
func buildMap(rows []portOwner) Map {
	next := Map{}
	owner := make(map[uint16]int32, len(rows))

	for _, row := range rows {
		if prevPid, ok := owner[row.port]; ok && prevPid != row.pid {
			delete(next[prevPid], row.port)
		}
		owner[row.port] = row.pid

		set, ok := next[row.pid]
		if !ok {
			set = make(map[uint16]struct{})
			next[row.pid] = set
		}
		set[row.port] = struct{}{}
	}

	return next
}
