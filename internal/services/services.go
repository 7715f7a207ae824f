// Copyright (c) 2026 procwatt authors under MIT License
// Package services classifies a running process as "service" or "user"
// by asking systemd which PID owns each loaded unit, so the aggregator
// can route a process's row into the right total bucket.
package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/rs/zerolog"
)

// Classifier answers whether a PID belongs to a systemd-managed unit. When
// the system bus is unreachable (containers, non-systemd hosts, permission
// denied) it logs once and classifies every PID as non-service from then
// on, rather than failing the probe.
type Classifier struct {
	log zerolog.Logger

	mu          sync.RWMutex
	servicePIDs map[int32]struct{}

	unavailable bool
	warnedOnce  sync.Once
}

// New creates a Classifier. Call Refresh before the first IsService to
// populate it; an unrefreshed Classifier treats every PID as non-service.
func New(log zerolog.Logger) *Classifier {
	return &Classifier{log: log, servicePIDs: make(map[int32]struct{})}
}

// Refresh re-enumerates loaded systemd units and their MainPIDs. It is
// safe to call periodically; a failure degrades to "everything is a user
// process" rather than returning an error to the caller.
func (c *Classifier) Refresh(ctx context.Context) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		c.markUnavailable(err)
		return
	}
	defer conn.Close()

	units, err := conn.ListUnitsContext(ctx)
	if err != nil {
		c.markUnavailable(err)
		return
	}

	next := make(map[int32]struct{}, len(units))
	for _, u := range units {
		if u.LoadState != "loaded" {
			continue
		}
		pid, ok := mainPID(ctx, conn, u.Name)
		if !ok || pid == 0 {
			continue
		}
		next[int32(pid)] = struct{}{}
	}

	c.mu.Lock()
	c.servicePIDs = next
	c.unavailable = false
	c.mu.Unlock()
}

func mainPID(ctx context.Context, conn *dbus.Conn, unit string) (uint32, bool) {
	prop, err := conn.GetUnitTypePropertyContext(ctx, unit, "Service", "MainPID")
	if err != nil {
		return 0, false
	}
	pid, ok := prop.Value.Value().(uint32)
	return pid, ok
}

func (c *Classifier) markUnavailable(err error) {
	c.mu.Lock()
	c.unavailable = true
	c.servicePIDs = make(map[int32]struct{})
	c.mu.Unlock()
	c.warnedOnce.Do(func() {
		c.log.Warn().Err(err).Msg("systemd unavailable, classifying all processes as user processes")
	})
}

// IsService reports whether pid is the MainPID of a currently loaded
// systemd unit, as of the last Refresh.
func (c *Classifier) IsService(pid int32) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.servicePIDs[pid]
	return ok
}

// Unavailable reports whether the last Refresh could not reach systemd.
func (c *Classifier) Unavailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unavailable
}

func (c *Classifier) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("services.Classifier{tracked=%d, unavailable=%t}", len(c.servicePIDs), c.unavailable)
}
