// Copyright (c) 2026 procwatt authors under MIT License
// Package probe is the aggregator / loop driver: it orchestrates one
// sampling pass per tick, turning per-PID counters into the rows the sink
// writes, the way context-labs-mactop's collectProcessMetrics loop turns
// raw ps output into ProcessMetrics, generalized to energy attribution and
// the watchdog-guarded sleep/lockdown cycle.
package probe

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/context-labs/procwatt/internal/config"
	"github.com/context-labs/procwatt/internal/counterstore"
	"github.com/context-labs/procwatt/internal/cpustat"
	"github.com/context-labs/procwatt/internal/diskstat"
	"github.com/context-labs/procwatt/internal/energy"
	"github.com/context-labs/procwatt/internal/metrics"
	"github.com/context-labs/procwatt/internal/portmap"
	"github.com/context-labs/procwatt/internal/services"
	"github.com/context-labs/procwatt/internal/sink"
	"github.com/context-labs/procwatt/internal/sniffer"
	"github.com/context-labs/procwatt/internal/watchdog"
	"github.com/rs/zerolog"
	gcpu "github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
)

// lockdownSleep is the fixed pause the aggregator takes each tick the
// watchdog reports lockdown.
const lockdownSleep = 60 * time.Second

// purgeAfterTicks bounds counter-store growth: a PID not observed in this
// many consecutive ticks is forgotten.
const purgeAfterTicks = 10

// mbpsToMilliwattHours is the fixed net-bandwidth energy cost, in mWh per
// MB/s sustained for one hour's worth of the tick's duration.
const mbpsToMilliwattHours = 0.068

// Deps bundles the collaborators Probe orchestrates. Sink and Metrics may
// be swapped independently of everything else; Energy and Services degrade
// gracefully on their own and do not need a fake for tests that don't
// exercise them.
type Deps struct {
	Store    *counterstore.Store
	Ports    *portmap.Resolver
	Sniffer  *sniffer.Sniffer
	Energy   *energy.Sampler
	Watchdog *watchdog.Watchdog
	Services *services.Classifier
	Sink     sink.Sink
	Metrics  *metrics.Metrics // nil disables metrics observation
	Log      zerolog.Logger
}

// Probe is the top-level owner of every sampling component. The sampler
// goroutine (Run) is its sole writer; the sniffer's capture workers hold
// only what Deps.Sniffer gave them.
type Probe struct {
	deps Deps
	cfg  config.Config

	numCPU  int
	selfPID int32

	tick    uint64
	lastDay string
}

// New builds a Probe from cfg and deps. It does not start any background
// workers itself (the sniffer is expected to already be running by the
// time Run is called).
func New(cfg config.Config, deps Deps) *Probe {
	n, err := gcpu.Counts(true)
	if err != nil || n <= 0 {
		n = 1
	}
	return &Probe{
		deps:    deps,
		cfg:     cfg,
		numCPU:  n,
		selfPID: int32(os.Getpid()),
	}
}

// Run executes the tick loop until ctx is cancelled. It returns nil on a
// clean cancellation.
func (p *Probe) Run(ctx context.Context) error {
	p.lastDay = time.Now().Format("2006-01-02")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if p.deps.Watchdog.IsLockdown() {
			p.deps.Log.Warn().Msg("watchdog lockdown: pausing for 60s without sampling")
			if !p.sleep(ctx, lockdownSleep) {
				return nil
			}
			continue
		}

		if !p.runTick(ctx) {
			return nil
		}
	}
}

// runTick runs exactly one sampling pass. It returns false if ctx was
// cancelled during the pass (the caller should stop looping).
func (p *Probe) runTick(ctx context.Context) bool {
	start := time.Now()
	p.tick++

	energyWh, err := p.deps.Energy.SampleWh()
	if err != nil {
		p.deps.Log.Warn().Err(err).Msg("energy sampler read failed, charging 0 for this tick")
		energyWh = 0
	}

	p.deps.Services.Refresh(ctx)

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		p.deps.Log.Warn().Err(err).Msg("process enumeration failed, skipping this tick's process pass")
		procs = nil
	}

	ports := p.deps.Ports.Current()
	buckets := newBucketSet()
	var selfFrac float64

	for _, proc := range procs {
		pid := proc.Pid
		hadPrior := p.deps.Store.Exists(pid)

		currentCPU := counterstore.CPUTimes{WallNS: time.Now().UnixNano()}
		if times, err := proc.TimesWithContext(ctx); err == nil {
			currentCPU.User = times.User
			currentCPU.Kernel = times.System
		}

		priorCPU := p.deps.Store.ReadCPU(pid)
		if !hadPrior {
			priorCPU = currentCPU
		}
		cpuFrac := cpustat.Fraction(cpustat.Sample(priorCPU), cpustat.Sample(currentCPU), p.numCPU)
		p.deps.Store.WriteCPU(pid, currentCPU, p.tick)

		var currentIO counterstore.IOCounters
		if io, err := proc.IOCountersWithContext(ctx); err == nil {
			currentIO.BytesRead = io.ReadBytes
			currentIO.BytesWritten = io.WriteBytes
		}
		priorIO := p.deps.Store.ReadIO(pid)
		diskR, diskW := diskstat.Delta(diskstat.Sample(priorIO), diskstat.Sample(currentIO), hadPrior)
		p.deps.Store.WriteIO(pid, currentIO, p.tick)

		var ramBytes uint64
		if mem, err := proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			ramBytes = mem.RSS
		}

		pidPorts := ports.Ports(pid)
		netUp := p.deps.Sniffer.Counters().SumTx(pidPorts)
		netDown := p.deps.Sniffer.Counters().SumRx(pidPorts)

		name, err := proc.NameWithContext(ctx)
		if err != nil || name == "" {
			name = "<unknown>"
		}

		if pid == p.selfPID {
			selfFrac = cpuFrac
		}

		isService := p.deps.Services.IsService(pid)
		buckets.observe(name, isService, cpuFrac, ramBytes, netUp, netDown, diskR, diskW)
	}

	p.deps.Store.Purge(p.tick, purgeAfterTicks)
	p.deps.Sniffer.Counters().Reset()

	gatheringSeconds := time.Since(start).Seconds()
	if interval := p.cfg.Interval().Seconds(); gatheringSeconds < interval {
		gatheringSeconds = interval
	}

	now := time.Now()
	rows := buckets.toRows(now, energyWh, gatheringSeconds, p.cfg.DiskReadCost, p.cfg.DiskWriteCost)
	for _, r := range rows {
		if err := p.deps.Sink.WriteRow(r); err != nil {
			p.deps.Log.Error().Err(err).Msg("failed to write row to sink")
		}
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.Observe(rows, p.deps.Watchdog.IsLockdown())
	}

	p.deps.Watchdog.Push(selfFrac, now)

	if err := p.deps.Ports.Rebuild(ctx); err != nil {
		p.deps.Log.Warn().Err(err).Msg("port map rebuild failed")
	}

	if day := now.Format("2006-01-02"); day != p.lastDay {
		p.lastDay = day
		if err := p.deps.Sink.Rotate(now); err != nil {
			p.deps.Log.Error().Err(err).Msg("sink rotation failed")
		}
	}

	elapsed := time.Since(start)
	remaining := p.cfg.Interval() - elapsed
	if remaining > 0 {
		return p.sleep(ctx, remaining)
	}
	return true
}

// sleep waits for d or ctx cancellation, whichever comes first. It returns
// false if ctx was cancelled.
func (p *Probe) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// Close tears down every owned resource that needs explicit shutdown:
// capture handles, the energy driver, and the sink.
func (p *Probe) Close() error {
	p.deps.Sniffer.Close()

	var firstErr error
	if err := p.deps.Energy.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing energy driver: %w", err)
	}
	if err := p.deps.Sink.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing sink: %w", err)
	}
	return firstErr
}

func isFinite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
