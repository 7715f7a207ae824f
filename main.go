// Copyright (c) 2026 procwatt authors under MIT License
// procwatt is a host-resident energy-and-resource telemetry probe.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/context-labs/procwatt/internal/config"
	"github.com/context-labs/procwatt/internal/counterstore"
	"github.com/context-labs/procwatt/internal/energy"
	"github.com/context-labs/procwatt/internal/logging"
	"github.com/context-labs/procwatt/internal/metrics"
	"github.com/context-labs/procwatt/internal/portmap"
	"github.com/context-labs/procwatt/internal/probe"
	"github.com/context-labs/procwatt/internal/services"
	"github.com/context-labs/procwatt/internal/sink"
	"github.com/context-labs/procwatt/internal/sniffer"
	"github.com/context-labs/procwatt/internal/watchdog"
	"golang.org/x/term"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Default()

	var hideConsole bool

	flag.BoolVar(&hideConsole, "hide-console", false, "hide the console window (platform-dependent, may be a no-op)")
	flag.BoolVar(&hideConsole, "c", false, "shorthand for --hide-console")
	flag.BoolVar(&cfg.NoWatchdog, "no-watchdog", false, "disable the self-throttling watchdog")
	flag.BoolVar(&cfg.NoWatchdog, "w", false, "shorthand for --no-watchdog")
	flag.IntVar(&cfg.IntervalSeconds, "interval", cfg.IntervalSeconds, "tick period in seconds")
	flag.IntVar(&cfg.IntervalSeconds, "i", cfg.IntervalSeconds, "shorthand for --interval")
	flag.Float64Var(&cfg.DiskReadCost, "drcost", cfg.DiskReadCost, "disk-read energy cost in mW per MB/s")
	flag.Float64Var(&cfg.DiskWriteCost, "dwcost", cfg.DiskWriteCost, "disk-write energy cost in mW per MB/s")
	flag.BoolVar(&cfg.NoLoopbackCap, "no-loopbackcap", false, "drop loopback frames instead of charging them")
	flag.BoolVar(&cfg.NoLoopbackCap, "l", false, "shorthand for --no-loopbackcap")
	flag.BoolVar(&cfg.StdoutOutput, "stdoutput", false, "send rows to stdout instead of the CSV sink")
	flag.BoolVar(&cfg.UsePlatform, "use-platform", false, "read the platform energy MSR instead of the package MSR")
	flag.StringVar(&cfg.PrometheusPort, "prometheus", "", "port to serve Prometheus metrics on (e.g. :9090); empty disables it")
	flag.Parse()

	if hideConsole && term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "--hide-console has no effect on this platform while attached to a terminal")
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger, logCloser, err := logging.New(cfg.LogDir + "/log.txt")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logCloser.Close()

	logging.Banner("procwatt starting up")
	logger.Info().
		Int("interval_seconds", cfg.IntervalSeconds).
		Float64("disk_read_cost", cfg.DiskReadCost).
		Float64("disk_write_cost", cfg.DiskWriteCost).
		Bool("watchdog_enabled", !cfg.NoWatchdog).
		Bool("loopback_capture", !cfg.NoLoopbackCap).
		Bool("stdout_output", cfg.StdoutOutput).
		Bool("use_platform_msr", cfg.UsePlatform).
		Msg("active configuration")

	driver, err := energy.OpenDriver()
	if err != nil {
		logger.Error().Err(err).Msg("fatal: could not open energy driver")
		return 1
	}
	target := energy.TargetPackage
	if cfg.UsePlatform {
		target = energy.TargetPlatform
	}
	energySampler, err := energy.Open(driver, target)
	if err != nil {
		logger.Error().Err(err).Msg("fatal: energy driver calibration failed")
		return 1
	}

	wd := watchdog.New(!cfg.NoWatchdog, time.Now())

	snif := sniffer.New(sniffer.Config{AllowLoopback: !cfg.NoLoopbackCap, Logger: logger}, wd.IsLockdown)
	if err := snif.Start(); err != nil {
		logger.Error().Err(err).Msg("fatal: packet sniffer failed to start")
		return 1
	}

	var outSink sink.Sink
	if cfg.StdoutOutput {
		outSink = sink.NewStdoutSink(os.Stdout)
	} else {
		outSink, err = sink.NewCSVSink(cfg.CSVDir, time.Now())
		if err != nil {
			logger.Error().Err(err).Msg("fatal: could not open CSV sink")
			return 1
		}
	}

	var m *metrics.Metrics
	if cfg.PrometheusPort != "" {
		m = metrics.New()
		m.Serve(cfg.PrometheusPort)
		logger.Info().Str("addr", cfg.PrometheusPort).Msg("serving Prometheus metrics")
	}

	svc := services.New(logger)

	ports := portmap.New()
	deps := probe.Deps{
		Store:    counterstore.New(),
		Ports:    ports,
		Sniffer:  snif,
		Energy:   energySampler,
		Watchdog: wd,
		Services: svc,
		Sink:     outSink,
		Metrics:  m,
		Log:      logger,
	}
	p := probe.New(cfg, deps)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGSEGV)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	runErr := p.Run(ctx)

	if m != nil {
		_ = m.Shutdown(context.Background())
	}
	if err := p.Close(); err != nil {
		logger.Error().Err(err).Msg("error during shutdown teardown")
	}
	logging.Banner("procwatt shutting down")

	if runErr != nil {
		logger.Error().Err(runErr).Msg("probe exited with error")
		return 1
	}
	return 0
}
