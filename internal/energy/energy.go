// Copyright (c) 2026 procwatt authors under MIT License
// Package energy reads cumulative hardware energy counters (RAPL-style
// MSRs) through a single-operation driver interface and converts raw
// counter deltas into milliwatt-hours, mirroring the calibration and
// wrap-safe delta math of Demeter's EnergyGatherer.cpp.
package energy

import "fmt"

// MSR addresses the probe knows how to read, named the way
// EnergyGatherer.h's constexpr UINT64 constants are.
const (
	MSRRaplPowerUnit    = 0x606
	MSRPkgEnergyStatus  = 0x611
	MSRDramEnergyStatus = 0x619
	MSRPP0EnergyStatus  = 0x639
	MSRPP1EnergyStatus  = 0x641
	MSRPlatformEnergy   = 0x64D
)

// Target selects which cumulative-energy MSR the sampler reads each tick.
type Target uint64

const (
	TargetPackage  Target = MSRPkgEnergyStatus
	TargetPlatform Target = MSRPlatformEnergy
)

// Reader is the driver contract: a single operation reading a raw 64-bit
// MSR value, matching a single-ioctl kernel driver design exactly.
type Reader interface {
	ReadMSR(msr uint64) (uint64, error)
	Close() error
}

// Units holds the three RAPL scale factors decoded from MSR_RAPL_POWER_UNIT.
type Units struct {
	TimeUnit   float64 // seconds
	EnergyUnit float64 // joules
	PowerUnit  float64 // watts
}

// DecodeUnits decodes the RAPL_POWER_UNIT register:
//
//	time_unit   = 2^-((v >> 16) & 0xF)
//	energy_unit = 2^-((v >> 8)  & 0x1F)
//	power_unit  = 2^-(v & 0xF)
func DecodeUnits(raw uint64) Units {
	return Units{
		TimeUnit:   pow2(-int((raw >> 16) & 0xF)),
		EnergyUnit: pow2(-int((raw >> 8) & 0x1F)),
		PowerUnit:  pow2(-int(raw & 0xF)),
	}
}

func pow2(exp int) float64 {
	if exp >= 0 {
		v := 1.0
		for i := 0; i < exp; i++ {
			v *= 2
		}
		return v
	}
	v := 1.0
	for i := 0; i < -exp; i++ {
		v /= 2
	}
	return v
}

// counterBits is the width of the wrapping hardware energy counter.
const counterBits = 32
const counterMod = 1 << counterBits

// Sampler reads a Target MSR once per tick and reports the energy consumed
// since the previous read, in milliwatt-hours.
type Sampler struct {
	reader Reader
	units  Units
	target Target

	hasLast bool
	last    uint64
}

// Open calibrates against MSR_RAPL_POWER_UNIT and returns a Sampler bound to
// target. If reading the calibration register fails, Open returns an error
// (driver-open failures are treated as fatal).
func Open(reader Reader, target Target) (*Sampler, error) {
	raw, err := reader.ReadMSR(MSRRaplPowerUnit)
	if err != nil {
		return nil, fmt.Errorf("energy: calibration read of MSR_RAPL_POWER_UNIT failed: %w", err)
	}
	return &Sampler{
		reader: reader,
		units:  DecodeUnits(raw),
		target: target,
	}, nil
}

// Units returns the calibrated scale factors.
func (s *Sampler) Units() Units { return s.units }

// SampleWh reads the target MSR and returns the milliwatt-hours consumed
// since the previous call. The first call after Open always returns 0
// (there is no prior reading to diff against).
//
// A failed ioctl/read is not fatal: it is logged by the caller and the
// aggregator treats CPU-energy attribution for the tick as 0. SampleWh
// signals this by returning (-1, err).
func (s *Sampler) SampleWh() (float64, error) {
	raw, err := s.reader.ReadMSR(uint64(s.target))
	if err != nil {
		return -1, fmt.Errorf("energy: read MSR %#x failed: %w", s.target, err)
	}

	current := raw & (counterMod - 1)
	if !s.hasLast {
		s.hasLast = true
		s.last = current
		return 0, nil
	}

	delta := (current - s.last + counterMod) % counterMod
	s.last = current

	joules := float64(delta) * s.units.EnergyUnit
	wh := joules / 3.6
	return wh, nil
}

// Close releases the underlying driver handle.
func (s *Sampler) Close() error {
	return s.reader.Close()
}
