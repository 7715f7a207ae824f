// Copyright (c) 2026 procwatt authors under MIT License
// Package row defines the single output record the probe emits once per
// tick per named bucket, and its CSV serialization.
package row

import (
	"strconv"
	"strings"
	"time"
)

// Reserved bucket names that are not real process names.
const (
	SystemTotal        = "System Total"
	ApplicationTotal   = "Application Total"
	NotRecordedTotal   = "Not recorded Total"
	CPUEnergyPseudoRow = "CPU Energy"
)

// Row is one emitted record: a process name or an aggregate bucket, with
// its resource and energy figures for the tick.
type Row struct {
	Timestamp     time.Time
	Name          string
	CPUPercent    float64
	CPUWh         float64
	NetUpMBps     float64
	NetUpWh       float64
	NetDownMBps   float64
	NetDownWh     float64
	DiskReadMBps  float64
	DiskWriteMBps float64
	DiskReadWh    float64
	DiskWriteWh   float64
	RAMBytes      uint64
	TotalWh       float64
}

// Header is the literal CSV header line, including the verbatim "DirkRC"
// misspelling preserved for downstream compatibility.
const Header = "TIME;NAME;CPU;CPUC;NetUP;NetUpC;NetDown;NetDownC;DiskR;DiskW;DirkRC;DiskWC;RAM;SumC"

// CSVLine renders r as a single ';'-separated line, without a trailing
// newline.
func (r Row) CSVLine() string {
	fields := []string{
		r.Timestamp.Format("2006-01-02 15:04:05"),
		r.Name,
		formatFloat(r.CPUPercent),
		formatFloat(r.CPUWh),
		formatFloat(r.NetUpMBps),
		formatFloat(r.NetUpWh),
		formatFloat(r.NetDownMBps),
		formatFloat(r.NetDownWh),
		formatFloat(r.DiskReadMBps),
		formatFloat(r.DiskWriteMBps),
		formatFloat(r.DiskReadWh),
		formatFloat(r.DiskWriteWh),
		strconv.FormatUint(r.RAMBytes, 10),
		formatFloat(r.TotalWh),
	}
	return strings.Join(fields, ";")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
