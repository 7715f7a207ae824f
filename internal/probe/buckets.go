package probe

import (
	"time"

	"github.com/context-labs/procwatt/internal/row"
)

// bucketAccum accumulates one tick's per-process contributions into a
// named row: a real process name, or one of the three reserved aggregates.
type bucketAccum struct {
	cpuFracSum   float64
	ramBytes     uint64
	netUpBytes   uint64
	netDownBytes uint64
	diskRBytes   uint64
	diskWBytes   uint64
}

func (a *bucketAccum) add(cpuFrac float64, ram, netUp, netDown, diskR, diskW uint64) {
	a.cpuFracSum += cpuFrac
	a.ramBytes += ram
	a.netUpBytes += netUp
	a.netDownBytes += netDown
	a.diskRBytes += diskR
	a.diskWBytes += diskW
}

// bucketSet holds every bucket touched during one tick.
type bucketSet struct {
	perName          map[string]*bucketAccum
	systemTotal      bucketAccum
	applicationTotal bucketAccum
	notRecordedTotal bucketAccum
}

func newBucketSet() *bucketSet {
	return &bucketSet{perName: make(map[string]*bucketAccum)}
}

// observe folds one process's measurements into System Total, plus either
// (its own per-name bucket and Application Total) or Not recorded Total,
// aggregates.
func (b *bucketSet) observe(name string, isService bool, cpuFrac float64, ram, netUp, netDown, diskR, diskW uint64) {
	b.systemTotal.add(cpuFrac, ram, netUp, netDown, diskR, diskW)

	if !isService && name != "<unknown>" {
		acc, ok := b.perName[name]
		if !ok {
			acc = &bucketAccum{}
			b.perName[name] = acc
		}
		acc.add(cpuFrac, ram, netUp, netDown, diskR, diskW)
		b.applicationTotal.add(cpuFrac, ram, netUp, netDown, diskR, diskW)
		return
	}
	b.notRecordedTotal.add(cpuFrac, ram, netUp, netDown, diskR, diskW)
}

// toRows renders every bucket plus the synthetic CPU Energy row, per
// the row formulas.
func (b *bucketSet) toRows(now time.Time, energyWh, gatheringSeconds, drCost, dwCost float64) []row.Row {
	rows := make([]row.Row, 0, len(b.perName)+4)

	for name, acc := range b.perName {
		rows = append(rows, acc.toRow(now, name, energyWh, gatheringSeconds, drCost, dwCost))
	}
	rows = append(rows, b.systemTotal.toRow(now, row.SystemTotal, energyWh, gatheringSeconds, drCost, dwCost))
	rows = append(rows, b.applicationTotal.toRow(now, row.ApplicationTotal, energyWh, gatheringSeconds, drCost, dwCost))
	rows = append(rows, b.notRecordedTotal.toRow(now, row.NotRecordedTotal, energyWh, gatheringSeconds, drCost, dwCost))

	rows = append(rows, row.Row{
		Timestamp:  now,
		Name:       row.CPUEnergyPseudoRow,
		CPUPercent: 1,
		CPUWh:      energyWh,
		TotalWh:    energyWh,
	})

	return rows
}

func (a *bucketAccum) toRow(now time.Time, name string, energyWh, gatheringSeconds, drCost, dwCost float64) row.Row {
	netUpMBps := safeDiv(float64(a.netUpBytes)/1e6, gatheringSeconds)
	netDownMBps := safeDiv(float64(a.netDownBytes)/1e6, gatheringSeconds)
	netUpWh := mbpsToMilliwattHours * netUpMBps
	netDownWh := mbpsToMilliwattHours * netDownMBps

	diskReadMBps := safeDiv(float64(a.diskRBytes)/1e6, gatheringSeconds)
	diskWriteMBps := safeDiv(float64(a.diskWBytes)/1e6, gatheringSeconds)
	diskReadWh := diskReadMBps * drCost / 3600
	diskWriteWh := diskWriteMBps * dwCost / 3600

	cpuWh := energyWh * a.cpuFracSum
	cpuPercent := a.cpuFracSum * 100

	totalWh := cpuWh + netUpWh + netDownWh + diskReadWh + diskWriteWh

	r := row.Row{
		Timestamp:     now,
		Name:          name,
		CPUPercent:    finiteOr0(cpuPercent),
		CPUWh:         finiteOr0(cpuWh),
		NetUpMBps:     finiteOr0(netUpMBps),
		NetUpWh:       finiteOr0(netUpWh),
		NetDownMBps:   finiteOr0(netDownMBps),
		NetDownWh:     finiteOr0(netDownWh),
		DiskReadMBps:  finiteOr0(diskReadMBps),
		DiskWriteMBps: finiteOr0(diskWriteMBps),
		DiskReadWh:    finiteOr0(diskReadWh),
		DiskWriteWh:   finiteOr0(diskWriteWh),
		RAMBytes:      a.ramBytes,
		TotalWh:       finiteOr0(totalWh),
	}
	return r
}

func safeDiv(numer, denom float64) float64 {
	if denom == 0 {
		return 0
	}
	return numer / denom
}

func finiteOr0(f float64) float64 {
	if !isFinite(f) {
		return 0
	}
	return f
}
