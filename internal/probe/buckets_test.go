package probe

import (
	"testing"
	"time"

	"github.com/context-labs/procwatt/internal/row"
)

func TestBucketSetOneFullCoreOnFourCoreHost(t *testing.T) {
	b := newBucketSet()
	b.observe("worker", false, 0.25, 0, 0, 0, 0, 0)

	rows := b.toRows(time.Now(), 0, 10, 0.78, 0.98)
	got := findRow(t, rows, "worker")
	if got.CPUPercent != 25.0 {
		t.Fatalf("CPUPercent = %v, want 25.0", got.CPUPercent)
	}
}

func TestBucketSetNetUpThroughputAndEnergy(t *testing.T) {
	b := newBucketSet()
	// 10 MB over a 10s tick via a known port's bytes.
	b.observe("uploader", false, 0, 0, 10_000_000, 0, 0, 0)

	rows := b.toRows(time.Now(), 0, 10, 0.78, 0.98)
	got := findRow(t, rows, "uploader")
	if got.NetUpMBps != 1.0 {
		t.Fatalf("NetUpMBps = %v, want 1.0", got.NetUpMBps)
	}
	if diff := got.NetUpWh - 0.068; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("NetUpWh = %v, want 0.068", got.NetUpWh)
	}
}

func TestSystemTotalCoversApplicationAndNotRecorded(t *testing.T) {
	b := newBucketSet()
	b.observe("app", false, 0.10, 0, 0, 0, 0, 0)
	b.observe("svc", true, 0.05, 0, 0, 0, 0, 0)
	b.observe("<unknown>", false, 0.02, 0, 0, 0, 0, 0)

	rows := b.toRows(time.Now(), 0, 10, 0.78, 0.98)
	sys := findRow(t, rows, row.SystemTotal)
	app := findRow(t, rows, row.ApplicationTotal)
	notRecorded := findRow(t, rows, row.NotRecordedTotal)

	const eps = 1e-9
	if sys.CPUPercent+eps < app.CPUPercent+notRecorded.CPUPercent {
		t.Fatalf("System Total (%v) should be >= Application (%v) + Not recorded (%v)",
			sys.CPUPercent, app.CPUPercent, notRecorded.CPUPercent)
	}
}

func TestCPUEnergyPseudoRow(t *testing.T) {
	b := newBucketSet()
	rows := b.toRows(time.Now(), 42.0, 10, 0.78, 0.98)
	got := findRow(t, rows, row.CPUEnergyPseudoRow)
	if got.CPUPercent != 1 {
		t.Fatalf("CPU Energy row CPUPercent = %v, want 1", got.CPUPercent)
	}
	if got.CPUWh != 42.0 {
		t.Fatalf("CPU Energy row CPUWh = %v, want 42.0", got.CPUWh)
	}
	if got.NetUpMBps != 0 || got.DiskReadMBps != 0 {
		t.Fatal("CPU Energy row should carry zero for every non-CPU field")
	}
}

func TestTwoIdenticalEnergyReadsYieldZeroCPUEnergy(t *testing.T) {
	b := newBucketSet()
	rows := b.toRows(time.Now(), 0, 10, 0.78, 0.98)
	got := findRow(t, rows, row.CPUEnergyPseudoRow)
	if got.CPUWh != 0 {
		t.Fatalf("CPUWh = %v, want 0 for a zero energy delta", got.CPUWh)
	}
}

func findRow(t *testing.T, rows []row.Row, name string) row.Row {
	t.Helper()
	for _, r := range rows {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no row named %q found among %d rows", name, len(rows))
	return row.Row{}
}
