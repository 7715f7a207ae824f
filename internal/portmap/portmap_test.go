package portmap

import "testing"

func TestNewResolverStartsEmpty(t *testing.T) {
	r := New()
	if got := r.Current().Ports(1234); got != nil {
		t.Fatalf("fresh resolver should report no ports for any pid, got %v", got)
	}
}

func TestMapPortsUnknownPID(t *testing.T) {
	m := Map{
		7: {80: struct{}{}, 443: struct{}{}},
	}
	if got := m.Ports(999); got != nil {
		t.Fatalf("Ports() for unknown pid = %v, want nil", got)
	}
	if got := m.Ports(7); len(got) != 2 {
		t.Fatalf("Ports() for pid 7 = %v, want 2 entries", got)
	}
}

func TestBuildMapLaterRowEvictsEarlierPID(t *testing.T) {
	rows := []portOwner{
		{pid: 1, port: 8080},
		{pid: 2, port: 8080},
	}
	m := buildMap(rows)

	if got := m.Ports(1); len(got) != 0 {
		t.Fatalf("pid 1 should have lost port 8080 to pid 2, got %v", got)
	}
	if got := m.Ports(2); len(got) != 1 {
		t.Fatalf("pid 2 should hold exactly port 8080, got %v", got)
	}
}

func TestBuildMapRepeatedRowSamePIDIsIdempotent(t *testing.T) {
	rows := []portOwner{
		{pid: 1, port: 80},
		{pid: 1, port: 80},
		{pid: 1, port: 443},
	}
	m := buildMap(rows)

	if got := m.Ports(1); len(got) != 2 {
		t.Fatalf("pid 1 should hold 2 distinct ports, got %v", got)
	}
}

func TestConcurrentRebuildGuard(t *testing.T) {
	r := New()
	if !r.rebuilding.CompareAndSwap(false, true) {
		t.Fatal("expected to acquire rebuild guard")
	}
	// A second attempt while one is "in flight" must not block or succeed.
	if r.rebuilding.CompareAndSwap(false, true) {
		t.Fatal("concurrent rebuild guard should have refused the second acquire")
	}
	r.rebuilding.Store(false)
}
