package sniffer

import (
	stdnet "net"
	"testing"

	"github.com/google/gopacket/layers"
)

func TestCountersResetZeroesEverything(t *testing.T) {
	c := NewCounters()
	c.AddTx(80, 100)
	c.AddRx(443, 200)

	c.Reset()

	if got := c.SumTx(map[uint16]struct{}{80: {}}); got != 0 {
		t.Fatalf("tx[80] after Reset = %d, want 0", got)
	}
	if got := c.SumRx(map[uint16]struct{}{443: {}}); got != 0 {
		t.Fatalf("rx[443] after Reset = %d, want 0", got)
	}
}

func TestCountersSumAcrossPorts(t *testing.T) {
	c := NewCounters()
	c.AddTx(80, 10)
	c.AddTx(443, 20)
	c.AddTx(8080, 5)

	ports := map[uint16]struct{}{80: {}, 443: {}}
	if got := c.SumTx(ports); got != 30 {
		t.Fatalf("SumTx() = %d, want 30", got)
	}
}

func TestUsableLoopbackAlwaysUsable(t *testing.T) {
	iface := stdnet.Interface{Flags: stdnet.FlagLoopback}
	if !usable(iface) {
		t.Fatal("loopback interface should always be usable")
	}
}

func TestUsableRequiresUpAndRunning(t *testing.T) {
	up := stdnet.Interface{Flags: stdnet.FlagUp}
	if usable(up) {
		t.Fatal("an interface that is up but not running should not be usable")
	}

	upRunning := stdnet.Interface{Flags: stdnet.FlagUp | stdnet.FlagRunning}
	if !usable(upRunning) {
		t.Fatal("an interface that is up and running should be usable")
	}
}

func TestLinkPrefix(t *testing.T) {
	tests := []struct {
		lt     layers.LinkType
		want   int
		wantOK bool
	}{
		{layers.LinkTypeEthernet, prefixEthernet, true},
		{layers.LinkTypeNull, prefixLoopback, true},
		{layers.LinkTypeLoop, prefixLoopback, true},
		{layers.LinkTypeRaw, 0, false},
	}
	for _, tt := range tests {
		got, ok := linkPrefix(tt.lt)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("linkPrefix(%v) = (%d, %v), want (%d, %v)", tt.lt, got, ok, tt.want, tt.wantOK)
		}
	}
}
