// Copyright (c) 2026 procwatt authors under MIT License
// Package sniffer runs one packet-capture worker per usable network
// interface, parses captured frames, and attributes their byte length to
// the local TCP/UDP port that sent or received them.
package sniffer

import (
	"fmt"
	stdnet "net"
	"sync"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/rs/zerolog"
)

// snapLen is sized to capture an Ethernet header plus an IPv6 header plus
// the first four bytes of a TCP/UDP header -- everything Attribute reads.
const snapLen = 256

const readTimeout = 1 * time.Second

// Config controls sniffer startup.
type Config struct {
	AllowLoopback bool
	Logger        zerolog.Logger
}

// Sniffer owns the shared port counters and the set of per-interface
// capture workers.
type Sniffer struct {
	cfg      Config
	counters *Counters
	lockdown func() bool

	mu      sync.Mutex
	handles []*pcap.Handle
	wg      sync.WaitGroup
}

// New creates a Sniffer. lockdown is polled once per captured packet; when
// it returns true the packet is discarded without being parsed.
func New(cfg Config, lockdown func() bool) *Sniffer {
	if lockdown == nil {
		lockdown = func() bool { return false }
	}
	return &Sniffer{
		cfg:      cfg,
		counters: NewCounters(),
		lockdown: lockdown,
	}
}

// Counters returns the shared tx/rx byte counters.
func (s *Sniffer) Counters() *Counters { return s.counters }

// Start enumerates usable interfaces and spawns one capture worker per
// interface. It returns once every worker's capture handle has either
// opened or failed to open; workers run until Close is called.
func (s *Sniffer) Start() error {
	ifaces, err := stdnet.Interfaces()
	if err != nil {
		return fmt.Errorf("sniffer: enumerate interfaces: %w", err)
	}

	opened := 0
	for _, iface := range ifaces {
		if !usable(iface) {
			continue
		}
		if iface.Flags&stdnet.FlagLoopback != 0 && !s.cfg.AllowLoopback {
			continue
		}

		handle, err := pcap.OpenLive(iface.Name, snapLen, false, readTimeout)
		if err != nil {
			s.cfg.Logger.Warn().Err(err).Str("interface", iface.Name).Msg("sniffer: failed to open interface for capture")
			continue
		}

		prefixLen, ok := linkPrefix(handle.LinkType())
		if !ok {
			s.cfg.Logger.Warn().Str("interface", iface.Name).Str("linktype", handle.LinkType().String()).Msg("sniffer: unsupported link-layer type, dropping all frames on this interface")
		}

		isLoopback := iface.Flags&stdnet.FlagLoopback != 0
		local := localAddrSet(iface)

		s.mu.Lock()
		s.handles = append(s.handles, handle)
		s.mu.Unlock()

		s.wg.Add(1)
		go s.captureLoop(iface.Name, handle, prefixLen, ok, isLoopback, local)
		opened++
	}

	if opened == 0 {
		return fmt.Errorf("sniffer: no usable interfaces were opened for capture")
	}
	return nil
}

// usable reports whether iface qualifies for capture: loopback
// unconditionally, or simultaneously up, connected (running), and not
// loopback.
func usable(iface stdnet.Interface) bool {
	if iface.Flags&stdnet.FlagLoopback != 0 {
		return true
	}
	const upRunning = stdnet.FlagUp | stdnet.FlagRunning
	return iface.Flags&upRunning == upRunning
}

// linkPrefix maps a pcap link type to its frame prefix length. ok is false
// for any link type the spec doesn't define an attribution rule for.
func linkPrefix(lt layers.LinkType) (int, bool) {
	switch lt {
	case layers.LinkTypeEthernet:
		return prefixEthernet, true
	case layers.LinkTypeNull, layers.LinkTypeLoop:
		return prefixLoopback, true
	default:
		return 0, false
	}
}

func localAddrSet(iface stdnet.Interface) map[string]struct{} {
	set := make(map[string]struct{})
	addrs, err := iface.Addrs()
	if err != nil {
		return set
	}
	for _, a := range addrs {
		var ip stdnet.IP
		switch v := a.(type) {
		case *stdnet.IPNet:
			ip = v.IP
		case *stdnet.IPAddr:
			ip = v.IP
		}
		if ip != nil {
			set[ip.String()] = struct{}{}
		}
	}
	return set
}

func (s *Sniffer) captureLoop(name string, handle *pcap.Handle, prefixLen int, knownLink bool, isLoopbackLink bool, local map[string]struct{}) {
	defer s.wg.Done()
	for {
		data, _, err := handle.ReadPacketData()
		if err == pcap.NextErrorTimeoutExpired {
			continue
		}
		if err != nil {
			// Handle closed (shutdown) or a transient read error; either
			// way this worker is done.
			return
		}

		if s.lockdown() {
			continue
		}
		if !knownLink {
			continue
		}

		attr, ok := Attribute(data, prefixLen, isLoopbackLink, local)
		if !ok {
			continue
		}

		n := uint64(len(data))
		if attr.ChargeTx {
			s.counters.AddTx(attr.TxPort, n)
		}
		if attr.ChargeRx {
			s.counters.AddRx(attr.RxPort, n)
		}
	}
}

// Close closes every capture handle, unblocking all capture workers, and
// waits for them to return.
func (s *Sniffer) Close() {
	s.mu.Lock()
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
	s.wg.Wait()
}
