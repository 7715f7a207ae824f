package sniffer

import (
	"encoding/binary"
	"net"
)

// Link-layer frame prefixes the sniffer understands, in bytes.
const (
	prefixLoopback = 4
	prefixEthernet = 14
)

const (
	protoTCP = 0x06
	protoUDP = 0x11
)

// Attribution describes which tx/rx counters a parsed packet should charge.
// The byte count charged is chosen by the caller.
type Attribution struct {
	ChargeTx bool
	TxPort   uint16
	ChargeRx bool
	RxPort   uint16
}

// Attribute implements the per-packet attribution algorithm: strip
// the link-layer prefix, parse the IPv4/IPv6 header, reject anything that
// isn't TCP or UDP, read the L4 ports, and decide which counters the frame
// charges. Attribute does not report a length; the capture worker charges
// the entire captured frame length, len(frame) including the link-layer
// prefix.
//
// Returns ok=false when the packet should be silently dropped: unknown
// link-layer prefix content, unsupported IP version, non-TCP/UDP protocol,
// or (for non-loopback links) neither address being local.
func Attribute(frame []byte, prefixLen int, isLoopbackLink bool, localAddrs map[string]struct{}) (Attribution, bool) {
	if len(frame) < prefixLen {
		return Attribution{}, false
	}
	payload := frame[prefixLen:]
	if len(payload) < 1 {
		return Attribution{}, false
	}

	version := payload[0] >> 4

	var (
		proto        byte
		srcIP, dstIP net.IP
		l4Offset     int
	)

	switch version {
	case 4:
		if len(payload) < 20 {
			return Attribution{}, false
		}
		ihl := int(payload[0]&0x0F) * 4
		if ihl < 20 || len(payload) < ihl+4 {
			return Attribution{}, false
		}
		proto = payload[9]
		srcIP = net.IP(payload[12:16])
		dstIP = net.IP(payload[16:20])
		l4Offset = ihl
	case 6:
		const ipv6HeaderLen = 40
		if len(payload) < ipv6HeaderLen+4 {
			return Attribution{}, false
		}
		proto = payload[6]
		srcIP = net.IP(payload[8:24])
		dstIP = net.IP(payload[24:40])
		l4Offset = ipv6HeaderLen
	default:
		return Attribution{}, false
	}

	if proto != protoTCP && proto != protoUDP {
		return Attribution{}, false
	}

	l4 := payload[l4Offset:]
	if len(l4) < 4 {
		return Attribution{}, false
	}
	srcPort := binary.BigEndian.Uint16(l4[0:2])
	dstPort := binary.BigEndian.Uint16(l4[2:4])

	if isLoopbackLink {
		return Attribution{ChargeTx: true, TxPort: srcPort, ChargeRx: true, RxPort: dstPort}, true
	}

	if _, ok := localAddrs[srcIP.String()]; ok {
		return Attribution{ChargeTx: true, TxPort: srcPort}, true
	}
	if _, ok := localAddrs[dstIP.String()]; ok {
		return Attribution{ChargeRx: true, RxPort: dstPort}, true
	}
	return Attribution{}, false
}
