package ip

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

const (
	protocolICMPv4 = 1

	icmpTypeDestUnreachable   = 3
	icmpCodeHostUnreachable   = 1
	icmpUnreachableHeaderSize = 8 // type, code, checksum, unused
)

// BuildICMPv4Unreachable builds a full IPv4 packet carrying a Destination
// Host Unreachable reply to originalPacket, addressed from src (the tunnel
// interface's own address) back to dst (the sender of the undeliverable
// packet), per RFC 792. The reply quotes the offending IP header plus its
// first 8 bytes of payload, truncating originalPacket if it is shorter.
func BuildICMPv4Unreachable(src, dst netip.Addr, originalPacket []byte) ([]byte, error) {
	if !src.Is4() || !dst.Is4() {
		return nil, fmt.Errorf("BuildICMPv4Unreachable: IPv4 addresses required")
	}
	maxQuote := IPv4HeaderMinLen + 8
	if len(originalPacket) > 0 {
		if ihl := int(originalPacket[0]&0x0F) * 4; ihl > IPv4HeaderMinLen {
			maxQuote = ihl + 8
		}
	}
	quoteLen := len(originalPacket)
	if quoteLen > maxQuote {
		quoteLen = maxQuote
	}

	icmp := make([]byte, icmpUnreachableHeaderSize+quoteLen)
	icmp[0] = icmpTypeDestUnreachable
	icmp[1] = icmpCodeHostUnreachable
	copy(icmp[icmpUnreachableHeaderSize:], originalPacket[:quoteLen])
	binary.BigEndian.PutUint16(icmp[2:4], icmpChecksum(icmp))

	return NewHeaderBuilder().BuildIPv4Packet(src, dst, protocolICMPv4, 64, icmp)
}

func icmpChecksum(b []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i : i+2]))
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}
	for (sum >> 16) != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}
