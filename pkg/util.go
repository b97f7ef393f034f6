package protocol

import (
	"encoding/binary"
	"math/bits"
	"net/netip"
)

func AddrToUint32(input netip.Addr) uint32 {
	b := input.As4()
	return binary.BigEndian.Uint32(b[:])
}

func Uint32ToAddr(input uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], input)
	return netip.AddrFrom4(b)
}

// PrefixToMask builds the netmask for a prefix length: /0 matches
// everything, so its mask is all-zero.
func PrefixToMask(prefixLen int) uint32 {
	if prefixLen == 0 {
		return 0
	}
	return ^uint32(0) << (32 - prefixLen)
}

// MaskToPrefixLen counts the leading ones of a contiguous netmask.
func MaskToPrefixLen(mask uint32) int {
	return bits.OnesCount32(mask)
}

func formatAddr(addr netip.Addr) string {
	if !addr.IsValid() {
		return "*"
	}
	return addr.String()
}
