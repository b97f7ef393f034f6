package protocol

import (
	"net/netip"

	ipv4header "github.com/brown-csci1680/iptcp-headers"
	"github.com/google/netstack/tcpip/header"
	"github.com/pkg/errors"
)

// IP protocol numbers the stack cares about.
const (
	ProtocolTest = 0
	ProtocolTCP  = 6
	ProtocolRIP  = 200
)

// DefaultTTL is the hop limit stamped on locally originated packets.
const DefaultTTL = 16

type IPPacket struct {
	Header  ipv4header.IPv4Header
	Payload []byte
}

// NewIPPacket builds a packet with a standard 20-byte header and no
// options. The checksum is filled in at Marshal time.
func NewIPPacket(src netip.Addr, dst netip.Addr, protocolNum int, payload []byte) *IPPacket {
	return &IPPacket{
		Header: ipv4header.IPv4Header{
			Version:  4,
			Len:      ipv4header.HeaderLen,
			TOS:      0,
			TotalLen: ipv4header.HeaderLen + len(payload),
			ID:       0,
			Flags:    0,
			FragOff:  0,
			TTL:      DefaultTTL,
			Protocol: protocolNum,
			Checksum: 0,
			Src:      src,
			Dst:      dst,
			Options:  []byte{},
		},
		Payload: payload,
	}
}

// ComputeChecksum is the RFC 1071 IPv4 header checksum: one's-complement
// sum of the header's sixteen-bit words with the checksum field zeroed,
// folded and inverted.
func ComputeChecksum(headerBytes []byte) uint16 {
	return header.Checksum(headerBytes, 0) ^ 0xffff
}

// Marshal serializes the packet, computing the header checksum.
func (packet *IPPacket) Marshal() ([]byte, error) {
	hdr := packet.Header
	hdr.Checksum = 0
	headerBytes, err := hdr.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "marshal ipv4 header")
	}
	hdr.Checksum = int(ComputeChecksum(headerBytes))
	headerBytes, err = hdr.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "marshal ipv4 header")
	}

	bytesToSend := make([]byte, 0, len(headerBytes)+len(packet.Payload))
	bytesToSend = append(bytesToSend, headerBytes...)
	bytesToSend = append(bytesToSend, packet.Payload...)
	return bytesToSend, nil
}

// ParseIPPacket parses and checksum-verifies an IPv4 packet.
func ParseIPPacket(b []byte) (*IPPacket, error) {
	hdr, err := ipv4header.ParseHeader(b)
	if err != nil {
		return nil, errors.Wrap(err, "parse ipv4 header")
	}
	if hdr.Len > len(b) || hdr.TotalLen > len(b) || hdr.TotalLen < hdr.Len {
		return nil, errors.New("ipv4 lengths exceed packet")
	}
	// a valid header sums to 0xffff with its checksum field in place
	if header.Checksum(b[:hdr.Len], 0) != 0xffff {
		return nil, errors.New("bad ipv4 header checksum")
	}
	return &IPPacket{Header: *hdr, Payload: b[hdr.Len:hdr.TotalLen]}, nil
}
