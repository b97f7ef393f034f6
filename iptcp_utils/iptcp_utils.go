package iptcp_utils

import (
	"encoding/binary"
	"net/netip"

	"github.com/google/netstack/tcpip/header"
	"github.com/pkg/errors"
)

const (
	TcpHeaderLen       = header.TCPMinimumSize
	TcpPseudoHeaderLen = 12
	IpProtoTcp         = 6
)

// ComputeTCPChecksum covers the IPv4 pseudo-header, the TCP header encoded
// from tcpHdr (its Checksum field included as given, not zeroed here), and
// the payload.
func ComputeTCPChecksum(tcpHdr *header.TCPFields, sourceIP netip.Addr, destIP netip.Addr, payload []byte) uint16 {
	pseudoHeaderBytes := make([]byte, TcpPseudoHeaderLen)
	copy(pseudoHeaderBytes[0:4], sourceIP.AsSlice())
	copy(pseudoHeaderBytes[4:8], destIP.AsSlice())
	pseudoHeaderBytes[8] = 0
	pseudoHeaderBytes[9] = IpProtoTcp
	binary.BigEndian.PutUint16(pseudoHeaderBytes[10:12], uint16(TcpHeaderLen+len(payload)))

	headerBytes := header.TCP(make([]byte, TcpHeaderLen))
	headerBytes.Encode(tcpHdr)

	// Chain the parts through the netstack checksum's initial-value
	// argument, then invert.
	pseudoHeaderChecksum := header.Checksum(pseudoHeaderBytes, 0)
	headerChecksum := header.Checksum(headerBytes, pseudoHeaderChecksum)
	fullChecksum := header.Checksum(payload, headerChecksum)
	return fullChecksum ^ 0xffff
}

// ParseTCPHeader decodes the fixed 20-byte TCP header.
func ParseTCPHeader(b []byte) (header.TCPFields, error) {
	if len(b) < TcpHeaderLen {
		return header.TCPFields{}, errors.New("tcp header too short")
	}
	td := header.TCP(b)
	return header.TCPFields{
		SrcPort:    td.SourcePort(),
		DstPort:    td.DestinationPort(),
		SeqNum:     td.SequenceNumber(),
		AckNum:     td.AckNumber(),
		DataOffset: td.DataOffset(),
		Flags:      td.Flags(),
		WindowSize: td.WindowSize(),
		Checksum:   td.Checksum(),
	}, nil
}

// SerializeTCPSegment checksums the header over the given endpoint
// addresses and returns header plus payload, ready to be an IP payload.
func SerializeTCPSegment(tcpHdr *header.TCPFields, sourceIP netip.Addr, destIP netip.Addr, payload []byte) []byte {
	hdr := *tcpHdr
	hdr.Checksum = 0
	hdr.Checksum = ComputeTCPChecksum(&hdr, sourceIP, destIP, payload)

	headerBytes := header.TCP(make([]byte, TcpHeaderLen))
	headerBytes.Encode(&hdr)

	out := make([]byte, 0, TcpHeaderLen+len(payload))
	out = append(out, headerBytes...)
	out = append(out, payload...)
	return out
}

// ParseTCPSegment splits an IP payload into verified TCP header fields and
// TCP payload.
func ParseTCPSegment(b []byte, sourceIP netip.Addr, destIP netip.Addr) (header.TCPFields, []byte, error) {
	tcpHdr, err := ParseTCPHeader(b)
	if err != nil {
		return header.TCPFields{}, nil, err
	}
	// options are never emitted by this stack and the checksum below only
	// covers the fixed header
	if int(tcpHdr.DataOffset) != TcpHeaderLen || len(b) < TcpHeaderLen {
		return header.TCPFields{}, nil, errors.New("bad tcp data offset")
	}
	payload := b[tcpHdr.DataOffset:]

	fromWire := tcpHdr.Checksum
	tcpHdr.Checksum = 0
	if ComputeTCPChecksum(&tcpHdr, sourceIP, destIP, payload) != fromWire {
		return header.TCPFields{}, nil, errors.New("bad tcp checksum")
	}
	tcpHdr.Checksum = fromWire
	return tcpHdr, payload, nil
}
