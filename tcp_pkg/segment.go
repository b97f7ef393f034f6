package tcp_protocol

import "github.com/google/netstack/tcpip/header"

// TCPSegment is the logical view of one TCP segment: the header fields the
// connection state machine cares about, plus the payload. Ports, checksums
// and wire encoding live outside the core.
type TCPSegment struct {
	Seqno   WrappingInt32
	Ack     bool
	Ackno   WrappingInt32
	Win     uint16
	SYN     bool
	FIN     bool
	RST     bool
	Payload []byte
}

// LengthInSequenceSpace counts the sequence numbers this segment occupies:
// one per payload byte, plus one each for SYN and FIN.
func (seg *TCPSegment) LengthInSequenceSpace() uint64 {
	n := uint64(len(seg.Payload))
	if seg.SYN {
		n++
	}
	if seg.FIN {
		n++
	}
	return n
}

// Fields renders the segment as netstack TCP header fields, ready for
// checksumming and encoding onto the wire.
func (seg *TCPSegment) Fields(srcPort, dstPort uint16) header.TCPFields {
	var flags uint8
	if seg.SYN {
		flags |= header.TCPFlagSyn
	}
	if seg.FIN {
		flags |= header.TCPFlagFin
	}
	if seg.RST {
		flags |= header.TCPFlagRst
	}
	if seg.Ack {
		flags |= header.TCPFlagAck
	}
	return header.TCPFields{
		SrcPort:    srcPort,
		DstPort:    dstPort,
		SeqNum:     uint32(seg.Seqno),
		AckNum:     uint32(seg.Ackno),
		DataOffset: header.TCPMinimumSize,
		Flags:      flags,
		WindowSize: seg.Win,
	}
}

// SegmentFromFields builds the logical segment for a parsed TCP header and
// payload.
func SegmentFromFields(f *header.TCPFields, payload []byte) *TCPSegment {
	return &TCPSegment{
		Seqno:   WrappingInt32(f.SeqNum),
		Ack:     f.Flags&header.TCPFlagAck != 0,
		Ackno:   WrappingInt32(f.AckNum),
		Win:     f.WindowSize,
		SYN:     f.Flags&header.TCPFlagSyn != 0,
		FIN:     f.Flags&header.TCPFlagFin != 0,
		RST:     f.Flags&header.TCPFlagRst != 0,
		Payload: payload,
	}
}
