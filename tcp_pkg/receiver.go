package tcp_protocol

// TCPReceiver tracks the inbound half-stream: it learns the peer's ISN from
// the first SYN, feeds payload into the reassembler, and reports the ackno
// and window the connection should advertise.
type TCPReceiver struct {
	capacity    uint64
	isn         WrappingInt32
	synReceived bool
	reassembler *StreamReassembler
}

func NewTCPReceiver(capacity uint64) *TCPReceiver {
	return &TCPReceiver{
		capacity:    capacity,
		reassembler: NewStreamReassembler(capacity),
	}
}

// Stream is the assembled inbound byte stream, readable by the application.
func (rcv *TCPReceiver) Stream() *ByteStream { return rcv.reassembler.Output() }

func (rcv *TCPReceiver) UnassembledBytes() uint64 { return rcv.reassembler.UnassembledBytes() }

// SegmentReceived processes one inbound segment. Segments before the first
// SYN, segments starting at or past the right edge of the window, and
// segments occupying no sequence space are dropped.
func (rcv *TCPReceiver) SegmentReceived(seg *TCPSegment) {
	if !rcv.synReceived {
		if !seg.SYN {
			return
		}
		rcv.isn = seg.Seqno
		rcv.synReceived = true
		// fall through: the SYN may carry payload and FIN
	}

	stream := rcv.Stream()
	checkpoint := stream.BytesWritten() + 1
	if stream.InputEnded() {
		checkpoint++
	}

	absSeqno := Unwrap(seg.Seqno, rcv.isn, checkpoint)
	if absSeqno >= checkpoint+rcv.WindowSize() {
		return
	}
	if seg.LengthInSequenceSpace() == 0 && !seg.SYN && !seg.FIN {
		return
	}
	if !seg.SYN && absSeqno == 0 {
		// a data segment claiming the SYN's sequence number
		return
	}

	streamIndex := absSeqno
	if seg.SYN {
		streamIndex++
	}
	streamIndex--

	rcv.reassembler.PushSubstring(seg.Payload, streamIndex, seg.FIN)
}

// AckNo returns the next wire sequence number the receiver expects, once a
// SYN has been seen. The absolute ackno counts the SYN, every assembled
// byte, and the FIN once the stream has ended.
func (rcv *TCPReceiver) AckNo() (WrappingInt32, bool) {
	if !rcv.synReceived {
		return 0, false
	}
	abs := rcv.Stream().BytesWritten() + 1
	if rcv.Stream().InputEnded() {
		abs++
	}
	return Wrap(abs, rcv.isn), true
}

// WindowSize is the room between the assembly point and the capacity bound.
func (rcv *TCPReceiver) WindowSize() uint64 {
	return rcv.capacity - rcv.Stream().BufferSize()
}
