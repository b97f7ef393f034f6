package tcp_protocol

import (
	"container/heap"
	"math/rand"

	"ip-tcp-stack/priorityQueue"
)

// TCPSender owns the outbound half-stream. It carves the stream into
// segments that honor the peer's advertised window, keeps every
// unacknowledged segment until it is covered by an ackno, and retransmits
// the oldest one with exponential backoff when the timer expires.
type TCPSender struct {
	stream *ByteStream
	isn    WrappingInt32

	nextSeqno     uint64
	ackAbsSeqno   uint64
	windowSize    uint16
	bytesInFlight uint64

	segmentsOut []*TCPSegment
	outstanding priorityQueue.PriorityQueue

	synSent bool
	finSent bool

	initialRTO      uint64
	currentRTO      uint64
	timerMS         uint64
	consecutiveRetx uint
}

// NewTCPSender builds a sender with the given stream capacity and initial
// retransmission timeout. A nil fixedISN picks a random one.
func NewTCPSender(capacity uint64, retxTimeout uint64, fixedISN *WrappingInt32) *TCPSender {
	isn := WrappingInt32(rand.Uint32())
	if fixedISN != nil {
		isn = *fixedISN
	}
	return &TCPSender{
		stream:     NewByteStream(capacity),
		isn:        isn,
		windowSize: 1,
		initialRTO: retxTimeout,
		currentRTO: retxTimeout,
	}
}

func (snd *TCPSender) Stream() *ByteStream { return snd.stream }
func (snd *TCPSender) ISN() WrappingInt32  { return snd.isn }

func (snd *TCPSender) NextSeqno() uint64     { return snd.nextSeqno }
func (snd *TCPSender) BytesInFlight() uint64 { return snd.bytesInFlight }

func (snd *TCPSender) ConsecutiveRetransmissions() uint { return snd.consecutiveRetx }

// PopSegment removes and returns the next queued outbound segment.
func (snd *TCPSender) PopSegment() (*TCPSegment, bool) {
	if len(snd.segmentsOut) == 0 {
		return nil, false
	}
	seg := snd.segmentsOut[0]
	snd.segmentsOut = snd.segmentsOut[1:]
	return seg, true
}

func (snd *TCPSender) HasSegments() bool { return len(snd.segmentsOut) > 0 }

// FillWindow emits as many segments as the peer's window allows. A zero
// window is treated as one for probing. The first segment is always a bare
// SYN; the last one carries FIN, after which nothing new is emitted.
func (snd *TCPSender) FillWindow() {
	if snd.finSent {
		return
	}

	if !snd.synSent {
		seg := &TCPSegment{Seqno: Wrap(snd.nextSeqno, snd.isn), SYN: true}
		snd.synSent = true
		snd.trackAndQueue(seg)
		// nothing else goes out in the same call as the SYN until the
		// window opens past it
	}

	for {
		window := uint64(snd.windowSize)
		if window == 0 {
			window = 1
		}
		if window <= snd.bytesInFlight {
			return
		}
		remaining := window - snd.bytesInFlight

		payloadLen := remaining
		if payloadLen > MaxPayloadSize {
			payloadLen = MaxPayloadSize
		}
		if size := snd.stream.BufferSize(); payloadLen > size {
			payloadLen = size
		}

		seg := &TCPSegment{
			Seqno:   Wrap(snd.nextSeqno, snd.isn),
			Payload: snd.stream.Read(payloadLen),
		}
		if snd.stream.EOF() && uint64(len(seg.Payload))+1 <= remaining {
			seg.FIN = true
			snd.finSent = true
		}
		if seg.LengthInSequenceSpace() == 0 {
			return
		}

		snd.trackAndQueue(seg)
		if snd.finSent {
			return
		}
	}
}

// trackAndQueue pushes seg onto the outbound queue and the outstanding
// heap, advancing the sequence state. The retransmission timer restarts
// when the outstanding set goes from empty to non-empty.
func (snd *TCPSender) trackAndQueue(seg *TCPSegment) {
	length := seg.LengthInSequenceSpace()
	snd.segmentsOut = append(snd.segmentsOut, seg)
	heap.Push(&snd.outstanding, &priorityQueue.OutstandingSegment{
		AbsSeqno: snd.nextSeqno,
		Length:   length,
		Segment:  seg,
	})
	snd.nextSeqno += length
	snd.bytesInFlight += length
	if snd.outstanding.Len() == 1 {
		snd.timerMS = 0
		snd.currentRTO = snd.initialRTO
	}
}

// AckReceived digests the peer's ackno and window. Acks for sequence
// numbers not yet sent are ignored. New data being acknowledged retires
// fully-covered outstanding segments and resets the retransmission state.
func (snd *TCPSender) AckReceived(ackno WrappingInt32, win uint16) {
	snd.windowSize = win

	ackAbs := Unwrap(ackno, snd.isn, snd.nextSeqno)
	if ackAbs > snd.nextSeqno {
		return
	}

	if ackAbs > snd.ackAbsSeqno {
		snd.ackAbsSeqno = ackAbs
		for snd.outstanding.Len() > 0 {
			oldest := snd.outstanding.Peek()
			if oldest.AbsSeqno+oldest.Length > ackAbs {
				break
			}
			snd.bytesInFlight -= oldest.Length
			heap.Pop(&snd.outstanding)
		}
		snd.currentRTO = snd.initialRTO
		snd.consecutiveRetx = 0
		snd.timerMS = 0
	}

	snd.FillWindow()
}

// Tick advances the retransmission timer. On expiry the oldest outstanding
// segment is re-queued; the RTO doubles only when the peer's window is
// non-zero, so zero-window probes don't back off.
func (snd *TCPSender) Tick(ms uint64) {
	if snd.outstanding.Len() == 0 {
		return
	}
	snd.timerMS += ms
	if snd.timerMS < snd.currentRTO {
		return
	}
	snd.timerMS = 0
	snd.segmentsOut = append(snd.segmentsOut, snd.outstanding.Peek().Segment.(*TCPSegment))
	if snd.windowSize > 0 {
		snd.currentRTO *= 2
	}
	snd.consecutiveRetx++
}

// SendEmptySegment queues a zero-length segment at the next sequence
// number. It is not tracked for retransmission; the connection uses it to
// carry a bare ACK or RST.
func (snd *TCPSender) SendEmptySegment() {
	snd.segmentsOut = append(snd.segmentsOut, &TCPSegment{Seqno: Wrap(snd.nextSeqno, snd.isn)})
}
