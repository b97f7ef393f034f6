package tcp_protocol

// TCPConnection joins a sender and a receiver into one full-duplex
// connection and carries the pieces neither half owns: RST handling, the
// decision to linger after both streams finish, and the ACK decoration of
// every outbound segment.
type TCPConnection struct {
	cfg      TCPConfig
	sender   *TCPSender
	receiver *TCPReceiver

	segmentsOut []*TCPSegment

	timeSinceLastSegmentReceivedMS uint64
	lingerAfterStreamsFinish       bool
	isActive                       bool
}

func NewTCPConnection(cfg TCPConfig) *TCPConnection {
	return &TCPConnection{
		cfg:                      cfg,
		sender:                   NewTCPSender(cfg.SendCapacity, cfg.RtTimeout, cfg.FixedISN),
		receiver:                 NewTCPReceiver(cfg.RecvCapacity),
		lingerAfterStreamsFinish: true,
		isActive:                 true,
	}
}

// InboundStream is the assembled stream of bytes from the peer.
func (conn *TCPConnection) InboundStream() *ByteStream { return conn.receiver.Stream() }

func (conn *TCPConnection) BytesInFlight() uint64     { return conn.sender.BytesInFlight() }
func (conn *TCPConnection) UnassembledBytes() uint64  { return conn.receiver.UnassembledBytes() }
func (conn *TCPConnection) RemainingOutboundCapacity() uint64 {
	return conn.sender.Stream().RemainingCapacity()
}

func (conn *TCPConnection) TimeSinceLastSegmentReceived() uint64 {
	return conn.timeSinceLastSegmentReceivedMS
}

// PopSegment removes and returns the next segment the connection wants on
// the wire.
func (conn *TCPConnection) PopSegment() (*TCPSegment, bool) {
	if len(conn.segmentsOut) == 0 {
		return nil, false
	}
	seg := conn.segmentsOut[0]
	conn.segmentsOut = conn.segmentsOut[1:]
	return seg, true
}

// Active reports whether the connection is still alive: it is not once the
// connection has died by RST, or once both streams have finished with no
// bytes in flight and no reason to linger.
func (conn *TCPConnection) Active() bool {
	if !conn.isActive {
		return false
	}
	if conn.streamsFinished() && !conn.lingerAfterStreamsFinish {
		return false
	}
	return true
}

// streamsFinished is the graceful-close predicate: both half-streams have
// ended and nothing of ours remains unacknowledged.
func (conn *TCPConnection) streamsFinished() bool {
	return conn.receiver.Stream().InputEnded() &&
		conn.sender.Stream().InputEnded() &&
		conn.sender.BytesInFlight() == 0
}

// sendSegments drains the sender's queue into the connection's, stamping
// each segment with the receiver's ackno and window when one exists.
// Returns how many segments moved.
func (conn *TCPConnection) sendSegments() int {
	moved := 0
	for {
		seg, ok := conn.sender.PopSegment()
		if !ok {
			return moved
		}
		conn.decorate(seg)
		conn.segmentsOut = append(conn.segmentsOut, seg)
		moved++
	}
}

func (conn *TCPConnection) decorate(seg *TCPSegment) {
	if ackno, ok := conn.receiver.AckNo(); ok {
		seg.Ack = true
		seg.Ackno = ackno
		seg.Win = clampWindow(conn.receiver.WindowSize())
	}
}

func clampWindow(win uint64) uint16 {
	if win > 0xffff {
		return 0xffff
	}
	return uint16(win)
}

func (conn *TCPConnection) checkShutdown() {
	if conn.streamsFinished() && !conn.lingerAfterStreamsFinish {
		conn.isActive = false
	}
}

// flush runs after every state-changing event: give the sender a chance to
// emit, move its segments out, and re-evaluate shutdown.
func (conn *TCPConnection) flush() {
	conn.sender.FillWindow()
	conn.sendSegments()
	conn.checkShutdown()
}

// SegmentReceived digests one inbound segment. An RST kills the connection
// immediately; otherwise the receiver and (for ACKs) the sender are
// updated, and if they produce nothing to say while the peer still needs
// an acknowledgment, a bare ACK goes out.
func (conn *TCPConnection) SegmentReceived(seg *TCPSegment) {
	if !conn.Active() {
		return
	}
	conn.timeSinceLastSegmentReceivedMS = 0

	if seg.RST {
		conn.receiver.Stream().SetError()
		conn.sender.Stream().SetError()
		conn.isActive = false
		return
	}

	conn.receiver.SegmentReceived(seg)
	if seg.Ack {
		conn.sender.AckReceived(seg.Ackno, seg.Win)
	}

	// Peer's stream ended before ours: we are the passive closer and owe
	// no TIME_WAIT.
	if conn.receiver.Stream().InputEnded() && !conn.sender.Stream().InputEnded() {
		conn.lingerAfterStreamsFinish = false
	}

	conn.sender.FillWindow()
	if conn.sendSegments() == 0 && conn.owesReplyAck(seg) {
		conn.sender.SendEmptySegment()
		conn.sendSegments()
	}
	conn.checkShutdown()
}

// owesReplyAck decides whether a segment that provoked no other outbound
// traffic still needs a bare ACK: it does when it consumed sequence space
// (the window moved, so the peer needs the new ackno), or when it is a
// keep-alive probe sitting one below the next expected sequence number.
func (conn *TCPConnection) owesReplyAck(seg *TCPSegment) bool {
	ackno, ok := conn.receiver.AckNo()
	if !ok {
		return false
	}
	if seg.LengthInSequenceSpace() > 0 {
		return true
	}
	return uint32(seg.Seqno) == uint32(ackno)-1
}

// Write queues data on the outbound stream and returns how much was
// accepted.
func (conn *TCPConnection) Write(data []byte) uint64 {
	if !conn.Active() {
		return 0
	}
	n := conn.sender.Stream().Write(data)
	conn.flush()
	return n
}

// EndInputStream closes the outbound stream; the FIN goes out as soon as
// the window permits.
func (conn *TCPConnection) EndInputStream() {
	if !conn.Active() {
		return
	}
	conn.sender.Stream().EndInput()
	conn.flush()
}

// Connect initiates the handshake by letting the sender emit its SYN.
func (conn *TCPConnection) Connect() {
	if !conn.Active() {
		return
	}
	conn.flush()
}

// Tick advances time: the sender may retransmit, too many consecutive
// retransmissions abort the connection, and a lingering connection dies
// quietly once 10 initial-RTOs pass with no traffic from the peer.
func (conn *TCPConnection) Tick(ms uint64) {
	if !conn.Active() {
		return
	}
	conn.sender.Tick(ms)
	if conn.sender.ConsecutiveRetransmissions() > conn.cfg.MaxRetxAttempts {
		conn.sendRSTAndDie()
		return
	}
	conn.timeSinceLastSegmentReceivedMS += ms

	conn.sender.FillWindow()
	conn.sendSegments()

	if conn.streamsFinished() && conn.lingerAfterStreamsFinish &&
		conn.timeSinceLastSegmentReceivedMS >= 10*conn.cfg.RtTimeout {
		conn.isActive = false
	}
	conn.checkShutdown()
}

// Reset aborts the connection, telling the peer with an RST. A no-op on a
// connection that is already done.
func (conn *TCPConnection) Reset() {
	if conn.Active() {
		conn.sendRSTAndDie()
	}
}

func (conn *TCPConnection) sendRSTAndDie() {
	// drop anything queued; the reset supersedes it
	for {
		if _, ok := conn.sender.PopSegment(); !ok {
			break
		}
	}
	conn.sender.SendEmptySegment()
	seg, _ := conn.sender.PopSegment()
	conn.decorate(seg)
	seg.RST = true
	conn.segmentsOut = append(conn.segmentsOut, seg)

	conn.receiver.Stream().SetError()
	conn.sender.Stream().SetError()
	conn.isActive = false
}
