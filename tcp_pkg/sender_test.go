package tcp_protocol

import "testing"

func newTestSender(isn WrappingInt32) *TCPSender {
	return NewTCPSender(DefaultCapacity, DefaultRtTimeout, &isn)
}

func popOne(t *testing.T, snd *TCPSender) *TCPSegment {
	t.Helper()
	seg, ok := snd.PopSegment()
	if !ok {
		t.Fatal("expected a queued segment")
	}
	return seg
}

func checkSenderInvariants(t *testing.T, snd *TCPSender) {
	t.Helper()
	if got := snd.NextSeqno() - snd.ackAbsSeqno; got != snd.BytesInFlight() {
		t.Fatalf("next_seqno-ack_abs = %d, bytes_in_flight = %d", got, snd.BytesInFlight())
	}
	var sum uint64
	for _, o := range snd.outstanding {
		sum += o.Length
	}
	if sum != snd.BytesInFlight() {
		t.Fatalf("outstanding sum = %d, bytes_in_flight = %d", sum, snd.BytesInFlight())
	}
}

func TestSenderSYN(t *testing.T) {
	isn := WrappingInt32(0x10000000)
	snd := newTestSender(isn)
	snd.FillWindow()

	seg := popOne(t, snd)
	if !seg.SYN || seg.Seqno != isn || len(seg.Payload) != 0 {
		t.Fatalf("first segment = %+v, want bare SYN at isn", seg)
	}
	if snd.BytesInFlight() != 1 {
		t.Fatalf("bytes_in_flight = %d, want 1", snd.BytesInFlight())
	}
	if snd.HasSegments() {
		t.Fatal("more than one segment before the window opens")
	}
	checkSenderInvariants(t, snd)
}

func TestSenderAckAdvances(t *testing.T) {
	isn := WrappingInt32(0x10000000)
	snd := newTestSender(isn)
	snd.FillWindow()
	popOne(t, snd)

	snd.AckReceived(Wrap(1, isn), 1000)
	if snd.BytesInFlight() != 0 {
		t.Fatalf("bytes_in_flight = %d, want 0", snd.BytesInFlight())
	}
	if snd.ConsecutiveRetransmissions() != 0 {
		t.Fatal("consecutive retransmissions after clean ack")
	}
	if snd.outstanding.Len() != 0 {
		t.Fatal("outstanding list not empty after full ack")
	}
	checkSenderInvariants(t, snd)
}

func TestSenderFillsWindowWithData(t *testing.T) {
	isn := WrappingInt32(0)
	snd := newTestSender(isn)
	snd.FillWindow()
	popOne(t, snd)
	snd.Stream().Write([]byte("hello world"))
	snd.AckReceived(Wrap(1, isn), 5)

	seg := popOne(t, snd)
	if string(seg.Payload) != "hello" || seg.Seqno != Wrap(1, isn) {
		t.Fatalf("segment = %q@%#x, want hello@%#x", seg.Payload, uint32(seg.Seqno), uint32(Wrap(1, isn)))
	}
	if snd.HasSegments() {
		t.Fatal("sender overran the advertised window")
	}
	snd.AckReceived(Wrap(6, isn), 100)
	seg = popOne(t, snd)
	if string(seg.Payload) != " world" {
		t.Fatalf("segment = %q, want %q", seg.Payload, " world")
	}
	checkSenderInvariants(t, snd)
}

func TestSenderRetransmitBackoff(t *testing.T) {
	isn := WrappingInt32(0xcafe)
	snd := newTestSender(isn)
	snd.FillWindow()
	first := popOne(t, snd)

	snd.Tick(DefaultRtTimeout - 1)
	if snd.HasSegments() {
		t.Fatal("retransmitted before the RTO expired")
	}
	snd.Tick(1)
	if got := popOne(t, snd); got != first {
		t.Fatal("retransmission is not the oldest outstanding segment")
	}
	if snd.ConsecutiveRetransmissions() != 1 {
		t.Fatalf("consecutive = %d, want 1", snd.ConsecutiveRetransmissions())
	}
	if snd.currentRTO != 2*DefaultRtTimeout {
		t.Fatalf("rto = %d, want doubled %d", snd.currentRTO, 2*DefaultRtTimeout)
	}

	snd.Tick(2*DefaultRtTimeout - 1)
	if snd.HasSegments() {
		t.Fatal("retransmitted before the doubled RTO expired")
	}
	snd.Tick(1)
	popOne(t, snd)
	if snd.ConsecutiveRetransmissions() != 2 || snd.currentRTO != 4*DefaultRtTimeout {
		t.Fatalf("consecutive = %d rto = %d, want 2 and %d",
			snd.ConsecutiveRetransmissions(), snd.currentRTO, 4*DefaultRtTimeout)
	}
}

func TestSenderZeroWindowProbe(t *testing.T) {
	isn := WrappingInt32(1)
	snd := newTestSender(isn)
	snd.FillWindow()
	popOne(t, snd)
	snd.AckReceived(Wrap(1, isn), 0)
	snd.Stream().Write([]byte("abc"))
	snd.FillWindow()

	probe := popOne(t, snd)
	if string(probe.Payload) != "a" {
		t.Fatalf("probe payload = %q, want single byte", probe.Payload)
	}
	if snd.HasSegments() {
		t.Fatal("more than one probe in flight")
	}

	// loss while the window is zero must not back off
	snd.Tick(DefaultRtTimeout)
	popOne(t, snd)
	snd.Tick(DefaultRtTimeout)
	popOne(t, snd)
	if snd.currentRTO != DefaultRtTimeout {
		t.Fatalf("rto = %d, want unchanged %d", snd.currentRTO, DefaultRtTimeout)
	}
	if snd.ConsecutiveRetransmissions() != 2 {
		t.Fatalf("consecutive = %d, want 2", snd.ConsecutiveRetransmissions())
	}

	// window opens: the probe is acked and the rest flows
	snd.AckReceived(Wrap(2, isn), 100)
	seg := popOne(t, snd)
	if string(seg.Payload) != "bc" {
		t.Fatalf("segment = %q, want bc", seg.Payload)
	}
	checkSenderInvariants(t, snd)
}

func TestSenderFIN(t *testing.T) {
	isn := WrappingInt32(0)
	snd := newTestSender(isn)
	snd.FillWindow()
	popOne(t, snd)
	snd.AckReceived(Wrap(1, isn), 100)

	snd.Stream().Write([]byte("bye"))
	snd.Stream().EndInput()
	snd.FillWindow()

	seg := popOne(t, snd)
	if string(seg.Payload) != "bye" || !seg.FIN {
		t.Fatalf("segment = %+v, want payload bye with FIN", seg)
	}
	if snd.NextSeqno() != 5 { // SYN + 3 bytes + FIN
		t.Fatalf("next_seqno = %d, want 5", snd.NextSeqno())
	}

	// nothing new after FIN
	snd.Stream().Write([]byte("x"))
	snd.FillWindow()
	if snd.HasSegments() {
		t.Fatal("segment emitted after FIN")
	}
}

func TestSenderFINWaitsForWindow(t *testing.T) {
	isn := WrappingInt32(0)
	snd := newTestSender(isn)
	snd.FillWindow()
	popOne(t, snd)
	snd.AckReceived(Wrap(1, isn), 3)

	snd.Stream().Write([]byte("abc"))
	snd.Stream().EndInput()
	snd.FillWindow()

	seg := popOne(t, snd)
	if string(seg.Payload) != "abc" || seg.FIN {
		t.Fatalf("FIN squeezed into a full window: %+v", seg)
	}
	snd.AckReceived(Wrap(4, isn), 3)
	seg = popOne(t, snd)
	if !seg.FIN || len(seg.Payload) != 0 {
		t.Fatalf("segment = %+v, want bare FIN", seg)
	}
}

func TestSenderEmptySegmentNotTracked(t *testing.T) {
	isn := WrappingInt32(5)
	snd := newTestSender(isn)
	snd.FillWindow()
	popOne(t, snd)

	snd.SendEmptySegment()
	seg := popOne(t, snd)
	if seg.LengthInSequenceSpace() != 0 || seg.Seqno != Wrap(1, isn) {
		t.Fatalf("empty segment = %+v", seg)
	}
	if snd.BytesInFlight() != 1 { // only the SYN
		t.Fatalf("bytes_in_flight = %d, want 1", snd.BytesInFlight())
	}
}

func TestSenderIgnoresImpossibleAck(t *testing.T) {
	isn := WrappingInt32(0)
	snd := newTestSender(isn)
	snd.FillWindow()
	popOne(t, snd)

	snd.AckReceived(Wrap(10, isn), 100) // acks data never sent
	if snd.BytesInFlight() != 1 {
		t.Fatalf("impossible ack retired the SYN: in_flight = %d", snd.BytesInFlight())
	}
}
