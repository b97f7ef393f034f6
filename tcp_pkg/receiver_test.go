package tcp_protocol

import "testing"

func TestReceiverDropsBeforeSYN(t *testing.T) {
	rcv := NewTCPReceiver(100)
	rcv.SegmentReceived(&TCPSegment{Seqno: 1234, Payload: []byte("data")})
	if _, ok := rcv.AckNo(); ok {
		t.Fatal("ackno defined before any SYN")
	}
	if rcv.Stream().BytesWritten() != 0 {
		t.Fatal("payload accepted before SYN")
	}
}

func TestReceiverSYN(t *testing.T) {
	isn := WrappingInt32(0x10000)
	rcv := NewTCPReceiver(100)
	rcv.SegmentReceived(&TCPSegment{Seqno: isn, SYN: true})

	ackno, ok := rcv.AckNo()
	if !ok {
		t.Fatal("ackno undefined after SYN")
	}
	if ackno != isn+1 {
		t.Fatalf("ackno = %#x, want %#x", uint32(ackno), uint32(isn+1))
	}
	if rcv.WindowSize() != 100 {
		t.Fatalf("window = %d, want 100", rcv.WindowSize())
	}
}

func TestReceiverData(t *testing.T) {
	isn := WrappingInt32(0x10000)
	rcv := NewTCPReceiver(100)
	rcv.SegmentReceived(&TCPSegment{Seqno: isn, SYN: true})
	rcv.SegmentReceived(&TCPSegment{Seqno: isn + 1, Payload: []byte("abcd")})

	ackno, _ := rcv.AckNo()
	if ackno != isn+5 {
		t.Fatalf("ackno = %#x, want %#x", uint32(ackno), uint32(isn+5))
	}
	if got := string(rcv.Stream().Read(4)); got != "abcd" {
		t.Fatalf("stream = %q, want abcd", got)
	}
	if rcv.WindowSize() != 100 {
		t.Fatalf("window = %d after read, want 100", rcv.WindowSize())
	}
}

func TestReceiverOutOfOrderThenFill(t *testing.T) {
	isn := WrappingInt32(7)
	rcv := NewTCPReceiver(100)
	rcv.SegmentReceived(&TCPSegment{Seqno: isn, SYN: true})
	rcv.SegmentReceived(&TCPSegment{Seqno: isn + 3, Payload: []byte("cd")})

	if ackno, _ := rcv.AckNo(); ackno != isn+1 {
		t.Fatalf("ackno moved past a hole: %#x", uint32(ackno))
	}
	if rcv.UnassembledBytes() != 2 {
		t.Fatalf("unassembled = %d, want 2", rcv.UnassembledBytes())
	}
	rcv.SegmentReceived(&TCPSegment{Seqno: isn + 1, Payload: []byte("ab")})
	if ackno, _ := rcv.AckNo(); ackno != isn+5 {
		t.Fatalf("ackno = %#x, want %#x", uint32(ackno), uint32(isn+5))
	}
	if got := string(rcv.Stream().Read(4)); got != "abcd" {
		t.Fatalf("stream = %q, want abcd", got)
	}
}

func TestReceiverFIN(t *testing.T) {
	isn := WrappingInt32(0x10000)
	rcv := NewTCPReceiver(100)
	rcv.SegmentReceived(&TCPSegment{Seqno: isn, SYN: true})
	rcv.SegmentReceived(&TCPSegment{Seqno: isn + 1, Payload: []byte("ab"), FIN: true})

	if !rcv.Stream().InputEnded() {
		t.Fatal("stream not ended after FIN")
	}
	// the FIN occupies a sequence number of its own
	if ackno, _ := rcv.AckNo(); ackno != isn+4 {
		t.Fatalf("ackno = %#x, want %#x", uint32(ackno), uint32(isn+4))
	}
}

func TestReceiverSYNPayloadFINCombined(t *testing.T) {
	isn := WrappingInt32(42)
	rcv := NewTCPReceiver(100)
	rcv.SegmentReceived(&TCPSegment{Seqno: isn, SYN: true, FIN: true, Payload: []byte("x")})

	if got := string(rcv.Stream().Read(1)); got != "x" {
		t.Fatalf("stream = %q, want x", got)
	}
	if !rcv.Stream().InputEnded() {
		t.Fatal("stream not ended")
	}
	if ackno, _ := rcv.AckNo(); ackno != isn+3 {
		t.Fatalf("ackno = %#x, want %#x", uint32(ackno), uint32(isn+3))
	}
}

func TestReceiverDropsOutsideWindow(t *testing.T) {
	isn := WrappingInt32(0)
	rcv := NewTCPReceiver(4)
	rcv.SegmentReceived(&TCPSegment{Seqno: isn, SYN: true})
	rcv.SegmentReceived(&TCPSegment{Seqno: isn + 100, Payload: []byte("zz")})
	if rcv.UnassembledBytes() != 0 {
		t.Fatal("segment past the window edge accepted")
	}
	// a pure ack occupies no sequence space and is dropped too
	rcv.SegmentReceived(&TCPSegment{Seqno: isn + 1, Ack: true, Ackno: 55})
	if ackno, _ := rcv.AckNo(); ackno != isn+1 {
		t.Fatalf("ackno = %#x, want %#x", uint32(ackno), uint32(isn+1))
	}
}
