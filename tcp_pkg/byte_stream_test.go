package tcp_protocol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func checkStreamInvariants(t *testing.T, bs *ByteStream) {
	t.Helper()
	if bs.BytesRead() > bs.BytesWritten() {
		t.Fatalf("bytes_read %d > bytes_written %d", bs.BytesRead(), bs.BytesWritten())
	}
	if got := bs.BytesWritten() - bs.BytesRead(); got != bs.BufferSize() {
		t.Fatalf("buffer_size %d, want bytes_written-bytes_read %d", bs.BufferSize(), got)
	}
	if bs.BufferSize() > bs.BufferSize()+bs.RemainingCapacity() {
		t.Fatalf("buffer_size %d exceeds capacity", bs.BufferSize())
	}
}

func TestByteStreamWriteThenRead(t *testing.T) {
	bs := NewByteStream(100)
	if n := bs.Write([]byte("hello")); n != 5 {
		t.Fatalf("Write = %d, want 5", n)
	}
	checkStreamInvariants(t, bs)

	if diff := cmp.Diff([]byte("hel"), bs.PeekOutput(3)); diff != "" {
		t.Fatalf("PeekOutput mismatch (-want +got):\n%s", diff)
	}
	if bs.BytesRead() != 0 {
		t.Fatal("peek consumed bytes")
	}

	if got := string(bs.Read(5)); got != "hello" {
		t.Fatalf("Read = %q, want hello", got)
	}
	if !bs.BufferEmpty() || bs.BytesRead() != 5 {
		t.Fatalf("buffer not drained: size=%d read=%d", bs.BufferSize(), bs.BytesRead())
	}
	checkStreamInvariants(t, bs)
}

func TestByteStreamCapacity(t *testing.T) {
	bs := NewByteStream(3)
	if n := bs.Write([]byte("hello")); n != 3 {
		t.Fatalf("Write = %d, want 3", n)
	}
	if bs.RemainingCapacity() != 0 {
		t.Fatalf("RemainingCapacity = %d, want 0", bs.RemainingCapacity())
	}
	checkStreamInvariants(t, bs)

	if got := string(bs.Read(2)); got != "he" {
		t.Fatalf("Read = %q, want he", got)
	}
	if n := bs.Write([]byte("xyz")); n != 2 {
		t.Fatalf("Write after partial read = %d, want 2", n)
	}
	if got := string(bs.Read(3)); got != "lxy" {
		t.Fatalf("Read = %q, want lxy", got)
	}
	checkStreamInvariants(t, bs)
}

func TestByteStreamEndInput(t *testing.T) {
	bs := NewByteStream(10)
	bs.Write([]byte("ab"))
	bs.EndInput()

	if n := bs.Write([]byte("c")); n != 0 {
		t.Fatalf("Write after EndInput = %d, want 0", n)
	}
	if bs.EOF() {
		t.Fatal("EOF with bytes still buffered")
	}
	bs.Read(2)
	if !bs.EOF() {
		t.Fatal("not EOF after input ended and buffer drained")
	}
	bs.EndInput() // idempotent
	if !bs.InputEnded() {
		t.Fatal("EndInput not latched")
	}
}

func TestByteStreamError(t *testing.T) {
	bs := NewByteStream(10)
	bs.SetError()
	if !bs.Error() {
		t.Fatal("error latch not set")
	}
	if n := bs.Write([]byte("x")); n != 0 {
		t.Fatalf("Write on errored stream = %d, want 0", n)
	}
}

func TestByteStreamPopTooMuch(t *testing.T) {
	bs := NewByteStream(10)
	bs.Write([]byte("ab"))
	if err := bs.PopOutput(3); err == nil {
		t.Fatal("PopOutput beyond buffer did not fail")
	}
	if err := bs.PopOutput(2); err != nil {
		t.Fatalf("PopOutput(2) failed: %v", err)
	}
}
