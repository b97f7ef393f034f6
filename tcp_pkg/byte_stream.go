package tcp_protocol

import "github.com/pkg/errors"

// ByteStream is a flow-controlled in-memory byte FIFO with a fixed capacity.
// The writer may end the input; either side may flag an error. Both latches
// are one-way.
type ByteStream struct {
	capacity     uint64
	buf          []byte
	bytesWritten uint64
	bytesRead    uint64
	inputEnded   bool
	err          bool
}

func NewByteStream(capacity uint64) *ByteStream {
	return &ByteStream{capacity: capacity}
}

// Write appends up to RemainingCapacity bytes of data and returns how many
// were accepted. Writes after EndInput or SetError accept nothing.
func (bs *ByteStream) Write(data []byte) uint64 {
	if bs.inputEnded || bs.err {
		return 0
	}
	n := uint64(len(data))
	if remaining := bs.RemainingCapacity(); n > remaining {
		n = remaining
	}
	bs.buf = append(bs.buf, data[:n]...)
	bs.bytesWritten += n
	return n
}

// PeekOutput returns a copy of the first min(n, BufferSize) buffered bytes.
func (bs *ByteStream) PeekOutput(n uint64) []byte {
	if n > uint64(len(bs.buf)) {
		n = uint64(len(bs.buf))
	}
	out := make([]byte, n)
	copy(out, bs.buf[:n])
	return out
}

// PopOutput removes n bytes from the head of the buffer. Popping more than
// is buffered is a caller bug.
func (bs *ByteStream) PopOutput(n uint64) error {
	if n > uint64(len(bs.buf)) {
		return errors.Errorf("pop of %d bytes exceeds buffered %d", n, len(bs.buf))
	}
	bs.buf = bs.buf[n:]
	bs.bytesRead += n
	return nil
}

// Read copies and then pops the next n bytes of the stream.
func (bs *ByteStream) Read(n uint64) []byte {
	out := bs.PeekOutput(n)
	bs.PopOutput(uint64(len(out)))
	return out
}

func (bs *ByteStream) EndInput() { bs.inputEnded = true }
func (bs *ByteStream) SetError() { bs.err = true }

func (bs *ByteStream) InputEnded() bool { return bs.inputEnded }
func (bs *ByteStream) Error() bool      { return bs.err }

func (bs *ByteStream) BufferSize() uint64 { return uint64(len(bs.buf)) }
func (bs *ByteStream) BufferEmpty() bool  { return len(bs.buf) == 0 }
func (bs *ByteStream) EOF() bool          { return bs.inputEnded && len(bs.buf) == 0 }

func (bs *ByteStream) BytesWritten() uint64 { return bs.bytesWritten }
func (bs *ByteStream) BytesRead() uint64    { return bs.bytesRead }

func (bs *ByteStream) RemainingCapacity() uint64 {
	return bs.capacity - uint64(len(bs.buf))
}
