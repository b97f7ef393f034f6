package tcp_protocol

// pendingRange is a run of contiguous bytes waiting for the bytes before it
// to arrive. Ranges in StreamReassembler.pending are disjoint and sorted by
// index.
type pendingRange struct {
	index uint64
	data  []byte
}

// StreamReassembler accepts out-of-order byte ranges keyed by absolute
// stream index and writes contiguous prefixes into its output ByteStream.
// Stored plus assembled-but-unread bytes never exceed capacity.
type StreamReassembler struct {
	capacity         uint64
	firstUnassembled uint64
	pending          []pendingRange
	pendingBytes     uint64
	eofSeen          bool
	eofIndex         uint64
	output           *ByteStream
}

func NewStreamReassembler(capacity uint64) *StreamReassembler {
	return &StreamReassembler{
		capacity: capacity,
		output:   NewByteStream(capacity),
	}
}

func (sr *StreamReassembler) Output() *ByteStream { return sr.output }

func (sr *StreamReassembler) UnassembledBytes() uint64 { return sr.pendingBytes }

func (sr *StreamReassembler) Empty() bool { return sr.pendingBytes == 0 }

// PushSubstring merges data at the given absolute stream index. Bytes below
// the assembly point or beyond the acceptance window are discarded; eof is
// recorded only if the end of the data survives the window truncation.
func (sr *StreamReassembler) PushSubstring(data []byte, index uint64, eof bool) {
	end := index + uint64(len(data))
	firstUnacceptable := sr.firstUnassembled + (sr.capacity - sr.output.BufferSize())

	if eof && end <= firstUnacceptable {
		sr.eofSeen = true
		sr.eofIndex = end
	}

	// Clip to [firstUnassembled, firstUnacceptable).
	if index < sr.firstUnassembled {
		if end <= sr.firstUnassembled {
			data = nil
		} else {
			data = data[sr.firstUnassembled-index:]
		}
		index = sr.firstUnassembled
	}
	if len(data) > 0 {
		if index >= firstUnacceptable {
			data = nil
		} else if index+uint64(len(data)) > firstUnacceptable {
			data = data[:firstUnacceptable-index]
		}
	}

	if len(data) > 0 {
		sr.insert(index, data)
	}
	sr.drain()

	if sr.eofSeen && sr.firstUnassembled == sr.eofIndex {
		sr.output.EndInput()
	}
}

// insert merges [index, index+len(data)) into the pending set. Where the
// new data overlaps a stored range, the stored bytes win; only the gaps
// between stored ranges are filled in.
func (sr *StreamReassembler) insert(index uint64, data []byte) {
	start := index
	end := index + uint64(len(data))

	merged := make([]pendingRange, 0, len(sr.pending)+2)
	i := 0
	for ; i < len(sr.pending); i++ {
		ex := sr.pending[i]
		if ex.index+uint64(len(ex.data)) > start {
			break
		}
		merged = append(merged, ex)
	}

	cur := start
	for ; i < len(sr.pending) && sr.pending[i].index < end; i++ {
		ex := sr.pending[i]
		if cur < ex.index {
			piece := make([]byte, ex.index-cur)
			copy(piece, data[cur-start:])
			merged = append(merged, pendingRange{index: cur, data: piece})
			sr.pendingBytes += uint64(len(piece))
		}
		merged = append(merged, ex)
		if exEnd := ex.index + uint64(len(ex.data)); exEnd > cur {
			cur = exEnd
		}
	}
	if cur < end {
		piece := make([]byte, end-cur)
		copy(piece, data[cur-start:])
		merged = append(merged, pendingRange{index: cur, data: piece})
		sr.pendingBytes += uint64(len(piece))
	}

	merged = append(merged, sr.pending[i:]...)
	sr.pending = merged
}

// drain moves the contiguous run starting at firstUnassembled into the
// output stream, stopping early if the stream runs out of room.
func (sr *StreamReassembler) drain() {
	for len(sr.pending) > 0 && sr.pending[0].index == sr.firstUnassembled {
		r := sr.pending[0]
		n := sr.output.Write(r.data)
		sr.pendingBytes -= n
		sr.firstUnassembled += n
		if n < uint64(len(r.data)) {
			sr.pending[0] = pendingRange{index: r.index + n, data: r.data[n:]}
			return
		}
		sr.pending = sr.pending[1:]
	}
}
