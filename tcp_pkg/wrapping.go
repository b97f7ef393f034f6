package tcp_protocol

// WrappingInt32 is a 32-bit wire sequence number. Arithmetic on it is
// modulo 2^32; absolute 64-bit sequence numbers never wrap.
type WrappingInt32 uint32

// Wrap transforms an absolute 64-bit sequence number into the 32-bit wire
// sequence number relative to isn.
func Wrap(n uint64, isn WrappingInt32) WrappingInt32 {
	return WrappingInt32(uint32(isn) + uint32(n))
}

// Unwrap transforms a wire sequence number back into the unique absolute
// sequence number that wraps to n and is closest to checkpoint. Ties at
// distance 2^31 break toward the larger value, and the result never
// underflows below zero.
func Unwrap(n WrappingInt32, isn WrappingInt32, checkpoint uint64) uint64 {
	const mod = uint64(1) << 32
	const half = int64(1) << 31

	offset := uint64(uint32(n) - uint32(isn))
	base := (checkpoint &^ (mod - 1)) | offset

	d := int64(checkpoint) - int64(base)
	if d >= half {
		return base + mod
	}
	if d < -half && base >= mod {
		return base - mod
	}
	return base
}
