package imaging

// Chunk sizing bounds for the adaptive copy buffer. Small inputs keep memory
// low, large inputs amortize syscall overhead, and the cap bounds allocation
// no matter how big the source is.
const (
	MinBufferSize     = 128 * 1024
	DefaultBufferSize = 1 << 20
	MaxBufferSize     = 16 << 20

	smallFileCutoff = 32 << 20
	largeFileCutoff = 4 << 30
)

// BufferSize returns the copy chunk size for a source of totalBytes. The
// result is monotonically non-decreasing in totalBytes and always within
// [MinBufferSize, MaxBufferSize], including for zero and negative inputs.
func BufferSize(totalBytes int64) int {
	switch {
	case totalBytes < smallFileCutoff:
		return MinBufferSize
	case totalBytes < largeFileCutoff:
		return DefaultBufferSize
	default:
		size := totalBytes / 4096
		if size > MaxBufferSize {
			return MaxBufferSize
		}
		return int(size)
	}
}
