package audio

import (
	"sync"
)

// ChunkBuffer accumulates the binary audio fragments of one in-progress
// recording. It is safe for concurrent use: the stream reader appends
// while the partial-transcription poller snapshots.
type ChunkBuffer struct {
	mu     sync.RWMutex
	data   []byte
	chunks int
	sealed bool
}

// NewChunkBuffer creates an empty chunk buffer.
func NewChunkBuffer() *ChunkBuffer {
	return &ChunkBuffer{}
}

// Append adds one audio chunk. Appends after Seal are dropped; the
// stream has ended and late frames must not change the final buffer.
func (b *ChunkBuffer) Append(chunk []byte) int {
	if len(chunk) == 0 {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed {
		return 0
	}
	b.data = append(b.data, chunk...)
	b.chunks++
	return len(chunk)
}

// Snapshot returns a copy of all audio received so far.
func (b *ChunkBuffer) Snapshot() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Seal marks the recording complete and returns the final buffer.
func (b *ChunkBuffer) Seal() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sealed = true
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Len returns the total number of bytes accumulated.
func (b *ChunkBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

// Chunks returns the number of chunks appended.
func (b *ChunkBuffer) Chunks() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.chunks
}

// Sealed reports whether the recording has ended.
func (b *ChunkBuffer) Sealed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sealed
}

// Reset clears the buffer for reuse on the next recording.
func (b *ChunkBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = b.data[:0]
	b.chunks = 0
	b.sealed = false
}
