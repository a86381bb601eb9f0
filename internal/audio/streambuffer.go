package audio

import (
	"sync"
)

// StreamBuffer is a thread-safe byte-stream accumulator bridging a synthesis
// producer and a playback consumer. A read blocks until the accumulated size
// reaches MinChunkSize or Finish has been called, then returns and clears
// everything accumulated so far as one chunk. One writer and one reader per
// instance.
type StreamBuffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []byte
	minChunk int
	finished bool
}

// NewStreamBuffer creates a buffer releasing chunks of at least minChunk bytes.
func NewStreamBuffer(minChunk int) *StreamBuffer {
	if minChunk <= 0 {
		minChunk = 3200 // ~100ms at 16kHz mono 16-bit
	}
	sb := &StreamBuffer{
		buf:      make([]byte, 0, minChunk*2),
		minChunk: minChunk,
	}
	sb.cond = sync.NewCond(&sb.mu)
	return sb
}

// Write appends data and wakes a pending reader once the threshold is met.
// Writes after Finish are ignored.
func (sb *StreamBuffer) Write(data []byte) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.finished {
		return
	}
	sb.buf = append(sb.buf, data...)
	if len(sb.buf) >= sb.minChunk {
		sb.cond.Broadcast()
	}
}

// ReadChunk blocks until at least minChunk bytes are accumulated or the
// stream is finished, then returns all accumulated bytes and resets the
// buffer. It returns (nil, false) once the stream is finished and drained;
// that result is stable on repeated calls. A returned chunk is never empty.
func (sb *StreamBuffer) ReadChunk() ([]byte, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	for len(sb.buf) < sb.minChunk && !sb.finished {
		sb.cond.Wait()
	}

	if len(sb.buf) == 0 {
		return nil, false
	}

	chunk := sb.buf
	sb.buf = make([]byte, 0, sb.minChunk*2)
	return chunk, true
}

// Finish marks that no more writes will occur and wakes any blocked reader.
func (sb *StreamBuffer) Finish() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.finished = true
	sb.cond.Broadcast()
}

// Len returns the number of currently accumulated bytes.
func (sb *StreamBuffer) Len() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return len(sb.buf)
}
