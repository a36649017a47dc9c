package terminal

import (
	"strings"
	"sync"
)

// DefaultBufferChunks caps how many output chunks an unread session can
// accumulate before the oldest are evicted.
const DefaultBufferChunks = 10000

// Buffer is a thread-safe, chunk-bounded FIFO of filtered output. The
// session's reader goroutine appends; any caller may drain or peek.
type Buffer struct {
	mu       sync.Mutex
	chunks   []string
	capacity int
}

// NewBuffer creates a buffer bounded to the given chunk count.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferChunks
	}
	return &Buffer{capacity: capacity}
}

// Append adds a chunk, evicting the oldest once capacity is exceeded.
func (b *Buffer) Append(chunk string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.chunks) >= b.capacity {
		n := copy(b.chunks, b.chunks[1:])
		b.chunks = b.chunks[:n]
	}
	b.chunks = append(b.chunks, chunk)
}

// Drain concatenates all chunks in arrival order, clears the buffer, and
// returns the concatenation. An empty buffer yields an empty string.
func (b *Buffer) Drain() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.chunks) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, c := range b.chunks {
		sb.WriteString(c)
	}
	b.chunks = b.chunks[:0]
	return sb.String()
}

// Peek concatenates the last n chunks without mutating the buffer.
func (b *Buffer) Peek(n int) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n <= 0 || len(b.chunks) == 0 {
		return ""
	}
	start := len(b.chunks) - n
	if start < 0 {
		start = 0
	}

	var sb strings.Builder
	for _, c := range b.chunks[start:] {
		sb.WriteString(c)
	}
	return sb.String()
}

// Len reports the current chunk count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}
