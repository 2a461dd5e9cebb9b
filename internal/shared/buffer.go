package shared

import (
	"bytes"
	"strings"
	"sync"
)

// ThreadSafeBuffer is a simple thread-safe bytes.Buffer wrapper. It is the
// io.Writer handed to the log sink and the diagnostics logger when their
// output has to be inspected.
type ThreadSafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// NewThreadSafeBuffer creates a new ThreadSafeBuffer
func NewThreadSafeBuffer() *ThreadSafeBuffer {
	return &ThreadSafeBuffer{}
}

// Read reads data from the buffer, is thread-safe
func (b *ThreadSafeBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Read(p)
}

// Write writes data to the buffer, is thread-safe
func (b *ThreadSafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// Len returns the number of bytes in the buffer, is thread-safe
func (b *ThreadSafeBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Len()
}

// String returns the unread contents without consuming them.
func (b *ThreadSafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Lines splits the unread contents into complete lines. A trailing partial
// line is not returned.
func (b *ThreadSafeBuffer) Lines() []string {
	s := b.String()
	idx := strings.LastIndexByte(s, '\n')
	if idx < 0 {
		return nil
	}
	return strings.Split(s[:idx], "\n")
}
