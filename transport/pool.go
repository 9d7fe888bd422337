// Copyright 2024 Kingtous
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import "sync"

// BufferMode selects how a layer that owns working buffers submits them to a
// completion-based [Conn].
type BufferMode int

const (
	// Copying is the safe default: working buffers are never submitted to
	// the Conn. Every operation goes through a disposable transfer buffer,
	// at the cost of one extra copy. If an operation is abandoned before
	// completion, only the transfer buffer is lost; it is leaked rather
	// than recycled, so the Conn can keep touching it harmlessly.
	Copying BufferMode = iota

	// ZeroCopy submits working buffers to the Conn directly, eliminating
	// the copy. The caller must drive every submitted operation to
	// completion: abandoning one (for example by cancelling its context and
	// discarding the stream) leaves the Conn referencing memory the caller
	// may free or reuse. That precondition is the caller's responsibility;
	// it is documented, not guarded.
	ZeroCopy
)

func (m BufferMode) String() string {
	switch m {
	case Copying:
		return "copying"
	case ZeroCopy:
		return "zero-copy"
	default:
		return "invalid"
	}
}

// DefaultBufferSize is the size of buffers handed out by a [Pool] when no
// larger size is requested. It fits the largest record of the secure stream
// layer with room to spare.
const DefaultBufferSize = 32 * 1024

// maxFree bounds the free list so a burst of large acquisitions does not pin
// memory forever.
const maxFree = 8

// Pool hands out byte buffers for submission to a [Conn] and takes them back
// for reuse.
//
// Release must only be called with buffers the caller exclusively owns: a
// buffer abandoned inside an in-flight operation must never be released.
// Leaking it is the correct behavior, and is what keeps [Copying] mode safe.
type Pool struct {
	mu      sync.Mutex
	free    [][]byte
	bufSize int
}

// NewPool creates a Pool whose buffers are at least bufSize bytes long.
// A bufSize of zero or less selects [DefaultBufferSize].
func NewPool(bufSize int) *Pool {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Pool{bufSize: bufSize}
}

// Acquire returns a buffer of at least min bytes that the caller exclusively
// owns. The buffer's content is unspecified.
func (p *Pool) Acquire(min int) []byte {
	size := p.bufSize
	if min > size {
		size = min
	}
	p.mu.Lock()
	for i := len(p.free) - 1; i >= 0; i-- {
		if b := p.free[i]; cap(b) >= min {
			p.free = append(p.free[:i], p.free[i+1:]...)
			p.mu.Unlock()
			return b[:cap(b)]
		}
	}
	p.mu.Unlock()
	return make([]byte, size)
}

// Release returns a buffer to the pool. The caller must hold unique
// ownership of b, with no operation in flight on it.
func (p *Pool) Release(b []byte) {
	if cap(b) == 0 {
		return
	}
	p.mu.Lock()
	if len(p.free) < maxFree {
		p.free = append(p.free, b[:cap(b)])
	}
	p.mu.Unlock()
}
