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

import (
	"context"
	"sync"
)

// Pipe creates a connected pair of completion-based conns: writes submitted
// to one side complete reads submitted to the other. It is the loopback
// transport used throughout the tests, playing the role net.Pipe plays for
// readiness-based code.
//
// The pipe buffers writes without bound, so submitted writes always complete
// immediately and in full.
func Pipe() (*PipeConn, *PipeConn) {
	a2b := newPipeBuffer()
	b2a := newPipeBuffer()
	a := &PipeConn{rd: b2a, wr: a2b}
	b := &PipeConn{rd: a2b, wr: b2a}
	return a, b
}

// PipeConn is one side of a [Pipe].
type PipeConn struct {
	rd *pipeBuffer
	wr *pipeBuffer
}

var _ Conn = (*PipeConn)(nil)

// SubmitRead implements [Conn].SubmitRead.
func (c *PipeConn) SubmitRead(ctx context.Context, buf []byte) (int, []byte, error) {
	n, err := c.rd.read(ctx, buf)
	return n, buf, err
}

// SubmitWrite implements [Conn].SubmitWrite.
func (c *PipeConn) SubmitWrite(ctx context.Context, buf []byte) (int, []byte, error) {
	n, err := c.wr.write(ctx, buf)
	return n, buf, err
}

// CloseRead implements [Conn].CloseRead.
func (c *PipeConn) CloseRead() error {
	c.rd.closeRead()
	return nil
}

// CloseWrite implements [Conn].CloseWrite. The peer observes end of stream
// once the buffered data is drained.
func (c *PipeConn) CloseWrite() error {
	c.wr.closeWrite()
	return nil
}

// Close implements [Conn].Close.
func (c *PipeConn) Close() error {
	c.wr.closeWrite()
	c.rd.closeRead()
	return nil
}

// pipeBuffer is one direction of a Pipe: an unbounded byte queue with
// end-of-stream and abandonment signalling.
type pipeBuffer struct {
	mu        sync.Mutex
	data      []byte
	writeDone bool
	readDone  bool
	notify    chan struct{}
}

func newPipeBuffer() *pipeBuffer {
	return &pipeBuffer{notify: make(chan struct{})}
}

// broadcastLocked wakes every blocked reader. Callers must hold mu.
func (b *pipeBuffer) broadcastLocked() {
	close(b.notify)
	b.notify = make(chan struct{})
}

func (b *pipeBuffer) write(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeDone || b.readDone {
		return 0, ErrClosed
	}
	b.data = append(b.data, p...)
	b.broadcastLocked()
	return len(p), nil
}

func (b *pipeBuffer) read(ctx context.Context, p []byte) (int, error) {
	for {
		b.mu.Lock()
		if b.readDone {
			b.mu.Unlock()
			return 0, ErrClosed
		}
		if len(b.data) > 0 {
			n := copy(p, b.data)
			rem := copy(b.data, b.data[n:])
			b.data = b.data[:rem]
			b.mu.Unlock()
			return n, nil
		}
		if b.writeDone {
			b.mu.Unlock()
			return 0, nil
		}
		ready := b.notify
		b.mu.Unlock()
		select {
		case <-ready:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

func (b *pipeBuffer) closeWrite() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.writeDone {
		b.writeDone = true
		b.broadcastLocked()
	}
}

func (b *pipeBuffer) closeRead() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.readDone {
		b.readDone = true
		b.broadcastLocked()
	}
}
