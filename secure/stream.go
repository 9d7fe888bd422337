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

package secure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Kingtous/monoio-tls/transport"
)

// State enumerates a stream's connection lifecycle.
type State int

const (
	StateHandshaking State = iota
	StateEstablished
	StateCloseNotifySent
	StateCloseNotifyReceived
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	case StateCloseNotifySent:
		return "close-notify sent"
	case StateCloseNotifyReceived:
		return "close-notify received"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Stream adapts a sans-io [Engine] to a completion-based [transport.Conn],
// and is itself a [transport.Conn] carrying the decrypted byte stream.
//
// All operations on one direction are serialized: at most one read and one
// write (or handshake/flush/shutdown) make progress at a time. Every
// suspension point is a buffer-ownership transfer to the underlying
// transport; the stream enforces no timeouts of its own, deadlines belong
// to the submitted contexts.
type Stream struct {
	conn   transport.Conn
	engine Engine
	pool   *transport.Pool
	mode   transport.BufferMode

	// waitPeerClose selects full bidirectional shutdown.
	waitPeerClose bool

	mu            sync.Mutex
	state         State
	failure       error
	readShut      bool
	locallyClosed bool

	readMu  sync.Mutex
	writeMu sync.Mutex

	hsMu   sync.Mutex
	hsDone bool

	// Working buffers. In ZeroCopy mode these are submitted to the
	// transport directly and poisoned (dropped, never recycled) if an
	// operation is abandoned mid-flight.
	rbuf []byte
	wbuf []byte

	// Ciphertext the engine has not consumed yet, kept for the
	// retry-with-remainder path of FeedCiphertext.
	stash []byte
}

var _ transport.Conn = (*Stream)(nil)

// Option configures a [Stream].
type Option func(*Stream)

// WithBufferMode selects how the stream's working buffers are submitted to
// the transport. The default is [transport.Copying]; see
// [transport.ZeroCopy] for the precondition the caller takes on when opting
// out of the copy.
func WithBufferMode(mode transport.BufferMode) Option {
	return func(s *Stream) { s.mode = mode }
}

// WithPool sets the buffer pool used for transport operations.
func WithPool(pool *transport.Pool) Option {
	return func(s *Stream) { s.pool = pool }
}

// WithWaitForPeerClose makes Shutdown wait for the peer's close-notify
// after sending its own (full bidirectional shutdown). The default is to
// send and move on (half-close).
func WithWaitForPeerClose() Option {
	return func(s *Stream) { s.waitPeerClose = true }
}

// NewStream wraps a completion-based connection and a protocol engine in a
// secure stream. The handshake runs lazily before the first read or write
// completes, or explicitly via [Stream.Handshake].
func NewStream(conn transport.Conn, engine Engine, opts ...Option) *Stream {
	s := &Stream{conn: conn, engine: engine, state: StateHandshaking}
	for _, opt := range opts {
		opt(s)
	}
	if s.pool == nil {
		s.pool = transport.NewPool(0)
	}
	return s
}

// State reports the stream's connection state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// abandoned reports whether a transport operation was abandoned before
// completion, leaving the submitted buffer in the transport's hands.
func abandoned(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (s *Stream) failedErrLocked() error {
	return fmt.Errorf("%w: %w", ErrStreamFailed, s.failure)
}

// fail moves the stream to StateFailed, recording err as the cause. The
// first failing operation reports err itself; everything after reports
// [ErrStreamFailed] wrapping it.
func (s *Stream) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFailed {
		s.state = StateFailed
		s.failure = err
	}
	return err
}

func (s *Stream) readOpErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFailed {
		return s.failedErrLocked()
	}
	if s.locallyClosed || s.readShut {
		return ErrClosed
	}
	return nil
}

func (s *Stream) writeOpErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFailed {
		return s.failedErrLocked()
	}
	if s.locallyClosed || s.state == StateCloseNotifySent || s.state == StateClosed {
		return ErrClosed
	}
	return nil
}

// hsWrap marks engine-reported failures that happen before the handshake
// completes, so callers can tell a rejected handshake from a transport
// failure.
func (s *Stream) hsWrap(err error) error {
	if !s.hsDone {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	return err
}

// Handshake drives the engine through the session handshake. It is a no-op
// once the handshake has completed; it is invoked lazily by the first read
// or write.
func (s *Stream) Handshake(ctx context.Context) error {
	s.hsMu.Lock()
	defer s.hsMu.Unlock()
	if s.hsDone {
		return nil
	}
	s.mu.Lock()
	if s.state == StateFailed {
		err := s.failedErrLocked()
		s.mu.Unlock()
		return err
	}
	if s.locallyClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	trace := GetHandshakeTrace(ctx)
	if trace != nil && trace.HandshakeStart != nil {
		trace.HandshakeStart()
	}
	err := s.runHandshake(ctx)
	if trace != nil && trace.HandshakeDone != nil {
		trace.HandshakeDone(err)
	}
	if err != nil {
		return s.fail(err)
	}
	s.hsDone = true
	s.mu.Lock()
	if s.state == StateHandshaking {
		s.state = StateEstablished
	}
	s.mu.Unlock()
	return nil
}

func (s *Stream) runHandshake(ctx context.Context) error {
	for s.engine.Handshaking() {
		switch {
		case s.engine.WantsWrite():
			if err := s.flushOutput(ctx); err != nil {
				return err
			}
		case s.engine.WantsRead():
			n, err := s.readIO(ctx)
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrUnexpectedEOF
			}
		default:
			// The engine wants neither direction yet claims to still be
			// handshaking.
			return ErrProtocol
		}
	}
	// The side that finishes the exchange by sending still has its final
	// message sitting in the engine's output.
	return s.flushOutput(ctx)
}

// SubmitRead implements [transport.Conn].SubmitRead with decrypted bytes.
// It completes once at least one byte is available. A completed read of
// zero bytes means the peer ended the stream cleanly with its close-notify;
// a transport that ends before that fails the read with [ErrAbruptClose].
func (s *Stream) SubmitRead(ctx context.Context, buf []byte) (int, []byte, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()
	if err := s.readOpErr(); err != nil {
		return 0, buf, err
	}
	if err := s.Handshake(ctx); err != nil {
		return 0, buf, err
	}
	if len(buf) == 0 {
		return 0, buf, nil
	}
	for {
		if err := s.feedStash(); err != nil {
			return 0, buf, s.fail(err)
		}
		n, err := s.engine.ReadPlaintext(buf)
		if n > 0 {
			return n, buf, nil
		}
		switch {
		case err == nil, errors.Is(err, transport.ErrWouldBlock):
			// Need more ciphertext.
		case errors.Is(err, io.EOF):
			s.noteCleanClose()
			return 0, buf, nil
		default:
			return 0, buf, s.fail(err)
		}
		if len(s.stash) > 0 {
			// The engine consumed nothing and produced nothing: stalled.
			return 0, buf, s.fail(ErrProtocol)
		}
		m, err := s.readIO(ctx)
		if err != nil {
			return 0, buf, s.fail(err)
		}
		if m == 0 {
			return 0, buf, s.fail(ErrAbruptClose)
		}
	}
}

// noteCleanClose records that the peer's close-notify was consumed.
func (s *Stream) noteCleanClose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateCloseNotifySent:
		s.state = StateClosed
	case StateFailed, StateClosed, StateCloseNotifyReceived:
	default:
		s.state = StateCloseNotifyReceived
	}
}

// SubmitWrite implements [transport.Conn].SubmitWrite with plaintext bytes.
// The completed count covers only bytes the engine has irrevocably
// committed to ciphertext output; the produced ciphertext is shipped to the
// transport before the call returns.
func (s *Stream) SubmitWrite(ctx context.Context, buf []byte) (int, []byte, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.writeOpErr(); err != nil {
		return 0, buf, err
	}
	if err := s.Handshake(ctx); err != nil {
		return 0, buf, err
	}
	if len(buf) == 0 {
		return 0, buf, nil
	}
	n, err := s.engine.WritePlaintext(buf)
	if err != nil {
		return 0, buf, s.fail(err)
	}
	if n == 0 {
		// Engine output is full: drain it to make room, then retry.
		if err := s.flushOutput(ctx); err != nil {
			return 0, buf, s.fail(err)
		}
		n, err = s.engine.WritePlaintext(buf)
		if err != nil {
			return 0, buf, s.fail(err)
		}
		if n == 0 {
			return 0, buf, s.fail(ErrProtocol)
		}
	}
	if err := s.flushOutput(ctx); err != nil {
		return n, buf, s.fail(err)
	}
	return n, buf, nil
}

// Flush writes out any ciphertext the engine is still holding.
func (s *Stream) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.writeOpErr(); err != nil {
		return err
	}
	if !s.handshakeDone() {
		return nil
	}
	if err := s.flushOutput(ctx); err != nil {
		return s.fail(err)
	}
	return nil
}

func (s *Stream) handshakeDone() bool {
	s.hsMu.Lock()
	defer s.hsMu.Unlock()
	return s.hsDone
}

// Shutdown performs the graceful close: it sends the close-notify, drains
// it to the transport and closes the transport's write direction. With
// [WithWaitForPeerClose] it then reads until the peer's close-notify
// arrives, discarding data; otherwise it returns immediately after the
// half-close.
func (s *Stream) Shutdown(ctx context.Context) error {
	s.writeMu.Lock()
	s.mu.Lock()
	if s.state == StateFailed {
		err := s.failedErrLocked()
		s.mu.Unlock()
		s.writeMu.Unlock()
		return err
	}
	if s.locallyClosed {
		s.mu.Unlock()
		s.writeMu.Unlock()
		return ErrClosed
	}
	alreadySent := s.state == StateCloseNotifySent || s.state == StateClosed
	s.mu.Unlock()

	if !alreadySent {
		if s.handshakeDone() {
			s.engine.SendCloseNotify()
			if err := s.flushOutput(ctx); err != nil {
				s.writeMu.Unlock()
				return s.fail(err)
			}
		}
		s.mu.Lock()
		switch s.state {
		case StateCloseNotifyReceived:
			s.state = StateClosed
		case StateHandshaking, StateEstablished:
			s.state = StateCloseNotifySent
		}
		s.mu.Unlock()
	}
	cwErr := s.conn.CloseWrite()
	wait := s.waitPeerClose && s.handshakeDone()
	s.writeMu.Unlock()

	if wait && cwErr == nil {
		if err := s.awaitPeerClose(ctx); err != nil {
			return err
		}
	}
	return cwErr
}

// awaitPeerClose reads and discards until the peer's close-notify. An
// abrupt peer disconnect ends the wait without error: the shutdown already
// did everything it could.
func (s *Stream) awaitPeerClose(ctx context.Context) error {
	if s.engine.PeerClosed() {
		return nil
	}
	buf := s.pool.Acquire(0)
	defer func() { s.pool.Release(buf) }()
	for {
		n, ret, err := s.SubmitRead(ctx, buf)
		buf = ret
		if errors.Is(err, ErrAbruptClose) || errors.Is(err, ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// CloseRead implements [transport.Conn].CloseRead.
func (s *Stream) CloseRead() error {
	s.mu.Lock()
	s.readShut = true
	s.mu.Unlock()
	return s.conn.CloseRead()
}

// CloseWrite implements [transport.Conn].CloseWrite as a graceful
// [Stream.Shutdown] with a background context.
func (s *Stream) CloseWrite() error {
	return s.Shutdown(context.Background())
}

// Close implements [transport.Conn].Close. It closes the transport without
// a close-notify: the recognized abrupt-termination path. Peers reading at
// that moment observe [ErrAbruptClose], not a clean end of stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.state != StateFailed {
		s.state = StateClosed
	}
	s.locallyClosed = true
	s.mu.Unlock()
	return s.conn.Close()
}

// feedStash retries ciphertext the engine previously left unconsumed. It
// stops without error when the engine's intake is still full.
func (s *Stream) feedStash() error {
	for len(s.stash) > 0 {
		n, err := s.engine.FeedCiphertext(s.stash)
		if err != nil {
			return s.hsWrap(err)
		}
		if n == 0 {
			return nil
		}
		rem := copy(s.stash, s.stash[n:])
		s.stash = s.stash[:rem]
	}
	s.stash = nil
	return nil
}

// readIO submits one transport read and feeds the received ciphertext to
// the engine. It reports the number of ciphertext bytes received; zero
// means the transport reached end of stream.
func (s *Stream) readIO(ctx context.Context) (int, error) {
	var buf []byte
	transfer := s.mode == transport.Copying
	if transfer {
		buf = s.pool.Acquire(0)
	} else {
		if s.rbuf == nil {
			s.rbuf = s.pool.Acquire(0)
		}
		buf = s.rbuf
	}
	n, ret, err := s.conn.SubmitRead(ctx, buf)
	if err != nil {
		if abandoned(err) {
			// The abandoned operation still owns the buffer: leak it.
			if !transfer {
				s.rbuf = nil
			}
			return 0, err
		}
		if transfer {
			s.pool.Release(ret)
		}
		return 0, err
	}
	if !transfer {
		s.rbuf = ret
	}
	data := ret[:n]
	for len(data) > 0 {
		m, ferr := s.engine.FeedCiphertext(data)
		if ferr != nil {
			if transfer {
				s.pool.Release(ret)
			}
			return 0, s.hsWrap(ferr)
		}
		if m == 0 {
			// Intake full; keep the remainder for the next round.
			s.stash = append(s.stash, data...)
			break
		}
		data = data[m:]
	}
	if transfer {
		s.pool.Release(ret)
	}
	return n, nil
}

// flushOutput drains the engine's pending ciphertext and writes all of it
// to the transport.
func (s *Stream) flushOutput(ctx context.Context) error {
	if s.wbuf == nil {
		s.wbuf = s.pool.Acquire(0)
	}
	for {
		n, err := s.engine.CiphertextToSend(s.wbuf)
		if err != nil {
			return s.hsWrap(err)
		}
		if n == 0 {
			return nil
		}
		if err := s.writeAll(ctx, s.wbuf[:n]); err != nil {
			return err
		}
	}
}

// writeAll submits data until the transport has taken all of it, honoring
// the buffer mode. Transport writes may complete short; the remainder is
// resubmitted.
func (s *Stream) writeAll(ctx context.Context, data []byte) error {
	for len(data) > 0 {
		if s.mode == transport.Copying {
			tbuf := s.pool.Acquire(len(data))
			m := copy(tbuf, data)
			n, ret, err := s.conn.SubmitWrite(ctx, tbuf[:m])
			if err != nil {
				if !abandoned(err) {
					s.pool.Release(ret)
				}
				return err
			}
			s.pool.Release(ret)
			data = data[n:]
		} else {
			n, ret, err := s.conn.SubmitWrite(ctx, data)
			if err != nil {
				if abandoned(err) {
					s.wbuf = nil
				}
				return err
			}
			data = ret[n:]
		}
	}
	return nil
}
