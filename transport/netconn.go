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
	"errors"
	"io"
	"net"
)

// NetConn adapts a readiness-based [net.Conn] to the completion-based
// [Conn] contract.
//
// Each submitted operation runs the blocking net.Conn call to completion.
// When the submitting context is cancelled first, SubmitRead and SubmitWrite
// return the context error while the blocking call keeps running on its own
// goroutine; that goroutine still references the submitted buffer, which is
// exactly the abandonment hazard described on [Conn] and [BufferMode].
// Closing the NetConn unblocks any such orphaned call.
type NetConn struct {
	conn net.Conn
}

var _ Conn = (*NetConn)(nil)

// AdaptConn wraps a [net.Conn] in a completion-based [NetConn].
func AdaptConn(conn net.Conn) *NetConn {
	return &NetConn{conn: conn}
}

type ioResult struct {
	n   int
	err error
}

// SubmitRead implements [Conn].SubmitRead. A read that completes at end of
// stream reports zero bytes with a nil error.
func (c *NetConn) SubmitRead(ctx context.Context, buf []byte) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, buf, err
	}
	done := make(chan ioResult, 1)
	go func() {
		n, err := c.conn.Read(buf)
		done <- ioResult{n, err}
	}()
	select {
	case r := <-done:
		if r.err == io.EOF {
			return r.n, buf, nil
		}
		return r.n, buf, r.err
	case <-ctx.Done():
		// The read is abandoned, not completed: it still owns buf.
		return 0, buf, ctx.Err()
	}
}

// SubmitWrite implements [Conn].SubmitWrite.
func (c *NetConn) SubmitWrite(ctx context.Context, buf []byte) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, buf, err
	}
	done := make(chan ioResult, 1)
	go func() {
		n, err := c.conn.Write(buf)
		done <- ioResult{n, err}
	}()
	select {
	case r := <-done:
		return r.n, buf, r.err
	case <-ctx.Done():
		return 0, buf, ctx.Err()
	}
}

// CloseRead implements [Conn].CloseRead. It is a no-op for connections that
// cannot close only their read end.
func (c *NetConn) CloseRead() error {
	if cr, ok := c.conn.(interface{ CloseRead() error }); ok {
		return cr.CloseRead()
	}
	return nil
}

// CloseWrite implements [Conn].CloseWrite. It is a no-op for connections
// that cannot close only their write end; the FIN, if any, goes out on
// Close.
func (c *NetConn) CloseWrite() error {
	if cw, ok := c.conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

// Close implements [Conn].Close.
func (c *NetConn) Close() error {
	err := c.conn.Close()
	if err != nil && errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return err
}
