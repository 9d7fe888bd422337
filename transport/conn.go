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
	"net"
)

// Conn is a completion-based, bidirectional byte stream that supports
// half-open state.
//
// Ownership of the buffer passed to SubmitRead and SubmitWrite transfers to
// the Conn for the duration of the call. The Conn always hands the buffer
// back (same backing array) with the result. If the call returns a context
// error, the operation was abandoned rather than completed: it may still be
// running and may still touch the buffer, so the caller must treat the
// buffer as lost. See [BufferMode] for how higher layers deal with this.
type Conn interface {
	// SubmitRead submits a read of up to len(buf) bytes and waits for it to
	// complete. A completed read of zero bytes means the peer closed its
	// write side of the connection.
	SubmitRead(ctx context.Context, buf []byte) (n int, ret []byte, err error)

	// SubmitWrite submits a write of buf and waits for it to complete. The
	// operation may complete having written fewer than len(buf) bytes;
	// callers that need the full buffer on the wire must resubmit the
	// remainder.
	SubmitWrite(ctx context.Context, buf []byte) (n int, ret []byte, err error)

	// CloseRead closes the read end of the connection, allowing for the
	// release of resources. No more reads should happen.
	CloseRead() error

	// CloseWrite closes the write end of the connection. An EOF or FIN
	// signal may be sent to the connection target.
	CloseWrite() error

	// Close closes both ends. Any in-flight operation is unblocked and
	// completes with an error.
	Close() error
}

// Dialer provides a way to establish completion-based stream connections to
// a destination.
type Dialer interface {
	// DialStream connects to `raddr`.
	// `raddr` has the form "host:port", where "host" can be a domain name
	// or IP address.
	DialStream(ctx context.Context, raddr string) (Conn, error)
}

// FuncDialer is a [Dialer] that uses the given function to dial.
type FuncDialer func(ctx context.Context, raddr string) (Conn, error)

var _ Dialer = (FuncDialer)(nil)

// DialStream implements the [Dialer] interface.
func (f FuncDialer) DialStream(ctx context.Context, raddr string) (Conn, error) {
	return f(ctx, raddr)
}

// TCPDialer is a [Dialer] that connects over TCP and adapts the resulting
// connection with [AdaptConn].
type TCPDialer struct {
	// The net.Dialer used to create the connection on DialStream.
	Dialer net.Dialer
}

var _ Dialer = (*TCPDialer)(nil)

// DialStream implements [Dialer].DialStream using TCP.
func (d *TCPDialer) DialStream(ctx context.Context, raddr string) (Conn, error) {
	conn, err := d.Dialer.DialContext(ctx, "tcp", raddr)
	if err != nil {
		return nil, err
	}
	return AdaptConn(conn.(*net.TCPConn)), nil
}
