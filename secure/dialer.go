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

	"github.com/Kingtous/monoio-tls/transport"
)

// EngineFactory creates a fresh [Engine] for each new connection.
type EngineFactory func() (Engine, error)

// StreamDialer is a [transport.Dialer] that secures the connections of an
// inner dialer with a protocol engine.
type StreamDialer struct {
	// dialer provides the underlying connection to be wrapped.
	dialer transport.Dialer
	// newEngine creates the per-connection protocol engine.
	newEngine EngineFactory
	// options to configure each Stream.
	opts []Option
}

var _ transport.Dialer = (*StreamDialer)(nil)

// NewStreamDialer creates a [StreamDialer] that wraps the connections from
// the baseDialer with secure streams driven by engines from newEngine.
func NewStreamDialer(baseDialer transport.Dialer, newEngine EngineFactory, opts ...Option) (*StreamDialer, error) {
	if baseDialer == nil {
		return nil, errors.New("base dialer must not be nil")
	}
	if newEngine == nil {
		return nil, errors.New("engine factory must not be nil")
	}
	return &StreamDialer{baseDialer, newEngine, opts}, nil
}

// DialStream implements [transport.Dialer].DialStream.
func (d *StreamDialer) DialStream(ctx context.Context, raddr string) (transport.Conn, error) {
	innerConn, err := d.dialer.DialStream(ctx, raddr)
	if err != nil {
		return nil, err
	}
	conn, err := WrapConn(ctx, innerConn, d.newEngine, d.opts...)
	if err != nil {
		innerConn.Close()
		return nil, err
	}
	return conn, nil
}

// WrapConn wraps a [transport.Conn] in a secure stream and performs the
// handshake before returning it.
func WrapConn(ctx context.Context, conn transport.Conn, newEngine EngineFactory, opts ...Option) (*Stream, error) {
	engine, err := newEngine()
	if err != nil {
		return nil, err
	}
	s := NewStream(conn, engine, opts...)
	if err := s.Handshake(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
