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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestNetConnRoundTrip(t *testing.T) {
	netLeft, netRight := net.Pipe()
	left, right := AdaptConn(netLeft), AdaptConn(netRight)
	defer left.Close()
	defer right.Close()
	ctx := context.Background()

	var g errgroup.Group
	g.Go(func() error {
		_, _, err := left.SubmitWrite(ctx, []byte("hello"))
		return err
	})
	buf := make([]byte, 16)
	n, buf, err := right.SubmitRead(ctx, buf)
	require.NoError(t, err)
	require.NoError(t, g.Wait())
	require.Equal(t, "hello", string(buf[:n]))
}

func TestNetConnEOFIsZeroByteCompletion(t *testing.T) {
	netLeft, netRight := net.Pipe()
	right := AdaptConn(netRight)
	defer right.Close()

	require.NoError(t, netLeft.Close())
	n, _, err := right.SubmitRead(context.Background(), make([]byte, 16))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNetConnAbandonedRead(t *testing.T) {
	netLeft, netRight := net.Pipe()
	right := AdaptConn(netRight)
	defer netLeft.Close()
	defer right.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := right.SubmitRead(ctx, make([]byte, 16))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// closedNetConn reports net.ErrClosed from Close, like an already-closed
// *net.TCPConn does.
type closedNetConn struct {
	net.Conn
}

func (closedNetConn) Close() error {
	return &net.OpError{Op: "close", Net: "tcp", Err: net.ErrClosed}
}

func TestNetConnCloseMapsErrClosed(t *testing.T) {
	conn := AdaptConn(closedNetConn{})
	require.ErrorIs(t, conn.Close(), ErrClosed)
}

func TestTCPDialer(t *testing.T) {
	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err, "Failed to create TCP listener: %v", err)
	defer listener.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		conn, err := listener.AcceptTCP()
		require.NoError(t, err)
		defer conn.Close()
		buf := make([]byte, 16)
		n, err := conn.Read(buf)
		require.NoError(t, err)
		_, err = conn.Write(buf[:n])
		require.NoError(t, err)
	}()

	ctx := context.Background()
	dialer := &TCPDialer{}
	conn, err := dialer.DialStream(ctx, listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = conn.SubmitWrite(ctx, []byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, buf, err := conn.SubmitRead(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
	<-serverDone
}
