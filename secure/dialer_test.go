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

package secure_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Kingtous/monoio-tls/secure"
	"github.com/Kingtous/monoio-tls/secure/noise"
	"github.com/Kingtous/monoio-tls/transport"
)

func TestNewStreamDialerNilArguments(t *testing.T) {
	_, err := secure.NewStreamDialer(nil, noise.ClientFactory(testSecret))
	require.Error(t, err)
	_, err = secure.NewStreamDialer(&transport.TCPDialer{}, nil)
	require.Error(t, err)
}

func TestStreamDialerEcho(t *testing.T) {
	clientConn, serverConn := transport.Pipe()
	baseDialer := transport.FuncDialer(func(ctx context.Context, raddr string) (transport.Conn, error) {
		assert.Equal(t, "secure.example:443", raddr)
		return clientConn, nil
	})
	dialer, err := secure.NewStreamDialer(baseDialer, noise.ClientFactory(testSecret))
	require.NoError(t, err)

	// Echo server on the other end of the pipe.
	var g errgroup.Group
	g.Go(func() error {
		ctx := context.Background()
		server, err := secure.WrapConn(ctx, serverConn, noise.ServerFactory(testSecret))
		if err != nil {
			return err
		}
		buf := make([]byte, 64)
		n, buf, err := server.SubmitRead(ctx, buf)
		if err != nil {
			return err
		}
		if err := writeFull(ctx, server, buf[:n]); err != nil {
			return err
		}
		return server.Shutdown(ctx)
	})

	ctx := context.Background()
	conn, err := dialer.DialStream(ctx, "secure.example:443")
	require.NoError(t, err)
	require.NoError(t, writeFull(ctx, conn.(*secure.Stream), []byte("echo me")))
	got, err := readFull(ctx, conn.(*secure.Stream), 7)
	require.NoError(t, err)
	require.NoError(t, g.Wait())
	require.Equal(t, "echo me", string(got))
	require.NoError(t, conn.CloseWrite())
}

func TestWrapConnHandshakeFailure(t *testing.T) {
	clientConn, _ := transport.Pipe()
	require.NoError(t, clientConn.CloseWrite())

	// A conn whose write side is gone cannot carry the handshake.
	_, err := secure.WrapConn(context.Background(), clientConn, noise.ClientFactory(testSecret))
	require.Error(t, err)
}
