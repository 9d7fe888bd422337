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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeRoundTrip(t *testing.T) {
	left, right := Pipe()
	ctx := context.Background()

	n, _, err := left.SubmitWrite(ctx, []byte("ping"))
	require.NoError(t, err)
	require.Equal(t, 4, n)

	buf := make([]byte, 16)
	n, buf, err = right.SubmitRead(ctx, buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))
}

func TestPipeCloseWriteDrainsThenEOF(t *testing.T) {
	left, right := Pipe()
	ctx := context.Background()

	_, _, err := left.SubmitWrite(ctx, []byte("last words"))
	require.NoError(t, err)
	require.NoError(t, left.CloseWrite())

	buf := make([]byte, 64)
	n, buf, err := right.SubmitRead(ctx, buf)
	require.NoError(t, err)
	require.Equal(t, "last words", string(buf[:n]))

	// Buffered data is gone; a zero-byte completion signals EOF.
	n, _, err = right.SubmitRead(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPipeReadAbandonedOnCancel(t *testing.T) {
	_, right := Pipe()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, _, err := right.SubmitRead(ctx, make([]byte, 16))
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("read did not return after cancellation")
	}
}

func TestPipeWriteAfterCloseFails(t *testing.T) {
	left, _ := Pipe()
	require.NoError(t, left.Close())
	_, _, err := left.SubmitWrite(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrClosed)
}

func TestPipeCloseUnblocksPendingRead(t *testing.T) {
	_, right := Pipe()

	done := make(chan error, 1)
	go func() {
		_, _, err := right.SubmitRead(context.Background(), make([]byte, 16))
		done <- err
	}()

	// Let the read block, then tear the endpoint down underneath it.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, right.Close())
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("read did not return after close")
	}
}
