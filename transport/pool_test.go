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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolReusesReleasedBuffer(t *testing.T) {
	pool := NewPool(0)
	b1 := pool.Acquire(0)
	require.Equal(t, DefaultBufferSize, len(b1))
	pool.Release(b1)
	b2 := pool.Acquire(0)
	require.Same(t, &b1[0], &b2[0], "released buffer was not reused")
}

func TestPoolAcquireMinSize(t *testing.T) {
	pool := NewPool(16)
	b := pool.Acquire(1024)
	require.GreaterOrEqual(t, len(b), 1024)

	// A buffer too small for the request must not be handed out.
	pool.Release(make([]byte, 16))
	b = pool.Acquire(2048)
	require.GreaterOrEqual(t, len(b), 2048)
}

func TestPoolLeakedBufferStaysOut(t *testing.T) {
	pool := NewPool(64)
	leaked := pool.Acquire(0)
	// Never released: simulates a buffer abandoned inside an in-flight
	// operation. The pool must not hand it out again.
	for i := 0; i < 16; i++ {
		b := pool.Acquire(0)
		require.NotSame(t, &leaked[0], &b[0])
	}
}

func TestBufferModeString(t *testing.T) {
	require.Equal(t, "copying", Copying.String())
	require.Equal(t, "zero-copy", ZeroCopy.String())
}
