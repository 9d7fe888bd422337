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
	"errors"
	"fmt"
	"net"
)

// Portable analogs of some common errors.
//
// Errors returned from this package and all sub-packages may be tested
// against these errors with [errors.Is].
var (
	// ErrClosed is the error returned by an operation submitted to a
	// connection that has already been closed, or that is closed by another
	// goroutine before the operation completes. This may be wrapped in
	// another error, and should normally be tested using
	// errors.Is(err, transport.ErrClosed).
	ErrClosed = fmt.Errorf("transport connection is closed: %w", net.ErrClosed)

	// ErrWouldBlock reports that an operation cannot make progress right now
	// without waiting. It is a non-failure control-flow signal, not an
	// error condition: the caller should produce the input the operation is
	// waiting for and retry.
	ErrWouldBlock = errors.New("operation would block")
)
