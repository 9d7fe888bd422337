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
	"errors"
	"fmt"
	"io"
	"net"
)

// Portable analogs of the stream's terminal conditions.
//
// Errors returned from this package may be tested against these errors with
// [errors.Is]. Transport failures are propagated verbatim and carry no
// sentinel of their own.
var (
	// ErrHandshake wraps any engine failure that occurs before the
	// handshake completes.
	ErrHandshake = errors.New("session handshake failed")

	// ErrProtocol is returned when the engine violates its own contract,
	// for example by wanting neither to read nor to write while still
	// handshaking.
	ErrProtocol = errors.New("protocol engine cannot make progress")

	// ErrUnexpectedEOF is returned when the transport reaches end of
	// stream in the middle of the handshake.
	ErrUnexpectedEOF = fmt.Errorf("connection closed during handshake: %w", io.ErrUnexpectedEOF)

	// ErrAbruptClose is returned by a read when the transport reaches end
	// of stream before the peer's close-notify: the stream was cut off
	// mid-data rather than ended cleanly. A clean end of stream is a
	// zero-byte read, never this error.
	ErrAbruptClose = fmt.Errorf("peer closed connection without close-notify: %w", io.ErrUnexpectedEOF)

	// ErrStreamFailed is returned by every operation after the stream has
	// failed. It wraps the original cause, so both
	// errors.Is(err, ErrStreamFailed) and errors.Is(err, cause) hold.
	ErrStreamFailed = errors.New("stream has already failed")

	// ErrClosed is returned by operations on a stream that was closed
	// locally.
	ErrClosed = fmt.Errorf("stream is closed: %w", net.ErrClosed)
)
