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

/*
Package transport defines a completion-based I/O model for byte streams.

In the usual readiness-based model (net.Conn), the caller keeps ownership of
its buffer at all times and the connection merely fills or drains it. In the
completion-based model used here, the caller hands ownership of a buffer to
the connection when it submits an operation, and receives that exact buffer
back, together with the result, only when the operation completes:

	n, buf, err := conn.SubmitRead(ctx, buf)

Between submission and completion the buffer belongs to the connection and
must not be read or mutated by the caller. This mirrors how io_uring-style
runtimes "rent" buffers to the kernel, and it is the contract every type in
this package is built around.

The package provides the [Conn] contract itself, a [NetConn] bridge that
adapts any net.Conn to it, an in-memory [Pipe] pair for tests, and a [Pool]
of reusable buffers together with the two [BufferMode] ownership policies
(copying and zero-copy) used by layers that submit buffers to a Conn.
*/
package transport
