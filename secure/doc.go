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
Package secure provides an encrypted, ordered byte stream over any
completion-based [transport.Conn].

The protocol logic lives entirely in an [Engine]: a sans-io state machine
that consumes and produces opaque byte buffers (ciphertext in, plaintext
out, and vice versa) and performs no I/O of its own. [Stream] is the
adapter that wires an Engine to a transport: it drives the handshake,
services reads by feeding received ciphertext to the engine and draining
decrypted plaintext, services writes by feeding plaintext and shipping the
produced ciphertext, and performs the close-notify exchange on shutdown.

A Stream is itself a [transport.Conn], so secured streams compose with
anything that speaks the completion-based contract.

Clean closes and abrupt disconnects are distinct outcomes: a read that ends
because the peer sent its close-notify completes with zero bytes, while a
transport that goes away mid-stream surfaces [ErrAbruptClose]. Conflating
the two would hide truncation from the caller.

Package [github.com/Kingtous/monoio-tls/secure/noise] provides a concrete
Engine.
*/
package secure
