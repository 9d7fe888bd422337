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

// Engine is a sans-io protocol state machine: it encrypts, decrypts and
// tracks session state, but never touches a connection. [Stream] owns all
// I/O and treats the engine as opaque, relying only on this contract.
//
// Any call may discover a protocol failure. Once an engine has failed it
// must stay failed: every subsequent call returns the original error
// without attempting further protocol work.
type Engine interface {
	// FeedCiphertext offers bytes received from the transport to the
	// engine and reports how many were consumed. Partial consumption is
	// legal when the engine's intake is full; the caller retries with the
	// remainder after draining plaintext. Malformed or unauthentic input
	// fails the engine deterministically.
	FeedCiphertext(p []byte) (int, error)

	// ReadPlaintext copies decrypted bytes into p, in exactly the order
	// the peer sent them. It reports [transport.ErrWouldBlock] when no
	// more plaintext can be produced until more ciphertext is fed, and
	// io.EOF once the peer's close-notify has been consumed and all
	// earlier plaintext delivered.
	ReadPlaintext(p []byte) (int, error)

	// WritePlaintext accepts application bytes for encryption and reports
	// how many the engine has irrevocably committed to its ciphertext
	// output. Zero acceptance signals the pending output must be drained
	// with CiphertextToSend before more plaintext can be accepted.
	WritePlaintext(p []byte) (int, error)

	// CiphertextToSend moves pending ciphertext output into p. Zero means
	// nothing is waiting to be sent.
	CiphertextToSend(p []byte) (int, error)

	// Handshaking reports whether the session handshake is still in
	// progress.
	Handshaking() bool

	// WantsRead reports that the engine cannot progress the handshake
	// without more ciphertext from the peer.
	WantsRead() bool

	// WantsWrite reports that the engine has ciphertext waiting to be
	// sent.
	WantsWrite() bool

	// PeerClosed reports whether the peer's close-notify has been
	// received.
	PeerClosed() bool

	// SendCloseNotify queues the protocol's close-notify signal on the
	// ciphertext output. It does not perform I/O; the caller drains and
	// sends the result.
	SendCloseNotify()
}
