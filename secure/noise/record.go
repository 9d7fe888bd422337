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

package noise

// The wire format is a sequence of records:
//
//	[type: 1 byte][length: 2 bytes, big endian][payload: length bytes]
//
// Handshake payloads are Noise handshake messages; data and close-notify
// payloads are transport-cipher output (ciphertext plus tag).
const (
	recordTypeHandshake byte = 0x01
	recordTypeData      byte = 0x02
	recordTypeClose     byte = 0x03
)

const (
	headerSize = 3

	// maxPayloadSize bounds a single record's plaintext.
	maxPayloadSize = 16 * 1024

	// tagSize is the authentication overhead the transport cipher adds to
	// every payload.
	tagSize = 16

	maxCiphertextSize = maxPayloadSize + tagSize
	maxRecordSize     = headerSize + maxCiphertextSize

	// intakeLimit bounds the raw ciphertext the engine buffers ahead of
	// record parsing. It must fit a whole record, so a full intake always
	// contains at least one record the engine can consume.
	intakeLimit = 2 * maxRecordSize

	// outHighWater bounds the pending ciphertext output: once reached,
	// WritePlaintext stops accepting until the caller drains.
	outHighWater = 4 * maxRecordSize
)
