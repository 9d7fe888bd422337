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

// Package noise implements a sans-io [secure.Engine] over the Noise
// NNpsk0 handshake (X25519, ChaCha20-Poly1305, SHA-256) with a
// length-prefixed record layer. The engine performs no I/O: it consumes
// ciphertext fed by the caller and produces ciphertext for the caller to
// send, which is what lets [secure.Stream] drive it over any
// completion-based transport.
package noise

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/flynn/noise"

	"github.com/Kingtous/monoio-tls/secure"
	"github.com/Kingtous/monoio-tls/transport"
)

// defaultPrologue binds the record-layer version into the handshake hash.
var defaultPrologue = []byte("monoio-tls noise v1")

var (
	errRecordOversize        = errors.New("record length exceeds maximum")
	errUnexpectedHandshake   = errors.New("handshake record after handshake completion")
	errRecordBeforeHandshake = errors.New("application record during handshake")
	errRecordAfterClose      = errors.New("record received after close-notify")
	errWriteBeforeHandshake  = errors.New("plaintext write before handshake completion")
	errWriteAfterClose       = errors.New("plaintext write after close-notify")
)

// Config holds the parameters for an [Engine].
type Config struct {
	// Initiator selects the side that sends the first handshake message
	// (the "client").
	Initiator bool
	// PresharedKey is the symmetric key both peers must share, exactly
	// [PresharedKeySize] bytes. Derive one with [NewPresharedKey].
	PresharedKey []byte
	// Prologue optionally binds application context into the handshake.
	// Both peers must use the same value. Empty selects a default.
	Prologue []byte
}

// Engine is a sans-io session state machine implementing [secure.Engine].
// It is not safe for concurrent use; [secure.Stream] already serializes
// its calls.
type Engine struct {
	initiator bool
	hs        *noise.HandshakeState
	send      *noise.CipherState
	recv      *noise.CipherState

	// intake holds raw ciphertext ahead of record parsing, staging holds
	// decrypted bytes not yet read, out holds ciphertext not yet sent.
	intake  []byte
	staging []byte
	out     []byte

	hsDone      bool
	peerClosed  bool
	closeQueued bool
	failure     error
}

var _ secure.Engine = (*Engine)(nil)

// NewEngine creates an engine ready to hand to [secure.NewStream].
func NewEngine(cfg Config) (*Engine, error) {
	if len(cfg.PresharedKey) != PresharedKeySize {
		return nil, fmt.Errorf("preshared key must be %v bytes, got %v", PresharedKeySize, len(cfg.PresharedKey))
	}
	prologue := cfg.Prologue
	if len(prologue) == 0 {
		prologue = defaultPrologue
	}
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:           noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256),
		Random:                rand.Reader,
		Pattern:               noise.HandshakeNN,
		Initiator:             cfg.Initiator,
		Prologue:              prologue,
		PresharedKey:          cfg.PresharedKey,
		PresharedKeyPlacement: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create handshake state: %w", err)
	}
	e := &Engine{initiator: cfg.Initiator, hs: hs}
	if cfg.Initiator {
		// The first handshake message is queued up front, so a fresh
		// client engine immediately wants to write.
		if err := e.writeHandshakeMessage(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// NewClientEngine creates an initiator engine keyed from secret.
func NewClientEngine(secret string) (*Engine, error) {
	key, err := NewPresharedKey(secret)
	if err != nil {
		return nil, err
	}
	return NewEngine(Config{Initiator: true, PresharedKey: key})
}

// NewServerEngine creates a responder engine keyed from secret.
func NewServerEngine(secret string) (*Engine, error) {
	key, err := NewPresharedKey(secret)
	if err != nil {
		return nil, err
	}
	return NewEngine(Config{PresharedKey: key})
}

// ClientFactory returns a [secure.EngineFactory] producing client engines
// keyed from secret.
func ClientFactory(secret string) secure.EngineFactory {
	return func() (secure.Engine, error) { return NewClientEngine(secret) }
}

// ServerFactory returns a [secure.EngineFactory] producing server engines
// keyed from secret.
func ServerFactory(secret string) secure.EngineFactory {
	return func() (secure.Engine, error) { return NewServerEngine(secret) }
}

func (e *Engine) fail(err error) error {
	if e.failure == nil {
		e.failure = err
	}
	return e.failure
}

// FeedCiphertext implements [secure.Engine].FeedCiphertext. Consumption is
// bounded by the intake limit; the remainder must be offered again after
// the staged plaintext is drained.
func (e *Engine) FeedCiphertext(p []byte) (int, error) {
	if e.failure != nil {
		return 0, e.failure
	}
	space := intakeLimit - len(e.intake)
	if space < 0 {
		space = 0
	}
	n := len(p)
	if n > space {
		n = space
	}
	e.intake = append(e.intake, p[:n]...)
	if err := e.processIntake(); err != nil {
		return 0, e.fail(err)
	}
	return n, nil
}

// processIntake parses and handles every complete record in the intake.
func (e *Engine) processIntake() error {
	for {
		if len(e.intake) < headerSize {
			return nil
		}
		length := int(binary.BigEndian.Uint16(e.intake[1:3]))
		if length > maxCiphertextSize {
			return errRecordOversize
		}
		total := headerSize + length
		if len(e.intake) < total {
			return nil
		}
		typ := e.intake[0]
		if err := e.handleRecord(typ, e.intake[headerSize:total]); err != nil {
			return err
		}
		rem := copy(e.intake, e.intake[total:])
		e.intake = e.intake[:rem]
	}
}

func (e *Engine) handleRecord(typ byte, payload []byte) error {
	switch typ {
	case recordTypeHandshake:
		if e.hsDone {
			return errUnexpectedHandshake
		}
		_, cs0, cs1, err := e.hs.ReadMessage(nil, payload)
		if err != nil {
			return fmt.Errorf("handshake message rejected: %w", err)
		}
		if cs0 != nil {
			e.finishHandshake(cs0, cs1)
			return nil
		}
		// Noise messages strictly alternate, so it is our turn now.
		return e.writeHandshakeMessage()
	case recordTypeData:
		if !e.hsDone {
			return errRecordBeforeHandshake
		}
		if e.peerClosed {
			return errRecordAfterClose
		}
		pt, err := e.recv.Decrypt(nil, nil, payload)
		if err != nil {
			return fmt.Errorf("record authentication failed: %w", err)
		}
		e.staging = append(e.staging, pt...)
		return nil
	case recordTypeClose:
		if !e.hsDone {
			return errRecordBeforeHandshake
		}
		if e.peerClosed {
			return errRecordAfterClose
		}
		if _, err := e.recv.Decrypt(nil, nil, payload); err != nil {
			return fmt.Errorf("close-notify authentication failed: %w", err)
		}
		e.peerClosed = true
		return nil
	default:
		return fmt.Errorf("unknown record type %#02x", typ)
	}
}

// writeHandshakeMessage queues the next outbound handshake message.
func (e *Engine) writeHandshakeMessage() error {
	msg, cs0, cs1, err := e.hs.WriteMessage(nil, nil)
	if err != nil {
		return fmt.Errorf("failed to produce handshake message: %w", err)
	}
	e.appendRecord(recordTypeHandshake, msg)
	if cs0 != nil {
		e.finishHandshake(cs0, cs1)
	}
	return nil
}

func (e *Engine) finishHandshake(cs0, cs1 *noise.CipherState) {
	if e.initiator {
		e.send, e.recv = cs0, cs1
	} else {
		e.send, e.recv = cs1, cs0
	}
	e.hsDone = true
}

// ReadPlaintext implements [secure.Engine].ReadPlaintext.
func (e *Engine) ReadPlaintext(p []byte) (int, error) {
	if e.failure != nil {
		return 0, e.failure
	}
	if len(e.staging) > 0 {
		n := copy(p, e.staging)
		rem := copy(e.staging, e.staging[n:])
		e.staging = e.staging[:rem]
		return n, nil
	}
	if e.peerClosed {
		return 0, io.EOF
	}
	return 0, transport.ErrWouldBlock
}

// WritePlaintext implements [secure.Engine].WritePlaintext. Acceptance
// stops at the output high-water mark; a zero count tells the caller to
// drain [Engine.CiphertextToSend] first.
func (e *Engine) WritePlaintext(p []byte) (int, error) {
	if e.failure != nil {
		return 0, e.failure
	}
	if !e.hsDone {
		return 0, errWriteBeforeHandshake
	}
	if e.closeQueued {
		return 0, errWriteAfterClose
	}
	var total int
	for len(p) > 0 && len(e.out) < outHighWater {
		chunk := p
		if len(chunk) > maxPayloadSize {
			chunk = chunk[:maxPayloadSize]
		}
		ct, err := e.send.Encrypt(nil, nil, chunk)
		if err != nil {
			return total, e.fail(fmt.Errorf("record encryption failed: %w", err))
		}
		e.appendRecord(recordTypeData, ct)
		total += len(chunk)
		p = p[len(chunk):]
	}
	return total, nil
}

// CiphertextToSend implements [secure.Engine].CiphertextToSend.
func (e *Engine) CiphertextToSend(p []byte) (int, error) {
	if e.failure != nil {
		return 0, e.failure
	}
	n := copy(p, e.out)
	rem := copy(e.out, e.out[n:])
	e.out = e.out[:rem]
	return n, nil
}

// Handshaking implements [secure.Engine].Handshaking.
func (e *Engine) Handshaking() bool {
	return e.failure == nil && !e.hsDone
}

// WantsRead implements [secure.Engine].WantsRead.
func (e *Engine) WantsRead() bool {
	return e.failure == nil && !e.hsDone && len(e.out) == 0
}

// WantsWrite implements [secure.Engine].WantsWrite.
func (e *Engine) WantsWrite() bool {
	return e.failure == nil && len(e.out) > 0
}

// PeerClosed implements [secure.Engine].PeerClosed.
func (e *Engine) PeerClosed() bool {
	return e.peerClosed
}

// SendCloseNotify implements [secure.Engine].SendCloseNotify.
func (e *Engine) SendCloseNotify() {
	if e.failure != nil || e.closeQueued {
		return
	}
	e.closeQueued = true
	if !e.hsDone {
		// Nothing on the wire to protect yet.
		return
	}
	tag, err := e.send.Encrypt(nil, nil, nil)
	if err != nil {
		e.fail(fmt.Errorf("close-notify encryption failed: %w", err))
		return
	}
	e.appendRecord(recordTypeClose, tag)
}

func (e *Engine) appendRecord(typ byte, payload []byte) {
	var hdr [headerSize]byte
	hdr[0] = typ
	binary.BigEndian.PutUint16(hdr[1:], uint16(len(payload)))
	e.out = append(e.out, hdr[:]...)
	e.out = append(e.out, payload...)
}
