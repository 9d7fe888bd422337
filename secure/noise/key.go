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

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// PresharedKeySize is the size of the symmetric key both peers must share.
const PresharedKeySize = chacha20poly1305.KeySize

// NewPresharedKey derives the preshared handshake key from a secret string
// using HKDF-SHA256. Both peers must derive from the same secret.
func NewPresharedKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("secret must not be empty")
	}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("monoio-tls noise psk v1"))
	key := make([]byte, PresharedKeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive preshared key: %w", err)
	}
	return key, nil
}
