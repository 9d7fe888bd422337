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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPresharedKeyDeterministic(t *testing.T) {
	k1, err := NewPresharedKey("correct horse battery staple")
	require.NoError(t, err)
	require.Len(t, k1, PresharedKeySize)
	k2, err := NewPresharedKey("correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestNewPresharedKeyDistinctSecrets(t *testing.T) {
	k1, err := NewPresharedKey("secret one")
	require.NoError(t, err)
	k2, err := NewPresharedKey("secret two")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestNewPresharedKeyEmptySecret(t *testing.T) {
	_, err := NewPresharedKey("")
	require.Error(t, err)
}
