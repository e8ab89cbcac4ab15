// Copyright (C) 2025 SAGE-X Project
//
// This file is part of seal.
//
// seal is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// seal is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with seal.  If not, see <https://www.gnu.org/licenses/>.

package local

import (
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/seal/sealcrypto"
)

func TestGenerateEd25519ProducesUnencryptedPEMAndDNSLine(t *testing.T) {
	gk, err := Generate(sealcrypto.KeyTypeEd25519, 0, "1", nil)
	require.NoError(t, err)

	block, _ := pem.Decode(gk.PrivateKeyPEM)
	require.NotNil(t, block)
	assert.Equal(t, "PRIVATE KEY", block.Type)
	assert.Empty(t, block.Headers)

	assert.True(t, strings.HasPrefix(gk.DNSLine, "seal=1 ka=ed25519 kv=1 p="))
}

func TestGenerateRSAWithPasswordEncryptsPEMBlock(t *testing.T) {
	gk, err := Generate(sealcrypto.KeyTypeRSA, 2048, "1", []byte("hunter2"))
	require.NoError(t, err)

	block, _ := pem.Decode(gk.PrivateKeyPEM)
	require.NotNil(t, block)
	assert.Equal(t, "AES-128-CBC", block.Headers["DEK-Info"])
	assert.NotEmpty(t, block.Headers["Salt"])
	assert.NotEmpty(t, block.Headers["IV"])
	assert.True(t, strings.HasPrefix(gk.DNSLine, "seal=1 ka=rsa kv=1 p="))
}

func TestGenerateECDSAUsesECKAField(t *testing.T) {
	gk, err := Generate(sealcrypto.KeyTypeECDSA, 0, "2", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(gk.DNSLine, "seal=1 ka=ec kv=2 p="))
}

func TestPKCS7PadProducesBlockMultipleWithCorrectPadByte(t *testing.T) {
	padded := pkcs7Pad([]byte("hello"), 16)
	assert.Len(t, padded, 16)
	assert.Equal(t, byte(11), padded[len(padded)-1])
}
