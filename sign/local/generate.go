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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"

	"github.com/sage-x-project/seal/sealcrypto"
)

const (
	pbkdf2Iterations = 100000
	aes128KeyLen     = 16
)

// GeneratedKey carries the output of the "-g" key-generation mode:
// a PEM-encoded private key and the DNS-TXT-ready public-key line
// spec.md §6 "Persisted state" names.
type GeneratedKey struct {
	PrivateKeyPEM []byte
	DNSLine       string
}

// Generate creates a fresh key pair of the given type, PEM-encodes the
// private key (AES-128-CBC-encrypted under password when non-empty), and
// renders the public-key DNS TXT line "seal=1 ka=... kv=... p=<base64
// DER>", matching original_source's -g output exactly.
func Generate(kt sealcrypto.KeyType, rsaBits int, kv string, password []byte) (*GeneratedKey, error) {
	kp, err := sealcrypto.GenerateKeyPair(kt, rsaBits)
	if err != nil {
		return nil, fmt.Errorf("local: generate key pair: %w", err)
	}

	privDER, err := sealcrypto.MarshalPrivateKeyDER(kp)
	if err != nil {
		return nil, err
	}

	block := &pem.Block{Type: "PRIVATE KEY", Bytes: privDER}
	if len(password) > 0 {
		block, err = encryptPEMBlock(block, password)
		if err != nil {
			return nil, err
		}
	}
	privPEM := pem.EncodeToMemory(block)

	pubDER, err := kp.PublicKeyDER()
	if err != nil {
		return nil, fmt.Errorf("local: marshal public key: %w", err)
	}

	line := fmt.Sprintf("seal=1 ka=%s kv=%s p=%s", kt.String(), kv, base64.StdEncoding.EncodeToString(pubDER))

	return &GeneratedKey{PrivateKeyPEM: privPEM, DNSLine: line}, nil
}

// encryptPEMBlock AES-128-CBC-encrypts block.Bytes under a PBKDF2 key
// derived from password, matching spec.md §6's "optionally
// password-encrypted via AES-128-CBC" persisted-key format. The salt and
// IV are stored as PEM headers so LoadPrivateKeyPEM's counterpart can
// reverse it.
func encryptPEMBlock(block *pem.Block, password []byte) (*pem.Block, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("local: generate salt: %w", err)
	}
	key := pbkdf2.Key(password, salt, pbkdf2Iterations, aes128KeyLen, sha3.New256)

	blk, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("local: new cipher: %w", err)
	}

	padded := pkcs7Pad(block.Bytes, blk.BlockSize())
	iv := make([]byte, blk.BlockSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("local: generate iv: %w", err)
	}
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(blk, iv).CryptBlocks(ciphertext, padded)

	return &pem.Block{
		Type: block.Type,
		Headers: map[string]string{
			"DEK-Info": "AES-128-CBC",
			"Salt":     base64.StdEncoding.EncodeToString(salt),
			"IV":       base64.StdEncoding.EncodeToString(iv),
		},
		Bytes: ciphertext,
	}, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := append(append([]byte{}, data...), make([]byte, padLen)...)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}
