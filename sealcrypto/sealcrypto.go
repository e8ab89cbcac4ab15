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

// Package sealcrypto abstracts over the three key families SEAL's ka=
// attribute names — rsa, ec (including the secp256k1 alias), and ed25519 —
// behind one KeyPair interface, so the signer and verifier never branch on
// concrete key types themselves.
package sealcrypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"filippo.io/edwards25519"
	"golang.org/x/crypto/ssh"
)

// KeyType identifies the key family, matching spec.md's ka= vocabulary.
type KeyType int

const (
	KeyTypeUnknown KeyType = iota
	KeyTypeRSA
	KeyTypeECDSA
	// KeyTypeSecp256k1 is the "ec" alias spec.md §9 reserves for the curve
	// most DNS-published keys outside the PKIX P-256 family actually use.
	KeyTypeSecp256k1
	KeyTypeEd25519
)

func (t KeyType) String() string {
	switch t {
	case KeyTypeRSA:
		return "rsa"
	case KeyTypeECDSA, KeyTypeSecp256k1:
		return "ec"
	case KeyTypeEd25519:
		return "ed25519"
	default:
		return "unknown"
	}
}

// KeyPair is the minimal capability the signer and verifier need from a
// private/public key, regardless of family.
type KeyPair interface {
	Type() KeyType
	Sign(digest []byte) ([]byte, error)
	Verify(digest, signature []byte) error
	PublicKeyDER() ([]byte, error)
	// RawSignatureLength reports the byte length of a raw (unencoded)
	// signature this key pair produces, needed by the dry-run sizing pass
	// before a real signature exists.
	RawSignatureLength() int
}

// rsaKeyPair wraps an RSA private (or, for verify-only use, nil private
// with a populated public) key pair.
type rsaKeyPair struct {
	priv *rsa.PrivateKey
	pub  *rsa.PublicKey
	hash crypto.Hash
}

func NewRSAKeyPair(priv *rsa.PrivateKey, pub *rsa.PublicKey, hash crypto.Hash) KeyPair {
	if pub == nil && priv != nil {
		pub = &priv.PublicKey
	}
	return &rsaKeyPair{priv: priv, pub: pub, hash: hash}
}

func (k *rsaKeyPair) Type() KeyType { return KeyTypeRSA }

// SetHash overrides the PKCS1v15 hash used by Sign/Verify, letting a caller
// match the digest algorithm a record's da= attribute actually names rather
// than whatever hash the key pair was loaded with.
func (k *rsaKeyPair) SetHash(h crypto.Hash) { k.hash = h }

func (k *rsaKeyPair) Sign(digest []byte) ([]byte, error) {
	if k.priv == nil {
		return nil, fmt.Errorf("sealcrypto: no private key loaded for rsa signing")
	}
	return rsa.SignPKCS1v15(rand.Reader, k.priv, k.hash, digest)
}

func (k *rsaKeyPair) Verify(digest, signature []byte) error {
	return rsa.VerifyPKCS1v15(k.pub, k.hash, digest, signature)
}

func (k *rsaKeyPair) PublicKeyDER() ([]byte, error) {
	return x509.MarshalPKIXPublicKey(k.pub)
}

func (k *rsaKeyPair) RawSignatureLength() int {
	if k.pub == nil {
		return 0
	}
	return (k.pub.N.BitLen() + 7) / 8
}

// ecdsaKeyPair wraps a NIST-curve or secp256k1 ECDSA key pair. secp256k1
// uses github.com/decred/dcrd/dcrec/secp256k1/v4's curve implementation
// since Go's standard library does not register it.
type ecdsaKeyPair struct {
	priv      *ecdsa.PrivateKey
	pub       *ecdsa.PublicKey
	keyType   KeyType
	isSecp256 bool
}

func NewECDSAKeyPair(priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey) KeyPair {
	if pub == nil && priv != nil {
		pub = &priv.PublicKey
	}
	kt := KeyTypeECDSA
	isSecp256 := pub != nil && pub.Curve == secp256k1.S256()
	if isSecp256 {
		kt = KeyTypeSecp256k1
	}
	return &ecdsaKeyPair{priv: priv, pub: pub, keyType: kt, isSecp256: isSecp256}
}

func (k *ecdsaKeyPair) Type() KeyType { return k.keyType }

func (k *ecdsaKeyPair) Sign(digest []byte) ([]byte, error) {
	if k.priv == nil {
		return nil, fmt.Errorf("sealcrypto: no private key loaded for ec signing")
	}
	return ecdsa.SignASN1(rand.Reader, k.priv, digest)
}

func (k *ecdsaKeyPair) Verify(digest, signature []byte) error {
	if !ecdsa.VerifyASN1(k.pub, digest, signature) {
		return fmt.Errorf("sealcrypto: ecdsa signature verification failed")
	}
	return nil
}

func (k *ecdsaKeyPair) PublicKeyDER() ([]byte, error) {
	return x509.MarshalPKIXPublicKey(k.pub)
}

// RawSignatureLength reports the worst-case ASN.1 DER-encoded (r,s) length
// for k's curve: two INTEGERs of up to orderBytes+1 bytes each (the extra
// byte guards against a leading one-bit needing a zero pad), each wrapped
// in a 2-byte tag+length header, plus the outer SEQUENCE's own header —
// 2*(orderBytes+3) + 2, which simplifies to 2*orderBytes + 8. Sized per
// curve rather than assuming P-256, since spec.md §9 allows any named
// curve the library recognises (P-384/P-521 produce longer signatures).
func (k *ecdsaKeyPair) RawSignatureLength() int {
	bitSize := 256
	if k.pub != nil && k.pub.Curve != nil {
		bitSize = k.pub.Curve.Params().BitSize
	} else if k.priv != nil && k.priv.Curve != nil {
		bitSize = k.priv.Curve.Params().BitSize
	}
	orderBytes := (bitSize + 7) / 8
	return 2*orderBytes + 8
}

// Secp256k1Curve exposes the decred curve implementation for callers that
// need to construct an *ecdsa.PublicKey from raw coordinates or a compressed
// point (e.g. keyresolve decoding an inline pk= value).
func Secp256k1Curve() elliptic.Curve {
	return secp256k1.S256()
}

// ed25519KeyPair wraps an Ed25519 key pair. Signing uses crypto/ed25519
// directly; edwards25519 is used only for the inline-key (pk=) path where a
// raw 32-byte point needs validating before crypto/ed25519 will accept it.
type ed25519KeyPair struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

func NewEd25519KeyPair(priv ed25519.PrivateKey, pub ed25519.PublicKey) KeyPair {
	if pub == nil && priv != nil {
		pub = priv.Public().(ed25519.PublicKey)
	}
	return &ed25519KeyPair{priv: priv, pub: pub}
}

func (k *ed25519KeyPair) Type() KeyType { return KeyTypeEd25519 }

func (k *ed25519KeyPair) Sign(digest []byte) ([]byte, error) {
	if k.priv == nil {
		return nil, fmt.Errorf("sealcrypto: no private key loaded for ed25519 signing")
	}
	return ed25519.Sign(k.priv, digest), nil
}

func (k *ed25519KeyPair) Verify(digest, signature []byte) error {
	if !ed25519.Verify(k.pub, digest, signature) {
		return fmt.Errorf("sealcrypto: ed25519 signature verification failed")
	}
	return nil
}

func (k *ed25519KeyPair) PublicKeyDER() ([]byte, error) {
	return x509.MarshalPKIXPublicKey(k.pub)
}

func (k *ed25519KeyPair) RawSignatureLength() int {
	return ed25519.SignatureSize
}

// ValidateEd25519Point reports whether raw is 32 bytes that decode to a
// point on the Ed25519 curve. Small-order points are not rejected, and
// edwards25519's SetBytes accepts non-canonical encodings of valid points.
func ValidateEd25519Point(raw []byte) error {
	if len(raw) != ed25519.PublicKeySize {
		return fmt.Errorf("sealcrypto: ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	var p edwards25519.Point
	if _, err := p.SetBytes(raw); err != nil {
		return fmt.Errorf("sealcrypto: invalid ed25519 point: %w", err)
	}
	return nil
}

// LoadPrivateKeyPEM parses a PEM-encoded private key, retrying with password
// when the block is encrypted. Supports PKCS1/PKCS8 RSA, EC (including
// secp256k1 when the curve OID round-trips through x509, otherwise callers
// should use LoadSecp256k1PrivateKeyPEM), and Ed25519 — the same family
// ssh.ParseRawPrivateKeyWithPassphrase accepts, reused here since SEAL's key
// files are ordinary PEM rather than SSH-specific containers.
func LoadPrivateKeyPEM(pemBytes []byte, password []byte) (KeyPair, crypto.Hash, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, 0, fmt.Errorf("sealcrypto: no PEM block found")
	}

	raw, err := ssh.ParseRawPrivateKey(pemBytes)
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) && password != nil {
		raw, err = ssh.ParseRawPrivateKeyWithPassphrase(pemBytes, password)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("sealcrypto: parse private key: %w", err)
	}

	switch key := raw.(type) {
	case *rsa.PrivateKey:
		return NewRSAKeyPair(key, nil, crypto.SHA256), crypto.SHA256, nil
	case *ecdsa.PrivateKey:
		return NewECDSAKeyPair(key, nil), crypto.SHA256, nil
	case ed25519.PrivateKey:
		return NewEd25519KeyPair(key, nil), 0, nil
	default:
		return nil, 0, fmt.Errorf("sealcrypto: unsupported private key type %T", raw)
	}
}

// GenerateKeyPair creates a fresh key pair for the -g CLI mode.
func GenerateKeyPair(kt KeyType, rsaBits int) (KeyPair, error) {
	switch kt {
	case KeyTypeRSA:
		if rsaBits == 0 {
			rsaBits = 2048
		}
		priv, err := rsa.GenerateKey(rand.Reader, rsaBits)
		if err != nil {
			return nil, fmt.Errorf("sealcrypto: generate rsa key: %w", err)
		}
		return NewRSAKeyPair(priv, nil, crypto.SHA256), nil
	case KeyTypeECDSA:
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("sealcrypto: generate ecdsa key: %w", err)
		}
		return NewECDSAKeyPair(priv, nil), nil
	case KeyTypeSecp256k1:
		priv, err := ecdsa.GenerateKey(secp256k1.S256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("sealcrypto: generate secp256k1 key: %w", err)
		}
		return NewECDSAKeyPair(priv, nil), nil
	case KeyTypeEd25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("sealcrypto: generate ed25519 key: %w", err)
		}
		return NewEd25519KeyPair(priv, pub), nil
	default:
		return nil, fmt.Errorf("sealcrypto: unknown key type %v", kt)
	}
}

// MarshalPrivateKeyDER returns the PKCS8 DER encoding of kp's private
// key, for the "-g" key-generation mode's PEM output. It errors for a
// verify-only key pair with no private half loaded.
func MarshalPrivateKeyDER(kp KeyPair) ([]byte, error) {
	var raw any
	switch k := kp.(type) {
	case *rsaKeyPair:
		if k.priv == nil {
			return nil, fmt.Errorf("sealcrypto: no rsa private key loaded")
		}
		raw = k.priv
	case *ecdsaKeyPair:
		if k.priv == nil {
			return nil, fmt.Errorf("sealcrypto: no ecdsa private key loaded")
		}
		raw = k.priv
	case *ed25519KeyPair:
		if k.priv == nil {
			return nil, fmt.Errorf("sealcrypto: no ed25519 private key loaded")
		}
		raw = k.priv
	default:
		return nil, fmt.Errorf("sealcrypto: unsupported key pair type %T", kp)
	}
	der, err := x509.MarshalPKCS8PrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("sealcrypto: marshal pkcs8 private key: %w", err)
	}
	return der, nil
}

// EncodedSignatureLength returns the byte length the signer's dry run must
// report as @sigsize for a raw signature of rawLen bytes under the named
// encoding, per spec.md §4.6: hex doubles, base64 is ceil(n/3)*4, bin is the
// identity.
func EncodedSignatureLength(encoding string, rawLen int) int {
	switch strings.ToLower(encoding) {
	case "hex":
		return rawLen * 2
	case "base64":
		return ((rawLen + 2) / 3) * 4
	default: // "bin"
		return rawLen
	}
}

