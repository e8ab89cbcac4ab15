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

// Package local implements the local (non-remote) half of spec.md §4.7's
// sign(store) contract: dry-run sizing of @sigsize, and real signing once
// @digest1 has been computed, against a key pair loaded from a local PEM
// file.
package local

import (
	"crypto"
	"fmt"
	"strings"
	"time"

	"github.com/sage-x-project/seal/encoding"
	"github.com/sage-x-project/seal/field"
	"github.com/sage-x-project/seal/record"
	"github.com/sage-x-project/seal/sealcrypto"
)

// hashSettable is implemented by RSA key pairs, letting Sign match the
// PKCS1v15 hash to whatever da= actually names instead of a hash fixed at
// key-load time.
type hashSettable interface {
	SetHash(crypto.Hash)
}

// Signer signs against a single local key pair.
type Signer struct {
	KeyPair sealcrypto.KeyPair

	// now is overridable by tests; defaults to time.Now.
	now func() time.Time
}

// NewSigner wraps a loaded key pair.
func NewSigner(kp sealcrypto.KeyPair) *Signer {
	return &Signer{KeyPair: kp, now: time.Now}
}

// Sign implements spec.md §4.7's two-mode contract: a dry run (no
// @digest1 yet) reports @sigsize; a real run (has @digest1) generates
// @sigdate, signs, encodes, date-prefixes, and right-pads to @sigsize,
// storing the result at @signatureenc.
func (s *Signer) Sign(store *field.Store) error {
	sf := store.GetText("sf")
	encName := encodingName(sf)

	if settable, ok := s.KeyPair.(hashSettable); ok {
		settable.SetHash(hashForAlgorithm(store.GetText("da")))
	}

	if !store.Has("@digest1") {
		return s.dryRun(store, sf, encName)
	}
	return s.realSign(store, sf, encName)
}

func (s *Signer) dryRun(store *field.Store, sf, encName string) error {
	rawLen := s.KeyPair.RawSignatureLength()
	encodedLen := sealcrypto.EncodedSignatureLength(encName, rawLen)

	datePrefixLen := 0
	if record.HasDatePrefix(sf) {
		datePrefixLen = record.DateFieldLength(record.SubsecondDigits(sf))
	}

	store.SetIndexed("@sigsize", 0, uint64(datePrefixLen+encodedLen), field.KindSizeArray)
	return nil
}

func (s *Signer) realSign(store *field.Store, sf, encName string) error {
	sigSizeV, ok := store.GetIndexed("@sigsize", 0, field.KindSizeArray)
	if !ok {
		return fmt.Errorf("local: real sign called before dry run populated @sigsize")
	}
	sigSize := int(sigSizeV)

	var datePrefix string
	if record.HasDatePrefix(sf) && store.GetText("@sigdate") == "" {
		datePrefix = s.generateSigDate(record.SubsecondDigits(sf))
		store.SetText("@sigdate", datePrefix)
	} else if record.HasDatePrefix(sf) {
		datePrefix = store.GetText("@sigdate")
	}

	digest1 := store.GetBytes("@digest1")
	digest2 := store.GetBytes("@digest2")
	toSign := digest1
	if len(digest2) > 0 {
		toSign = digest2
	}

	rawSig, err := s.KeyPair.Sign(toSign)
	if err != nil {
		return fmt.Errorf("local: sign: %w", err)
	}
	store.Set("@sigbin", rawSig, field.KindBinary)

	encoded := encodeSignature(encName, rawSig)

	var out strings.Builder
	if datePrefix != "" {
		out.WriteString(datePrefix)
		out.WriteString(":")
	}
	out.WriteString(encoded)

	padded := out.String()
	if len(padded) < sigSize {
		padded += strings.Repeat(" ", sigSize-len(padded))
	} else if len(padded) > sigSize {
		return fmt.Errorf("local: signature of %d bytes exceeds reserved @sigsize %d", len(padded), sigSize)
	}

	store.SetText("@signatureenc", padded)
	return nil
}

// generateSigDate returns the current UTC time formatted per spec.md §4.7:
// YYYYMMDDhhmmss[.FFF...] with subsecondDigits fractional digits, followed
// by the colon the caller appends separately.
func (s *Signer) generateSigDate(subsecondDigits int) string {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	t := now().UTC()
	base := t.Format("20060102150405")
	if subsecondDigits <= 0 {
		return base
	}
	frac := fmt.Sprintf("%09d", t.Nanosecond())
	if subsecondDigits > len(frac) {
		subsecondDigits = len(frac)
	}
	return base + "." + frac[:subsecondDigits]
}

// hashForAlgorithm maps a da= value to the matching crypto.Hash, defaulting
// to SHA-256 when da is absent or unrecognized.
func hashForAlgorithm(da string) crypto.Hash {
	switch strings.ToLower(da) {
	case "sha224":
		return crypto.SHA224
	case "sha384":
		return crypto.SHA384
	case "sha512":
		return crypto.SHA512
	default:
		return crypto.SHA256
	}
}

// encodingName returns the trailing codec token of sf verbatim (hex, HEX,
// base64, or bin), preserving case so encodeSignature can distinguish
// upper- from lowercase hex. Defaults to "hex" when sf names none of them.
func encodingName(sf string) string {
	parts := strings.Split(sf, ":")
	last := parts[len(parts)-1]
	switch last {
	case "hex", "HEX", "base64", "bin":
		return last
	default:
		return "hex"
	}
}

func encodeSignature(encName string, raw []byte) string {
	switch encName {
	case "HEX":
		return encoding.HexEncodeUpper(raw)
	case "base64":
		return encoding.Base64Encode(raw)
	case "bin":
		return string(raw)
	default:
		return encoding.HexEncode(raw)
	}
}
