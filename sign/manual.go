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

// Package sign implements original_source/src/format-manual.cpp's "-m"/
// "-M" manual mode: sign (or just stub-render) a SEAL record against a
// caller-supplied digest directly, without reading or writing any file.
// It exists for containers sealtool has no walker for — a caller runs
// "-M ''" to get a stub record with a placeholder signature, hand-embeds
// it, re-verifies to learn the digest sealtool computed over it, then
// signs that digest here and hand-copies the result back in.
package sign

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sage-x-project/seal/field"
	"github.com/sage-x-project/seal/record"
	"github.com/sage-x-project/seal/sealcrypto"
)

// DigestSigner is the capability ManualSign needs from either
// sign/local.Signer or cmd/sealtool's adapter over a sign/remote
// signer: dry-run sizing when
// store["@digest1"] is absent, real signing once it is present.
type DigestSigner interface {
	Sign(store *field.Store) error
}

// ManualSign builds the record text for store (which must already carry
// @sigsize from a prior dry-run Sign call) and, if digestHex is
// non-empty, signs it for real and splices the finished signature into
// the placeholder. An empty digestHex reproduces "-M ''": the returned
// text still has its placeholder (space-padded) signature value.
func ManualSign(store *field.Store, digestHex string, signer DigestSigner) (string, error) {
	if err := record.Build(store, store.Has("pk")); err != nil {
		return "", fmt.Errorf("sign: build record: %w", err)
	}
	digestHex = strings.TrimSpace(digestHex)
	if digestHex == "" {
		return store.GetText("@record"), nil
	}

	digest1, err := hex.DecodeString(digestHex)
	if err != nil {
		return "", fmt.Errorf("sign: manual digest %q is not valid hex: %w", digestHex, err)
	}
	store.Set("@digest1", digest1, field.KindBinary)

	if err := signer.Sign(store); err != nil {
		return "", fmt.Errorf("sign: manual sign: %w", err)
	}
	return spliceSignature(store)
}

// spliceSignature replaces @record's placeholder signature bytes (at
// @s[0]:@s[1]) with @signatureenc, the in-memory equivalent of
// iowriter.Finalize for a record that was never written to a file.
func spliceSignature(store *field.Store) (string, error) {
	rec := store.GetText("@record")
	s0, ok0 := store.GetIndexed("@s", 0, field.KindSizeArray)
	s1, ok1 := store.GetIndexed("@s", 1, field.KindSizeArray)
	if !ok0 || !ok1 {
		return "", fmt.Errorf("sign: record has no placeholder offsets")
	}
	sig := store.GetText("@signatureenc")
	if len(sig) != int(s1-s0) {
		return "", fmt.Errorf("sign: record size changed while writing: placeholder %d bytes, signature %d bytes", s1-s0, len(sig))
	}
	return rec[:s0] + sig + rec[s1:], nil
}

// ManualVerify verifies a caller-supplied hex digest against a
// caller-supplied hex signature directly, with no record or file
// involved — the verification-side counterpart debugging aid to
// ManualSign.
func ManualVerify(kp sealcrypto.KeyPair, digestHex, signatureHex string) error {
	digest, err := hex.DecodeString(strings.TrimSpace(digestHex))
	if err != nil {
		return fmt.Errorf("sign: manual digest %q is not valid hex: %w", digestHex, err)
	}
	sig, err := hex.DecodeString(strings.TrimSpace(signatureHex))
	if err != nil {
		return fmt.Errorf("sign: manual signature %q is not valid hex: %w", signatureHex, err)
	}
	if err := kp.Verify(digest, sig); err != nil {
		return fmt.Errorf("sign: manual verify: %w", err)
	}
	return nil
}
