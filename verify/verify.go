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

// Package verify implements spec.md §4.9's per-record verifier: decode,
// digest, walk candidate DNS (or inline) keys, check revocation, verify the
// signature, and classify the outcome into a verdict bitmask.
package verify

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/sage-x-project/seal/digest"
	"github.com/sage-x-project/seal/encoding"
	"github.com/sage-x-project/seal/field"
	"github.com/sage-x-project/seal/keyresolve"
	"github.com/sage-x-project/seal/sealcrypto"
)

// Verdict is the bitmask spec.md §4.9 assigns to one record's outcome.
// Exit-code reduction across a batch ORs every record's verdict together
// (see cmd/sealtool).
type Verdict uint8

const (
	VerdictValid           Verdict = 0x00
	VerdictInvalid         Verdict = 0x01
	VerdictUnsigned        Verdict = 0x02
	VerdictNotValidated    Verdict = 0x04
	VerdictNotAuthenticated Verdict = 0x08
	VerdictRevoked         Verdict = 0x10
	VerdictFatal           Verdict = 0x80
)

// String renders the set bits as a comma-joined label list, for log lines.
func (v Verdict) String() string {
	if v == VerdictValid {
		return "valid"
	}
	var labels []string
	for _, pair := range []struct {
		bit   Verdict
		label string
	}{
		{VerdictInvalid, "invalid"},
		{VerdictUnsigned, "unsigned"},
		{VerdictNotValidated, "not validated"},
		{VerdictNotAuthenticated, "not authenticated"},
		{VerdictRevoked, "revoked"},
		{VerdictFatal, "fatal"},
	} {
		if v&pair.bit != 0 {
			labels = append(labels, pair.label)
		}
	}
	return strings.Join(labels, ", ")
}

// Result carries a record's verdict plus the diagnostics a CLI reporter
// wants without re-deriving them.
type Result struct {
	Verdict  Verdict
	Warnings []string
}

// Options configures a Record verification pass.
type Options struct {
	// NoNet, when true, forbids the resolver from issuing a network TXT
	// query for domains not already cached (spec.md §4.6 step 1).
	NoNet bool
}

// Record verifies one already-parsed SEAL record against filePath, using
// resolver to look up candidate signing keys for store's id domain. store
// must already carry @s (via record.Parse) and, for signature #n>1, @p
// copied in from the previous record by the caller (spec.md §4.9's
// cross-record check).
func Record(ctx context.Context, store *field.Store, filePath string, resolver *keyresolve.Resolver, opts Options) (Result, error) {
	if !store.Has("s") {
		return Result{Verdict: VerdictUnsigned}, nil
	}
	resolver.SetNoNet(opts.NoNet)

	res := Result{}
	res.Warnings = append(res.Warnings, crossRecordWarnings(store)...)

	if _, err := digest.Digest(store, filePath, store.GetText("@preface")); err != nil {
		return Result{Verdict: VerdictFatal}, fmt.Errorf("verify: digest: %w", err)
	}

	signature, ok := decodeSignature(store)
	if !ok {
		return Result{Verdict: VerdictFatal}, fmt.Errorf("verify: malformed s= signature")
	}

	toVerify := store.GetBytes("@digest2")
	if len(toVerify) == 0 {
		toVerify = store.GetBytes("@digest1")
	}

	if pk := store.GetText("pk"); pk != "" {
		inlineRes, err := verifyInline(store, pk, signature, toVerify)
		inlineRes.Warnings = append(res.Warnings, inlineRes.Warnings...)
		return inlineRes, err
	}

	return verifyAgainstDomain(ctx, store, resolver, signature, toVerify, res.Warnings)
}

// verifyInline implements spec.md §4.6's inline-authentication path: the
// record itself carries pk (and optionally pkd to bind it to a claimed
// digest). A successful signature check here is "not authenticated" rather
// than "valid" because the key was never bound to a DNS domain.
func verifyInline(store *field.Store, pk string, signature, toVerify []byte) (Result, error) {
	decoded, ok := encoding.Base64Decode(pk)
	if !ok {
		return Result{Verdict: VerdictFatal}, fmt.Errorf("verify: pk is not valid base64")
	}

	if pkd := store.GetText("pkd"); pkd != "" {
		pka := store.GetText("pka")
		if pka == "" {
			pka = "sha256"
		}
		got, err := keyresolve.InlineKeyDigest(pka, decoded)
		if err != nil {
			return Result{Verdict: VerdictFatal}, err
		}
		want, ok := encoding.HexDecode(pkd)
		if !ok {
			want, ok = encoding.Base64Decode(pkd)
		}
		if !ok || !bytesEqual(got, want) {
			store.SetText("@error", "public key digest (pkd) mismatch")
			return Result{Verdict: VerdictInvalid}, nil
		}
	}

	kp, err := publicKeyPairFromDER(store.GetText("ka"), store.GetText("da"), decoded)
	if err != nil {
		return Result{Verdict: VerdictFatal}, err
	}

	if err := kp.Verify(toVerify, signature); err != nil {
		return Result{Verdict: VerdictInvalid}, nil
	}
	return Result{Verdict: VerdictNotAuthenticated}, nil
}

// verifyAgainstDomain implements the DNS-bound path: iterate every
// candidate TXT record matching seal/uid/ka/kv, skip revoked ones, and
// accept the first that verifies.
func verifyAgainstDomain(ctx context.Context, store *field.Store, resolver *keyresolve.Resolver, signature, toVerify []byte, warnings []string) (Result, error) {
	domain := store.GetText("d")
	if domain == "" {
		return Result{Verdict: VerdictNotValidated, Warnings: warnings}, nil
	}

	filter := keyresolve.Filter{
		Seal: store.GetText("seal"),
		UID:  store.GetText("uid"),
		KA:   store.GetText("ka"),
		KV:   store.GetText("kv"),
	}

	count, err := resolver.Count(ctx, domain, filter)
	if err != nil {
		return Result{Verdict: VerdictFatal, Warnings: warnings}, fmt.Errorf("verify: resolve %s: %w", domain, err)
	}
	if count == 0 {
		return Result{Verdict: VerdictNotValidated, Warnings: warnings}, nil
	}

	anyRevoked := false
	for n := 0; n < count; n++ {
		txt, found, err := resolver.Resolve(ctx, domain, filter, n)
		if err != nil {
			return Result{Verdict: VerdictFatal, Warnings: warnings}, err
		}
		if !found {
			continue
		}

		if keyresolve.IsRevoked(txt.Fields, store.GetText("@sigdate")) {
			anyRevoked = true
			continue
		}

		keyBytes := txt.Fields.GetBytes("@p-bin")
		if len(keyBytes) == 0 {
			continue
		}
		kp, err := publicKeyPairFromDER(txt.Fields.GetText("ka"), store.GetText("da"), keyBytes)
		if err != nil {
			continue
		}
		if err := kp.Verify(toVerify, signature); err == nil {
			return Result{Verdict: VerdictValid, Warnings: warnings}, nil
		}
	}

	if anyRevoked {
		return Result{Verdict: VerdictRevoked, Warnings: warnings}, nil
	}
	return Result{Verdict: VerdictInvalid, Warnings: warnings}, nil
}

// crossRecordWarnings implements spec.md §4.9's prepend/insertion-attack
// warning: signature #1 must anchor to F, and signature #n>1 must anchor
// to F or P, or a successful verify offers no protection against bytes
// added before the digested range.
func crossRecordWarnings(store *field.Store) []string {
	sflags := store.GetText("@sflags")
	ordinal, _ := store.GetIndexed("@s", 2, field.KindSizeArray)

	if ordinal == 0 {
		if !strings.Contains(sflags, "F") {
			return []string{"b= omits F on the first signature; a successful verify does not protect against prepend attacks"}
		}
		return nil
	}
	if !strings.ContainsAny(sflags, "FP") {
		return []string{"b= omits both F and P on a signature after the first; a successful verify does not protect against insertion attacks"}
	}
	return nil
}

// decodeSignature strips an optional "sigdate:" prefix from s= and decodes
// the remainder using the encoding named by sf (default hex).
func decodeSignature(store *field.Store) ([]byte, bool) {
	s := store.GetText("s")
	s = strings.TrimRight(s, " ")

	sf := store.GetText("sf")
	encName := "hex"
	if parts := strings.Split(sf, ":"); len(parts) > 0 {
		last := parts[len(parts)-1]
		if last == "hex" || last == "HEX" || last == "base64" || last == "bin" {
			encName = last
		}
	}

	if strings.Contains(sf, "date") {
		if idx := strings.Index(s, ":"); idx >= 0 {
			store.SetText("@sigdate", s[:idx])
			s = s[idx+1:]
		}
	}

	switch encName {
	case "HEX", "hex":
		return encoding.HexDecode(s)
	case "base64":
		return encoding.Base64Decode(s)
	case "bin":
		return []byte(s), true
	default:
		return encoding.HexDecode(s)
	}
}

// publicKeyPairFromDER builds a verify-only sealcrypto.KeyPair from a
// DER-encoded public key, dispatching on ka's algorithm name. da selects
// the PKCS1v15 hash for RSA keys, matching the record's own nominated
// digest algorithm rather than a hash fixed at key-parse time.
func publicKeyPairFromDER(ka, da string, der []byte) (sealcrypto.KeyPair, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("verify: parse public key: %w", err)
	}

	switch key := pub.(type) {
	case *rsa.PublicKey:
		return sealcrypto.NewRSAKeyPair(nil, key, hashForAlgorithm(da)), nil
	case *ecdsa.PublicKey:
		return sealcrypto.NewECDSAKeyPair(nil, key), nil
	case ed25519.PublicKey:
		return sealcrypto.NewEd25519KeyPair(nil, key), nil
	default:
		return nil, fmt.Errorf("verify: unsupported public key type for ka=%q", ka)
	}
}

// hashForAlgorithm mirrors sign/local's da= -> crypto.Hash mapping so RSA
// verification uses the same hash the signer used.
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

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
