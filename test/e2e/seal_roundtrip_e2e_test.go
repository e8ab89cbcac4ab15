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

// Package e2e exercises the full sign-then-verify cycle across package
// boundaries, the way the teacher's e2e suite drove a full HTTP
// request/response/DID-verification cycle rather than any one package in
// isolation.
package e2e

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/seal/container"
	"github.com/sage-x-project/seal/digest"
	"github.com/sage-x-project/seal/field"
	"github.com/sage-x-project/seal/iowriter"
	"github.com/sage-x-project/seal/keyresolve"
	"github.com/sage-x-project/seal/record"
	"github.com/sage-x-project/seal/sealcrypto"
	"github.com/sage-x-project/seal/sign/local"
	"github.com/sage-x-project/seal/verify"
)

// minimalPNG returns a PNG with a 13-byte-data IHDR and a zero-length
// IEND, enough for the PNG walker to find an insertion point and for
// container.Identify to recognise the format — no valid pixel data is
// needed since no decoder ever runs over it.
func minimalPNG(t *testing.T) []byte {
	t.Helper()
	buf := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	appendChunk := func(typ string, data []byte) {
		length := len(data)
		buf = append(buf, byte(length>>24), byte(length>>16), byte(length>>8), byte(length))
		buf = append(buf, []byte(typ)...)
		buf = append(buf, data...)
		buf = append(buf, 0, 0, 0, 0) // CRC placeholder, never validated by our own walkers
	}
	appendChunk("IHDR", make([]byte, 13))
	appendChunk("IEND", nil)
	return buf
}

func TestSealRoundTripPNGSignThenVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	kp := sealcrypto.NewEd25519KeyPair(priv, pub)
	signer := local.NewSigner(kp)

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "in.png")
	require.NoError(t, os.WriteFile(srcPath, minimalPNG(t), 0o644))
	data, err := os.ReadFile(srcPath)
	require.NoError(t, err)

	format := container.Identify(data)
	require.Equal(t, "png", format.String())
	w, err := container.WalkerFor(format)
	require.NoError(t, err)

	store := field.New()
	store.SetText("seal", "1")
	store.SetText("d", "example.com")
	store.SetText("ka", "ed25519")
	store.SetText("da", "sha256")
	store.SetText("kv", "1")
	store.SetText("sf", "hex")
	require.NoError(t, signer.Sign(store)) // dry run, populates @sigsize

	insertOffset, err := w.PickInsertionOffset(data)
	require.NoError(t, err)
	block, err := w.BuildBlock(store, int64(len(data)), insertOffset, "")
	require.NoError(t, err)

	outPath := filepath.Join(dir, "out.png")
	require.NoError(t, iowriter.Insert(data, outPath, block, insertOffset, store))

	_, err = digest.Digest(store, outPath, "")
	require.NoError(t, err)
	require.NoError(t, signer.Sign(store)) // real sign

	sig := []byte(store.GetText("@signatureenc"))
	require.NoError(t, iowriter.Finalize(outPath, store, sig))

	signed, err := os.ReadFile(outPath)
	require.NoError(t, err)

	pkDER, err := kp.PublicKeyDER()
	require.NoError(t, err)
	resolver := keyresolve.New()
	resolver.PreloadCache("example.com", []string{
		"seal=1 ka=ed25519 kv=1 p=" + base64.StdEncoding.EncodeToString(pkDER),
	})

	outFormat := container.Identify(signed)
	outWalker, err := container.WalkerFor(outFormat)
	require.NoError(t, err)
	windows := outWalker.Scan(signed)
	require.NotEmpty(t, windows)

	verified := false
	for _, win := range windows {
		parsed, ok := record.Parse(signed[win.Start:win.End], 0, int64(win.Start), 0)
		if !ok {
			continue
		}
		res, err := verify.Record(context.Background(), parsed.Store, outPath, resolver, verify.Options{})
		require.NoError(t, err)
		if res.Verdict == verify.VerdictValid {
			verified = true
		}
	}
	assert.True(t, verified, "expected at least one record to verify as valid")
}

func TestSealRoundTripDetectsTamperedFile(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	kp := sealcrypto.NewEd25519KeyPair(priv, pub)
	signer := local.NewSigner(kp)

	dir := t.TempDir()
	data := minimalPNG(t)

	format := container.Identify(data)
	w, err := container.WalkerFor(format)
	require.NoError(t, err)

	store := field.New()
	store.SetText("seal", "1")
	store.SetText("d", "example.com")
	store.SetText("ka", "ed25519")
	store.SetText("da", "sha256")
	store.SetText("kv", "1")
	store.SetText("sf", "hex")
	require.NoError(t, signer.Sign(store))

	insertOffset, err := w.PickInsertionOffset(data)
	require.NoError(t, err)
	block, err := w.BuildBlock(store, int64(len(data)), insertOffset, "")
	require.NoError(t, err)

	outPath := filepath.Join(dir, "out.png")
	require.NoError(t, iowriter.Insert(data, outPath, block, insertOffset, store))
	_, err = digest.Digest(store, outPath, "")
	require.NoError(t, err)
	require.NoError(t, signer.Sign(store))
	sig := []byte(store.GetText("@signatureenc"))
	require.NoError(t, iowriter.Finalize(outPath, store, sig))

	signed, err := os.ReadFile(outPath)
	require.NoError(t, err)
	signed[16] ^= 0xFF // flip IHDR's first data byte, inside the signed F~S range
	require.NoError(t, os.WriteFile(outPath, signed, 0o644))

	pkDER, err := kp.PublicKeyDER()
	require.NoError(t, err)
	resolver := keyresolve.New()
	resolver.PreloadCache("example.com", []string{
		"seal=1 ka=ed25519 kv=1 p=" + base64.StdEncoding.EncodeToString(pkDER),
	})

	outFormat := container.Identify(signed)
	outWalker, err := container.WalkerFor(outFormat)
	require.NoError(t, err)
	windows := outWalker.Scan(signed)
	require.NotEmpty(t, windows)

	for _, win := range windows {
		parsed, ok := record.Parse(signed[win.Start:win.End], 0, int64(win.Start), 0)
		if !ok {
			continue
		}
		res, err := verify.Record(context.Background(), parsed.Store, outPath, resolver, verify.Options{})
		require.NoError(t, err)
		assert.NotEqual(t, verify.VerdictValid, res.Verdict)
	}
}
