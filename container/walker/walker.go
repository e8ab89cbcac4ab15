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

// Package walker implements spec.md §4.12's per-format contract: one file
// per container format, each exposing Scan, PickInsertionOffset, and
// BuildBlock. Every walker shares the digest-range idiom of DigestRangeFor
// and the @s promotion helper PromoteSOffset.
package walker

import (
	"fmt"
	"strings"

	"github.com/sage-x-project/seal/field"
	"github.com/sage-x-project/seal/record"
)

// Window is one byte range a walker thinks may contain a SEAL record; the
// container dispatcher calls record.Parse against each in turn.
type Window struct {
	Start, End int
}

// Walker is the contract every format package implements.
type Walker interface {
	// Scan enumerates byte windows that may contain SEAL records.
	Scan(data []byte) []Window

	// PickInsertionOffset chooses a legal position for a new record, or an
	// error if the format has no such position left (e.g. a frozen MPF
	// table, or a format with a hard size ceiling already exhausted).
	PickInsertionOffset(data []byte) (int, error)

	// BuildBlock composes the bytes to insert at offset, given a store
	// already carrying kv/ka/da/sf/id/etc (but not yet b=, @record, or
	// @s). prevSFlags is the previous signature's @sflags, used to pick
	// the digest-range idiom. BuildBlock sets b=, runs record.Build, wraps
	// the result in the format's framing, and promotes @s to be relative
	// to the returned block's start.
	BuildBlock(store *field.Store, fileLen int64, insertOffset int, prevSFlags string) ([]byte, error)
}

// DigestRangeFor implements spec.md §4.12's shared digest-range idiom:
// once a signature has been appended after an existing signed region (the
// previous record's @sflags contained F), overlap with the prior
// signature to foil insertion attacks; otherwise anchor to the start of
// the file.
func DigestRangeFor(prevSFlags string) string {
	if strings.Contains(prevSFlags, "F") {
		return "P~S,s~f"
	}
	return "F~S,s~f"
}

// BuildRecordBlock runs the record builder against store (which must
// already carry b=) and returns the raw record bytes plus the record-
// relative [lo, hi) signature placeholder range record.Build computed.
func BuildRecordBlock(store *field.Store) (recordBytes []byte, sLo, sHi int, err error) {
	if err := record.Build(store, false); err != nil {
		return nil, 0, 0, fmt.Errorf("walker: build record: %w", err)
	}
	s0, _ := store.GetIndexed("@s", 0, field.KindSizeArray)
	s1, _ := store.GetIndexed("@s", 1, field.KindSizeArray)
	return []byte(store.GetText("@record")), int(s0), int(s1), nil
}

// PromoteSOffset rewrites @s to be relative to the start of the block
// (prefixLen bytes precede the record within the block), for iowriter to
// later promote a second time to a file-absolute offset by adding the
// container's chosen insertion offset.
func PromoteSOffset(store *field.Store, prefixLen, sLo, sHi int) {
	store.SetIndexed("@s", 0, uint64(prefixLen+sLo), field.KindSizeArray)
	store.SetIndexed("@s", 1, uint64(prefixLen+sHi), field.KindSizeArray)
}

// AnchorToOwnClosingTag implements spec.md §4.12's note that some
// formats (GIF, Matroska, AAC, MPEG, PPM) cannot truly digest through to
// EOF because appending isn't supported in a way that keeps the range
// meaningful; instead the trailing segment anchors on the record's own
// literal "/>" closing bytes.
func AnchorToOwnClosingTag(prevSFlags string) string {
	return strings.Replace(DigestRangeFor(prevSFlags), ",s~f", ",s~s+3", 1)
}

// WithTrailingOffset adjusts a digest range's trailing "s~f" segment to
// "s+N~f", for formats where literal bytes (a CRC, a length-slope byte)
// sit between the record's closing token and the rest of the container
// and must not be covered by the digest.
func WithTrailingOffset(br string, n int) string {
	if n == 0 {
		return br
	}
	return strings.Replace(br, ",s~f", fmt.Sprintf(",s+%d~f", n), 1)
}

func putUint32BE(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32BE(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func getUint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
