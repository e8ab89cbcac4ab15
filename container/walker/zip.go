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

package walker

import (
	"fmt"

	"github.com/sage-x-project/seal/field"
)

// eocdSignature is the 4-byte End Of Central Directory record signature.
var eocdSignature = []byte{0x50, 0x4B, 0x05, 0x06}

const eocdFixedLen = 22 // signature(4) + 16 fixed fields + comment-length(2), before comment bytes
const zipMaxComment = 0xFFFF

// ErrZipEmbedded is returned by PickInsertionOffset when the zip is
// detected to be embedded inside a larger container (non-zero trailing
// data after its EOCD comment) — spec.md §9's Open Question "option 2"
// resolution refuses to sign these.
var ErrZipEmbedded = fmt.Errorf("walker: zip: file is embedded in a larger container, refusing to sign")

// Zip implements Walker restricted to the EOCD comment-field path per
// SPEC_FULL.md §5.2: a SEAL record is appended to the end-of-central-
// directory comment, never inside the archive's entry data.
type Zip struct{}

func zipFindEOCD(data []byte) int {
	maxBack := eocdFixedLen + zipMaxComment
	start := len(data) - eocdFixedLen
	limit := len(data) - maxBack
	if limit < 0 {
		limit = 0
	}
	for i := start; i >= limit; i-- {
		if i+4 <= len(data) && string(data[i:i+4]) == string(eocdSignature) {
			return i
		}
	}
	return -1
}

// Scan reports the EOCD comment field as the sole candidate window.
func (Zip) Scan(data []byte) []Window {
	eocd := zipFindEOCD(data)
	if eocd < 0 {
		return nil
	}
	commentLen := int(getUint16LE(data[eocd+20 : eocd+22]))
	start := eocd + eocdFixedLen
	end := start + commentLen
	if end > len(data) {
		return nil
	}
	return []Window{{Start: start, End: end}}
}

// PickInsertionOffset returns the offset immediately after the existing
// comment field (i.e. the end of the file), refusing with
// ErrZipEmbedded if trailing data follows the EOCD comment — the
// signature of a zip nested inside a larger container.
func (Zip) PickInsertionOffset(data []byte) (int, error) {
	eocd := zipFindEOCD(data)
	if eocd < 0 {
		return 0, fmt.Errorf("walker: zip: no end-of-central-directory record found")
	}
	commentLen := int(getUint16LE(data[eocd+20 : eocd+22]))
	end := eocd + eocdFixedLen + commentLen
	if end > len(data) {
		return 0, fmt.Errorf("walker: zip: comment length exceeds file size")
	}
	if end != len(data) {
		return 0, ErrZipEmbedded
	}
	return end, nil
}

// BuildBlock composes the bare record; the EOCD's comment-length field
// is left to PatchCommentLength. The
// digest range anchors on f (true end of file), not the record's own
// closing tag: PickInsertionOffset already refuses any zip whose comment
// doesn't end exactly at EOF (ErrZipEmbedded), so the record's closing
// tag and the file's true end always coincide here, and DigestRangeFor
// gives the same "P~S,s~f"/"F~S,s~f" ranges every other f-anchored
// format uses.
func (Zip) BuildBlock(store *field.Store, fileLen int64, insertOffset int, prevSFlags string) ([]byte, error) {
	store.SetText("b", DigestRangeFor(prevSFlags))

	recordBytes, sLo, sHi, err := BuildRecordBlock(store)
	if err != nil {
		return nil, err
	}
	if len(recordBytes) > zipMaxComment {
		return nil, fmt.Errorf("walker: zip: record exceeds the %d-byte comment-field limit", zipMaxComment)
	}

	PromoteSOffset(store, 0, sLo, sHi)
	return recordBytes, nil
}

// PatchCommentLength rewrites a zip file's EOCD comment-length field
// (bytes [eocd+20:eocd+22]) to newLen; cmd/sealtool calls this on the
// source bytes after BuildBlock and before the block is written.
func PatchCommentLength(data []byte, eocdOffset int, newLen int) {
	if eocdOffset+22 > len(data) {
		return
	}
	putUint16LE(data[eocdOffset+20:eocdOffset+22], uint16(newLen))
}

func getUint16LE(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func putUint16LE(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}
