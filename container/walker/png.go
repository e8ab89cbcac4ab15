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
	"hash/crc32"

	"github.com/sage-x-project/seal/field"
)

// PNGMagic is the 8-byte PNG signature every file of this format begins with.
var PNGMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// ChunkName is the ancillary chunk PNG records are embedded in. Per
// spec.md §4.12 this is customisable casing; "seAl" (ancillary, private,
// safe-to-copy by the case bits of the PNG naming convention) is
// the default, grounded on original_source/src/format-png.cpp's chunk tag.
const ChunkName = "seAl"

// PNG implements Walker for the PNG container, grounded on
// original_source/src/format-png.cpp: chunks are length(4, BE) | type(4) |
// data | crc32(4, BE); a new ancillary chunk is inserted immediately
// before IEND.
type PNG struct{}

// Scan walks every chunk, treating each chunk's data as a candidate window.
func (PNG) Scan(data []byte) []Window {
	var windows []Window
	pos := len(PNGMagic)
	for pos+8 <= len(data) {
		length := int(getUint32BE(data[pos : pos+4]))
		dataStart := pos + 8
		dataEnd := dataStart + length
		if dataEnd > len(data) {
			break
		}
		windows = append(windows, Window{Start: dataStart, End: dataEnd})
		pos = dataEnd + 4 // skip CRC
	}
	return windows
}

// PickInsertionOffset returns the byte offset of the IEND chunk's length
// field, so a new chunk can be spliced in immediately before it.
func (PNG) PickInsertionOffset(data []byte) (int, error) {
	pos := len(PNGMagic)
	for pos+8 <= len(data) {
		length := int(getUint32BE(data[pos : pos+4]))
		typ := string(data[pos+4 : pos+8])
		if typ == "IEND" {
			return pos, nil
		}
		pos += 8 + length + 4
	}
	return 0, fmt.Errorf("walker: png: no IEND chunk found")
}

// BuildBlock composes length(4) || "seAl" || record || crc(4). b= skips
// the 4-byte CRC that trails the record, since the CRC is computed after
// the record (and its signature) is finalized.
func (PNG) BuildBlock(store *field.Store, fileLen int64, insertOffset int, prevSFlags string) ([]byte, error) {
	store.SetText("b", WithTrailingOffset(DigestRangeFor(prevSFlags), 7))

	recordBytes, sLo, sHi, err := BuildRecordBlock(store)
	if err != nil {
		return nil, err
	}

	block := make([]byte, 8+len(recordBytes)+4)
	putUint32BE(block[0:4], uint32(len(recordBytes)))
	copy(block[4:8], ChunkName)
	copy(block[8:8+len(recordBytes)], recordBytes)

	crc := crc32.ChecksumIEEE(block[4 : 8+len(recordBytes)])
	putUint32BE(block[8+len(recordBytes):], crc)

	PromoteSOffset(store, 8, sLo, sHi)
	return block, nil
}
