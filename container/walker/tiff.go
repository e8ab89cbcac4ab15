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
	"encoding/binary"
	"fmt"

	"github.com/sage-x-project/seal/field"
)

// sealTIFFTag is the private tag number spec.md §4.12 reserves for a
// SEAL record entry within a TIFF/DNG IFD.
const sealTIFFTag = 0xCEA1

// tiffTypeASCII is the TIFF field type for a NUL-terminated ASCII string.
const tiffTypeASCII = 2

// TIFF implements Walker for TIFF and DNG, grounded on original_source/
// src/format-tiff.cpp: a new IFD holding a single ASCII entry (tag
// 0xCEA1) is appended, its out-of-line data placed immediately before
// the IFD itself, and the previous IFD's "next IFD" pointer is
// retargeted to it.
type TIFF struct{}

func tiffByteOrder(data []byte) (binary.ByteOrder, bool) {
	if len(data) < 4 {
		return nil, false
	}
	switch string(data[0:2]) {
	case "II":
		return binary.LittleEndian, true
	case "MM":
		return binary.BigEndian, true
	default:
		return nil, false
	}
}

// tiffIFDChain walks the linked list of IFDs starting at the offset
// given in the header, returning each IFD's offset and the file offset
// of its own "next IFD" pointer (so the last one's pointer can be
// retargeted).
func tiffIFDChain(data []byte, order binary.ByteOrder) ([]int, []int, error) {
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("walker: tiff: file too short for a header")
	}
	var offsets, nextPtrPos []int
	offset := int(order.Uint32(data[4:8]))
	for offset != 0 {
		if offset+2 > len(data) {
			return nil, nil, fmt.Errorf("walker: tiff: IFD offset out of range")
		}
		count := int(order.Uint16(data[offset : offset+2]))
		entriesEnd := offset + 2 + count*12
		if entriesEnd+4 > len(data) {
			return nil, nil, fmt.Errorf("walker: tiff: IFD entry count out of range")
		}
		offsets = append(offsets, offset)
		nextPtrPos = append(nextPtrPos, entriesEnd)
		offset = int(order.Uint32(data[entriesEnd : entriesEnd+4]))
	}
	return offsets, nextPtrPos, nil
}

// Scan treats each IFD's entry table as a candidate window; SEAL records
// in TIFF live in the out-of-line ASCII data an entry points to, not in
// the entry table itself, but this is enough for the container dispatch
// to locate and re-parse existing records.
func (TIFF) Scan(data []byte) []Window {
	order, ok := tiffByteOrder(data)
	if !ok {
		return nil
	}
	offsets, nextPtrPos, err := tiffIFDChain(data, order)
	if err != nil {
		return nil
	}
	var windows []Window
	for i, off := range offsets {
		windows = append(windows, Window{Start: off, End: nextPtrPos[i] + 4})
	}
	return windows
}

// PickInsertionOffset appends at EOF: the new IFD and its out-of-line
// ASCII data are both placed after all existing content.
func (TIFF) PickInsertionOffset(data []byte) (int, error) {
	order, ok := tiffByteOrder(data)
	if !ok {
		return 0, fmt.Errorf("walker: tiff: unrecognised byte-order marker")
	}
	if _, _, err := tiffIFDChain(data, order); err != nil {
		return 0, err
	}
	return len(data), nil
}

// BuildBlock composes record-data || new-IFD(one ASCII entry pointing at
// record-data || next-IFD-pointer=0). The caller is responsible for
// retargeting the previous IFD's "next IFD" pointer to point at the new
// IFD's offset (insertOffset + len(recordBytes)).
func (TIFF) BuildBlock(store *field.Store, fileLen int64, insertOffset int, prevSFlags string) ([]byte, error) {
	store.SetText("b", DigestRangeFor(prevSFlags))

	recordBytes, sLo, sHi, err := BuildRecordBlock(store)
	if err != nil {
		return nil, err
	}
	recordBytes = append(recordBytes, 0x00) // ASCII fields are NUL-terminated

	var order binary.ByteOrder = binary.LittleEndian
	if store.GetText("@tiff-byte-order") == "MM" {
		order = binary.BigEndian
	}

	entry := make([]byte, 12)
	order.PutUint16(entry[0:2], sealTIFFTag)
	order.PutUint16(entry[2:4], tiffTypeASCII)
	order.PutUint32(entry[4:8], uint32(len(recordBytes)))
	order.PutUint32(entry[8:12], uint32(insertOffset))

	ifd := make([]byte, 2+12+4)
	order.PutUint16(ifd[0:2], 1) // entry count
	copy(ifd[2:14], entry)
	order.PutUint32(ifd[14:18], 0) // next IFD = none

	block := append(recordBytes, ifd...)

	PromoteSOffset(store, 0, sLo, sHi)
	return block, nil
}

// DetectByteOrder records the file's TIFF byte-order marker onto store so
// BuildBlock can emit its new IFD entry with matching endianness; the
// container dispatcher calls this before BuildBlock.
func DetectByteOrder(store *field.Store, data []byte) {
	if len(data) >= 2 && string(data[0:2]) == "MM" {
		store.SetText("@tiff-byte-order", "MM")
		return
	}
	store.SetText("@tiff-byte-order", "II")
}
