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

// EBMLMagic is the EBML header ID every Matroska/WebM file begins with.
var EBMLMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// sealEBMLID is the custom EBML element ID spec.md §4.12 reserves for a
// SEAL record: the four bytes 0x53 0x45 0x41 0x4C ("SEAL" in ASCII). Read
// as an EBML VINT, the leading byte 0x53 marks a 2-byte ID, not a
// class-D (4-byte) one.
var sealEBMLID = []byte{0x53, 0x45, 0x41, 0x4C}

// Matroska implements Walker for EBML-based containers (Matroska, WebM),
// grounded on original_source/src/format-mkv.cpp: a SEAL record is
// carried in a custom top-level EBML element inserted right after the
// EBML header on every signing; records are never appended at EOF.
type Matroska struct{}

// ebmlVINT decodes an EBML variable-length integer starting at pos,
// returning the decoded value and the number of bytes consumed.
func ebmlVINT(data []byte, pos int) (value uint64, width int, ok bool) {
	if pos >= len(data) {
		return 0, 0, false
	}
	first := data[pos]
	width = 1
	mask := byte(0x80)
	for mask != 0 && first&mask == 0 {
		mask >>= 1
		width++
	}
	if mask == 0 || pos+width > len(data) {
		return 0, 0, false
	}
	value = uint64(first &^ mask)
	for i := 1; i < width; i++ {
		value = value<<8 | uint64(data[pos+i])
	}
	return value, width, true
}

type ebmlElement struct {
	idStart, dataStart, end int
}

func ebmlScanTopLevel(data []byte, from int) []ebmlElement {
	var elems []ebmlElement
	pos := from
	for pos < len(data) {
		idStart := pos
		_, idWidth, ok := ebmlVINT(data, pos)
		if !ok {
			break
		}
		sizeVal, sizeWidth, ok := ebmlVINT(data, pos+idWidth)
		if !ok {
			break
		}
		dataStart := pos + idWidth + sizeWidth
		end := dataStart + int(sizeVal)
		if end > len(data) || end <= dataStart {
			break
		}
		elems = append(elems, ebmlElement{idStart: idStart, dataStart: dataStart, end: end})
		pos = end
	}
	return elems
}

// Scan treats every top-level element's payload as a candidate window.
func (Matroska) Scan(data []byte) []Window {
	var windows []Window
	for _, e := range ebmlScanTopLevel(data, 0) {
		windows = append(windows, Window{Start: e.dataStart, End: e.end})
	}
	return windows
}

// PickInsertionOffset returns the offset right after the first top-level
// element (the EBML header), whether or not the file already carries a
// SEAL element; it never returns EOF.
func (Matroska) PickInsertionOffset(data []byte) (int, error) {
	elems := ebmlScanTopLevel(data, 0)
	if len(elems) == 0 {
		return 0, fmt.Errorf("walker: matroska: no EBML header element found")
	}
	return elems[0].end, nil
}

// BuildBlock composes the SEAL element ID, an EBML size VINT, and the
// record. Per spec.md §4.12, Matroska cannot truly "append" inside an
// arbitrary position without renegotiating parent sizes, so the digest
// range anchors on the literal "/>" bytes that close the record rather
// than running to EOF.
func (Matroska) BuildBlock(store *field.Store, fileLen int64, insertOffset int, prevSFlags string) ([]byte, error) {
	store.SetText("b", AnchorToOwnClosingTag(prevSFlags))

	recordBytes, sLo, sHi, err := BuildRecordBlock(store)
	if err != nil {
		return nil, err
	}

	sizeVINT := ebmlEncodeSize(uint64(len(recordBytes)))
	block := make([]byte, 0, len(sealEBMLID)+len(sizeVINT)+len(recordBytes))
	block = append(block, sealEBMLID...)
	block = append(block, sizeVINT...)
	block = append(block, recordBytes...)

	PromoteSOffset(store, len(sealEBMLID)+len(sizeVINT), sLo, sHi)
	return block, nil
}

// ebmlEncodeSize encodes n as a minimal-width EBML VINT.
func ebmlEncodeSize(n uint64) []byte {
	widths := []struct {
		width int
		max   uint64
	}{
		{1, 1<<7 - 2},
		{2, 1<<14 - 2},
		{3, 1<<21 - 2},
		{4, 1<<28 - 2},
		{5, 1<<35 - 2},
		{6, 1<<42 - 2},
		{7, 1<<49 - 2},
		{8, 1<<56 - 2},
	}
	for _, w := range widths {
		if n <= w.max {
			b := make([]byte, w.width)
			marker := byte(0x80) >> uint(w.width-1)
			v := n
			for i := w.width - 1; i >= 0; i-- {
				b[i] = byte(v)
				v >>= 8
			}
			b[0] |= marker
			return b
		}
	}
	return []byte{0x01, 0, 0, 0, 0, 0, 0, 0, 0} // 8-byte unknown-size marker, unreachable for realistic record sizes
}
