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

// BMFFBoxTypeOffset is the byte offset of ISO-BMFF's identifying "ftyp" box type;
// there is no fixed leading magic, so container dispatch checks for this
// 4-byte tag at offset 4 instead of a byte prefix.
const BMFFBoxTypeOffset = 4

// BMFF implements Walker for ISO Base Media File Format containers (MP4,
// HEIF, AVIF, and similar "ftyp"-box formats), grounded on
// other_examples/Origin-Protocol-Origin-Protocol__mp4_verifier.go's box
// walk: size(4, BE) || type(4) || [extended size(8, BE) if size==1] ||
// payload, with size==0 meaning the box runs to EOF.
type BMFF struct{}

type bmffBox struct {
	boxType            string
	headerStart        int
	payloadStart, end  int
}

func bmffScanBoxes(data []byte) []bmffBox {
	var boxes []bmffBox
	pos := 0
	for pos+8 <= len(data) {
		size := int(getUint32BE(data[pos : pos+4]))
		typ := string(data[pos+4 : pos+8])
		headerLen := 8
		switch {
		case size == 1:
			if pos+16 > len(data) {
				return boxes
			}
			hi := getUint32BE(data[pos+8 : pos+12])
			lo := getUint32BE(data[pos+12 : pos+16])
			size = int(uint64(hi)<<32 | uint64(lo))
			headerLen = 16
		case size == 0:
			size = len(data) - pos
		}
		end := pos + size
		if end > len(data) || end <= pos {
			return boxes
		}
		boxes = append(boxes, bmffBox{boxType: typ, headerStart: pos, payloadStart: pos + headerLen, end: end})
		pos = end
	}
	return boxes
}

// Scan treats every top-level box's payload as a candidate window.
func (BMFF) Scan(data []byte) []Window {
	var windows []Window
	for _, b := range bmffScanBoxes(data) {
		windows = append(windows, Window{Start: b.payloadStart, End: b.end})
	}
	return windows
}

// PickInsertionOffset always appends at EOF: a new top-level "SEAL" box
// is legal anywhere at the top level per the ISO-BMFF box grammar, and
// appending avoids disturbing offsets any other box might reference.
func (BMFF) PickInsertionOffset(data []byte) (int, error) {
	if len(data) < 8 {
		return 0, fmt.Errorf("walker: bmff: file too short for a box header")
	}
	return len(data), nil
}

// BuildBlock composes size(4, BE) || "SEAL" || record.
func (BMFF) BuildBlock(store *field.Store, fileLen int64, insertOffset int, prevSFlags string) ([]byte, error) {
	store.SetText("b", DigestRangeFor(prevSFlags))

	recordBytes, sLo, sHi, err := BuildRecordBlock(store)
	if err != nil {
		return nil, err
	}

	block := make([]byte, 8+len(recordBytes))
	putUint32BE(block[0:4], uint32(len(block)))
	copy(block[4:8], "SEAL")
	copy(block[8:], recordBytes)

	PromoteSOffset(store, 8, sLo, sHi)
	return block, nil
}
