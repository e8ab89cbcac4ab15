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

// JPEGMagic is the SOI marker every JPEG file begins with.
var JPEGMagic = []byte{0xFF, 0xD8}

const (
	markerSOS = 0xDA
	markerAPP2 = 0xE2
	markerAPP8 = 0xE8
	markerAPP9 = 0xE9
)

// JPEG implements Walker for JFIF/EXIF JPEG files, grounded on
// original_source/src/format-jpeg.cpp: records live in an APP8 (or APP9,
// if an APP8 was already used) segment inserted right before the first
// SOS marker. MPF (APP2) offset-table cosmetics beyond detecting its
// presence are out of scope per spec.md §1.
type JPEG struct{}

// jpegSegment is one marker segment: [0xFF, marker, len-hi, len-lo, data...].
type jpegSegment struct {
	marker     byte
	dataStart  int
	dataEnd    int
	headerSize int // 2 (marker) + 2 (length), for segments that carry a length
}

func scanSegments(data []byte) []jpegSegment {
	var segs []jpegSegment
	pos := len(JPEGMagic)
	for pos+2 <= len(data) {
		if data[pos] != 0xFF {
			pos++
			continue
		}
		marker := data[pos+1]
		if marker == 0x00 || marker == 0xFF {
			pos += 2
			continue
		}
		if marker == markerSOS {
			segs = append(segs, jpegSegment{marker: marker, dataStart: pos + 2, dataEnd: pos + 2})
			break // entropy-coded scan data follows; stop segment walking
		}
		if pos+4 > len(data) {
			break
		}
		length := int(data[pos+2])<<8 | int(data[pos+3])
		dataStart := pos + 4
		dataEnd := dataStart + length - 2
		if dataEnd > len(data) || dataEnd < dataStart {
			break
		}
		segs = append(segs, jpegSegment{marker: marker, dataStart: dataStart, dataEnd: dataEnd, headerSize: 4})
		pos = dataEnd
	}
	return segs
}

// Scan treats every non-SOS marker segment's data as a candidate window.
func (JPEG) Scan(data []byte) []Window {
	var windows []Window
	for _, seg := range scanSegments(data) {
		if seg.marker == markerSOS {
			continue
		}
		windows = append(windows, Window{Start: seg.dataStart, End: seg.dataEnd})
	}
	return windows
}

// PickInsertionOffset returns the byte offset of the first SOS marker.
// MPF APP2 detection is done by ClassifyExisting, and BuildBlock adds
// the MPF warning to "@warnings".
func (JPEG) PickInsertionOffset(data []byte) (int, error) {
	for _, seg := range scanSegments(data) {
		if seg.marker == markerSOS {
			return seg.dataStart - 2, nil
		}
	}
	return 0, fmt.Errorf("walker: jpeg: no SOS marker found")
}

// jpegIdentifier is the mandatory 5-byte tag original_source/src/
// format-jpeg.cpp writes immediately before the record inside the
// APP8/APP9 segment (SealAddBin(Args,"@JPEGblock",5,"SEAL\0")), so a
// verifier reading any spec-conformant JPEG finds the same layout this
// walker writes: 0xFF, marker, len-hi, len-lo, "SEAL\0", record.
var jpegIdentifier = []byte("SEAL\x00")

// BuildBlock composes 0xFF, marker, len-hi, len-lo, "SEAL\0", record —
// where marker is APP8 unless an APP8 segment already exists, in which
// case APP9 is used instead (spec.md §4.12).
func (JPEG) BuildBlock(store *field.Store, fileLen int64, insertOffset int, prevSFlags string) ([]byte, error) {
	store.SetText("b", DigestRangeFor(prevSFlags))

	recordBytes, sLo, sHi, err := BuildRecordBlock(store)
	if err != nil {
		return nil, err
	}

	marker := byte(markerAPP8)
	mpfSeen := false
	// A full file isn't available here (only the store); the caller
	// (container dispatch) is expected to have already classified prior
	// APP8/MPF presence into store (ClassifyExisting) before calling BuildBlock.
	if store.GetText("@jpeg-has-app8") == "1" {
		marker = markerAPP9
	}
	if store.GetText("@jpeg-has-mpf") == "1" {
		mpfSeen = true
	}
	if mpfSeen {
		store.Append("@warnings", []byte("MPF offset table is frozen after the first signature; subsequent signing does not rewrite it\n"))
	}

	segLen := 2 + len(jpegIdentifier) + len(recordBytes) // length field covers itself + identifier + data
	block := make([]byte, 4+len(jpegIdentifier)+len(recordBytes))
	block[0] = 0xFF
	block[1] = marker
	block[2] = byte(segLen >> 8)
	block[3] = byte(segLen)
	copy(block[4:], jpegIdentifier)
	copy(block[4+len(jpegIdentifier):], recordBytes)

	PromoteSOffset(store, 4+len(jpegIdentifier), sLo, sHi)
	return block, nil
}

// ClassifyExisting inspects data for a prior APP8 segment and an MPF APP2
// segment, setting the store flags BuildBlock consults. The container
// dispatcher calls this before BuildBlock.
func ClassifyExisting(store *field.Store, data []byte) {
	for _, seg := range scanSegments(data) {
		switch seg.marker {
		case markerAPP8:
			store.SetText("@jpeg-has-app8", "1")
		case markerAPP2:
			if seg.dataEnd-seg.dataStart >= 4 && string(data[seg.dataStart:seg.dataStart+4]) == "MPF\x00" {
				store.SetText("@jpeg-has-mpf", "1")
			}
		}
	}
}
