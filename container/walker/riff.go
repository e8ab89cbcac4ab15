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

// RIFFMagic is the 4-byte tag every RIFF container (WAV, WebP, AVI, ...)
// begins with; the format proper (WAVE, WEBP, AVI ) follows at offset 8.
var RIFFMagic = []byte("RIFF")

// RIFF implements Walker for RIFF-based containers, grounded on
// original_source/src/format-riff.cpp: chunks are tag(4) || size(4, LE)
// || data, padded to an even boundary; a new "SEAL" chunk is appended
// inside the outer RIFF list and the outer length is updated in place.
type RIFF struct{}

type riffChunk struct {
	tag        string
	dataStart  int
	dataEnd    int // excludes pad byte
}

func riffScanChunks(data []byte) []riffChunk {
	var chunks []riffChunk
	pos := 12 // "RIFF" + size(4) + format(4)
	for pos+8 <= len(data) {
		tag := string(data[pos : pos+4])
		size := int(getUint32LE(data[pos+4 : pos+8]))
		dataStart := pos + 8
		dataEnd := dataStart + size
		if dataEnd > len(data) {
			break
		}
		chunks = append(chunks, riffChunk{tag: tag, dataStart: dataStart, dataEnd: dataEnd})
		pos = dataEnd
		if size%2 == 1 {
			pos++ // pad byte
		}
	}
	return chunks
}

// Scan treats every inner chunk's data as a candidate window.
func (RIFF) Scan(data []byte) []Window {
	var windows []Window
	for _, c := range riffScanChunks(data) {
		windows = append(windows, Window{Start: c.dataStart, End: c.dataEnd})
	}
	return windows
}

// PickInsertionOffset appends right after the last top-level chunk
// (including its pad byte, if any), i.e. at the end of the outer list.
func (RIFF) PickInsertionOffset(data []byte) (int, error) {
	if len(data) < 12 {
		return 0, fmt.Errorf("walker: riff: file too short for a RIFF header")
	}
	chunks := riffScanChunks(data)
	pos := 12
	for _, c := range chunks {
		pos = c.dataEnd
		if (c.dataEnd-c.dataStart)%2 == 1 {
			pos++
		}
	}
	return pos, nil
}

// BuildBlock composes "SEAL" || size(4, LE) || record [|| pad byte]; the
// outer RIFF size in bytes [4:8] is left to PatchOuterSize.
func (RIFF) BuildBlock(store *field.Store, fileLen int64, insertOffset int, prevSFlags string) ([]byte, error) {
	store.SetText("b", DigestRangeFor(prevSFlags))

	recordBytes, sLo, sHi, err := BuildRecordBlock(store)
	if err != nil {
		return nil, err
	}

	chunkLen := len(recordBytes)
	block := make([]byte, 8+chunkLen)
	copy(block[0:4], "SEAL")
	putUint32LE(block[4:8], uint32(chunkLen))
	copy(block[8:], recordBytes)
	if chunkLen%2 == 1 {
		block = append(block, 0x00)
	}

	PromoteSOffset(store, 8, sLo, sHi)
	return block, nil
}

// PatchOuterSize rewrites a RIFF file's outer length field (bytes [4:8]) to
// reflect added inserted bytes; cmd/sealtool calls this on the source bytes
// after BuildBlock and before the block is written.
func PatchOuterSize(data []byte, added int) {
	if len(data) < 8 {
		return
	}
	current := getUint32LE(data[4:8])
	putUint32LE(data[4:8], current+uint32(added))
}
