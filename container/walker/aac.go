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
	"github.com/sage-x-project/seal/field"
)

// adtsFrameSync finds ADTS's 12-bit frame sync (0xFFF mask on the first
// byte plus the top nibble of the second) starting at from.
func adtsFrameSync(data []byte, from int) int {
	for i := from; i+1 < len(data); i++ {
		if data[i] == 0xFF && data[i+1]&0xF0 == 0xF0 {
			return i
		}
	}
	return -1
}

func adtsFrameLength(data []byte, pos int) int {
	if pos+6 > len(data) {
		return 0
	}
	return int(data[pos+3]&0x03)<<11 | int(data[pos+4])<<3 | int(data[pos+5])>>5
}

// AAC implements Walker for bare ADTS AAC streams, grounded on
// original_source/src/format-aac.cpp: a SEAL record is appended after
// the last complete frame; offsets may legitimately run past EOF for a
// stream truncated mid-frame, per spec.md §4.12.
type AAC struct{}

// Scan walks the ADTS frame chain and reports the gap after each frame
// (where a previously inserted record, if any, would sit) as a window.
func (AAC) Scan(data []byte) []Window {
	var windows []Window
	pos := 0
	for {
		idx := adtsFrameSync(data, pos)
		if idx < 0 {
			break
		}
		length := adtsFrameLength(data, idx)
		if length <= 0 {
			break
		}
		frameEnd := idx + length
		next := adtsFrameSync(data, frameEnd)
		if next > frameEnd {
			windows = append(windows, Window{Start: frameEnd, End: next})
		}
		if next < 0 {
			break
		}
		pos = next
	}
	return windows
}

// PickInsertionOffset appends after the last complete ADTS frame.
func (AAC) PickInsertionOffset(data []byte) (int, error) {
	pos, end := 0, 0
	for {
		idx := adtsFrameSync(data, pos)
		if idx < 0 {
			break
		}
		length := adtsFrameLength(data, idx)
		if length <= 0 {
			break
		}
		end = idx + length
		pos = end
	}
	return end, nil
}

// BuildBlock composes the bare record, anchored on its own closing tag
// in the digest range for the same reason as MPEG.
func (AAC) BuildBlock(store *field.Store, fileLen int64, insertOffset int, prevSFlags string) ([]byte, error) {
	store.SetText("b", AnchorToOwnClosingTag(prevSFlags))

	recordBytes, sLo, sHi, err := BuildRecordBlock(store)
	if err != nil {
		return nil, err
	}

	PromoteSOffset(store, 0, sLo, sHi)
	return recordBytes, nil
}
