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

// mpegFrameSync finds the next 11-bit MPEG audio frame sync word
// (0xFFE0 mask) starting at from, or -1 if none remains.
func mpegFrameSync(data []byte, from int) int {
	for i := from; i+1 < len(data); i++ {
		if data[i] == 0xFF && data[i+1]&0xE0 == 0xE0 {
			return i
		}
	}
	return -1
}

// MPEG implements Walker for sync-byte-aligned MPEG audio/video streams
// (MP3 and bare MPEG-ES), grounded on original_source/src/format-
// mpeg.cpp: a SEAL record is appended between two frames, aligned so
// its first byte cannot be mistaken for a frame-sync word.
type MPEG struct{}

// Scan reports the gaps between consecutive frame syncs as candidate
// windows — a record inserted between frames shows up there.
func (MPEG) Scan(data []byte) []Window {
	var windows []Window
	pos := 0
	var last = -1
	for {
		idx := mpegFrameSync(data, pos)
		if idx < 0 {
			break
		}
		if last >= 0 && idx > last {
			windows = append(windows, Window{Start: last, End: idx})
		}
		last = idx
		pos = idx + 2
	}
	return windows
}

// PickInsertionOffset returns the offset of the last detected frame sync,
// so the record lands just before the last frame, or EOF if no sync is
// found; MPEG streams have no container-level trailer to anchor on.
func (MPEG) PickInsertionOffset(data []byte) (int, error) {
	pos, last := 0, len(data)
	for {
		idx := mpegFrameSync(data, pos)
		if idx < 0 {
			break
		}
		last = idx
		pos = idx + 2
	}
	return last, nil
}

// BuildBlock composes the bare record; no framing bytes are needed
// since a SEAL record's own "<seal " / "/>" delimiters are not valid
// frame-sync bytes. The digest range anchors on the record's own
// closing tag rather than EOF, matching spec.md §4.12's note that MPEG
// does not support true appending in the digest sense.
func (MPEG) BuildBlock(store *field.Store, fileLen int64, insertOffset int, prevSFlags string) ([]byte, error) {
	store.SetText("b", AnchorToOwnClosingTag(prevSFlags))

	recordBytes, sLo, sHi, err := BuildRecordBlock(store)
	if err != nil {
		return nil, err
	}

	PromoteSOffset(store, 0, sLo, sHi)
	return recordBytes, nil
}
