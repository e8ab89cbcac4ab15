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
	"bytes"
	"fmt"

	"github.com/sage-x-project/seal/field"
)

// ppmMagics are the header tokens identifying PPM (P3/P6), PGM (P2/P5),
// and PBM (P1/P4) in the Netpbm family.
var ppmMagics = []string{"P1", "P2", "P3", "P4", "P5", "P6"}

// PPM implements Walker for the Netpbm plain/raw formats, grounded on
// original_source/src/format-ppm.cpp: the header is a magic token
// followed by whitespace-or-comment-separated ASCII integers (width,
// height, and for non-bitmap variants a maxval), then pixel data begins
// immediately after the last header field. A SEAL record is inserted as
// a "# <seal .../>\n" comment line right before the pixel data.
type PPM struct{}

// ppmHeaderEnd scans past the magic token and exactly n whitespace-
// separated integer fields (skipping '#' comment lines along the way),
// returning the offset immediately after the last field's trailing
// whitespace byte — the first byte of pixel data.
func ppmHeaderEnd(data []byte, fields int) (int, error) {
	if len(data) < 2 {
		return 0, fmt.Errorf("walker: ppm: file too short for a header")
	}
	pos := 2
	seen := 0
	for seen < fields {
		for pos < len(data) && isPPMSpace(data[pos]) {
			pos++
		}
		if pos < len(data) && data[pos] == '#' {
			for pos < len(data) && data[pos] != '\n' {
				pos++
			}
			continue
		}
		start := pos
		for pos < len(data) && !isPPMSpace(data[pos]) {
			pos++
		}
		if pos == start {
			return 0, fmt.Errorf("walker: ppm: truncated header")
		}
		seen++
	}
	if pos < len(data) && isPPMSpace(data[pos]) {
		pos++ // consume exactly one separator before pixel data
	}
	return pos, nil
}

func isPPMSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// ppmFieldCount returns the number of whitespace-separated integer
// header fields (width, height, [maxval]) for a given magic token.
func ppmFieldCount(magic string) int {
	if magic == "P1" || magic == "P4" {
		return 2 // bitmap variants have no maxval
	}
	return 3
}

// Scan reports every "# <seal" comment line as a candidate window.
func (PPM) Scan(data []byte) []Window {
	var windows []Window
	needle := []byte("<seal")
	from := 0
	for {
		idx := bytes.Index(data[from:], needle)
		if idx < 0 {
			break
		}
		start := from + idx
		end := start
		for end < len(data) && data[end] != '\n' {
			end++
		}
		windows = append(windows, Window{Start: start, End: end})
		from = end
	}
	return windows
}

// PickInsertionOffset returns the offset of the first pixel-data byte,
// immediately after the header's last numeric field.
func (PPM) PickInsertionOffset(data []byte) (int, error) {
	if len(data) < 2 {
		return 0, fmt.Errorf("walker: ppm: file too short for a header")
	}
	magic := string(data[0:2])
	if !contains(ppmMagics, magic) {
		return 0, fmt.Errorf("walker: ppm: unrecognised magic %q", magic)
	}
	return ppmHeaderEnd(data, ppmFieldCount(magic))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// BuildBlock composes "# " || record || "\n". Netpbm headers have no
// trailing length field to keep consistent, but the record still cannot
// be digested through to a meaningful EOF reference for raw (binary)
// variants since pixel data may itself contain byte sequences that look
// like container syntax; the digest instead anchors on the record's own
// closing "/>" .
func (PPM) BuildBlock(store *field.Store, fileLen int64, insertOffset int, prevSFlags string) ([]byte, error) {
	store.SetText("b", AnchorToOwnClosingTag(prevSFlags))

	recordBytes, sLo, sHi, err := BuildRecordBlock(store)
	if err != nil {
		return nil, err
	}

	block := make([]byte, 0, 2+len(recordBytes)+1)
	block = append(block, '#', ' ')
	block = append(block, recordBytes...)
	block = append(block, '\n')

	PromoteSOffset(store, 2, sLo, sHi)
	return block, nil
}
