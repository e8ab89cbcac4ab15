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

// PDFMagic is the header every well-formed PDF begins with.
var PDFMagic = []byte("%PDF-")

// pdfEOF is the trailer marker every PDF file ends with (possibly
// followed by trailing whitespace).
var pdfEOF = []byte("%%EOF")

// PDF implements Walker for PDF, grounded on original_source/
// src/format-pdf.cpp: a SEAL record is carried in a comment line
// "%%<seal .../>" inserted immediately before the final "%%EOF" marker.
type PDF struct{}

// Scan finds every "%%<seal" comment line and reports its content as a
// candidate window.
func (PDF) Scan(data []byte) []Window {
	var windows []Window
	needle := []byte("%%<seal")
	from := 0
	for {
		idx := bytes.Index(data[from:], needle)
		if idx < 0 {
			break
		}
		start := from + idx + 2 // skip the leading "%%"
		end := start
		for end < len(data) && data[end] != '\n' && data[end] != '\r' {
			end++
		}
		windows = append(windows, Window{Start: start, End: end})
		from = end
	}
	return windows
}

// PickInsertionOffset returns the offset of the last "%%EOF" marker in
// the file.
func (PDF) PickInsertionOffset(data []byte) (int, error) {
	idx := bytes.LastIndex(data, pdfEOF)
	if idx < 0 {
		return 0, fmt.Errorf("walker: pdf: no %%%%EOF marker found")
	}
	return idx, nil
}

// BuildBlock composes "%%" || record || "\n".
func (PDF) BuildBlock(store *field.Store, fileLen int64, insertOffset int, prevSFlags string) ([]byte, error) {
	store.SetText("b", DigestRangeFor(prevSFlags))

	recordBytes, sLo, sHi, err := BuildRecordBlock(store)
	if err != nil {
		return nil, err
	}

	block := make([]byte, 0, 2+len(recordBytes)+1)
	block = append(block, '%', '%')
	block = append(block, recordBytes...)
	block = append(block, '\n')

	PromoteSOffset(store, 2, sLo, sHi)
	return block, nil
}
