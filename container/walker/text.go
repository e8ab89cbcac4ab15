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
	"unicode/utf8"

	"github.com/sage-x-project/seal/field"
)

// Text implements Walker for plain text and XML-family documents (XML,
// SVG, HTML), grounded on original_source/src/format-text.cpp: an
// XML-like document gets a "<?seal .../?>" processing instruction
// before its root element; plain text gets a bare "<seal .../>" record
// appended at EOF. The file's existing newline convention (CR, LF,
// CRLF) is detected and reused for the inserted line.
type Text struct{}

// IsValidUTF8 reports whether data is entirely valid UTF-8, the last-
// resort test container dispatch uses to recognise a text file.
func IsValidUTF8(data []byte) bool {
	return utf8.Valid(data)
}

// looksLikeXML reports whether data begins (after optional whitespace)
// with an XML declaration or a '<' tag opener.
func looksLikeXML(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '<'
}

// Newline reports the newline convention of the file's first line break:
// "\r\n", "\n", or "\r", defaulting to "\n" if none is found.
func Newline(data []byte) string {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' {
			if i > 0 && data[i-1] == '\r' {
				return "\r\n"
			}
			return "\n"
		}
		if data[i] == '\r' {
			if i+1 < len(data) && data[i+1] == '\n' {
				return "\r\n"
			}
			return "\r"
		}
	}
	return "\n"
}

// Scan reports every "<?seal" processing instruction or bare "<seal"
// element as a candidate window.
func (Text) Scan(data []byte) []Window {
	var windows []Window
	for _, needle := range [][]byte{[]byte("<?seal"), []byte("<seal")} {
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
	}
	return windows
}

// PickInsertionOffset returns the offset right after any leading XML
// declaration (for XML-like documents, so the record lands before the
// root element) or the byte length of the file (for plain text, where
// the record is appended at EOF).
func (Text) PickInsertionOffset(data []byte) (int, error) {
	if !looksLikeXML(data) {
		return len(data), nil
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	offset := len(data) - len(trimmed)
	if bytes.HasPrefix(trimmed, []byte("<?xml")) {
		end := bytes.Index(trimmed, []byte("?>"))
		if end >= 0 {
			offset += end + len("?>")
		}
	}
	return offset, nil
}

// BuildBlock composes "<?seal ... ?>" for XML-like documents or
// "<seal .../>" for plain text, preceded and followed by the file's
// detected newline.
func (Text) BuildBlock(store *field.Store, fileLen int64, insertOffset int, prevSFlags string) ([]byte, error) {
	store.SetText("b", DigestRangeFor(prevSFlags))

	xml := store.GetText("@text-is-xml") == "1"
	nl := store.GetText("@text-newline")
	if nl == "" {
		nl = "\n"
	}

	var recordBytes []byte
	var sLo, sHi int
	var err error
	if xml {
		recordBytes, sLo, sHi, err = buildXMLProcessingInstruction(store)
	} else {
		recordBytes, sLo, sHi, err = BuildRecordBlock(store)
	}
	if err != nil {
		return nil, err
	}

	block := append([]byte(nl), recordBytes...)
	block = append(block, []byte(nl)...)

	PromoteSOffset(store, len(nl), sLo, sHi)
	return block, nil
}

// buildXMLProcessingInstruction runs the record builder then rewrites
// the emitted "<seal ... />" skin into an XML processing instruction
// "<?seal ... ?>", shifting @s by the 1-byte difference in prefix length
// ("<?" vs "<").
func buildXMLProcessingInstruction(store *field.Store) (recordBytes []byte, sLo, sHi int, err error) {
	recordBytes, sLo, sHi, err = BuildRecordBlock(store)
	if err != nil {
		return nil, 0, 0, err
	}
	pi := make([]byte, 0, len(recordBytes)+1)
	pi = append(pi, '<', '?')
	pi = append(pi, recordBytes[1:len(recordBytes)-2]...) // strip leading "<" and trailing "/>"
	pi = append(pi, '?', '>')
	return pi, sLo + 1, sHi + 1, nil
}

// ClassifyText records whether data looks like XML and which newline
// convention it uses, for BuildBlock to consult; the container
// dispatcher calls this before BuildBlock.
func ClassifyText(store *field.Store, data []byte) {
	if looksLikeXML(data) {
		store.SetText("@text-is-xml", "1")
	}
	store.SetText("@text-newline", Newline(data))
}

// Sidecar implements Walker for a ".seal" sidecar file: syntactically
// identical to Text, but the container dispatcher hashes the
// accompanying source media file (not the sidecar itself) before
// invoking the verifier, per spec.md §4.5's preface and §4.12.
type Sidecar struct{ Text }
