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

// Package record implements the SEAL record grammar: parsing an existing
// `<seal .../>` record out of a byte window, and building a canonical one
// with a sized placeholder signature ready for insertion into a container.
package record

import (
	"fmt"
	"strings"

	"github.com/sage-x-project/seal/encoding"
	"github.com/sage-x-project/seal/field"
)

// skin describes one of the three syntactic forms a record may appear in.
type skin struct {
	start string
	end   string
}

var skins = []skin{
	{start: "<seal ", end: "/>"},
	{start: "<?seal ", end: "?>"},
	{start: "&lt;seal ", end: "/&gt;"},
}

// Parsed holds the result of a successful parse: the populated field store
// and the offset, relative to the start of window, one past the record's
// closing token, so a caller can resume scanning from there.
type Parsed struct {
	Store  *field.Store
	RecEnd int
}

// Parse scans window for the first recognizable SEAL record, starting the
// search at or after searchFrom (a window-relative offset). base is the
// absolute file offset of window[0], used to convert in-window signature
// offsets to absolute file offsets recorded in @s.
//
// Returns nil, false if no record is found in the window.
func Parse(window []byte, searchFrom int, base int64, ordinal int) (*Parsed, bool) {
	best := -1
	var bestSkin skin
	for _, sk := range skins {
		idx := indexFrom(window, []byte(sk.start), searchFrom)
		if idx < 0 {
			continue
		}
		if best == -1 || idx < best {
			best = idx
			bestSkin = sk
		}
	}
	if best < 0 {
		return nil, false
	}

	entangled := bestSkin.start == "&lt;seal "

	pos := best + len(bestSkin.start)
	store := field.New()
	warnings := map[string]bool{}
	ordSet := false

	for pos < len(window) {
		// Skip whitespace.
		for pos < len(window) && isSpace(window[pos]) {
			pos++
		}
		if matchAt(window, pos, bestSkin.end) {
			pos += len(bestSkin.end)
			break
		}
		if pos >= len(window) {
			return nil, false
		}

		keyStart := pos
		for pos < len(window) && window[pos] != '=' && !isSpace(window[pos]) {
			pos++
		}
		key := string(window[keyStart:pos])
		for pos < len(window) && isSpace(window[pos]) {
			pos++
		}
		if pos >= len(window) || window[pos] != '=' {
			return nil, false
		}
		pos++ // consume '='
		for pos < len(window) && isSpace(window[pos]) {
			pos++
		}
		if pos >= len(window) {
			return nil, false
		}

		var quoteEntity bool
		var quoteByte byte
		if matchAt(window, pos, "&quot;") {
			quoteEntity = true
			pos += len("&quot;")
		} else if window[pos] == '\'' || window[pos] == '"' {
			quoteByte = window[pos]
			pos++
		} else {
			return nil, false
		}

		valStart := pos
		for pos < len(window) {
			if window[pos] == '\\' && pos+1 < len(window) {
				pos += 2
				continue
			}
			if quoteEntity {
				if matchAt(window, pos, "&quot;") {
					break
				}
			} else if window[pos] == quoteByte {
				break
			}
			pos++
		}
		valEnd := pos
		rawVal := window[valStart:valEnd]

		if quoteEntity {
			pos += len("&quot;")
		} else {
			pos++ // consume closing quote
		}

		decoded := string(rawVal)
		if quoteEntity {
			decoded = encoding.XMLDecode(decoded)
		} else {
			decoded = encoding.BackslashDecode(decoded)
		}
		if entangled {
			decoded = encoding.XMLDecode(decoded)
		}

		if key == "s" {
			store.SetIndexed("@s", 0, uint64(base)+uint64(valStart), field.KindSizeArray)
			store.SetIndexed("@s", 1, uint64(base)+uint64(valEnd), field.KindSizeArray)
			if !ordSet {
				store.SetIndexed("@s", 2, uint64(ordinal), field.KindSizeArray)
				ordSet = true
			}
		}

		if store.Has(key) {
			warnings[key] = true // duplicate attribute: later overrides earlier
		}
		store.SetText(key, decoded)
	}

	if !store.Has("s") {
		// Invariant violation surfaced by the caller as "unsigned".
	}

	for k := range warnings {
		store.Append("@warnings", []byte(fmt.Sprintf("duplicate attribute %q overridden by later occurrence\n", k)))
	}

	recEnd := pos
	store.SetIndexed("@RecEnd", 0, uint64(recEnd), field.KindSizeArray)

	return &Parsed{Store: store, RecEnd: recEnd}, true
}

func indexFrom(haystack, needle []byte, from int) int {
	if from < 0 {
		from = 0
	}
	if from > len(haystack) {
		return -1
	}
	idx := strings.Index(string(haystack[from:]), string(needle))
	if idx < 0 {
		return -1
	}
	return idx + from
}

func matchAt(buf []byte, pos int, s string) bool {
	if pos+len(s) > len(buf) {
		return false
	}
	return string(buf[pos:pos+len(s)]) == s
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
