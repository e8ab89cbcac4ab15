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

package record

import (
	"fmt"
	"strings"

	"github.com/sage-x-project/seal/encoding"
	"github.com/sage-x-project/seal/field"
)

// emissionOrder is the canonical attribute order a builder emits, per
// spec.md §4.4. "d" and "s" are appended separately after this list (and
// "pk" between them when inline-key mode is enabled).
var emissionOrder = []string{
	"seal", "kv", "ka", "da", "sf", "comment", "copyright", "info",
	"src", "srca", "srcd", "id", "b",
}

// dateLengths maps the sf date subsecond-digit count (1..6) to the total
// byte length of "YYYYMMDDhhmmss.FFFFFF:" including the trailing colon.
// Index 0 means no fractional digits: "YYYYMMDDhhmmss:".
var dateLengths = [7]int{
	15, // no fraction: 14 digits + ':'
	17, // ".F" + ':' -> 14 + 1 + 1 + 1
	18,
	19,
	20,
	21,
	22,
}

// DateFieldLength returns the byte length of the "[YYYYMMDDhhmmss[.F...]:]"
// date prefix for the given subsecond-digit count (0 for none, 1..6 for
// fractional precision), kept centrally per spec.md §9 to avoid drift
// between the signer and the placeholder sizing here.
func DateFieldLength(subsecondDigits int) int {
	if subsecondDigits < 0 || subsecondDigits > 6 {
		subsecondDigits = 0
	}
	return dateLengths[subsecondDigits]
}

// HasDatePrefix reports whether sf begins with "date".
func HasDatePrefix(sf string) bool {
	return strings.HasPrefix(sf, "date")
}

// SubsecondDigits parses the digit immediately following "date" in sf, if
// any (e.g. "date3:hex" -> 3). Returns 0 if absent or out of range.
func SubsecondDigits(sf string) int {
	if !HasDatePrefix(sf) {
		return 0
	}
	rest := sf[len("date"):]
	if rest == "" || rest[0] < '0' || rest[0] > '9' {
		return 0
	}
	n := int(rest[0] - '0')
	if n < 1 || n > 6 {
		return 0
	}
	return n
}

// Build emits a canonical record into store["@record"] with a placeholder
// signature value of exactly sigSize bytes (as computed by the signer's
// dry run and stored at store["@sigsize"]), and records the placeholder's
// byte offsets — relative to the start of @record — at @s[0]/@s[1].
//
// inlineKey, when true, emits "pk" (and pka/pkd if present) between "d" and
// "s".
func Build(store *field.Store, inlineKey bool) error {
	sigSizeV, ok := store.GetIndexed("@sigsize", 0, field.KindSizeArray)
	if !ok {
		return fmt.Errorf("record: build called before signer dry run populated @sigsize")
	}
	sigSize := int(sigSizeV)

	var b strings.Builder
	b.WriteString("<seal ")

	for _, key := range emissionOrder {
		if !store.Has(key) {
			continue
		}
		writeAttr(&b, key, store.GetText(key))
	}

	writeAttr(&b, "d", store.GetText("d"))

	if inlineKey {
		for _, key := range []string{"pk", "pka", "pkd"} {
			if store.Has(key) {
				writeAttr(&b, key, store.GetText(key))
			}
		}
	}

	b.WriteString(`s="`)
	sOffsetStart := b.Len()

	sf := store.GetText("sf")
	datePrefixLen := 0
	if HasDatePrefix(sf) {
		datePrefixLen = DateFieldLength(SubsecondDigits(sf))
	}
	encodedLen := sigSize - datePrefixLen
	if encodedLen < 0 {
		return fmt.Errorf("record: sigsize %d too small for date prefix of %d bytes", sigSize, datePrefixLen)
	}

	placeholder := strings.Repeat(" ", datePrefixLen+encodedLen)
	b.WriteString(placeholder)
	sOffsetEnd := b.Len()

	b.WriteString(`"/>`)

	record := b.String()
	store.SetText("@record", record)
	store.SetIndexed("@s", 0, uint64(sOffsetStart), field.KindSizeArray)
	store.SetIndexed("@s", 1, uint64(sOffsetEnd), field.KindSizeArray)

	return nil
}

func writeAttr(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString(`="`)
	b.WriteString(encoding.BackslashEncode(value))
	b.WriteString(`" `)
}
