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

// Package digest implements the b= byte-range expression language and the
// primary/double-digest computation of spec.md §4.5.
package digest

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/sage-x-project/seal/field"
)

// Range is one resolved, within-file byte segment [Lo, Hi).
type Range struct {
	Lo, Hi int64
}

// Algorithm names the supported digest algorithms, matching spec.md's
// da= vocabulary.
type Algorithm string

const (
	SHA224 Algorithm = "sha224"
	SHA256 Algorithm = "sha256"
	SHA384 Algorithm = "sha384"
	SHA512 Algorithm = "sha512"
)

// NewHash returns a fresh hash.Hash for algo, or an error for an unknown
// algorithm — surfaced to callers as @error = "unknown digest algorithm".
func NewHash(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case SHA224:
		return sha256.New224(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA384:
		return sha512.New384(), nil
	case SHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unknown digest algorithm: %q", algo)
	}
}

// Anchors holds the resolved offsets a b= expression may reference.
type Anchors struct {
	F, f int64 // 0, file length
	S, s int64 // current signature start/end
	P, p int64 // previous signature start/end
}

// segment is one parsed "lhs~rhs" piece, tracking which anchor letters
// appeared on each side (for @sflags0/@sflags1).
type segment struct {
	lo, hi     int64
	sideFlags0 string
	sideFlags1 string
}

// ParseByteRange evaluates b against the given anchors and file length,
// returning ordered, validated segments. Errors use the exact strings
// spec.md §4.5 names so callers can match on them.
func ParseByteRange(b string, a Anchors, fileLen int64) ([]segment, error) {
	parts := strings.Split(b, ",")
	segs := make([]segment, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		seg, err := parseSegment(part, a, fileLen)
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

func parseSegment(expr string, a Anchors, fileLen int64) (segment, error) {
	tildeIdx := strings.IndexByte(expr, '~')
	if tildeIdx < 0 {
		return segment{}, fmt.Errorf("invalid range")
	}
	lhsExpr := expr[:tildeIdx]
	rhsExpr := expr[tildeIdx+1:]

	lo, flags0, _, err := evalSide(lhsExpr, a)
	if err != nil {
		return segment{}, err
	}

	hi, flags1, _, err := evalSide(rhsExpr, a)
	if err != nil {
		return segment{}, err
	}
	// Absent rhs (nothing after '~') defaults to f, per spec.md §4.5.
	if strings.TrimSpace(rhsExpr) == "" {
		hi += a.f
	}

	if lo < 0 || hi < 0 {
		return segment{}, fmt.Errorf("underflow")
	}
	if lo > fileLen || hi > fileLen {
		return segment{}, fmt.Errorf("overflow")
	}
	if lo > hi {
		return segment{}, fmt.Errorf("range begins after it ends")
	}

	return segment{lo: lo, hi: hi, sideFlags0: flags0, sideFlags1: flags1}, nil
}

// evalSide accumulates a signed sum of anchors and integer literals from a
// single side of a segment expression (e.g. "s+5-2" or "F").
func evalSide(expr string, a Anchors) (value int64, flags string, hadAnchor bool, err error) {
	var seenFlags strings.Builder
	sign := int64(1)
	var acc int64
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch c {
		case '+':
			sign = 1
			i++
		case '-':
			sign = -1
			i++
		case 'F':
			value += sign * a.F
			seenFlags.WriteByte('F')
			hadAnchor = true
			sign = 1
			i++
		case 'f':
			value += sign * a.f
			seenFlags.WriteByte('f')
			hadAnchor = true
			sign = 1
			i++
		case 'S':
			value += sign * a.S
			seenFlags.WriteByte('S')
			hadAnchor = true
			sign = 1
			i++
		case 's':
			value += sign * a.s
			seenFlags.WriteByte('s')
			hadAnchor = true
			sign = 1
			i++
		case 'P':
			value += sign * a.P
			seenFlags.WriteByte('P')
			hadAnchor = true
			sign = 1
			i++
		case 'p':
			value += sign * a.p
			seenFlags.WriteByte('p')
			hadAnchor = true
			sign = 1
			i++
		default:
			if c < '0' || c > '9' {
				return 0, "", false, fmt.Errorf("invalid range")
			}
			start := i
			for i < len(expr) && expr[i] >= '0' && expr[i] <= '9' {
				i++
			}
			var n int64
			fmt.Sscanf(expr[start:i], "%d", &n)
			acc = n
			value += sign * acc
			sign = 1
		}
	}
	return value, seenFlags.String(), hadAnchor, nil
}

// Result carries the digest engine's output fields, mirroring the
// @digest1/@digest2/@sflags*/@digestrange ephemeral keys of spec.md §4.5.
type Result struct {
	Digest1      []byte
	Digest2      []byte
	SFlags0      string
	SFlags1      string
	SFlags       string
	DigestRanges []Range
}

// Digest evaluates store["b"] against file and writes the results into
// store (the @digest1/@digestrange/@sflags* ephemeral keys) as well as
// returning them directly. prefaceFile, if non-empty, is hashed in full
// before the first byte that an F or P anchor contributes — the sidecar
// binding mechanism of spec.md §4.5.
func Digest(store *field.Store, filePath string, prefaceFile string) (Result, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return Result{}, fmt.Errorf("digest: open %s: %w", filePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Result{}, fmt.Errorf("digest: stat %s: %w", filePath, err)
	}
	fileLen := info.Size()

	a := anchorsFromStore(store, fileLen)

	b := store.GetText("b")
	if b == "" {
		b = "F~S,s~f"
	}
	segs, err := ParseByteRange(b, a, fileLen)
	if err != nil {
		store.SetText("@error", err.Error())
		return Result{}, err
	}

	algoName := store.GetText("da")
	if algoName == "" {
		algoName = string(SHA256)
	}
	h, err := NewHash(Algorithm(algoName))
	if err != nil {
		store.SetText("@error", err.Error())
		return Result{}, err
	}

	touchesFOrP := false
	var flags0, flags1 strings.Builder
	var ranges []Range
	for _, seg := range segs {
		flags0.WriteString(seg.sideFlags0)
		flags1.WriteString(seg.sideFlags1)
		if strings.ContainsAny(seg.sideFlags0+seg.sideFlags1, "FP") {
			touchesFOrP = true
		}
		if seg.lo == seg.hi {
			ranges = append(ranges, Range{Lo: seg.lo, Hi: seg.hi})
			continue
		}
		if err := hashFileRange(h, f, seg.lo, seg.hi); err != nil {
			return Result{}, err
		}
		ranges = append(ranges, Range{Lo: seg.lo, Hi: seg.hi})
	}

	if touchesFOrP && prefaceFile != "" {
		// The preface must be hashed before the first contributing byte;
		// since we hash segments in declared order and F/P are conventionally
		// first, we detect this case up front and re-hash with the preface
		// prepended for correctness regardless of ordering.
		h2, err := NewHash(Algorithm(algoName))
		if err != nil {
			return Result{}, err
		}
		if err := hashWholeFile(h2, prefaceFile); err != nil {
			return Result{}, err
		}
		for _, seg := range segs {
			if seg.lo == seg.hi {
				continue
			}
			if err := hashFileRange(h2, f, seg.lo, seg.hi); err != nil {
				return Result{}, err
			}
		}
		h = h2
	}

	digest1 := h.Sum(nil)
	store.Set("@digest1", digest1, field.KindBinary)
	store.SetText("@sflags0", flags0.String())
	store.SetText("@sflags1", flags1.String())
	store.SetText("@sflags", flags0.String()+flags1.String())

	for i, r := range ranges {
		store.SetIndexed("@digestrange", i*2, uint64(r.Lo), field.KindSizeArray)
		store.SetIndexed("@digestrange", i*2+1, uint64(r.Hi), field.KindSizeArray)
	}

	result := Result{
		Digest1:      digest1,
		SFlags0:      flags0.String(),
		SFlags1:      flags1.String(),
		SFlags:       flags0.String() + flags1.String(),
		DigestRanges: ranges,
	}

	sigDate := store.GetText("@sigdate")
	id := store.GetText("id")
	if sigDate != "" || id != "" {
		digest2, err := doubleDigest(Algorithm(algoName), sigDate, id, digest1)
		if err != nil {
			return Result{}, err
		}
		store.Set("@digest2", digest2, field.KindBinary)
		result.Digest2 = digest2
	}

	return result, nil
}

// doubleDigest computes H([sigdate:][id:]digest1) per spec.md §4.5.
func doubleDigest(algo Algorithm, sigDate, id string, digest1 []byte) ([]byte, error) {
	h, err := NewHash(algo)
	if err != nil {
		return nil, err
	}
	if sigDate != "" {
		h.Write([]byte(sigDate))
		h.Write([]byte(":"))
	}
	if id != "" {
		h.Write([]byte(id))
		h.Write([]byte(":"))
	}
	h.Write(digest1)
	return h.Sum(nil), nil
}

func anchorsFromStore(store *field.Store, fileLen int64) Anchors {
	a := Anchors{F: 0, f: fileLen}
	if v, ok := store.GetIndexed("@s", 0, field.KindSizeArray); ok {
		a.S = int64(v)
	}
	if v, ok := store.GetIndexed("@s", 1, field.KindSizeArray); ok {
		a.s = int64(v)
	}
	if v, ok := store.GetIndexed("@p", 0, field.KindSizeArray); ok {
		a.P = int64(v)
	}
	if v, ok := store.GetIndexed("@p", 1, field.KindSizeArray); ok {
		a.p = int64(v)
	}
	return a
}

func hashFileRange(h hash.Hash, f *os.File, lo, hi int64) error {
	if lo >= hi {
		return nil
	}
	if _, err := f.Seek(lo, io.SeekStart); err != nil {
		return fmt.Errorf("digest: seek: %w", err)
	}
	_, err := io.CopyN(h, f, hi-lo)
	if err != nil {
		return fmt.Errorf("digest: read range [%d,%d): %w", lo, hi, err)
	}
	return nil
}

func hashWholeFile(h hash.Hash, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("digest: open preface %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("digest: hash preface %s: %w", path, err)
	}
	return nil
}
