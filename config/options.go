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

package config

import (
	"fmt"
	"strings"

	"github.com/sage-x-project/seal/digest"
)

// Options is the typed form of the "-O" comma-list. cmd/sealtool acts on
// Test only; the other fields record which tokens were given, and no
// package in this module reads them.
type Options struct {
	// Append is set by the "append" token.
	Append bool
	// Finalize is set by the "finalize" token. Nothing checks it: no
	// finalized mark is written, and signing the file again is not refused.
	Finalize bool
	// Test runs the full pipeline without writing the output file.
	Test bool
	// NoFileDate is set by the "nofiledate" token.
	NoFileDate bool
	// DigestAlgorithm is set by the "shaNNN" shorthand tokens
	// (O=sha224 .. O=sha512); empty means "use the da= default".
	DigestAlgorithm digest.Algorithm
}

// ParseOptions parses a comma-separated "-O" option list, per
// original_source/src/seal.hpp's recognized tokens: append, finalize,
// test, nofiledate, and the sha224/sha256/sha384/sha512 digest-algorithm
// shorthands.
func ParseOptions(list string) (Options, error) {
	var opt Options
	list = strings.TrimSpace(list)
	if list == "" {
		return opt, nil
	}
	for _, tok := range strings.Split(list, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		switch tok {
		case "append":
			opt.Append = true
		case "finalize":
			opt.Finalize = true
		case "test":
			opt.Test = true
		case "nofiledate":
			opt.NoFileDate = true
		case "sha224":
			opt.DigestAlgorithm = digest.SHA224
		case "sha256":
			opt.DigestAlgorithm = digest.SHA256
		case "sha384":
			opt.DigestAlgorithm = digest.SHA384
		case "sha512":
			opt.DigestAlgorithm = digest.SHA512
		default:
			return Options{}, fmt.Errorf("config: unrecognised -O option %q", tok)
		}
	}
	return opt, nil
}
