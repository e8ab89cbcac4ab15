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

// Package iowriter implements spec.md §4.13's output writer: splice a
// walker-built block into a source file at a chosen offset, promote the
// placeholder signature's byte range to be file-absolute, and later
// overwrite that range in place once the real signature is known.
package iowriter

import (
	"fmt"
	"io"
	"os"

	"github.com/sage-x-project/seal/field"
)

// Insert stream-copies src[0:insertOffset], then block, then
// src[insertOffset:], into dst, and promotes store["@s"] from
// block-relative to file-absolute by adding insertOffset. dst is
// created (or truncated) fresh; the caller is responsible for renaming
// it over src, if that's the desired outcome, once Finalize has run.
func Insert(src []byte, dstPath string, block []byte, insertOffset int, store *field.Store) (err error) {
	if insertOffset < 0 || insertOffset > len(src) {
		return fmt.Errorf("iowriter: insertion offset %d out of range [0,%d]", insertOffset, len(src))
	}

	f, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("iowriter: open dst: %w", err)
	}
	defer func() {
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
	}()

	w := io.Writer(f)
	if _, err = w.Write(src[:insertOffset]); err != nil {
		return fmt.Errorf("iowriter: write prefix: %w", err)
	}
	if _, err = w.Write(block); err != nil {
		return fmt.Errorf("iowriter: write block: %w", err)
	}
	if _, err = w.Write(src[insertOffset:]); err != nil {
		return fmt.Errorf("iowriter: write suffix: %w", err)
	}

	promoteSOffset(store, insertOffset)
	return nil
}

// promoteSOffset adds insertOffset to store["@s"][0] and [1], taking
// them from block-relative (as left by a walker's BuildBlock) to
// file-absolute.
func promoteSOffset(store *field.Store, insertOffset int) {
	s0, _ := store.GetIndexed("@s", 0, field.KindSizeArray)
	s1, _ := store.GetIndexed("@s", 1, field.KindSizeArray)
	store.SetIndexed("@s", 0, s0+uint64(insertOffset), field.KindSizeArray)
	store.SetIndexed("@s", 1, s1+uint64(insertOffset), field.KindSizeArray)
}

// Finalize overwrites dst[@s[0]:@s[1]] in place with signature, enforcing
// the placeholder-size invariant: len(signature) must equal the
// placeholder's width exactly, or the write is aborted before touching
// the file.
func Finalize(dstPath string, store *field.Store, signature []byte) error {
	s0, ok0 := store.GetIndexed("@s", 0, field.KindSizeArray)
	s1, ok1 := store.GetIndexed("@s", 1, field.KindSizeArray)
	if !ok0 || !ok1 {
		return fmt.Errorf("iowriter: finalize called before @s was set")
	}
	placeholderLen := int(s1 - s0)
	if len(signature) != placeholderLen {
		return fmt.Errorf("iowriter: record size changed while writing: placeholder %d bytes, signature %d bytes", placeholderLen, len(signature))
	}

	f, err := os.OpenFile(dstPath, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("iowriter: open dst for finalize: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteAt(signature, int64(s0)); err != nil {
		return fmt.Errorf("iowriter: write signature: %w", err)
	}
	return nil
}
