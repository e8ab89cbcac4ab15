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
	"fmt"

	"github.com/sage-x-project/seal/field"
)

const gifHeaderLen = 6 + 7 // "GIF8[79]a" + logical screen descriptor

// sealGIFTag is the application-extension payload prefix original_source/
// src/format-gif.cpp uses to distinguish a SEAL extension block from any
// other application extension already present in the file.
const sealGIFTag = "SEAL1.0"

// GIF implements Walker for GIF87a/GIF89a, grounded on original_source/
// src/format-gif.cpp: a SEAL record is carried in an Application
// Extension block (0x21 0xFF) inserted before the first image descriptor
// or the trailer, with its payload written contiguously after a single
// 0xFF sub-block length byte (see BuildBlock).
type GIF struct{}

func gifGCTSize(data []byte) int {
	if len(data) < gifHeaderLen {
		return 0
	}
	packed := data[10]
	if packed&0x80 == 0 {
		return 0
	}
	colorCount := 1 << ((packed & 0x07) + 1)
	return colorCount * 3
}

// gifScanBlocks walks every top-level block after the header/GCT,
// continuing past image descriptors and stopping at (and including) the
// trailer, or at the first byte that opens no known block.
type gifBlock struct {
	tag             byte // 0x21 extension, 0x2C image descriptor, 0x3B trailer
	start, end      int  // end is one past the block's last byte
	isSealExtension bool
}

func gifScanBlocks(data []byte) []gifBlock {
	pos := gifHeaderLen + gifGCTSize(data)
	var blocks []gifBlock
	for pos < len(data) {
		start := pos
		switch data[pos] {
		case 0x3B:
			blocks = append(blocks, gifBlock{tag: 0x3B, start: start, end: pos + 1})
			return blocks
		case 0x2C:
			// Image descriptor: skip fixed fields + optional local color
			// table, then the image data sub-blocks, terminated by 0x00.
			pos += 10
			if pos >= len(data) {
				return blocks
			}
			packed := data[pos-1]
			pos++ // LZW minimum code size
			if packed&0x80 != 0 {
				pos += (1 << ((packed & 0x07) + 1)) * 3
			}
			for pos < len(data) {
				size := int(data[pos])
				pos++
				if size == 0 {
					break
				}
				pos += size
			}
			blocks = append(blocks, gifBlock{tag: 0x2C, start: start, end: pos})
		case 0x21:
			isSeal := false
			p := pos + 2 // skip introducer + label
			appStart := p
			for p < len(data) {
				size := int(data[p])
				p++
				if size == 0 {
					break
				}
				if p == appStart+1 && p+len(sealGIFTag) <= len(data) && string(data[p:p+len(sealGIFTag)]) == sealGIFTag {
					isSeal = true
				}
				p += size
			}
			blocks = append(blocks, gifBlock{tag: 0x21, start: start, end: p, isSealExtension: isSeal})
		default:
			return blocks
		}
		pos = blocks[len(blocks)-1].end
	}
	return blocks
}

// Scan treats every extension block (0x21, any label), from its
// introducer through its last sub-block, as a candidate window.
func (GIF) Scan(data []byte) []Window {
	var windows []Window
	for _, b := range gifScanBlocks(data) {
		if b.tag == 0x21 {
			windows = append(windows, Window{Start: b.start, End: b.end})
		}
	}
	return windows
}

// PickInsertionOffset returns the offset of the first image descriptor or
// the trailer, whichever comes first.
func (GIF) PickInsertionOffset(data []byte) (int, error) {
	blocks := gifScanBlocks(data)
	for _, b := range blocks {
		if b.tag == 0x2C || b.tag == 0x3B {
			return b.start, nil
		}
	}
	return 0, fmt.Errorf("walker: gif: no image descriptor or trailer found")
}

// gifSlopeLen is the null padding original_source/src/format-gif.cpp
// appends after the record: since the record's (and signature's) final
// length isn't known until signing completes, the sub-block length byte
// that should describe it can't be written up front. The original's fix
// is to never write that length byte at all — declare one 255-byte
// sub-block up front and then let the payload run past it contiguously;
// the null slope just pads past the end so a GIF decoder's forward walk
// (which ignores unknown application extensions anyway) has unreferenced
// bytes to land in rather than running off the end of the file.
const gifSlopeLen = 127

// BuildBlock composes 0x21, 0xFF, a single hardcoded 0xFF sub-block
// length byte, then "SEAL1.0"+record+"\n" written contiguously (not
// re-chunked into further 255-byte sub-blocks with their own length
// bytes), followed by a null slope — original_source/src/format-gif.cpp's
// technique (see Seal_GIFsign), not a GIF-conformant re-chunking. Real
// re-chunking would place length-byte markers inside the record/signature
// range itself, and @s would no longer span a contiguous physical range
// for iowriter.Finalize to overwrite.
func (GIF) BuildBlock(store *field.Store, fileLen int64, insertOffset int, prevSFlags string) ([]byte, error) {
	store.SetText("b", AnchorToOwnClosingTag(prevSFlags))

	recordBytes, sLo, sHi, err := BuildRecordBlock(store)
	if err != nil {
		return nil, err
	}

	block := []byte{0x21, 0xFF, 0xFF} // introducer, label, sub-block length (assumed >= 255)
	block = append(block, []byte(sealGIFTag)...)
	block = append(block, recordBytes...)
	block = append(block, '\n')
	block = append(block, make([]byte, gifSlopeLen)...)

	// The record starts right after the 3-byte header and the tag.
	prefix := 3 + len(sealGIFTag)
	PromoteSOffset(store, prefix, sLo, sHi)
	return block, nil
}
