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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/seal/field"
)

func minimalGIF() []byte {
	buf := []byte("GIF89a")
	buf = append(buf, 0x01, 0x00, 0x01, 0x00) // width=1, height=1
	buf = append(buf, 0x00)                   // packed: no GCT
	buf = append(buf, 0x00, 0x00)              // background color, aspect ratio
	// Minimal image descriptor with a single one-byte data sub-block.
	buf = append(buf, 0x2C)
	buf = append(buf, 0x00, 0x00, 0x00, 0x00) // left, top
	buf = append(buf, 0x01, 0x00, 0x01, 0x00) // width, height
	buf = append(buf, 0x00)                   // packed: no local color table
	buf = append(buf, 0x02)                   // LZW minimum code size
	buf = append(buf, 0x01, 0x00)              // sub-block of size 1 holding 0x00; no block terminator
	buf = append(buf, 0x3B)                    // trailer
	return buf
}

func TestGIFPickInsertionOffsetFindsImageDescriptor(t *testing.T) {
	data := minimalGIF()
	offset, err := GIF{}.PickInsertionOffset(data)
	require.NoError(t, err)
	assert.Equal(t, byte(0x2C), data[offset])
}

func TestGIFPickInsertionOffsetFallsBackToTrailer(t *testing.T) {
	data := []byte("GIF89a")
	data = append(data, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00)
	data = append(data, 0x3B)
	offset, err := GIF{}.PickInsertionOffset(data)
	require.NoError(t, err)
	assert.Equal(t, byte(0x3B), data[offset])
}

func TestGIFBuildBlockEmbedsTagAndTerminates(t *testing.T) {
	store := newMinimalStore(t)
	block, err := GIF{}.BuildBlock(store, 0, 0, "")
	require.NoError(t, err)

	require.True(t, len(block) >= 4)
	assert.Equal(t, byte(0x21), block[0])
	assert.Equal(t, byte(0xFF), block[1])
	assert.Equal(t, byte(0xFF), block[2], "a single hardcoded sub-block length byte, not a real one")
	assert.Equal(t, sealGIFTag, string(block[3:3+len(sealGIFTag)]))
	assert.Equal(t, byte(0x00), block[len(block)-1], "the null slope's last byte")
}

func TestGIFBuildBlockWritesRecordContiguouslyAfterTag(t *testing.T) {
	store := newMinimalStore(t)
	// A large comment inflates the record well past 255 bytes; the
	// original's technique never re-chunks it, it just runs the payload
	// on past the single fake 0xFF length byte.
	store.SetText("comment", strings.Repeat("x", 400))
	block, err := GIF{}.BuildBlock(store, 0, 0, "")
	require.NoError(t, err)

	s0, ok0 := store.GetIndexed("@s", 0, field.KindSizeArray)
	s1, ok1 := store.GetIndexed("@s", 1, field.KindSizeArray)
	require.True(t, ok0)
	require.True(t, ok1)
	require.Less(t, s1, uint64(len(block)))

	// @s must describe one contiguous physical range within block: no
	// sub-block length byte may land inside [s0, s1).
	prefix := 3 + len(sealGIFTag)
	sValue := strings.LastIndex(string(block[prefix:]), `s="`) + len(`s="`)
	assert.Equal(t, uint64(prefix+sValue), s0)
	assert.True(t, s1 > s0)

	tail := len(block)
	assert.Equal(t, make([]byte, gifSlopeLen), block[tail-gifSlopeLen:])
}
