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
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalLittleEndianTIFF() []byte {
	header := make([]byte, 8)
	copy(header[0:2], "II")
	binary.LittleEndian.PutUint16(header[2:4], 42)
	binary.LittleEndian.PutUint32(header[4:8], 8) // first IFD right after header

	ifd := make([]byte, 2+12+4)
	binary.LittleEndian.PutUint16(ifd[0:2], 1) // one entry
	binary.LittleEndian.PutUint16(ifd[2:4], 0x0100)
	binary.LittleEndian.PutUint16(ifd[4:6], 3)
	binary.LittleEndian.PutUint32(ifd[6:10], 1)
	binary.LittleEndian.PutUint32(ifd[10:14], 1)
	binary.LittleEndian.PutUint32(ifd[14:18], 0) // no next IFD

	return append(header, ifd...)
}

func TestTIFFScanReturnsIFDWindow(t *testing.T) {
	data := minimalLittleEndianTIFF()
	windows := TIFF{}.Scan(data)
	require.Len(t, windows, 1)
	assert.Equal(t, 8, windows[0].Start)
}

func TestTIFFPickInsertionOffsetAppendsAtEOF(t *testing.T) {
	data := minimalLittleEndianTIFF()
	offset, err := TIFF{}.PickInsertionOffset(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), offset)
}

func TestTIFFBuildBlockEmitsASCIIEntryMatchingByteOrder(t *testing.T) {
	store := newMinimalStore(t)
	DetectByteOrder(store, minimalLittleEndianTIFF())

	block, err := TIFF{}.BuildBlock(store, 0, 8, "")
	require.NoError(t, err)
	require.True(t, len(block) >= 18)

	ifd := block[len(block)-18:]
	count := binary.LittleEndian.Uint16(ifd[0:2])
	assert.EqualValues(t, 1, count)
	tag := binary.LittleEndian.Uint16(ifd[2:4])
	assert.EqualValues(t, sealTIFFTag, tag)
	typ := binary.LittleEndian.Uint16(ifd[4:6])
	assert.EqualValues(t, tiffTypeASCII, typ)
}

func TestDetectByteOrderRecognisesBigEndian(t *testing.T) {
	store := newMinimalStore(t)
	data := append([]byte("MM"), 0, 42, 0, 0, 0, 8)
	DetectByteOrder(store, data)
	assert.Equal(t, "MM", store.GetText("@tiff-byte-order"))
}
