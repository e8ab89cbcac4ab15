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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// adtsFrame builds one ADTS frame of the given total length (header +
// payload), with the 13-bit frame-length field set accordingly.
func adtsFrame(length int) []byte {
	frame := make([]byte, length)
	frame[0] = 0xFF
	frame[1] = 0xF1
	frame[3] = byte(length >> 11 & 0x03)
	frame[4] = byte(length >> 3)
	frame[5] = byte(length<<5) | 0x1F
	return frame
}

func TestAACPickInsertionOffsetAppendsAfterLastFrame(t *testing.T) {
	data := append(adtsFrame(30), adtsFrame(30)...)
	offset, err := AAC{}.PickInsertionOffset(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), offset)
}

func TestAACScanReturnsGapBetweenFrames(t *testing.T) {
	frame1 := adtsFrame(30)
	frame2 := adtsFrame(30)
	inserted := []byte("<seal .../>")
	data := append(append(frame1, inserted...), frame2...)

	windows := AAC{}.Scan(data)
	require.Len(t, windows, 1)
	assert.Equal(t, string(inserted), string(data[windows[0].Start:windows[0].End]))
}

func TestAACBuildBlockAnchorsOnOwnClosingTag(t *testing.T) {
	store := newMinimalStore(t)
	_, err := AAC{}.BuildBlock(store, 0, 0, "")
	require.NoError(t, err)
	assert.Contains(t, store.GetText("b"), "s~s+3")
}
