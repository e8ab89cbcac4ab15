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

package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/seal/container/walker"
)

func TestIdentifyRecognisesEachFixedOrderFormat(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want Format
	}{
		{"png", walker.PNGMagic, FormatPNG},
		{"jpeg", walker.JPEGMagic, FormatJPEG},
		{"gif87", []byte("GIF87a"), FormatGIF},
		{"gif89", []byte("GIF89a"), FormatGIF},
		{"riff", append(append([]byte{}, walker.RIFFMagic...), make([]byte, 8)...), FormatRIFF},
		{"matroska", walker.EBMLMagic, FormatMatroska},
		{"bmff", append([]byte{0, 0, 0, 20}, []byte("ftypisom")...), FormatBMFF},
		{"pdf", walker.PDFMagic, FormatPDF},
		{"tiff-le", []byte("II\x2A\x00\x08\x00\x00\x00"), FormatTIFF},
		{"tiff-be", []byte("MM\x00\x2A\x00\x00\x00\x08"), FormatTIFF},
		{"ppm", []byte("P6\n1 1\n255\n"), FormatPPM},
		{"dicom", append(make([]byte, 128), walker.DICOMMagic...), FormatDICOM},
		{"mpeg", []byte{0xFF, 0xE2, 0x90, 0x00}, FormatMPEG},
		{"aac", []byte{0xFF, 0xF1, 0x00, 0x00, 0x00, 0x00}, FormatAAC},
		{"text", []byte("hello world"), FormatText},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Identify(tc.data))
		})
	}
}

func TestIdentifyRecognisesZipByEOCD(t *testing.T) {
	eocd := make([]byte, 22)
	copy(eocd[0:4], []byte{0x50, 0x4B, 0x05, 0x06})
	data := append([]byte("PK\x03\x04"), eocd...)
	assert.Equal(t, FormatZip, Identify(data))
}

func TestIdentifyReturnsUnknownForUnrecognisedBinary(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02, 0xFF, 0xFE}
	assert.Equal(t, FormatUnknown, Identify(data))
}

func TestWalkerForEveryKnownFormat(t *testing.T) {
	for _, f := range []Format{
		FormatPNG, FormatJPEG, FormatGIF, FormatRIFF, FormatMatroska,
		FormatBMFF, FormatPDF, FormatTIFF, FormatPPM, FormatDICOM,
		FormatMPEG, FormatAAC, FormatText, FormatZip,
	} {
		w, err := WalkerFor(f)
		require.NoError(t, err, f.String())
		assert.NotNil(t, w, f.String())
	}
}

func TestWalkerForUnknownErrors(t *testing.T) {
	_, err := WalkerFor(FormatUnknown)
	assert.Error(t, err)
}
