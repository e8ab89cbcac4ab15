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

// Package container implements spec.md §4.11's format dispatch: probe a
// file's magic bytes in a fixed order and hand off to the matching
// container/walker.Walker.
package container

import (
	"bytes"
	"fmt"

	"github.com/sage-x-project/seal/container/walker"
	"github.com/sage-x-project/seal/field"
)

// Format identifies a detected container format.
type Format int

const (
	FormatUnknown Format = iota
	FormatPNG
	FormatJPEG
	FormatGIF
	FormatRIFF
	FormatMatroska
	FormatBMFF
	FormatPDF
	FormatTIFF
	FormatPPM
	FormatDICOM
	FormatMPEG
	FormatAAC
	FormatText
	FormatZip
)

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	case FormatGIF:
		return "gif"
	case FormatRIFF:
		return "riff"
	case FormatMatroska:
		return "matroska"
	case FormatBMFF:
		return "bmff"
	case FormatPDF:
		return "pdf"
	case FormatTIFF:
		return "tiff"
	case FormatPPM:
		return "ppm"
	case FormatDICOM:
		return "dicom"
	case FormatMPEG:
		return "mpeg"
	case FormatAAC:
		return "aac"
	case FormatText:
		return "text"
	case FormatZip:
		return "zip"
	default:
		return "unknown"
	}
}

// mpegFrameSyncAt reports whether an MPEG audio frame sync word starts
// at offset 0 — used to distinguish a bare MPEG/MP3 stream from other
// formats that share no fixed magic.
func mpegFrameSyncAt(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

func adtsSyncAt(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xF0 == 0xF0
}

func zipEOCDPresent(data []byte) bool {
	return len(data) >= 4 && bytes.Contains(data[max(0, len(data)-65557):], []byte{0x50, 0x4B, 0x05, 0x06})
}

// Identify probes data's magic bytes in the fixed order spec.md §4.11
// specifies: PNG, JPEG, GIF, RIFF, Matroska, BMFF, Zip, PDF, TIFF, PPM,
// DICOM, MPEG/MP3, AAC, Text (a UTF-8 validity check, last resort).
func Identify(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, walker.PNGMagic):
		return FormatPNG
	case bytes.HasPrefix(data, walker.JPEGMagic):
		return FormatJPEG
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return FormatGIF
	case bytes.HasPrefix(data, walker.RIFFMagic):
		return FormatRIFF
	case bytes.HasPrefix(data, walker.EBMLMagic):
		return FormatMatroska
	case len(data) >= 12 && string(data[4:8]) == "ftyp":
		return FormatBMFF
	case len(data) >= 4 && string(data[0:2]) == "PK" && zipEOCDPresent(data):
		return FormatZip
	case bytes.HasPrefix(data, walker.PDFMagic):
		return FormatPDF
	case len(data) >= 4 && (string(data[0:2]) == "II" || string(data[0:2]) == "MM"):
		return FormatTIFF
	case len(data) >= 2 && data[0] == 'P' && data[1] >= '1' && data[1] <= '6':
		return FormatPPM
	case len(data) >= 132 && bytes.Equal(data[128:132], walker.DICOMMagic):
		return FormatDICOM
	case mpegFrameSyncAt(data) && !adtsSyncAt(data):
		return FormatMPEG
	case adtsSyncAt(data):
		return FormatAAC
	case walker.IsValidUTF8(data):
		return FormatText
	default:
		return FormatUnknown
	}
}

// WalkerFor returns the Walker implementation for format, or an error
// for FormatUnknown.
func WalkerFor(format Format) (walker.Walker, error) {
	switch format {
	case FormatPNG:
		return walker.PNG{}, nil
	case FormatJPEG:
		return walker.JPEG{}, nil
	case FormatGIF:
		return walker.GIF{}, nil
	case FormatRIFF:
		return walker.RIFF{}, nil
	case FormatMatroska:
		return walker.Matroska{}, nil
	case FormatBMFF:
		return walker.BMFF{}, nil
	case FormatPDF:
		return walker.PDF{}, nil
	case FormatTIFF:
		return walker.TIFF{}, nil
	case FormatPPM:
		return walker.PPM{}, nil
	case FormatDICOM:
		return walker.DICOM{}, nil
	case FormatMPEG:
		return walker.MPEG{}, nil
	case FormatAAC:
		return walker.AAC{}, nil
	case FormatText:
		return walker.Text{}, nil
	case FormatZip:
		return walker.Zip{}, nil
	default:
		return nil, fmt.Errorf("container: unrecognised format")
	}
}

// ClassifyBeforeBuild runs any format-specific pre-BuildBlock
// classification a walker's BuildBlock depends on (JPEG's prior-APP8/MPF
// flags, TIFF's byte order, Text's XML-vs-plain and newline convention,
// DICOM's group-reservation flag). Formats without such dependencies are
// a no-op.
func ClassifyBeforeBuild(format Format, store *field.Store, data []byte) {
	switch format {
	case FormatJPEG:
		walker.ClassifyExisting(store, data)
	case FormatTIFF:
		walker.DetectByteOrder(store, data)
	case FormatText:
		walker.ClassifyText(store, data)
	case FormatDICOM:
		walker.MarkGroupReserved(store, data)
	}
}
