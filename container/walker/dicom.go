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
	"fmt"

	"github.com/sage-x-project/seal/field"
)

// DICOMMagic is the "DICM" marker found at offset 128 in a file with a
// standard 128-byte preamble.
var DICOMMagic = []byte("DICM")

const dicomPreambleLen = 128

// sealDICOMGroup is the private group spec.md §4.12 reserves for SEAL
// data elements.
const sealDICOMGroup = 0xCEA1

// sealDICOMReservationElement is the element number the group's first
// signing reserves to mark the private group as SEAL-owned.
const sealDICOMReservationElement = 0x0010

// DICOM implements Walker for DICOM, grounded on original_source/
// src/format-dicom.cpp: SEAL records are carried as data elements in a
// private group (0xCEA1,xxxx), with explicit VR ST or UT chosen by
// record size (ST: <= 0xFFFE bytes, otherwise UT with a 4-byte length);
// VR LT is never written.
type DICOM struct{}

type dicomElement struct {
	group, element uint16
	vr             string
	dataStart, dataEnd int
}

// dicomScanElements walks explicit-VR little-endian data elements
// starting right after the preamble and "DICM" marker. Implicit-VR and
// big-endian transfer syntaxes are out of scope for the record scanner;
// files using them simply yield no SEAL windows.
func dicomScanElements(data []byte) []dicomElement {
	pos := dicomPreambleLen + len(DICOMMagic)
	var elems []dicomElement
	for pos+8 <= len(data) {
		group := binary.LittleEndian.Uint16(data[pos : pos+2])
		element := binary.LittleEndian.Uint16(data[pos+2 : pos+4])
		vr := string(data[pos+4 : pos+6])
		var dataStart, length int
		switch vr {
		case "OB", "OW", "OF", "SQ", "UT", "UN":
			if pos+12 > len(data) {
				return elems
			}
			length = int(binary.LittleEndian.Uint32(data[pos+8 : pos+12]))
			dataStart = pos + 12
		default:
			length = int(binary.LittleEndian.Uint16(data[pos+6 : pos+8]))
			dataStart = pos + 8
		}
		dataEnd := dataStart + length
		if dataEnd > len(data) || dataEnd < dataStart {
			return elems
		}
		elems = append(elems, dicomElement{group: group, element: element, vr: vr, dataStart: dataStart, dataEnd: dataEnd})
		pos = dataEnd
	}
	return elems
}

// Scan reports every private-group SEAL element's data as a window.
func (DICOM) Scan(data []byte) []Window {
	var windows []Window
	for _, e := range dicomScanElements(data) {
		if e.group == sealDICOMGroup {
			windows = append(windows, Window{Start: e.dataStart, End: e.dataEnd})
		}
	}
	return windows
}

// PickInsertionOffset appends after the last data element.
func (DICOM) PickInsertionOffset(data []byte) (int, error) {
	elems := dicomScanElements(data)
	if len(elems) == 0 {
		return 0, fmt.Errorf("walker: dicom: no data elements found")
	}
	return elems[len(elems)-1].dataEnd, nil
}

// BuildBlock composes group(2, LE) || element(2, LE) || VR(2) ||
// length-field || record, choosing ST (2-byte length, <= 0xFFFE bytes)
// or UT (2 reserved bytes + 4-byte length) by record size, and prepends
// a zero-length reservation element on the group's first use.
func (DICOM) BuildBlock(store *field.Store, fileLen int64, insertOffset int, prevSFlags string) ([]byte, error) {
	store.SetText("b", DigestRangeFor(prevSFlags))

	recordBytes, sLo, sHi, err := BuildRecordBlock(store)
	if err != nil {
		return nil, err
	}
	if len(recordBytes)%2 == 1 {
		recordBytes = append(recordBytes, ' ') // DICOM values are even-length padded
	}

	var block []byte
	if store.GetText("@dicom-group-reserved") != "1" {
		block = append(block, dicomElementHeader(sealDICOMReservationElement, "ST", 0)...)
	}

	prefix := len(block)
	nextElement := uint16(0x0011)
	if len(recordBytes) <= 0xFFFE {
		header := dicomElementHeader(nextElement, "ST", len(recordBytes))
		block = append(block, header...)
		prefix += len(header)
	} else {
		header := dicomElementHeaderLong(nextElement, "UT", len(recordBytes))
		block = append(block, header...)
		prefix += len(header)
	}
	block = append(block, recordBytes...)

	PromoteSOffset(store, prefix, sLo, sHi)
	return block, nil
}

func dicomElementHeader(element uint16, vr string, length int) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint16(b[0:2], sealDICOMGroup)
	binary.LittleEndian.PutUint16(b[2:4], element)
	copy(b[4:6], vr)
	binary.LittleEndian.PutUint16(b[6:8], uint16(length))
	return b
}

func dicomElementHeaderLong(element uint16, vr string, length int) []byte {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint16(b[0:2], sealDICOMGroup)
	binary.LittleEndian.PutUint16(b[2:4], element)
	copy(b[4:6], vr)
	binary.LittleEndian.PutUint32(b[8:12], uint32(length))
	return b
}

// MarkGroupReserved flags store so BuildBlock skips re-emitting the
// group-reservation element on a file that already carries one.
func MarkGroupReserved(store *field.Store, data []byte) {
	for _, e := range dicomScanElements(data) {
		if e.group == sealDICOMGroup && e.element == sealDICOMReservationElement {
			store.SetText("@dicom-group-reserved", "1")
			return
		}
	}
}
