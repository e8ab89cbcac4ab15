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

func dicomElementBytes(group, element uint16, vr string, data []byte) []byte {
	b := make([]byte, 8+len(data))
	binary.LittleEndian.PutUint16(b[0:2], group)
	binary.LittleEndian.PutUint16(b[2:4], element)
	copy(b[4:6], vr)
	binary.LittleEndian.PutUint16(b[6:8], uint16(len(data)))
	copy(b[8:], data)
	return b
}

func minimalDICOM() []byte {
	buf := make([]byte, dicomPreambleLen)
	buf = append(buf, DICOMMagic...)
	buf = append(buf, dicomElementBytes(0x0008, 0x0060, "CS", []byte("OT"))...)
	return buf
}

func TestDICOMScanIgnoresNonSealGroups(t *testing.T) {
	data := minimalDICOM()
	windows := DICOM{}.Scan(data)
	assert.Empty(t, windows)
}

func TestDICOMScanFindsSealGroupElements(t *testing.T) {
	data := minimalDICOM()
	data = append(data, dicomElementBytes(sealDICOMGroup, 0x0011, "ST", []byte("<seal .../>"))...)
	windows := DICOM{}.Scan(data)
	require.Len(t, windows, 1)
	assert.Equal(t, "<seal .../>", string(data[windows[0].Start:windows[0].End]))
}

func TestDICOMPickInsertionOffsetAppendsAfterLastElement(t *testing.T) {
	data := minimalDICOM()
	offset, err := DICOM{}.PickInsertionOffset(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), offset)
}

func TestDICOMBuildBlockReservesGroupOnFirstUse(t *testing.T) {
	store := newMinimalStore(t)
	block, err := DICOM{}.BuildBlock(store, 0, 0, "")
	require.NoError(t, err)

	group := binary.LittleEndian.Uint16(block[0:2])
	element := binary.LittleEndian.Uint16(block[2:4])
	assert.EqualValues(t, sealDICOMGroup, group)
	assert.EqualValues(t, sealDICOMReservationElement, element)
}

func TestDICOMBuildBlockSkipsReservationWhenAlreadyMarked(t *testing.T) {
	store := newMinimalStore(t)
	store.SetText("@dicom-group-reserved", "1")
	block, err := DICOM{}.BuildBlock(store, 0, 0, "")
	require.NoError(t, err)

	element := binary.LittleEndian.Uint16(block[2:4])
	assert.NotEqual(t, uint16(sealDICOMReservationElement), element)
}

func TestMarkGroupReservedDetectsExistingReservation(t *testing.T) {
	data := minimalDICOM()
	data = append(data, dicomElementBytes(sealDICOMGroup, sealDICOMReservationElement, "ST", nil)...)

	store := newMinimalStore(t)
	MarkGroupReserved(store, data)
	assert.Equal(t, "1", store.GetText("@dicom-group-reserved"))
}
