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

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionConstantsNotEmpty(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, RecordVersion)
	assert.NotEmpty(t, DNSRecordVersion)
}

func TestGetPopulatesInfo(t *testing.T) {
	info := Get()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, RecordVersion, info.RecordVersion)
	assert.Equal(t, DNSRecordVersion, info.DNSRecordVersion)
}
