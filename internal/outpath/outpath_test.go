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

package outpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandSubstitutesBasenameAndExtension(t *testing.T) {
	got, err := Expand("%b-signed%e", "/tmp/photos/beach.jpg")
	require.NoError(t, err)
	assert.Equal(t, "beach-signed.jpg", got)
}

func TestExpandSubstitutesDirectory(t *testing.T) {
	got, err := Expand("%d/signed/%b%e", "/tmp/photos/beach.jpg")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/photos/signed/beach.jpg", got)
}

func TestExpandLiteralPercent(t *testing.T) {
	got, err := Expand("100%%-%b%e", "a.png")
	require.NoError(t, err)
	assert.Equal(t, "100%-a.png", got)
}

func TestExpandHandlesFileWithoutExtension(t *testing.T) {
	got, err := Expand("%b%e.sealed", "README")
	require.NoError(t, err)
	assert.Equal(t, "README.sealed", got)
}

func TestExpandRejectsUnknownVerb(t *testing.T) {
	_, err := Expand("%q", "a.png")
	assert.ErrorContains(t, err, "illegal verb")
}

func TestExpandRejectsTrailingPercent(t *testing.T) {
	_, err := Expand("out%", "a.png")
	assert.ErrorContains(t, err, "bare %")
}
