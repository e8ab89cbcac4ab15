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

// Package outpath expands the "-o" output filename template spec.md §6
// names but leaves unspecified: %b (basename without extension), %d
// (directory), %e (extension, including the leading dot), %% (literal
// percent).
package outpath

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Expand applies template against filename, returning the output path.
// An unrecognised "%x" verb is an error, matching the original tool's
// abort-on-illegal-character behavior rather than passing it through.
func Expand(template, filename string) (string, error) {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	base = strings.TrimSuffix(base, ext)

	var out strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '%' {
			out.WriteByte(c)
			continue
		}
		if i+1 >= len(template) {
			return "", fmt.Errorf("outpath: template %q ends with a bare %%", template)
		}
		verb := template[i+1]
		i++
		switch verb {
		case 'b':
			out.WriteString(base)
		case 'd':
			out.WriteString(dir)
		case 'e':
			out.WriteString(ext)
		case '%':
			out.WriteByte('%')
		default:
			return "", fmt.Errorf("outpath: template %q contains illegal verb %%%c", template, verb)
		}
	}
	return out.String(), nil
}
