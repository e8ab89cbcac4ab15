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

// Package version provides version information for this module and the
// SEAL wire protocol it implements.
package version

const (
	// Version is the current version of this module.
	Version = "1.0.0-dev"

	// RecordVersion is the "seal=" value this module writes and the
	// highest value its parser accepts in a <seal .../> record.
	RecordVersion = "1"

	// DNSRecordVersion is the "seal=" value written into the persisted
	// public-key DNS TXT fragment (spec.md §6 "Persisted state").
	DNSRecordVersion = "1"
)

// Info is the detailed version report "-V" prints.
type Info struct {
	Version          string
	RecordVersion    string
	DNSRecordVersion string
}

// Get returns the current Info.
func Get() Info {
	return Info{
		Version:          Version,
		RecordVersion:    RecordVersion,
		DNSRecordVersion: DNSRecordVersion,
	}
}
