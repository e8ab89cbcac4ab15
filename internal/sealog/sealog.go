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

// Package sealog generalizes the teacher's bare log.Println call sites
// into a small injectable interface, so a caller embedding seal in a
// longer-running service can route its diagnostics to its own sink
// instead of the process-wide default logger.
package sealog

import (
	"log"
	"os"
)

// Logger is the minimal surface seal's packages call through. Verbosef
// corresponds to the "-v" CLI flag's extra detail; Warnf marks
// advisory/non-fatal conditions (src/srcd mismatch, MPF-frozen warning,
// missing "F"/"P" in b=); Errorf marks conditions that accompany an
// abort or a per-record failure verdict.
type Logger interface {
	Verbosef(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Default wraps the standard library's *log.Logger, matching the
// teacher's own use of plain log.Println rather than a third-party
// logging library.
type Default struct {
	verbose bool
	l       *log.Logger
}

// New returns a Default writing to os.Stderr. When verbose is false,
// Verbosef calls are discarded, mirroring sealtool's "-v" flag.
func New(verbose bool) *Default {
	return &Default{verbose: verbose, l: log.New(os.Stderr, "", log.LstdFlags)}
}

func (d *Default) Verbosef(format string, args ...any) {
	if !d.verbose {
		return
	}
	d.l.Printf(format, args...)
}

func (d *Default) Warnf(format string, args ...any) {
	d.l.Printf("warning: "+format, args...)
}

func (d *Default) Errorf(format string, args ...any) {
	d.l.Printf("error: "+format, args...)
}

// Discard implements Logger by dropping everything; useful for tests and
// for library callers who don't want any log output.
type Discard struct{}

func (Discard) Verbosef(string, ...any) {}
func (Discard) Warnf(string, ...any)    {}
func (Discard) Errorf(string, ...any)   {}
