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

// Package errs carries spec.md §7's error-kind family. The five
// per-record kinds (MalformedInput, InvalidSignature, Revoked,
// Unauthenticated, Unresolved) are reported per signature and surface to
// the verifier's verdict bitmask without aborting a batch. IOFatal,
// NetworkFatal and ProtocolViolation are plain wrapped errors a caller
// propagates with fmt.Errorf — this package gives them named
// constructors so cmd/sealtool can still recognize them with errors.As.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies which of spec.md §7's error kinds a RecordError carries.
type Kind int

const (
	MalformedInput Kind = iota
	InvalidSignature
	Revoked
	Unauthenticated
	Unresolved
)

func (k Kind) String() string {
	switch k {
	case MalformedInput:
		return "malformed-input"
	case InvalidSignature:
		return "invalid-signature"
	case Revoked:
		return "revoked"
	case Unauthenticated:
		return "unauthenticated"
	case Unresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// RecordError is a per-record error: it is reported against a single
// signature and does not abort the batch containing it.
type RecordError struct {
	Kind Kind
	Err  error
}

func (e *RecordError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// New wraps err as a RecordError of the given kind.
func New(kind Kind, err error) *RecordError {
	return &RecordError{Kind: kind, Err: err}
}

// Newf is New with a formatted message in place of a wrapped error.
func Newf(kind Kind, format string, args ...any) *RecordError {
	return &RecordError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// IsKind reports whether err is a RecordError of the given kind anywhere
// in its chain.
func IsKind(err error, kind Kind) bool {
	var re *RecordError
	if errors.As(err, &re) {
		return re.Kind == kind
	}
	return false
}

// FatalClass identifies the three kinds in spec.md §7 that abort a batch
// rather than being reported per record.
type FatalClass int

const (
	IOFatal FatalClass = iota
	NetworkFatal
	ProtocolViolation
)

func (c FatalClass) String() string {
	switch c {
	case IOFatal:
		return "io-fatal"
	case NetworkFatal:
		return "network-fatal"
	case ProtocolViolation:
		return "protocol-violation"
	default:
		return "unknown-fatal"
	}
}

// FatalError wraps one of the three abort-the-batch error classes.
type FatalError struct {
	Class FatalClass
	Err   error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return e.Class.String()
	}
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err as a FatalError of the given class.
func Fatal(class FatalClass, err error) *FatalError {
	return &FatalError{Class: class, Err: err}
}

// Fatalf is Fatal with a formatted message.
func Fatalf(class FatalClass, format string, args ...any) *FatalError {
	return &FatalError{Class: class, Err: fmt.Errorf(format, args...)}
}

// IsFatal reports whether err is a FatalError, and if so of which class.
func IsFatal(err error) (FatalClass, bool) {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Class, true
	}
	return 0, false
}
