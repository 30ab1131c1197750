// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package hookerror defines the error kinds shared by the SSH and MPI hook
// cores, so that command dispatch can decide an exit path without parsing
// error strings.
package hookerror

import "fmt"

// Kind classifies the failure domain of an Error.
type Kind string

const (
	Config     Kind = "config"
	FS         Kind = "fs"
	Subprocess Kind = "subprocess"
	Parse      Kind = "parse"
	Privilege  Kind = "privilege"
	Mount      Kind = "mount"
	Policy     Kind = "policy"
)

// Error carries a Kind, the operation that failed, and an optional wrapped
// cause. It is never compared by identity; callers inspect Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with no wrapped cause.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap builds an Error wrapping err, or returns nil if err is nil.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a hookerror.Error of the given Kind.
func Is(err error, kind Kind) bool {
	he, ok := err.(*Error)
	return ok && he.Kind == kind
}
