// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package sylog provides the three-level logging model used by the Sarus
// hooks: INFO and DEBUG are diagnostic and gated by verbosity, GENERAL is the
// only level meant to be read by an operator and is always emitted.
package sylog

import (
	"os"
	"strconv"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
)

var diagnostic = &log.Logger{
	Handler: text.New(os.Stderr),
	Level:   log.WarnLevel,
}

func init() {
	if verbose, err := strconv.ParseBool(os.Getenv("SARUS_SSH_HOOK_VERBOSE")); err == nil && verbose {
		diagnostic.Level = log.DebugLevel
	}
}

// Logger emits messages tagged with a fixed hook subsystem name, mirroring
// the subsystemName parameter threaded through the original SshHook::log.
type Logger struct {
	entry *log.Entry
}

// ForSubsystem returns a Logger tagged with subsystem, e.g. "SSH hook".
func ForSubsystem(subsystem string) *Logger {
	return &Logger{entry: log.NewEntry(diagnostic).WithField("subsystem", subsystem)}
}

// Debugf logs at DEBUG, the most verbose diagnostic level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// Infof logs at INFO, a diagnostic level below GENERAL.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// Generalf always writes to stderr, independent of the diagnostic verbosity
// threshold. It is the only level meant to be read by an operator.
func (l *Logger) Generalf(format string, args ...interface{}) {
	log.NewEntry(&log.Logger{Handler: text.New(os.Stderr), Level: log.InfoLevel}).
		WithField("subsystem", l.entry.Fields["subsystem"]).
		Infof(format, args...)
}

// Fatalf logs at GENERAL and terminates the process with exit status 1. Only
// called from command dispatch, never from library code.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.Generalf(format, args...)
	os.Exit(1)
}
