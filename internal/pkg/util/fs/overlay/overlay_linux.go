// Copyright (c) 2019-2021, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package overlay

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// statfs is the function pointing to unix.Statfs and
// also used by unit tests for mocking.
var statfs = unix.Statfs

// magicNumbers are the filesystem types known to reject overlayfs as an
// upper directory: network and stacked filesystems that don't support the
// extended attributes overlayfs's upperdir needs. The SSH keys overlay
// (activate_linux.go's setupSshKeysDirInContainer) only ever needs an upper
// check; lowerdir tolerates far more filesystem types, so this module keeps
// a single magic-number set rather than the teacher's per-direction matrix.
var magicNumbers = map[int64]string{
	0x6969:     "NFS",
	0x65735546: "FUSE",
	0x0BD00BD0: "LUSTRE", //nolint:misspell
	0x47504653: "GPFS",
	0xAAD7AAEA: "PANFS",
}

// CheckUpper checks if the underlying filesystem of the
// provided path can be used as an upper overlay directory.
func CheckUpper(path string) error {
	stfs := &unix.Statfs_t{}
	if err := statfs(path, stfs); err != nil {
		return fmt.Errorf("could not retrieve underlying filesystem information for %s: %s", path, err)
	}

	if name, ok := magicNumbers[int64(stfs.Type)]; ok {
		return &errIncompatibleFs{path: path, name: name}
	}
	return nil
}

// CheckLower checks if the underlying filesystem of the provided path can
// be used as a lower overlay directory. overlayfs tolerates lower
// directories far more permissively than upper ones, so this is currently a
// no-op kept as a named step in setupSshKeysDirInContainer's check sequence.
func CheckLower(path string) error {
	return nil
}

type errIncompatibleFs struct {
	path string
	name string
}

func (e *errIncompatibleFs) Error() string {
	return fmt.Sprintf(
		"%s is located on a %s filesystem incompatible as an overlay upper directory",
		e.path, e.name,
	)
}

// IsIncompatible returns if the error corresponds to
// an incompatible filesystem error.
func IsIncompatible(err error) bool {
	_, ok := err.(*errIncompatibleFs)
	return ok
}
