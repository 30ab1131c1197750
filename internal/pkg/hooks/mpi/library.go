// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package mpi implements the ABI-aware shared-library descriptor and picker
// used by the MPI hook to decide which host library version is safe to
// inject into a container in place of the one the container ships.
package mpi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// SharedLibrary describes one versioned shared-library file: its path, its
// linker name (the filename up to and including its last ".so"), and the ABI triple parsed
// or resolved from its real filename.
type SharedLibrary struct {
	Path       string
	LinkerName string
	RealName   string
	Major      int
	Minor      int
	Patch      int
}

// NewSharedLibrary builds a SharedLibrary from path, resolving its ABI
// triple through resolver against rootDir. rootDir confines symlink
// traversal the same way the container rootfs confines it for the original
// hook; pass "" when path is already a fully resolved host path.
func NewSharedLibrary(path, rootDir string, resolver SonameResolver) (SharedLibrary, error) {
	linkerName, err := LinkerName(path)
	if err != nil {
		return SharedLibrary{}, errors.Wrapf(err, "build shared library descriptor for %s", path)
	}

	abi, err := resolver.ResolveABI(path, rootDir)
	if err != nil {
		return SharedLibrary{}, errors.Wrapf(err, "resolve ABI version of %s", path)
	}

	lib := SharedLibrary{Path: path, LinkerName: linkerName, RealName: linkerName}
	if len(abi) > 0 {
		lib.Major, err = strconv.Atoi(abi[0])
		if err != nil {
			return SharedLibrary{}, errors.Wrapf(err, "parse major ABI version of %s", path)
		}
	}
	if len(abi) > 1 {
		lib.Minor, err = strconv.Atoi(abi[1])
		if err != nil {
			return SharedLibrary{}, errors.Wrapf(err, "parse minor ABI version of %s", path)
		}
	}
	if len(abi) > 2 {
		lib.Patch, err = strconv.Atoi(abi[2])
		if err != nil {
			return SharedLibrary{}, errors.Wrapf(err, "parse patch ABI version of %s", path)
		}
	}
	if len(abi) > 0 {
		lib.RealName = linkerName + "." + strings.Join(abi, ".")
	}

	return lib, nil
}

// HasMajorVersion reports whether any ABI component was resolved at all.
func (l SharedLibrary) HasMajorVersion() bool {
	return l.RealName != l.LinkerName
}

// IsFullAbiCompatible reports whether a consumer linked against l can load
// other: same linker name, same major version, and other's minor version
// is at least as new as l's.
func (l SharedLibrary) IsFullAbiCompatible(other SharedLibrary) bool {
	return l.LinkerName == other.LinkerName &&
		l.Major == other.Major &&
		l.Minor <= other.Minor
}

// IsMajorAbiCompatible reports whether l and other share a linker name and
// major version, ignoring minor/patch.
func (l SharedLibrary) IsMajorAbiCompatible(other SharedLibrary) bool {
	return l.LinkerName == other.LinkerName && l.Major == other.Major
}

// LinkerName extracts the linker name from a shared-library path: the
// filename up to and including the last ".so" component, e.g.
// "libmpi.so.12.1.0" -> "libmpi.so".
func LinkerName(path string) (string, error) {
	filename := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		filename = path[idx+1:]
	}

	dot := strings.LastIndex(filename, ".so")
	if dot < 0 || (dot+3 != len(filename) && filename[dot+3] != '.') {
		return "", fmt.Errorf("failed to parse linker name from invalid library path %q", path)
	}

	return filename[:dot+3], nil
}

var libcRe = regexp.MustCompile(`^(.*/)?libc(-\d+\.\d+)?\.so(\.\d+)?$`)

// IsLibc reports whether lib is glibc itself, matching the original hook's
// special-casing of libc during injection eligibility checks.
func IsLibc(lib string) bool {
	return libcRe.MatchString(lib)
}
