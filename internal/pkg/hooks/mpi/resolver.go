// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package mpi

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// SonameResolver resolves the ABI triple of a shared library. ResolveABI
// never inspects ELF contents; it walks the symlink chain within rootDir and
// reads the trailing ".major.minor.patch" suffix off each traversed
// filename, the same strategy the original hook uses. rootDir may be empty
// to resolve against the host's own filesystem root.
type SonameResolver interface {
	ResolveABI(libPath, rootDir string) ([]string, error)
}

// DefaultResolver implements SonameResolver with the filename-convention
// symlink walk.
type DefaultResolver struct{}

const maxSymlinkDepth = 40

// IsSharedLib reports whether file looks like a shared-library filename:
// not a linker config/cache file, and containing a ".so" component.
func IsSharedLib(file string) bool {
	filename := path.Base(file)

	if strings.HasSuffix(filename, ".conf") || strings.HasSuffix(filename, ".cache") {
		return false
	}

	pos := strings.LastIndex(filename, ".so")
	if pos < 0 {
		return false
	}
	return pos+3 == len(filename) || filename[pos+3] == '.'
}

// ParseSharedLibAbi reads the ".major.minor.patch" suffix off lib's
// filename, returning the dot-separated tokens after the last ".so". A
// bare ".so" filename with no suffix returns an empty, non-nil slice.
func ParseSharedLibAbi(lib string) ([]string, error) {
	if !IsSharedLib(lib) {
		return nil, fmt.Errorf("cannot parse ABI version of %q: not a shared library", lib)
	}

	name := path.Base(lib)
	pos := strings.LastIndex(name, ".so")
	if pos < 0 {
		return nil, fmt.Errorf("failed to get version numbers of library %q: expected file extension \".so\"", lib)
	}
	if pos+3 == len(name) {
		return []string{}, nil
	}

	return strings.Split(name[pos+4:], "."), nil
}

// ResolveABI walks the symlink chain of libPath within rootDir, merging the
// ABI suffix parsed from every traversed filename into the longest
// consistent run. A symlink whose target has an incompatible linker name
// or a shorter-but-mismatched ABI prefix is treated as untrustworthy and
// skipped, the same tolerance the original resolver applies for vendor
// symlink farms that point across linker names (e.g. Cray's mpich wrappers).
func (r DefaultResolver) ResolveABI(libPath, rootDir string) ([]string, error) {
	if !IsSharedLib(libPath) {
		return nil, fmt.Errorf("cannot resolve ABI version of %q: not a shared library", libPath)
	}

	resolved, traversed, err := resolveSymlinkChainWithinRoot(rootDir, libPath)
	if err != nil {
		return nil, errors.Wrapf(err, "walk symlink chain of %s", libPath)
	}

	pathsToProcess := append(traversed, resolved)
	libLinkerName, err := LinkerName(libPath)
	if err != nil {
		return nil, err
	}

	var longest []string
	for _, candidate := range pathsToProcess {
		if !IsSharedLib(candidate) {
			continue
		}
		candidateLinkerName, err := LinkerName(candidate)
		if err != nil || candidateLinkerName != libLinkerName {
			continue
		}

		abi, err := ParseSharedLibAbi(candidate)
		if err != nil {
			continue
		}

		shorter, longer := abi, longest
		if len(longest) < len(abi) {
			shorter, longer = longest, abi
		}
		if !abiPrefixEqual(shorter, longer) {
			continue
		}
		longest = longer
	}

	return longest, nil
}

func abiPrefixEqual(shorter, longer []string) bool {
	for i := range shorter {
		if shorter[i] != longer[i] {
			return false
		}
	}
	return true
}

// resolveSymlinkChainWithinRoot mirrors appendPathsWithinRootfs: it walks
// libPath component by component, resolving any symlink encountered against
// rootDir instead of the real filesystem root, and records every symlink
// path traversed along the way.
func resolveSymlinkChainWithinRoot(rootDir, libPath string) (resolved string, traversed []string, err error) {
	current := "/"
	depth := 0

	var walk func(elements []string) error
	walk = func(elements []string) error {
		for _, element := range elements {
			if depth > maxSymlinkDepth {
				return fmt.Errorf("exceeded max symlink depth resolving %s", libPath)
			}
			switch element {
			case "", "/", ".":
				continue
			case "..":
				if current != "/" {
					current = path.Dir(current)
				}
				continue
			}

			candidate := path.Join(current, element)
			fullPath := path.Join(rootDir, candidate)
			info, statErr := os.Lstat(fullPath)
			if statErr == nil && info.Mode()&os.ModeSymlink != 0 {
				depth++
				traversed = append(traversed, candidate)
				target, readErr := os.Readlink(fullPath)
				if readErr != nil {
					return errors.Wrapf(readErr, "read symlink target of %s", fullPath)
				}
				if path.IsAbs(target) {
					current = "/"
					if walkErr := walk(splitPath(target)); walkErr != nil {
						return walkErr
					}
				} else {
					base := current
					if walkErr := walk(splitPath(target)); walkErr != nil {
						current = base
						return walkErr
					}
				}
				continue
			}

			current = candidate
		}
		return nil
	}

	if err := walk(splitPath(libPath)); err != nil {
		return "", nil, err
	}
	return current, traversed, nil
}

func splitPath(p string) []string {
	return strings.Split(p, "/")
}
