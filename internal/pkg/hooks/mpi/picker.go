// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package mpi

import "fmt"

// PickNewestAbiCompatibleLibrary returns, among candidates, the newest
// library older than or equal to l; failing that, the oldest library newer
// than l. An exact RealName match short-circuits both passes.
//
// The two-pass shape (oldest-seed, then climb toward l without exceeding its
// major or minor version, or downgrading the patch once major and minor
// match) is load-bearing: it hands the container a host library no newer
// than the one it shipped with whenever such a candidate exists, goes newer
// only when none does, and never silently downgrades a patch release on a
// matching major.minor.
func (l SharedLibrary) PickNewestAbiCompatibleLibrary(candidates []SharedLibrary) (SharedLibrary, error) {
	if len(candidates) == 0 {
		return SharedLibrary{}, fmt.Errorf("pickNewestAbiCompatibleLibrary received no candidates to pick from")
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	oldest := &candidates[0]
	for i := range candidates {
		c := &candidates[i]
		if c.RealName == l.RealName {
			return *c, nil
		}
		if c.Major < oldest.Major || (c.Major == oldest.Major && c.Minor <= oldest.Minor) {
			if oldest.Major == l.Major && c.Major < l.Major {
				// don't go to an older major
				continue
			}
			oldest = c
		}
	}

	best := oldest
	for i := range candidates {
		c := &candidates[i]
		if (c.Major > best.Major || (c.Major == best.Major && c.Minor >= best.Minor)) &&
			c.Major <= l.Major &&
			c.Minor <= l.Minor {
			if c.Major == l.Major && c.Minor == l.Minor && c.Patch < best.Patch {
				// don't downgrade patch
				continue
			}
			best = c
		}
	}

	return *best, nil
}
