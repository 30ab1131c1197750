// Copyright (c) 2021-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package slice

import "slices"

// ContainsString returns true if string slice s contains match.
func ContainsString(s []string, match string) bool {
	return slices.Contains(s, match)
}
