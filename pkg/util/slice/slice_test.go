// Copyright (c) 2021-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package slice

import "testing"

func TestContainsString(t *testing.T) {
	s := []string{"dropbear", "dbclient", "dropbearkey"}

	if !ContainsString(s, "dbclient") {
		t.Error("expected ContainsString to find an existing element")
	}
	if ContainsString(s, "ssh") {
		t.Error("expected ContainsString to not find a missing element")
	}
}
