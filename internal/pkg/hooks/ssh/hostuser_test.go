// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package ssh

import "testing"

func TestHostUsername(t *testing.T) {
	path := writeTempPasswd(t, samplePasswd)

	got, err := HostUsername(path, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if got != "alice" {
		t.Errorf("HostUsername(1000) = %q, want %q", got, "alice")
	}

	if _, err := HostUsername(path, 9999); err == nil {
		t.Fatal("expected an error for an unknown uid")
	}
}
