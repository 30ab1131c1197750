// Copyright (c) 2019-2021, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package overlay

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestCheckUpper(t *testing.T) {
	tests := []struct {
		name                  string
		fsType                int64
		expectedSuccess       bool
		expectIncompatibleErr bool
	}{
		{name: "ext4-like, no mocked type", expectedSuccess: true},
		{name: "NFS", fsType: 0x6969, expectedSuccess: false, expectIncompatibleErr: true},
		{name: "FUSE", fsType: 0x65735546, expectedSuccess: false, expectIncompatibleErr: true},
		//nolint:misspell
		{name: "LUSTRE", fsType: 0x0BD00BD0, expectedSuccess: false, expectIncompatibleErr: true},
		{name: "GPFS", fsType: 0x47504653, expectedSuccess: false, expectIncompatibleErr: true},
		{name: "PANFS", fsType: 0xAAD7AAEA, expectedSuccess: false, expectIncompatibleErr: true},
	}

	defer func() { statfs = unix.Statfs }()

	if IsIncompatible(nil) {
		t.Errorf("IsIncompatible with nil error returned true")
	}

	for _, tt := range tests {
		if tt.fsType > 0 {
			statfs = func(_ string, st *unix.Statfs_t) error {
				st.Type = tt.fsType
				return nil
			}
		} else {
			statfs = unix.Statfs
		}

		err := CheckUpper("/")
		if err != nil && tt.expectedSuccess {
			t.Errorf("unexpected error for %q: %s", tt.name, err)
		} else if err == nil && !tt.expectedSuccess {
			t.Errorf("unexpected success for %q", tt.name)
		} else if err != nil && tt.expectIncompatibleErr && !IsIncompatible(err) {
			t.Errorf("expected incompatible-filesystem error for %q, got %q", tt.name, err)
		}
	}
}

func TestCheckUpperStatfsError(t *testing.T) {
	defer func() { statfs = unix.Statfs }()
	if err := CheckUpper("/non/existent/path"); err == nil {
		t.Error("expected an error checking a nonexistent path")
	}
}

func TestCheckLowerIsPermissive(t *testing.T) {
	if err := CheckLower("/non/existent/path"); err != nil {
		t.Errorf("CheckLower should never reject a path: %s", err)
	}
}
