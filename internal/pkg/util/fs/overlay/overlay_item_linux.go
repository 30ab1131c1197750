// Copyright (c) 2019-2023, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package overlay

import (
	"fmt"
	"os"

	"github.com/eth-cscs/sarus-hooks/internal/pkg/util/priv"
)

// EnsureDir creates dir with perm if it does not already exist.
func EnsureDir(dir string, perm os.FileMode) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return fmt.Errorf("failed to create directory %s: %s", dir, err)
	}
	return nil
}

// EnsureDirAsOwner creates dir with perm, owned by uid:gid rather than the
// caller's own (typically root) identity. It borrows that identity for the
// duration of the mkdir so that ownership is set correctly without a
// separate chown, the way the SSH hook prepares a container-side ~/.ssh
// directory it does not want to own as root.
func EnsureDirAsOwner(dir string, perm os.FileMode, uid, gid int) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	}

	restore, err := priv.ScopedIdentity(uid, gid)
	if err != nil {
		return fmt.Errorf("failed to borrow identity %d:%d to create %s: %w", uid, gid, dir, err)
	}
	defer restore()

	if err := os.MkdirAll(dir, perm); err != nil {
		return fmt.Errorf("failed to create directory %s as %d:%d: %w", dir, uid, gid, err)
	}
	return nil
}
