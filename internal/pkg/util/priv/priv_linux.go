// Copyright (c) 2018-2024, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package priv

import (
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/eth-cscs/sarus-hooks/pkg/sylog"
)

var log = sylog.ForSubsystem("priv")

// RestoreFunc undoes a scoped identity change and unlocks the goroutine that
// performed it. It must be called exactly once, on the same goroutine that
// obtained it, at the earliest suitable point.
type RestoreFunc func() error

// ScopedIdentity locks the current goroutine to its OS thread and sets the
// real and effective uid/gid of that thread to uid/gid, saving 0 (root) as
// the saved set-user/group-ID. The hook process runs as root throughout, but
// some filesystem operations (creating a container-side ~/.ssh) must be
// owned by the container's user rather than root; this borrows that
// identity just long enough to perform them.
func ScopedIdentity(uid, gid int) (RestoreFunc, error) {
	runtime.LockOSThread()

	log.Debugf("Borrowing identity %d:%d", uid, gid)
	if err := unix.Setresgid(gid, gid, 0); err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	if err := unix.Setresuid(uid, uid, 0); err != nil {
		unix.Setresgid(0, 0, 0)
		runtime.UnlockOSThread()
		return nil, err
	}

	restore := func() error {
		defer runtime.UnlockOSThread()
		log.Debugf("Restoring root identity")
		if err := unix.Setresuid(0, 0, 0); err != nil {
			return err
		}
		return unix.Setresgid(0, 0, 0)
	}
	return restore, nil
}
