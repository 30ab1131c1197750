// Copyright (c) 2019-2023, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package overlay

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/eth-cscs/sarus-hooks/pkg/sylog"
)

var log = sylog.ForSubsystem("overlay")

// Mount layers lowerDirs (read-only, outermost first) and upperDir/workDir
// (writable) onto target, the three-directory shape the SSH hook uses to
// isolate a container's ~/.ssh from whatever the host actually bind-mounted
// there.
func Mount(lowerDirs []string, upperDir, workDir, target string) error {
	options := fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", strings.Join(lowerDirs, ":"), upperDir, workDir)

	log.Debugf("Mounting overlay on %q, options: %q", target, options)
	if err := syscall.Mount("overlay", target, "overlay", syscall.MS_NODEV, options); err != nil {
		return fmt.Errorf("failed to mount overlay on %s: %s", target, err)
	}
	return nil
}

// Detach lazily unmounts target, tolerating it not being a mountpoint.
func Detach(target string) error {
	log.Debugf("Detaching overlay mount %q", target)
	if err := syscall.Unmount(target, syscall.MNT_DETACH); err != nil && err != syscall.EINVAL {
		return fmt.Errorf("failed to detach overlay mount %s: %s", target, err)
	}
	return nil
}
