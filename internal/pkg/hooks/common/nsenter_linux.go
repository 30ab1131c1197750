// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package common

/*
#cgo CFLAGS: -Wall
#define _GNU_SOURCE
#include <errno.h>
#include <fcntl.h>
#include <sched.h>
#include <stdio.h>
#include <stdlib.h>
#include <string.h>
#include <unistd.h>

// sarus_enter_namespaces runs as a constructor, before the Go runtime starts
// any extra OS threads. setns(CLONE_NEWNS, ...) requires the calling process
// to be single-threaded, which is only guaranteed this early; by the time
// main() runs the Go scheduler has already spawned threads. The env vars are
// set by a prior self-exec of this same binary (see ReexecIntoNamespaces).
__attribute__((constructor)) void sarus_enter_namespaces(void) {
	char *pid = getenv("SARUS_HOOK_NSENTER_PID");
	char *nslist = getenv("SARUS_HOOK_NSENTER_NS");
	if (pid == NULL || nslist == NULL) {
		return;
	}

	char *nslistCopy = strdup(nslist);
	char *saveptr = NULL;
	char *ns = strtok_r(nslistCopy, ",", &saveptr);
	while (ns != NULL) {
		char nsfile[64];
		snprintf(nsfile, sizeof(nsfile), "/proc/%s/ns/%s", pid, ns);

		int fd = open(nsfile, O_RDONLY);
		if (fd < 0) {
			fprintf(stderr, "sarus-ssh-hook: open %s: %s\n", nsfile, strerror(errno));
			exit(1);
		}
		if (setns(fd, 0) != 0) {
			fprintf(stderr, "sarus-ssh-hook: setns(%s): %s\n", nsfile, strerror(errno));
			exit(1);
		}
		close(fd);

		ns = strtok_r(NULL, ",", &saveptr);
	}
	free(nslistCopy);
}
*/
import "C"

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/eth-cscs/sarus-hooks/internal/pkg/hooks/hookerror"
)

const (
	envNsenterPID         = "SARUS_HOOK_NSENTER_PID"
	envNsenterNS          = "SARUS_HOOK_NSENTER_NS"
	envReexecBundleDir    = "SARUS_HOOK_REEXEC_BUNDLE_DIR"
	envReexecContainerPID = "SARUS_HOOK_REEXEC_CONTAINER_PID"
)

// defaultNamespaces is the set the SSH hook needs entered: the container's
// mount namespace, so that paths under the rootfs resolve the way the
// container sees them (bind mounts, overlays already set up by the runtime).
var defaultNamespaces = []string{"mnt"}

// Reexeced reports whether the current process is the post-setns re-exec of
// itself, i.e. whether its constructor already entered the target
// container's namespaces.
func Reexeced() (state ContainerState, ok bool) {
	pidStr := os.Getenv(envReexecContainerPID)
	bundleDir := os.Getenv(envReexecBundleDir)
	if pidStr == "" || bundleDir == "" {
		return ContainerState{}, false
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return ContainerState{}, false
	}
	return ContainerState{Pid: pid, BundleDir: bundleDir}, true
}

// ReexecIntoNamespaces re-execs the running binary with environment
// variables that make its cgo constructor enter state's container
// namespaces before main() runs again, then never returns on success: the
// calling process image is replaced in place by syscall.Exec.
func ReexecIntoNamespaces(state ContainerState) error {
	env := append(os.Environ(),
		fmt.Sprintf("%s=%d", envNsenterPID, state.Pid),
		fmt.Sprintf("%s=%s", envNsenterNS, strings.Join(defaultNamespaces, ",")),
		fmt.Sprintf("%s=%d", envReexecContainerPID, state.Pid),
		fmt.Sprintf("%s=%s", envReexecBundleDir, state.BundleDir),
	)

	exe, err := os.Executable()
	if err != nil {
		return hookerror.Wrap(hookerror.Subprocess, "resolve own executable path for re-exec", err)
	}

	if err := syscall.Exec(exe, os.Args, env); err != nil {
		return hookerror.Wrap(hookerror.Subprocess, "re-exec self to enter container namespaces", err)
	}
	return nil // unreachable
}
