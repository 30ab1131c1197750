// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package ssh

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/moby/sys/capability"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/eth-cscs/sarus-hooks/internal/pkg/hooks/hookerror"
)

// DaemonLaunchSpec is everything the daemon-launcher child needs to chroot
// into a container's rootfs, drop to an unprivileged identity, and exec
// dropbear as the container's SSH daemon.
type DaemonLaunchSpec struct {
	// RootfsDir is the container's rootfs, absolute on the host.
	RootfsDir string
	// DropbearDirInContainer is the dropbear install directory, as an
	// absolute path inside the container (after chroot).
	DropbearDirInContainer string
	// HostKeyPathInContainer is the dropbear_ecdsa_host_key path, as an
	// absolute path inside the container.
	HostKeyPathInContainer string
	ServerPort             int
	UID, GID               int
}

const (
	envDaemonChild       = "SARUS_HOOK_DAEMON_CHILD"
	envDaemonRootfs      = "SARUS_HOOK_DAEMON_ROOTFS"
	envDaemonDropbearDir = "SARUS_HOOK_DAEMON_DROPBEAR_DIR"
	envDaemonHostKey     = "SARUS_HOOK_DAEMON_HOST_KEY"
	envDaemonPort        = "SARUS_HOOK_DAEMON_PORT"
	envDaemonUID         = "SARUS_HOOK_DAEMON_UID"
	envDaemonGID         = "SARUS_HOOK_DAEMON_GID"
)

func (spec DaemonLaunchSpec) env() []string {
	return []string{
		envDaemonChild + "=1",
		envDaemonRootfs + "=" + spec.RootfsDir,
		envDaemonDropbearDir + "=" + spec.DropbearDirInContainer,
		envDaemonHostKey + "=" + spec.HostKeyPathInContainer,
		envDaemonPort + "=" + strconv.Itoa(spec.ServerPort),
		envDaemonUID + "=" + strconv.Itoa(spec.UID),
		envDaemonGID + "=" + strconv.Itoa(spec.GID),
	}
}

// DaemonChildFromEnv reports whether the current process is the
// daemon-launcher child StartDaemon forked, recovering its DaemonLaunchSpec
// from the environment it was started with. Command dispatch checks this
// before doing anything else, ahead of cobra's own dispatch.
func DaemonChildFromEnv() (DaemonLaunchSpec, bool) {
	if os.Getenv(envDaemonChild) != "1" {
		return DaemonLaunchSpec{}, false
	}
	port, _ := strconv.Atoi(os.Getenv(envDaemonPort))
	uid, _ := strconv.Atoi(os.Getenv(envDaemonUID))
	gid, _ := strconv.Atoi(os.Getenv(envDaemonGID))
	return DaemonLaunchSpec{
		RootfsDir:              os.Getenv(envDaemonRootfs),
		DropbearDirInContainer: os.Getenv(envDaemonDropbearDir),
		HostKeyPathInContainer: os.Getenv(envDaemonHostKey),
		ServerPort:             port,
		UID:                    uid,
		GID:                    gid,
	}, true
}

// StartDaemon forks a child and waits for it, the way SshHook::startSshDaemon
// forks before chrooting and dropping privilege: the parent process must
// survive, still holding its original identity and mount namespace, to
// observe the daemon's startup exit status. Go offers no portable way to
// fork the running process and run arbitrary pre-exec code in the child, so
// the child is a re-exec of this same binary, carrying its DaemonLaunchSpec
// through the environment; DaemonChildFromEnv recovers it and RunDaemonChild
// performs the privilege-drop-then-exec sequence there.
func StartDaemon(spec DaemonLaunchSpec) error {
	exe, err := os.Executable()
	if err != nil {
		return hookerror.Wrap(hookerror.Subprocess, "resolve own executable path to fork daemon child", err)
	}

	cmd := exec.Command(exe)
	cmd.Env = append(os.Environ(), spec.env()...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	log.Debugf("Forking daemon-launcher child")
	if err := cmd.Run(); err != nil {
		return hookerror.Wrap(hookerror.Subprocess, "run dropbear daemon-launcher child", err)
	}
	return nil
}

// RunDaemonChild performs the privilege-drop sequence startSshDaemonInContainer
// uses before handing off to dropbear: chroot, drop every bounding
// capability, clear supplementary groups, switch real and effective
// identity to UID/GID, then set no-new-privs so nothing downstream of
// dropbear can regain capabilities through a setuid binary. It does not
// return on success: the process image becomes dropbear. Only ever called
// from the forked child identified by DaemonChildFromEnv.
func RunDaemonChild(spec DaemonLaunchSpec) error {
	if err := unix.Chroot(spec.RootfsDir); err != nil {
		return hookerror.Wrap(hookerror.Privilege, "chroot into container rootfs", err)
	}
	if err := unix.Chdir("/"); err != nil {
		return hookerror.Wrap(hookerror.Privilege, "chdir to / after chroot", err)
	}

	if err := dropAllBoundingCapabilities(); err != nil {
		return hookerror.Wrap(hookerror.Privilege, "drop bounding capability set", err)
	}

	if err := unix.Setgroups(nil); err != nil {
		return hookerror.Wrap(hookerror.Privilege, "clear supplementary groups", err)
	}
	if err := unix.Setresgid(spec.GID, spec.GID, spec.GID); err != nil {
		return hookerror.Wrap(hookerror.Privilege, "setresgid", err)
	}
	if err := unix.Setresuid(spec.UID, spec.UID, spec.UID); err != nil {
		return hookerror.Wrap(hookerror.Privilege, "setresuid", err)
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return hookerror.Wrap(hookerror.Privilege, "set no_new_privs", err)
	}

	dropbear := filepath.Join(spec.DropbearDirInContainer, "bin", "dropbear")
	argv := []string{
		dropbear,
		"-E",
		"-r", spec.HostKeyPathInContainer,
		"-p", fmt.Sprintf("%d", spec.ServerPort),
	}

	log.Debugf("Exec'ing %v", argv)
	if err := syscall.Exec(dropbear, argv, os.Environ()); err != nil {
		return errors.Wrapf(err, "exec %s", dropbear)
	}
	return nil // unreachable
}

// dropAllBoundingCapabilities clears every capability from the bounding
// set, the typed equivalent of looping prctl(PR_CAPBSET_DROP, n, ...) over
// every capability index until EINVAL.
func dropAllBoundingCapabilities() error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return err
	}
	if err := caps.Load(); err != nil {
		return err
	}
	caps.Unset(capability.BOUNDING, capability.List()...)
	return caps.Apply(capability.BOUNDING)
}
