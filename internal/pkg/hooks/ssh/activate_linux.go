// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package ssh

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/eth-cscs/sarus-hooks/internal/pkg/hooks/common"
	"github.com/eth-cscs/sarus-hooks/internal/pkg/hooks/hookerror"
	"github.com/eth-cscs/sarus-hooks/internal/pkg/util/env"
	"github.com/eth-cscs/sarus-hooks/internal/pkg/util/fs"
	"github.com/eth-cscs/sarus-hooks/internal/pkg/util/fs/overlay"
	"github.com/eth-cscs/sarus-hooks/internal/pkg/util/shell"
	"github.com/eth-cscs/sarus-hooks/pkg/ocibundle/tools"
)

// dropbearRelativeDirInContainer is where copyDropbearIntoContainer stages
// the dropbear/dbclient binaries, fixed rather than configurable because
// createSshExecutableInContainer and createEtcProfileModule both bake it
// into files they write inside the container.
const dropbearRelativeDirInContainer = "/opt/oci-hooks/dropbear"

// Activate runs the poststart-hook half of the SSH hook: it enters the
// target container's namespaces, stages dropbear and the invoking user's
// keys into the container, then forks and waits for a child that execs
// dropbear as the SSH daemon under that user's dropped-privilege identity.
// It is the Go counterpart of SshHook::startSshDaemon.
func Activate(stdin io.Reader, cfg common.Config) error {
	state, reexeced := common.Reexeced()
	if !reexeced {
		readState, err := common.ReadStateFromStdin(stdin)
		if err != nil {
			return err
		}
		// ReexecIntoNamespaces never returns on success: the replaced
		// process image runs this same function again, this time taking
		// the Reexeced() branch above.
		return common.ReexecIntoNamespaces(readState)
	}

	spec, err := tools.Config(state.BundleDir).Load()
	if err != nil {
		return hookerror.Wrap(hookerror.Parse, "load bundle config.json", err)
	}

	rootfsDir, err := common.RootfsPathFromSpec(state.BundleDir, spec)
	if err != nil {
		return err
	}
	uid, gid, err := common.ProcessUserFromSpec(state.BundleDir, spec)
	if err != nil {
		return err
	}

	username, err := HostUsername(cfg.PasswdFile, uid)
	if err != nil {
		return err
	}
	sshKeysDirInHost := filepath.Join(cfg.HookBaseDir, username, ".oci-hooks", "ssh", "keys")

	containerPasswd, err := LoadPasswdDB(filepath.Join(rootfsDir, "etc", "passwd"))
	if err != nil {
		return err
	}
	homeDir := containerPasswd.HomeDirectory(uid)
	if homeDir == "" || homeDir == "/nonexistent" {
		log.Generalf("Cannot activate SSH in container: user with uid %d has no usable home directory", uid)
		return hookerror.New(hookerror.Policy, fmt.Sprintf("uid %d has no usable home directory in container passwd file", uid))
	}
	sshKeysDirInContainer := filepath.Join(rootfsDir, homeDir, ".ssh")

	dropbearDirInContainer := filepath.Join(rootfsDir, dropbearRelativeDirInContainer)
	if err := copyDropbearIntoContainer(cfg.DropbearDir, dropbearDirInContainer); err != nil {
		return err
	}

	if err := setupSshKeysDirInContainer(state.BundleDir, sshKeysDirInContainer, uid, gid); err != nil {
		return err
	}
	if err := copySshKeysIntoContainer(sshKeysDirInHost, sshKeysDirInContainer, uid, gid); err != nil {
		return err
	}

	containerPasswd.PatchMissingInterpreters(rootfsDir)
	if err := containerPasswd.Write(filepath.Join(rootfsDir, "etc", "passwd")); err != nil {
		return err
	}

	if err := createEnvironmentFile(spec, dropbearDirInContainer); err != nil {
		return err
	}
	if err := createEtcProfileModule(rootfsDir); err != nil {
		return err
	}
	if err := createSshExecutableInContainer(rootfsDir, cfg.ServerPort); err != nil {
		return err
	}

	sshKeysPathWithinContainer, err := filepath.Rel(rootfsDir, sshKeysDirInContainer)
	if err != nil {
		return hookerror.Wrap(hookerror.Parse, "compute ssh keys path relative to rootfs", err)
	}

	log.Generalf("Starting SSH daemon in container")
	return StartDaemon(DaemonLaunchSpec{
		RootfsDir:              rootfsDir,
		DropbearDirInContainer: dropbearRelativeDirInContainer,
		HostKeyPathInContainer: filepath.Join("/", sshKeysPathWithinContainer, "dropbear_ecdsa_host_key"),
		ServerPort:             cfg.ServerPort,
		UID:                    uid,
		GID:                    gid,
	})
}

func copyDropbearIntoContainer(dropbearDirInHost, dropbearDirInContainer string) error {
	log.Infof("Copying dropbear binaries into %s", dropbearDirInContainer)
	if err := os.MkdirAll(filepath.Join(dropbearDirInContainer, "bin"), 0o755); err != nil {
		return hookerror.Wrap(hookerror.FS, "create dropbear directory in container", err)
	}
	for _, name := range []string{"dropbear", "dbclient"} {
		src := filepath.Join(dropbearDirInHost, "bin", name)
		dst := filepath.Join(dropbearDirInContainer, "bin", name)
		if err := fs.CopyFile(src, dst, 0o755); err != nil {
			return hookerror.Wrap(hookerror.FS, "copy "+name+" into container", err)
		}
	}
	return nil
}

// setupSshKeysDirInContainer stages the container's ~/.ssh as an overlay so
// the hook never writes into whatever the image or a user bind mount
// already put there: the overlay's upperdir (owned by the container's own
// user) holds our generated keys, and its lowerdir is an empty staging
// directory, so the mount hides whatever was already at that path.
func setupSshKeysDirInContainer(bundleDir, sshKeysDirInContainer string, uid, gid int) error {
	if err := overlay.EnsureDirAsOwner(sshKeysDirInContainer, 0o700, uid, gid); err != nil {
		return err
	}

	stagingDir := filepath.Join(bundleDir, "overlay", "ssh-"+uuid.NewString())
	lowerDir := filepath.Join(stagingDir, "lower")
	upperDir := filepath.Join(stagingDir, "upper")
	workDir := filepath.Join(stagingDir, "work")

	if err := overlay.EnsureDir(lowerDir, 0o755); err != nil {
		return err
	}
	if err := overlay.EnsureDir(workDir, 0o755); err != nil {
		return err
	}
	if err := overlay.EnsureDir(upperDir, 0o700); err != nil {
		return err
	}
	if err := os.Chown(upperDir, uid, gid); err != nil {
		return hookerror.Wrap(hookerror.FS, "chown overlay upperdir "+upperDir, err)
	}

	if err := overlay.CheckLower(lowerDir); err != nil {
		return hookerror.Wrap(hookerror.Mount, "check overlay lowerdir filesystem", err)
	}
	if err := overlay.CheckUpper(upperDir); err != nil {
		return hookerror.Wrap(hookerror.Mount, "check overlay upperdir filesystem", err)
	}

	if err := overlay.Mount([]string{lowerDir}, upperDir, workDir, sshKeysDirInContainer); err != nil {
		return hookerror.Wrap(hookerror.Mount, "mount ssh keys overlay", err)
	}
	return nil
}

func copySshKeysIntoContainer(sshKeysDirInHost, sshKeysDirInContainer string, uid, gid int) error {
	log.Infof("Copying SSH keys into %s", sshKeysDirInContainer)
	for _, name := range expectedKeyFiles {
		src := filepath.Join(sshKeysDirInHost, name)
		dst := filepath.Join(sshKeysDirInContainer, name)
		if err := fs.CopyFile(src, dst, 0o600); err != nil {
			return hookerror.Wrap(hookerror.FS, "copy "+name+" into container", err)
		}
		if err := os.Chown(dst, uid, gid); err != nil {
			return hookerror.Wrap(hookerror.FS, "chown "+dst, err)
		}
	}
	return nil
}

func createEnvironmentFile(spec *specs.Spec, dropbearDirInContainer string) error {
	entries, err := env.FromOCISpec(spec)
	if err != nil {
		return hookerror.Wrap(hookerror.Parse, "read container environment from bundle config.json", err)
	}

	var b []byte
	b = append(b, "#!/bin/sh\n"...)
	for _, kv := range entries {
		b = append(b, fmt.Sprintf("export %s=\"%s\"\n", kv.Key, shell.Escape(kv.Value))...)
	}

	path := filepath.Join(dropbearDirInContainer, "environment")
	if err := os.WriteFile(path, b, 0o744); err != nil {
		return hookerror.Wrap(hookerror.FS, "write environment file", err)
	}
	log.Infof("Successfully created script to export container environment upon login")
	return nil
}

func createEtcProfileModule(rootfsDir string) error {
	log.Infof("Creating module in container's /etc/profile.d")

	script := "#!/bin/sh\n" +
		"if [ \"$SSH_CONNECTION\" ]; then\n" +
		"    . " + dropbearRelativeDirInContainer + "/environment\n" +
		"fi\n"

	dir := filepath.Join(rootfsDir, "etc", "profile.d")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return hookerror.Wrap(hookerror.FS, "create /etc/profile.d", err)
	}
	path := filepath.Join(dir, "ssh-hook.sh")
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		return hookerror.Wrap(hookerror.FS, "write /etc/profile.d/ssh-hook.sh", err)
	}
	return nil
}

func createSshExecutableInContainer(rootfsDir string, serverPort int) error {
	log.Infof("Creating /usr/bin/ssh in container")

	script := fmt.Sprintf("#!/bin/sh\n%s/bin/dbclient -y -p %d $*\n", dropbearRelativeDirInContainer, serverPort)

	dir := filepath.Join(rootfsDir, "usr", "bin")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return hookerror.Wrap(hookerror.FS, "create /usr/bin", err)
	}
	path := filepath.Join(dir, "ssh")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return hookerror.Wrap(hookerror.FS, "write /usr/bin/ssh", err)
	}
	return nil
}
