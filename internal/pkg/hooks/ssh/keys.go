// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package ssh implements the SSH hook's host-side key lifecycle and the
// in-container activation steps run at container startup.
package ssh

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofrs/flock"

	"github.com/eth-cscs/sarus-hooks/internal/pkg/hooks/hookerror"
	"github.com/eth-cscs/sarus-hooks/pkg/sylog"
)

var log = sylog.ForSubsystem("SSH hook")

const lockAcquireTimeout = 30 * time.Second

// expectedKeyFiles are the files KeyManager.HasKeys checks for, and the
// files generation produces.
var expectedKeyFiles = []string{"dropbear_ecdsa_host_key", "id_dropbear", "authorized_keys"}

// KeyManager generates and checks for the per-user SSH key material kept on
// the host, under keysDir.
type KeyManager struct {
	// DropbearDir holds the prebuilt dropbear/dbclient/dropbearkey binaries.
	DropbearDir string
	// KeysDir is the per-user directory SSH key material is generated into.
	KeysDir string
}

// HasKeys reports whether every expected key file is already present in
// KeysDir.
func (m KeyManager) HasKeys() bool {
	for _, name := range expectedKeyFiles {
		path := filepath.Join(m.KeysDir, name)
		if _, err := os.Stat(path); err != nil {
			log.Debugf("Expected SSH key file %s not found", path)
			return false
		}
	}
	log.Debugf("Found SSH keys in %s", m.KeysDir)
	return true
}

// Generate creates a fresh host key, a client key, and the matching
// authorized_keys file in KeysDir, holding an advisory lock on the
// directory for the duration so concurrent "sarus-ssh-hook keygen"
// invocations for the same user never interleave. If overwrite is false and
// keys already exist, Generate is a no-op.
func (m KeyManager) Generate(overwrite bool) error {
	if err := os.MkdirAll(m.KeysDir, 0o700); err != nil {
		return hookerror.Wrap(hookerror.FS, "create SSH keys directory", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), lockAcquireTimeout)
	defer cancel()

	// The lock file is a sibling of KeysDir, never a child of it: Generate
	// below os.RemoveAll(m.KeysDir)s the whole directory mid-critical-section,
	// and a lock path inside it would let a concurrent Generate TryLock a
	// freshly recreated inode before this one finishes.
	lock := flock.New(m.KeysDir + ".lock")
	locked, err := lock.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil || !locked {
		return hookerror.Wrap(hookerror.FS, "acquire lock on SSH keys directory", err)
	}
	defer lock.Unlock()

	if m.HasKeys() && !overwrite {
		log.Generalf("SSH keys not generated because they already exist in %s."+
			" Use the '--overwrite' option to overwrite the existing keys.", m.KeysDir)
		return nil
	}

	if err := os.RemoveAll(m.KeysDir); err != nil {
		return hookerror.Wrap(hookerror.FS, "remove existing SSH keys directory", err)
	}
	if err := os.MkdirAll(m.KeysDir, 0o700); err != nil {
		return hookerror.Wrap(hookerror.FS, "recreate SSH keys directory", err)
	}

	hostKey := filepath.Join(m.KeysDir, "dropbear_ecdsa_host_key")
	clientKey := filepath.Join(m.KeysDir, "id_dropbear")
	authorizedKeys := filepath.Join(m.KeysDir, "authorized_keys")

	if err := m.sshKeygen(hostKey); err != nil {
		return err
	}
	if err := m.sshKeygen(clientKey); err != nil {
		return err
	}
	if err := m.generateAuthorizedKeys(clientKey, authorizedKeys); err != nil {
		return err
	}

	log.Generalf("Successfully generated SSH keys")
	return nil
}

func (m KeyManager) sshKeygen(outputFile string) error {
	log.Infof("Generating %s", outputFile)
	bin := filepath.Join(m.DropbearDir, "bin", "dropbearkey")
	cmd := exec.Command(bin, "-t", "ecdsa", "-f", outputFile)
	if out, err := cmd.CombinedOutput(); err != nil {
		return hookerror.Wrap(hookerror.Subprocess, fmt.Sprintf("run %s: %s", bin, out), err)
	}
	return nil
}

var authorizedKeyLine = regexp.MustCompile(`^(ecdsa-.*)$`)

func (m KeyManager) generateAuthorizedKeys(clientKeyFile, authorizedKeysFile string) error {
	log.Infof("Generating \"authorized_keys\" file (%s)", authorizedKeysFile)

	bin := filepath.Join(m.DropbearDir, "bin", "dropbearkey")
	cmd := exec.Command(bin, "-y", "-f", clientKeyFile)
	out, err := cmd.Output()
	if err != nil {
		return hookerror.Wrap(hookerror.Subprocess, fmt.Sprintf("run %s -y -f %s", bin, clientKeyFile), err)
	}

	for _, line := range splitLines(out) {
		if match := authorizedKeyLine.FindStringSubmatch(line); match != nil {
			if err := os.WriteFile(authorizedKeysFile, []byte(match[1]+"\n"), 0o600); err != nil {
				return hookerror.Wrap(hookerror.FS, "write authorized_keys file", err)
			}
			log.Infof("Successfully generated \"authorized_keys\" file")
			return nil
		}
	}

	return hookerror.New(hookerror.Parse, fmt.Sprintf("failed to parse public key from %s output", bin))
}

func splitLines(b []byte) []string {
	var lines []string
	start := 0
	for i, c := range b {
		if c == '\n' {
			lines = append(lines, string(b[start:i]))
			start = i + 1
		}
	}
	if start < len(b) {
		lines = append(lines, string(b[start:]))
	}
	return lines
}
