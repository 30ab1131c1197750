// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Command sarus-ssh-hook is the OCI hook invoked by the container runtime to
// generate, check for, and activate per-container SSH access via dropbear.
package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/eth-cscs/sarus-hooks/internal/pkg/hooks/common"
	"github.com/eth-cscs/sarus-hooks/internal/pkg/hooks/ssh"
	"github.com/eth-cscs/sarus-hooks/pkg/sylog"
)

var log = sylog.ForSubsystem("SSH hook")

func main() {
	// Checked ahead of cobra dispatch: a process started this way is the
	// forked daemon-launcher child (see ssh.StartDaemon), not an invocation
	// of one of the subcommands below.
	if spec, ok := ssh.DaemonChildFromEnv(); ok {
		if err := ssh.RunDaemonChild(spec); err != nil {
			log.Fatalf("%s", err)
		}
		return
	}

	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("%s", err)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sarus-ssh-hook",
		Short: "OCI hook providing SSH access into Sarus containers",
	}
	root.AddCommand(newKeygenCmd(), newCheckUserHasKeysCmd(), newActivateCmd())
	return root
}

func keyManagerFromEnv() (ssh.KeyManager, error) {
	cfg, err := common.LoadConfig()
	if err != nil {
		return ssh.KeyManager{}, err
	}

	uid := os.Getuid()
	username, err := ssh.HostUsername(cfg.PasswdFile, uid)
	if err != nil {
		return ssh.KeyManager{}, err
	}

	return ssh.KeyManager{
		DropbearDir: cfg.DropbearDir,
		KeysDir:     filepath.Join(cfg.HookBaseDir, username, ".oci-hooks", "ssh", "keys"),
	}, nil
}

func newKeygenCmd() *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate SSH keys for the invoking user, if they do not already exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := keyManagerFromEnv()
			if err != nil {
				return err
			}
			return m.Generate(overwrite)
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "overwrite existing SSH keys")
	return cmd
}

// newCheckUserHasKeysCmd never logs at GENERAL: it communicates purely by
// exit code, the way SshHook.cpp's checkUserHasSshKeys logs at INFO and
// calls exit(EXIT_FAILURE) directly rather than raising through the
// GENERAL-logging failure path the other subcommands use.
func newCheckUserHasKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "check-user-has-keys",
		Short:         "Exit non-zero if the invoking user has no SSH keys generated yet",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := keyManagerFromEnv()
			if err != nil {
				log.Infof("%s", err)
				os.Exit(1)
			}
			if !m.HasKeys() {
				log.Infof("no SSH keys found for the invoking user in %s", m.KeysDir)
				os.Exit(1)
			}
			return nil
		},
	}
}

func newActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate",
		Short: "Enter a starting container's namespaces and start its SSH daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := common.LoadConfigWithServerPort()
			if err != nil {
				return err
			}
			return ssh.Activate(os.Stdin, cfg)
		},
	}
}
