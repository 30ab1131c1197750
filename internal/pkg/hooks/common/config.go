// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package common holds the pieces shared by the SSH hook's subcommands:
// environment-variable configuration, the OCI bundle/state readers, and the
// namespace-entry mechanism used before touching a running container.
package common

import (
	"os"
	"strconv"

	"github.com/eth-cscs/sarus-hooks/internal/pkg/hooks/hookerror"
)

// Config holds the four environment variables the SSH hook subcommands are
// configured through. None of them have a default: an unset variable is a
// configuration error, never a silently-assumed value.
type Config struct {
	// DropbearDir is the host directory containing prebuilt dropbear/dbclient
	// binaries and the dropbearkey tool.
	DropbearDir string
	// ServerPort is the TCP port dropbear listens on inside the container.
	ServerPort int
	// PasswdFile is the host passwd file used to resolve the invoking uid to
	// a username when placing per-user SSH key directories.
	PasswdFile string
	// HookBaseDir is the host directory under which per-user SSH key
	// directories are created, as "<HookBaseDir>/<username>/.oci-hooks/ssh/keys".
	HookBaseDir string
}

// LoadConfig reads Config from the environment, failing fast on any missing
// variable.
func LoadConfig() (Config, error) {
	dropbearDir, err := requireEnv("DROPBEAR_DIR")
	if err != nil {
		return Config{}, err
	}
	passwdFile, err := requireEnv("PASSWD_FILE")
	if err != nil {
		return Config{}, err
	}
	hookBaseDir, err := requireEnv("HOOK_BASE_DIR")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DropbearDir: dropbearDir,
		PasswdFile:  passwdFile,
		HookBaseDir: hookBaseDir,
	}
	return cfg, nil
}

// LoadConfigWithServerPort is LoadConfig plus the SERVER_PORT variable,
// required only by the "activate" subcommand.
func LoadConfigWithServerPort() (Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return Config{}, err
	}

	portStr, err := requireEnv("SERVER_PORT")
	if err != nil {
		return Config{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Config{}, hookerror.Wrap(hookerror.Config, "parse SERVER_PORT", err)
	}
	cfg.ServerPort = port

	return cfg, nil
}

func requireEnv(name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return "", hookerror.New(hookerror.Config, "required environment variable "+name+" is not set")
	}
	return v, nil
}
