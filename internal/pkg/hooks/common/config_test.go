// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package common

import "testing"

func setEnvs(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoadConfigMissingVariable(t *testing.T) {
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected an error when no environment variables are set")
	}

	setEnvs(t, map[string]string{
		"DROPBEAR_DIR": "/opt/dropbear",
		"PASSWD_FILE":  "/etc/passwd",
	})
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected an error when HOOK_BASE_DIR is still unset")
	}
}

func TestLoadConfigSuccess(t *testing.T) {
	setEnvs(t, map[string]string{
		"DROPBEAR_DIR":  "/opt/dropbear",
		"PASSWD_FILE":   "/etc/passwd",
		"HOOK_BASE_DIR": "/var/lib/sarus-hooks",
	})

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DropbearDir != "/opt/dropbear" || cfg.PasswdFile != "/etc/passwd" || cfg.HookBaseDir != "/var/lib/sarus-hooks" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfigWithServerPort(t *testing.T) {
	setEnvs(t, map[string]string{
		"DROPBEAR_DIR":  "/opt/dropbear",
		"PASSWD_FILE":   "/etc/passwd",
		"HOOK_BASE_DIR": "/var/lib/sarus-hooks",
	})

	if _, err := LoadConfigWithServerPort(); err == nil {
		t.Fatal("expected an error when SERVER_PORT is unset")
	}

	setEnvs(t, map[string]string{"SERVER_PORT": "not-a-number"})
	if _, err := LoadConfigWithServerPort(); err == nil {
		t.Fatal("expected an error when SERVER_PORT is not numeric")
	}

	setEnvs(t, map[string]string{"SERVER_PORT": "2222"})
	cfg, err := LoadConfigWithServerPort()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerPort != 2222 {
		t.Fatalf("ServerPort = %d, want 2222", cfg.ServerPort)
	}
}
