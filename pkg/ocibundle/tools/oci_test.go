// Copyright (c) 2019-2023, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package tools

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigPathAndLoad(t *testing.T) {
	bundleDir := t.TempDir()
	cfg := Config(bundleDir)

	if want := filepath.Join(bundleDir, "config.json"); cfg.Path() != want {
		t.Errorf("Path() = %q, want %q", cfg.Path(), want)
	}

	if err := os.WriteFile(cfg.Path(), []byte(`{"root":{"path":"rootfs"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	spec, err := cfg.Load()
	if err != nil {
		t.Fatal(err)
	}
	if spec.Root == nil || spec.Root.Path != "rootfs" {
		t.Fatalf("unexpected spec: %+v", spec)
	}
}

func TestResolveRootfsPathRelative(t *testing.T) {
	bundleDir := t.TempDir()
	if err := os.WriteFile(Config(bundleDir).Path(), []byte(`{"root":{"path":"rootfs"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveRootfsPath(bundleDir)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(bundleDir, "rootfs"); got != want {
		t.Errorf("ResolveRootfsPath() = %q, want %q", got, want)
	}
}

func TestResolveRootfsPathAbsolute(t *testing.T) {
	bundleDir := t.TempDir()
	if err := os.WriteFile(Config(bundleDir).Path(), []byte(`{"root":{"path":"/var/lib/container/rootfs"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveRootfsPath(bundleDir)
	if err != nil {
		t.Fatal(err)
	}
	if want := "/var/lib/container/rootfs"; got != want {
		t.Errorf("ResolveRootfsPath() = %q, want %q", got, want)
	}
}

func TestResolveRootfsPathMissingRoot(t *testing.T) {
	bundleDir := t.TempDir()
	if err := os.WriteFile(Config(bundleDir).Path(), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ResolveRootfsPath(bundleDir); err == nil {
		t.Fatal("expected an error when config.json has no root.path")
	}
}
