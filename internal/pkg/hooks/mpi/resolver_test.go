// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package mpi

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsSharedLib(t *testing.T) {
	cases := map[string]bool{
		"/usr/lib/libmpi.so.12.1.0": true,
		"/usr/lib/libmpi.so":        true,
		"/etc/ld.so.conf":           false,
		"/etc/ld.so.cache":          false,
		"/usr/lib/notalib.txt":      false,
	}
	for path, want := range cases {
		if got := IsSharedLib(path); got != want {
			t.Errorf("IsSharedLib(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestParseSharedLibAbi(t *testing.T) {
	cases := []struct {
		path string
		want []string
	}{
		{path: "/usr/lib/libmpi.so.12.1.0", want: []string{"12", "1", "0"}},
		{path: "/usr/lib/libmpi.so.12", want: []string{"12"}},
		{path: "/usr/lib/libmpi.so", want: []string{}},
	}
	for _, c := range cases {
		got, err := ParseSharedLibAbi(c.path)
		if err != nil {
			t.Fatalf("ParseSharedLibAbi(%q): %v", c.path, err)
		}
		if len(got) != len(c.want) {
			t.Fatalf("ParseSharedLibAbi(%q) = %v, want %v", c.path, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("ParseSharedLibAbi(%q)[%d] = %q, want %q", c.path, i, got[i], c.want[i])
			}
		}
	}
}

// setupLibTree builds, under root:
//
//	lib/libmpi.so.12.1.0   (regular file)
//	lib/libmpi.so.12       -> libmpi.so.12.1.0
//	lib/libmpi.so          -> libmpi.so.12
func setupLibTree(t *testing.T) (root string) {
	t.Helper()
	root = t.TempDir()
	libDir := filepath.Join(root, "lib")
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		t.Fatal(err)
	}
	real := filepath.Join(libDir, "libmpi.so.12.1.0")
	if err := os.WriteFile(real, []byte("fake elf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("libmpi.so.12.1.0", filepath.Join(libDir, "libmpi.so.12")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("libmpi.so.12", filepath.Join(libDir, "libmpi.so")); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestDefaultResolverResolveABIWalksSymlinkChain(t *testing.T) {
	root := setupLibTree(t)

	abi, err := DefaultResolver{}.ResolveABI("/lib/libmpi.so", root)
	if err != nil {
		t.Fatal(err)
	}
	if len(abi) != 3 || abi[0] != "12" || abi[1] != "1" || abi[2] != "0" {
		t.Errorf("ResolveABI = %v, want [12 1 0]", abi)
	}
}

func TestDefaultResolverResolveABIStopsAtIncompatibleLinkerName(t *testing.T) {
	root := t.TempDir()
	libDir := filepath.Join(root, "lib")
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(libDir, "libmpich_gnu_71.so.3.0.1")
	if err := os.WriteFile(target, []byte("fake elf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("libmpich_gnu_71.so.3.0.1", filepath.Join(libDir, "libmpi.so.12")); err != nil {
		t.Fatal(err)
	}

	abi, err := DefaultResolver{}.ResolveABI("/lib/libmpi.so.12", root)
	if err != nil {
		t.Fatal(err)
	}
	if len(abi) != 1 || abi[0] != "12" {
		t.Errorf("ResolveABI = %v, want [12] (mismatched-linker-name target ignored)", abi)
	}
}
