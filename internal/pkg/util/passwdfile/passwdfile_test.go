// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package passwdfile

import (
	"os"
	"path/filepath"
	"testing"
)

const samplePasswd = "root:x:0:0:root:/root:/bin/bash\n" +
	"alice:x:1000:1000:Alice Wu,,,:/home/alice:/bin/sh\n"

func writeTempPasswd(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "passwd")
	if err := os.WriteFile(path, []byte(samplePasswd), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLookupUserInFile(t *testing.T) {
	path := writeTempPasswd(t)

	u, err := LookupUserInFile(path, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if u.Uid != "1000" || u.HomeDir != "/home/alice" || u.Name != "Alice Wu" {
		t.Fatalf("unexpected user: %+v", u)
	}

	if _, err := LookupUserInFile(path, "nobody"); err == nil {
		t.Fatal("expected an error for an unknown username")
	}
}

func TestLookupUserIDInFile(t *testing.T) {
	path := writeTempPasswd(t)

	u, err := LookupUserIDInFile(path, "0")
	if err != nil {
		t.Fatal(err)
	}
	if u.Username != "root" {
		t.Fatalf("Username = %q, want %q", u.Username, "root")
	}

	if _, err := LookupUserIDInFile(path, "9999"); err == nil {
		t.Fatal("expected an error for an unknown uid")
	}
	if _, err := LookupUserIDInFile(path, "not-a-number"); err == nil {
		t.Fatal("expected an error for a non-numeric uid")
	}
}
