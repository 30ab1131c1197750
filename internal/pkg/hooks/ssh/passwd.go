// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package ssh

import (
	"fmt"
	"os"
	"strings"

	pwd "github.com/astromechza/etcpwdparse"

	"github.com/eth-cscs/sarus-hooks/internal/pkg/hooks/hookerror"
)

// PasswdEntry is one parsed /etc/passwd row, kept mutable so the hook can
// patch fields before writing the file back.
type PasswdEntry struct {
	Username           string
	UID                int
	GID                int
	Gecos              string
	HomeDir            string
	CommandInterpreter string
}

// PasswdDB is an in-memory, ordered view of a passwd file, allowing entries
// to be patched and the whole file rewritten.
type PasswdDB struct {
	entries []PasswdEntry
}

// LoadPasswdDB reads and parses path into a PasswdDB.
func LoadPasswdDB(path string) (PasswdDB, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return PasswdDB{}, hookerror.Wrap(hookerror.FS, "read passwd file "+path, err)
	}

	db := PasswdDB{}
	for _, line := range strings.Split(string(raw), "\n") {
		if line == "" {
			continue
		}
		entry, err := pwd.ParsePasswdLine(line)
		if err != nil {
			return PasswdDB{}, hookerror.Wrap(hookerror.Parse, "parse passwd line "+line, err)
		}
		db.entries = append(db.entries, PasswdEntry{
			Username:           entry.Username(),
			UID:                entry.Uid(),
			GID:                entry.Gid(),
			Gecos:              entry.Info(),
			HomeDir:            entry.Homedir(),
			CommandInterpreter: entry.Shell(),
		})
	}
	return db, nil
}

// HomeDirectory returns the home directory configured for uid, or "" if no
// entry matches.
func (db PasswdDB) HomeDirectory(uid int) string {
	for _, e := range db.entries {
		if e.UID == uid {
			return e.HomeDir
		}
	}
	return ""
}

// PatchMissingInterpreters rewrites any entry whose command interpreter
// does not exist under rootDir to "/bin/sh", mirroring the hook's fallback
// for containers that ship a passwd file naming a shell the image dropped.
func (db *PasswdDB) PatchMissingInterpreters(rootDir string) {
	for i, e := range db.entries {
		if e.CommandInterpreter == "" {
			continue
		}
		if _, err := os.Stat(rootDir + e.CommandInterpreter); err != nil {
			db.entries[i].CommandInterpreter = "/bin/sh"
		}
	}
}

// Write renders the database back to path in passwd(5) format.
func (db PasswdDB) Write(path string) error {
	var b strings.Builder
	for _, e := range db.entries {
		fmt.Fprintf(&b, "%s:x:%d:%d:%s:%s:%s\n", e.Username, e.UID, e.GID, e.Gecos, e.HomeDir, e.CommandInterpreter)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return hookerror.Wrap(hookerror.FS, "write passwd file "+path, err)
	}
	return nil
}
