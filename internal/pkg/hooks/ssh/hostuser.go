// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package ssh

import (
	"strconv"

	"github.com/eth-cscs/sarus-hooks/internal/pkg/hooks/hookerror"
	"github.com/eth-cscs/sarus-hooks/internal/pkg/util/passwdfile"
)

// HostUsername resolves uid to a username by looking it up in passwdFile,
// the host-side counterpart of the container's own /etc/passwd lookup the
// hook uses to find a user's home directory inside the rootfs. It grounds
// the PASSWD_FILE configuration variable: the host username is never
// trusted from the environment, only from this file, since the SSH hook's
// key directories are namespaced by it.
func HostUsername(passwdFile string, uid int) (string, error) {
	u, err := passwdfile.LookupUserIDInFile(passwdFile, strconv.Itoa(uid))
	if err != nil {
		return "", hookerror.Wrap(hookerror.Config, "look up uid "+strconv.Itoa(uid)+" in "+passwdFile, err)
	}
	return u.Username, nil
}
