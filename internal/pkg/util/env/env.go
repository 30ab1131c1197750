// Copyright (c) 2018-2023, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package env reads the environment variables an OCI bundle's config.json
// names for its container process, the source the SSH hook exports into the
// in-container "environment" file sourced by /etc/profile.d/ssh-hook.sh.
package env

import (
	"fmt"
	"strings"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// KV is one KEY=VALUE environment entry, kept ordered rather than folded
// into a map since the generated environment file's variable order should
// match config.json's.
type KV struct {
	Key   string
	Value string
}

// FromOCISpec splits spec.Process.Env's "KEY=VALUE" entries into an ordered
// list, mirroring parseEnvironmentVariablesFromOCIBundle.
func FromOCISpec(spec *specs.Spec) ([]KV, error) {
	if spec.Process == nil {
		return nil, nil
	}

	out := make([]KV, 0, len(spec.Process.Env))
	for _, entry := range spec.Process.Env {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("malformed environment entry %q in bundle config.json", entry)
		}
		out = append(out, KV{Key: k, Value: v})
	}
	return out, nil
}
