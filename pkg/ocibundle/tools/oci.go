// Copyright (c) 2019-2023, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package tools provides path helpers and a config.json reader for an
// existing OCI bundle directory, the reader-side counterpart of the
// bundle-generation helpers Singularity builds here for its own runtime.
package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Config provides functions for accessing the runtime configuration (JSON)
// of a bundle. It is initialized with the path of the bundle.
type Config string

// Path returns the path to the runtime configuration (JSON) of a bundle.
func (c Config) Path() string {
	return filepath.Join(string(c), "config.json")
}

// Load reads and unmarshals config.json.
func (c Config) Load() (*specs.Spec, error) {
	data, err := os.ReadFile(c.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.Path(), err)
	}

	spec := &specs.Spec{}
	if err := json.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", c.Path(), err)
	}
	return spec, nil
}

// ResolveRootfsPath returns the absolute rootfs path named by a bundle's
// config.json "root.path" field, joining it against bundleDir when it is
// relative.
func ResolveRootfsPath(bundleDir string) (string, error) {
	spec, err := Config(bundleDir).Load()
	if err != nil {
		return "", err
	}
	return ResolveRootfsPathFromSpec(bundleDir, spec)
}

// ResolveRootfsPathFromSpec is ResolveRootfsPath for a caller that already
// holds spec, sparing it a redundant config.json read.
func ResolveRootfsPathFromSpec(bundleDir string, spec *specs.Spec) (string, error) {
	if spec.Root == nil || spec.Root.Path == "" {
		return "", fmt.Errorf("config.json of bundle %s has no root.path", bundleDir)
	}

	if filepath.IsAbs(spec.Root.Path) {
		return spec.Root.Path, nil
	}
	return filepath.Join(bundleDir, spec.Root.Path), nil
}
