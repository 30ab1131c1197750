// Copyright (c) 2019, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package ocibundle describes the OCI bundle directory an already-created
// container was started from. Unlike an image builder, the hooks only ever
// read a bundle that the container runtime produced; they never create or
// delete one.
package ocibundle

// Bundle gives read access to the paths of an existing OCI bundle directory.
type Bundle interface {
	// Path returns the bundle directory itself.
	Path() string
	// RootfsPath returns the absolute path of the container's rootfs, as
	// named by the bundle's config.json "root.path" (which may be relative
	// to the bundle directory).
	RootfsPath() (string, error)
	// ConfigPath returns the path of the bundle's config.json.
	ConfigPath() string
}
