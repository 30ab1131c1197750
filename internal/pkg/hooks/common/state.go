// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package common

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ccoveille/go-safecast"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/eth-cscs/sarus-hooks/internal/pkg/hooks/hookerror"
	"github.com/eth-cscs/sarus-hooks/pkg/ocibundle"
	"github.com/eth-cscs/sarus-hooks/pkg/ocibundle/tools"
)

// ContainerState is the pid and bundle directory of the container a hook was
// invoked for, as delivered by the OCI runtime on stdin at the createRuntime
// or poststart hook point.
type ContainerState struct {
	Pid       int
	BundleDir string
}

// ReadStateFromStdin parses the OCI state JSON object the runtime writes to
// the hook's stdin. It must be called at most once per process: stdin is a
// pipe, not a seekable file.
func ReadStateFromStdin(stdin io.Reader) (ContainerState, error) {
	raw, err := io.ReadAll(stdin)
	if err != nil {
		return ContainerState{}, hookerror.Wrap(hookerror.Parse, "read OCI state from stdin", err)
	}

	var state specs.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return ContainerState{}, hookerror.Wrap(hookerror.Parse, "unmarshal OCI state JSON", err)
	}

	if state.Pid == 0 {
		return ContainerState{}, hookerror.New(hookerror.Parse, "OCI state JSON has no pid")
	}
	if state.Bundle == "" {
		return ContainerState{}, hookerror.New(hookerror.Parse, "OCI state JSON has no bundle path")
	}

	return ContainerState{Pid: state.Pid, BundleDir: state.Bundle}, nil
}

// OCIBundle is the read-only view of a bundle directory already created by
// the container runtime, satisfying ocibundle.Bundle.
type OCIBundle struct {
	bundleDir string
}

var _ ocibundle.Bundle = OCIBundle{}

// NewOCIBundle wraps bundleDir for path resolution.
func NewOCIBundle(bundleDir string) OCIBundle {
	return OCIBundle{bundleDir: bundleDir}
}

func (b OCIBundle) Path() string { return b.bundleDir }

func (b OCIBundle) ConfigPath() string { return tools.Config(b.bundleDir).Path() }

func (b OCIBundle) RootfsPath() (string, error) {
	path, err := tools.ResolveRootfsPath(b.bundleDir)
	if err != nil {
		return "", hookerror.Wrap(hookerror.Parse, "resolve bundle rootfs path", err)
	}
	return path, nil
}

// ProcessUser reads the uid/gid the container's init process runs as from
// config.json's "process.user" fields.
func (b OCIBundle) ProcessUser() (uid, gid int, err error) {
	spec, err := tools.Config(b.bundleDir).Load()
	if err != nil {
		return 0, 0, hookerror.Wrap(hookerror.Parse, "load bundle config.json", err)
	}
	return ProcessUserFromSpec(b.bundleDir, spec)
}

// RootfsPathFromSpec is OCIBundle.RootfsPath for a caller that already holds
// bundleDir's parsed config.json, sparing it a redundant read. Activate
// loads the spec once and reuses it here, for ProcessUserFromSpec, and for
// reading the container environment, rather than reloading config.json at
// each step.
func RootfsPathFromSpec(bundleDir string, spec *specs.Spec) (string, error) {
	path, err := tools.ResolveRootfsPathFromSpec(bundleDir, spec)
	if err != nil {
		return "", hookerror.Wrap(hookerror.Parse, "resolve bundle rootfs path", err)
	}
	return path, nil
}

// ProcessUserFromSpec is OCIBundle.ProcessUser for a caller that already
// holds spec. The uint32 fields from the JSON are checked rather than
// blindly narrowed, since a hostile or malformed bundle could otherwise
// wrap a huge uid into a small, unexpectedly privileged int.
func ProcessUserFromSpec(bundleDir string, spec *specs.Spec) (uid, gid int, err error) {
	if spec.Process == nil {
		return 0, 0, hookerror.New(hookerror.Parse, fmt.Sprintf("bundle %s config.json has no process section", bundleDir))
	}

	uid64, err := safecast.ToInt(spec.Process.User.UID)
	if err != nil {
		return 0, 0, hookerror.Wrap(hookerror.Parse, "convert process.user.uid", err)
	}
	gid64, err := safecast.ToInt(spec.Process.User.GID)
	if err != nil {
		return 0, 0, hookerror.Wrap(hookerror.Parse, "convert process.user.gid", err)
	}
	return uid64, gid64, nil
}
