// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Command sarus-mpi-libpick exercises the ABI-compatible shared-library
// picker standalone, the way the MPI hook uses it as one step of a larger
// host-library injection pass: given the library a container ships and a
// set of host-side candidates, it prints the path of the one the picker
// would inject.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eth-cscs/sarus-hooks/internal/pkg/hooks/mpi"
	"github.com/eth-cscs/sarus-hooks/pkg/sylog"
	"github.com/eth-cscs/sarus-hooks/pkg/util/slice"
)

var log = sylog.ForSubsystem("MPI hook")

func main() {
	var rootDir string

	cmd := &cobra.Command{
		Use:   "sarus-mpi-libpick CONTAINER_LIB HOST_CANDIDATE...",
		Short: "Pick the ABI-compatible host library to inject in place of a container's",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := mpi.DefaultResolver{}

			target, err := mpi.NewSharedLibrary(args[0], rootDir, resolver)
			if err != nil {
				return fmt.Errorf("resolve container library %s: %w", args[0], err)
			}

			var seen []string
			candidates := make([]mpi.SharedLibrary, 0, len(args)-1)
			for _, path := range args[1:] {
				if slice.ContainsString(seen, path) {
					log.Infof("Skipping duplicate candidate %s", path)
					continue
				}
				seen = append(seen, path)

				lib, err := mpi.NewSharedLibrary(path, "", resolver)
				if err != nil {
					log.Infof("Skipping unresolvable candidate %s: %s", path, err)
					continue
				}
				candidates = append(candidates, lib)
			}

			picked, err := target.PickNewestAbiCompatibleLibrary(candidates)
			if err != nil {
				return err
			}

			fmt.Println(picked.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&rootDir, "root", "", "container rootfs directory confining the container library's symlink resolution")

	if err := cmd.Execute(); err != nil {
		log.Fatalf("%s", err)
	}
}
