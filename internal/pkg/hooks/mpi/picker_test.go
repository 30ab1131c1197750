// Copyright (c) 2018-2022, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package mpi

import "testing"

func TestPickNewestAbiCompatibleLibraryNoCandidates(t *testing.T) {
	container := mustLib(t, "/usr/lib/libmpi.so.12.1.0")
	if _, err := container.PickNewestAbiCompatibleLibrary(nil); err == nil {
		t.Fatal("expected error picking from no candidates")
	}
}

func TestPickNewestAbiCompatibleLibrarySingleCandidate(t *testing.T) {
	container := mustLib(t, "/usr/lib/libmpi.so.12.1.0")
	only := mustLib(t, "/opt/mpi/lib/libmpi.so.9.0.0")

	got, err := container.PickNewestAbiCompatibleLibrary([]SharedLibrary{only})
	if err != nil {
		t.Fatal(err)
	}
	if got.RealName != only.RealName {
		t.Errorf("got %q, want the sole candidate %q", got.RealName, only.RealName)
	}
}

func TestPickNewestAbiCompatibleLibraryExactMatchShortCircuits(t *testing.T) {
	container := mustLib(t, "/usr/lib/libmpi.so.12.1.0")
	exact := mustLib(t, "/opt/mpi/lib/libmpi.so.12.1.0")
	older := mustLib(t, "/opt/mpi/lib/libmpi.so.11.0.0")
	newer := mustLib(t, "/opt/mpi/lib/libmpi.so.14.0.0")

	got, err := container.PickNewestAbiCompatibleLibrary([]SharedLibrary{older, exact, newer})
	if err != nil {
		t.Fatal(err)
	}
	if got.RealName != exact.RealName {
		t.Errorf("got %q, want exact match %q", got.RealName, exact.RealName)
	}
}

func TestPickNewestAbiCompatibleLibraryPicksNewestOlderOrEqual(t *testing.T) {
	container := mustLib(t, "/usr/lib/libmpi.so.12.5.0")
	older1 := mustLib(t, "/opt/mpi/lib/libmpi.so.12.1.0")
	older2 := mustLib(t, "/opt/mpi/lib/libmpi.so.12.3.0")
	newer := mustLib(t, "/opt/mpi/lib/libmpi.so.13.0.0")

	got, err := container.PickNewestAbiCompatibleLibrary([]SharedLibrary{older1, older2, newer})
	if err != nil {
		t.Fatal(err)
	}
	if got.RealName != older2.RealName {
		t.Errorf("got %q, want newest older-or-equal %q", got.RealName, older2.RealName)
	}
}

func TestPickNewestAbiCompatibleLibraryFallsBackToOldestNewer(t *testing.T) {
	container := mustLib(t, "/usr/lib/libmpi.so.10.0.0")
	newer1 := mustLib(t, "/opt/mpi/lib/libmpi.so.12.0.0")
	newer2 := mustLib(t, "/opt/mpi/lib/libmpi.so.13.0.0")

	got, err := container.PickNewestAbiCompatibleLibrary([]SharedLibrary{newer1, newer2})
	if err != nil {
		t.Fatal(err)
	}
	if got.RealName != newer1.RealName {
		t.Errorf("got %q, want oldest newer candidate %q when nothing is older-or-equal", got.RealName, newer1.RealName)
	}
}

func TestPickNewestAbiCompatibleLibraryNeverDowngradesPatch(t *testing.T) {
	container := mustLib(t, "/usr/lib/libmpi.so.12.1.5")
	samePatchOlder := mustLib(t, "/opt/mpi/lib/libmpi.so.12.1.2")
	samePatchNewer := mustLib(t, "/opt/mpi/lib/libmpi.so.12.1.9")

	got, err := container.PickNewestAbiCompatibleLibrary([]SharedLibrary{samePatchOlder, samePatchNewer})
	if err != nil {
		t.Fatal(err)
	}
	if got.Patch < samePatchOlder.Patch {
		t.Errorf("picked patch %d regressed below the older candidate's patch %d", got.Patch, samePatchOlder.Patch)
	}
}

func TestPickNewestAbiCompatibleLibraryIsIdempotent(t *testing.T) {
	container := mustLib(t, "/usr/lib/libmpi.so.12.5.0")
	candidates := []SharedLibrary{
		mustLib(t, "/opt/mpi/lib/libmpi.so.12.1.0"),
		mustLib(t, "/opt/mpi/lib/libmpi.so.12.3.0"),
		mustLib(t, "/opt/mpi/lib/libmpi.so.13.0.0"),
	}

	first, err := container.PickNewestAbiCompatibleLibrary(candidates)
	if err != nil {
		t.Fatal(err)
	}
	second, err := container.PickNewestAbiCompatibleLibrary([]SharedLibrary{first})
	if err != nil {
		t.Fatal(err)
	}
	if first.RealName != second.RealName {
		t.Errorf("picker is not idempotent: got %q, then %q when picking from that result alone", first.RealName, second.RealName)
	}
}
