// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package deadlock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRegistry builds a registry with one resource and two processes.
func newTestRegistry(t *testing.T, total int) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.AddResource("r1", total))
	require.NoError(t, r.AddProcess("p1"))
	require.NoError(t, r.AddProcess("p2"))
	return r
}

func TestRequest_Granted(t *testing.T) {
	r := newTestRegistry(t, 3)

	granted, err := r.Request("p1", "r1", 2)
	require.NoError(t, err)
	assert.True(t, granted)

	snap := r.Snapshot()
	assert.Equal(t, 1, snap.Resources["r1"].Available)
	assert.Equal(t, 2, snap.Processes["p1"].Allocated["r1"])
	assert.Empty(t, snap.Processes["p1"].Requesting)
	checkInvariant(t, snap)
}

func TestRequest_Blocked(t *testing.T) {
	r := newTestRegistry(t, 1)

	granted, err := r.Request("p1", "r1", 1)
	require.NoError(t, err)
	require.True(t, granted)

	granted, err = r.Request("p2", "r1", 1)
	require.NoError(t, err)
	assert.False(t, granted)

	snap := r.Snapshot()
	// The blocked request changed nothing but the requesting record.
	assert.Equal(t, 0, snap.Resources["r1"].Available)
	assert.Zero(t, snap.Processes["p2"].Allocated["r1"])
	assert.Equal(t, 1, snap.Processes["p2"].Requesting["r1"])
	checkInvariant(t, snap)
}

func TestRequest_BlockedAccumulates(t *testing.T) {
	r := newTestRegistry(t, 0)

	for i := 0; i < 3; i++ {
		granted, err := r.Request("p1", "r1", 2)
		require.NoError(t, err)
		require.False(t, granted)
	}

	snap := r.Snapshot()
	assert.Equal(t, 6, snap.Processes["p1"].Requesting["r1"])
}

func TestRequest_GrantClearsPendingRequest(t *testing.T) {
	r := newTestRegistry(t, 2)

	// p1 takes everything, p2 blocks, p1 releases, p2 retries.
	_, err := r.Request("p1", "r1", 2)
	require.NoError(t, err)
	granted, err := r.Request("p2", "r1", 1)
	require.NoError(t, err)
	require.False(t, granted)

	_, err = r.Release("p1", "r1", 2)
	require.NoError(t, err)

	granted, err = r.Request("p2", "r1", 1)
	require.NoError(t, err)
	require.True(t, granted)

	snap := r.Snapshot()
	assert.Empty(t, snap.Processes["p2"].Requesting,
		"satisfied request should clear the waiting record")
	checkInvariant(t, snap)
}

func TestRequest_GrantReducesLargerPendingRequest(t *testing.T) {
	r := newTestRegistry(t, 5)

	// Record a blocked demand of 6, then satisfy 2 of it.
	granted, err := r.Request("p1", "r1", 6)
	require.NoError(t, err)
	require.False(t, granted)

	granted, err = r.Request("p1", "r1", 2)
	require.NoError(t, err)
	require.True(t, granted)

	snap := r.Snapshot()
	assert.Equal(t, 4, snap.Processes["p1"].Requesting["r1"])
	assert.Equal(t, 2, snap.Processes["p1"].Allocated["r1"])
}

func TestRequest_ZeroCount(t *testing.T) {
	r := newTestRegistry(t, 1)

	// Zero-count requests are granted no-ops.
	granted, err := r.Request("p1", "r1", 0)
	require.NoError(t, err)
	assert.True(t, granted)

	snap := r.Snapshot()
	assert.Empty(t, snap.Processes["p1"].Allocated)
	assert.Equal(t, 1, snap.Resources["r1"].Available)
}

func TestRequest_Errors(t *testing.T) {
	r := newTestRegistry(t, 1)

	_, err := r.Request("ghost", "r1", 1)
	assert.ErrorIs(t, err, ErrUnknownEntity)

	_, err = r.Request("p1", "ghost", 1)
	assert.ErrorIs(t, err, ErrUnknownEntity)

	_, err = r.Request("p1", "r1", -1)
	assert.ErrorIs(t, err, ErrInvalidCount)

	// Failed requests leave no trace.
	snap := r.Snapshot()
	assert.Empty(t, snap.Processes["p1"].Requesting)
	assert.Equal(t, 1, snap.Resources["r1"].Available)
}

func TestRelease_Partial(t *testing.T) {
	r := newTestRegistry(t, 5)
	_, err := r.Request("p1", "r1", 4)
	require.NoError(t, err)

	freed, err := r.Release("p1", "r1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, freed)

	snap := r.Snapshot()
	assert.Equal(t, 1, snap.Processes["p1"].Allocated["r1"])
	assert.Equal(t, 4, snap.Resources["r1"].Available)
	checkInvariant(t, snap)
}

func TestRelease_MoreThanHeld(t *testing.T) {
	r := newTestRegistry(t, 5)
	_, err := r.Request("p1", "r1", 2)
	require.NoError(t, err)

	// Over-release frees only what is held; not an error.
	freed, err := r.Release("p1", "r1", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, freed)

	snap := r.Snapshot()
	assert.NotContains(t, snap.Processes["p1"].Allocated, "r1",
		"zero allocation entries should be removed")
	assert.Equal(t, 5, snap.Resources["r1"].Available)
	checkInvariant(t, snap)
}

func TestRelease_NothingHeld(t *testing.T) {
	r := newTestRegistry(t, 1)

	freed, err := r.Release("p1", "r1", 1)
	require.NoError(t, err)
	assert.Zero(t, freed)

	snap := r.Snapshot()
	assert.Equal(t, 1, snap.Resources["r1"].Available)
}

func TestRelease_Errors(t *testing.T) {
	r := newTestRegistry(t, 1)

	_, err := r.Release("ghost", "r1", 1)
	assert.ErrorIs(t, err, ErrUnknownEntity)

	_, err = r.Release("p1", "ghost", 1)
	assert.ErrorIs(t, err, ErrUnknownEntity)

	_, err = r.Release("p1", "r1", -2)
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestRequestRelease_RoundTrip(t *testing.T) {
	r := newTestRegistry(t, 3)
	before := r.Snapshot()

	granted, err := r.Request("p1", "r1", 3)
	require.NoError(t, err)
	require.True(t, granted)

	freed, err := r.Release("p1", "r1", 3)
	require.NoError(t, err)
	require.Equal(t, 3, freed)

	after := r.Snapshot()
	assert.Equal(t, before.Resources, after.Resources)
	assert.Equal(t, before.Processes, after.Processes)
}
