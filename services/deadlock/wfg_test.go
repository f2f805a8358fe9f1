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

// snapshotOf is a test helper that builds a registry, applies ops, and
// returns its snapshot.
func snapshotOf(t *testing.T, build func(r *Registry)) Snapshot {
	t.Helper()
	r := NewRegistry()
	build(r)
	return r.Snapshot()
}

func TestBuildWaitForGraph_Empty(t *testing.T) {
	snap := snapshotOf(t, func(r *Registry) {})

	g := BuildWaitForGraph(snap)
	assert.Empty(t, g.IDs)
	assert.Zero(t, g.EdgeCount())
}

func TestBuildWaitForGraph_NoWaiters(t *testing.T) {
	snap := snapshotOf(t, func(r *Registry) {
		require.NoError(t, r.AddResource("r1", 2))
		require.NoError(t, r.AddProcess("p1"))
		require.NoError(t, r.AddProcess("p2"))
		_, err := r.Request("p1", "r1", 1)
		require.NoError(t, err)
		_, err = r.Request("p2", "r1", 1)
		require.NoError(t, err)
	})

	g := BuildWaitForGraph(snap)
	assert.Zero(t, g.EdgeCount(), "granted allocations must not create edges")
}

func TestBuildWaitForGraph_WaiterPointsAtHolder(t *testing.T) {
	snap := snapshotOf(t, func(r *Registry) {
		require.NoError(t, r.AddResource("r1", 1))
		require.NoError(t, r.AddProcess("p1"))
		require.NoError(t, r.AddProcess("p2"))
		_, err := r.Request("p1", "r1", 1)
		require.NoError(t, err)
		_, err = r.Request("p2", "r1", 1) // blocks
		require.NoError(t, err)
	})

	g := BuildWaitForGraph(snap)
	require.Equal(t, []string{"p1", "p2"}, g.IDs)
	assert.Empty(t, g.Adj[0], "holder waits on nobody")
	assert.Equal(t, []int{0}, g.Adj[1], "waiter points at holder")
}

func TestBuildWaitForGraph_SelfWaitIsSkipped(t *testing.T) {
	// A process holding part of a pool and blocked asking for more must not
	// get an edge to itself.
	snap := snapshotOf(t, func(r *Registry) {
		require.NoError(t, r.AddResource("r1", 1))
		require.NoError(t, r.AddProcess("p1"))
		_, err := r.Request("p1", "r1", 1)
		require.NoError(t, err)
		_, err = r.Request("p1", "r1", 1) // blocks on its own holding
		require.NoError(t, err)
	})

	g := BuildWaitForGraph(snap)
	assert.Zero(t, g.EdgeCount())
}

func TestBuildWaitForGraph_MultipleResourcesCollapseToOneEdge(t *testing.T) {
	snap := snapshotOf(t, func(r *Registry) {
		require.NoError(t, r.AddResource("r1", 1))
		require.NoError(t, r.AddResource("r2", 1))
		require.NoError(t, r.AddProcess("p1"))
		require.NoError(t, r.AddProcess("p2"))
		for _, rid := range []string{"r1", "r2"} {
			_, err := r.Request("p1", rid, 1)
			require.NoError(t, err)
			_, err = r.Request("p2", rid, 1) // blocks
			require.NoError(t, err)
		}
	})

	g := BuildWaitForGraph(snap)
	// p2 waits on p1 via both r1 and r2; adjacency is a set.
	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, []int{g.Index["p1"]}, g.Adj[g.Index["p2"]])
}

func TestBuildWaitForGraph_SharedPoolFansOut(t *testing.T) {
	snap := snapshotOf(t, func(r *Registry) {
		require.NoError(t, r.AddResource("r1", 2))
		require.NoError(t, r.AddProcess("p1"))
		require.NoError(t, r.AddProcess("p2"))
		require.NoError(t, r.AddProcess("p3"))
		_, err := r.Request("p1", "r1", 1)
		require.NoError(t, err)
		_, err = r.Request("p2", "r1", 1)
		require.NoError(t, err)
		_, err = r.Request("p3", "r1", 1) // blocks on both holders
		require.NoError(t, err)
	})

	g := BuildWaitForGraph(snap)
	assert.Equal(t, []int{g.Index["p1"], g.Index["p2"]}, g.Adj[g.Index["p3"]],
		"waiter on a shared pool points at every holder, sorted by index")
}

func TestBuildWaitForGraph_IndicesFollowRegistrationOrder(t *testing.T) {
	snap := snapshotOf(t, func(r *Registry) {
		require.NoError(t, r.AddProcess("zeta"))
		require.NoError(t, r.AddProcess("alpha"))
		require.NoError(t, r.AddProcess("mid"))
	})

	g := BuildWaitForGraph(snap)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, g.IDs)
	assert.Equal(t, 0, g.Index["zeta"])
	assert.Equal(t, 1, g.Index["alpha"])
	assert.Equal(t, 2, g.Index["mid"])
}
