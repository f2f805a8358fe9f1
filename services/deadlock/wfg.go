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

import "sort"

// WaitForGraph is a directed process-to-process graph where an edge P -> Q
// means P is blocked on a resource currently held by Q.
//
// Nodes are indexed by stable integers assigned in process registration
// order, which keeps traversal deterministic and cycle extraction
// allocation-light. The graph is a simple adjacency set: multiple blocking
// resources between the same pair collapse to one edge.
type WaitForGraph struct {
	// IDs maps node index to process ID, in registration order.
	IDs []string

	// Index maps process ID to node index.
	Index map[string]int

	// Adj is the adjacency list. Adj[i] holds the indices of the processes
	// that process i is waiting on, sorted ascending.
	Adj [][]int
}

// BuildWaitForGraph derives the wait-for graph from a registry snapshot.
// Pure function of the snapshot; no registry state is touched.
//
// For every process P with a positive requesting entry for some resource,
// an edge P -> Q is added for every other process Q currently holding that
// resource. A process with no outstanding requests has no outgoing edges.
func BuildWaitForGraph(snap Snapshot) *WaitForGraph {
	g := &WaitForGraph{
		IDs:   snap.ProcessOrder,
		Index: make(map[string]int, len(snap.ProcessOrder)),
		Adj:   make([][]int, len(snap.ProcessOrder)),
	}
	for i, pid := range g.IDs {
		g.Index[pid] = i
	}

	for i, pid := range g.IDs {
		p := snap.Processes[pid]

		var targets map[int]struct{}
		for rid, pending := range p.Requesting {
			if pending <= 0 {
				continue
			}
			for j, other := range g.IDs {
				if j == i {
					continue
				}
				if snap.Processes[other].Allocated[rid] > 0 {
					if targets == nil {
						targets = make(map[int]struct{})
					}
					targets[j] = struct{}{}
				}
			}
		}
		if len(targets) == 0 {
			continue
		}

		edges := make([]int, 0, len(targets))
		for j := range targets {
			edges = append(edges, j)
		}
		sort.Ints(edges)
		g.Adj[i] = edges
	}

	return g
}

// EdgeCount returns the number of directed edges in the graph.
func (g *WaitForGraph) EdgeCount() int {
	n := 0
	for _, edges := range g.Adj {
		n += len(edges)
	}
	return n
}
