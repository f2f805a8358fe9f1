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

// Node colors for depth-first traversal.
const (
	colorUnvisited uint8 = iota
	colorOnStack
	colorDone
)

// dfsFrame is a stack frame for iterative DFS traversal.
type dfsFrame struct {
	v        int // current node index
	childIdx int // next outgoing edge to examine
}

// FindCycles finds every cycle in the wait-for graph using an iterative
// three-color depth-first search with an explicit frame stack. Each cycle
// is the slice of the traversal path from the first occurrence of the
// closing node to the top, as an ordered sequence of process IDs (first
// element = the repeated node).
//
// Every node is used as a traversal root, so cycles are found regardless
// of registration order. Cycles are reported as found: the same underlying
// cycle can appear more than once when multiple roots reach it, and no
// deduplication or rotation to a canonical form is applied.
func FindCycles(g *WaitForGraph) [][]string {
	n := len(g.IDs)
	color := make([]uint8, n)
	var cycles [][]string

	// path holds the on-stack nodes in visit order; pathPos[v] is the
	// position of v in path, or -1 when v is not on the path. Slicing path
	// is how cycles are extracted.
	path := make([]int, 0, n)
	pathPos := make([]int, n)
	for i := range pathPos {
		pathPos[i] = -1
	}

	frames := make([]dfsFrame, 0, n)

	for root := 0; root < n; root++ {
		if color[root] != colorUnvisited {
			continue
		}
		color[root] = colorOnStack
		pathPos[root] = len(path)
		path = append(path, root)
		frames = append(frames, dfsFrame{v: root})

		for len(frames) > 0 {
			frame := &frames[len(frames)-1]
			edges := g.Adj[frame.v]

			if frame.childIdx < len(edges) {
				w := edges[frame.childIdx]
				frame.childIdx++

				switch color[w] {
				case colorOnStack:
					// Back edge: the path segment from w's first occurrence
					// to the top is one cycle.
					segment := path[pathPos[w]:]
					cycle := make([]string, len(segment))
					for i, v := range segment {
						cycle[i] = g.IDs[v]
					}
					cycles = append(cycles, cycle)
				case colorUnvisited:
					color[w] = colorOnStack
					pathPos[w] = len(path)
					path = append(path, w)
					frames = append(frames, dfsFrame{v: w})
				}
				// colorDone targets are skipped: that subtree was already
				// fully explored and found cycle-free from there.
				continue
			}

			// All edges examined; retire the node.
			color[frame.v] = colorDone
			pathPos[frame.v] = -1
			path = path[:len(path)-1]
			frames = frames[:len(frames)-1]
		}
	}

	return cycles
}

// DetectDeadlock derives the wait-for graph from a snapshot and reports
// every cycle. HasDeadlock is true iff at least one cycle exists.
func DetectDeadlock(snap Snapshot) DetectResponse {
	cycles := FindCycles(BuildWaitForGraph(snap))
	if cycles == nil {
		// Encode as an empty list, not null.
		cycles = [][]string{}
	}
	return DetectResponse{
		HasDeadlock: len(cycles) > 0,
		Cycles:      cycles,
	}
}
