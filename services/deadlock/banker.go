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

// CheckSafety runs Banker's algorithm against a registry snapshot with a
// hypothetical additional grant of count units of rid to pid. Pure function
// of the snapshot: the tentative grant is never committed.
//
// The state after the grant is safe iff some ordering of process
// completions exists in which every process can obtain its full declared
// maximum demand and finish. Processes are scanned in registration order,
// so the returned safe sequence is deterministic. Unknown rid, unknown pid,
// or insufficient available units fail fast as unsafe.
//
// Outputs:
//
//	SafetyResponse - Safe plus one witnessing completion ordering; the
//	sequence is empty when unsafe.
func CheckSafety(snap Snapshot, pid, rid string, count int) SafetyResponse {
	unsafe := SafetyResponse{Safe: false, SafeSequence: []string{}}

	processes := snap.ProcessOrder
	resources := snap.ResourceOrder

	if _, known := snap.Processes[pid]; !known {
		return unsafe
	}
	res, known := snap.Resources[rid]
	if !known || res.Available < count {
		return unsafe
	}

	// Working copies: available per resource, alloc and need per process.
	// need = max(0, maxDemand - alloc).
	available := make(map[string]int, len(resources))
	for _, r := range resources {
		available[r] = snap.Resources[r].Available
	}
	alloc := make(map[string]map[string]int, len(processes))
	need := make(map[string]map[string]int, len(processes))
	for _, p := range processes {
		state := snap.Processes[p]
		alloc[p] = make(map[string]int, len(resources))
		need[p] = make(map[string]int, len(resources))
		for _, r := range resources {
			a := state.Allocated[r]
			alloc[p][r] = a
			need[p][r] = max(0, state.MaxDemand[r]-a)
		}
	}

	// Tentatively apply the grant.
	available[rid] -= count
	alloc[pid][rid] += count
	need[pid][rid] = max(0, need[pid][rid]-count)

	finished := make(map[string]bool, len(processes))
	sequence := make([]string, 0, len(processes))

	// Fixed-point loop, at most len(processes) productive passes.
	for {
		progressed := false
		for _, p := range processes {
			if finished[p] {
				continue
			}
			satisfiable := true
			for _, r := range resources {
				if need[p][r] > available[r] {
					satisfiable = false
					break
				}
			}
			if !satisfiable {
				continue
			}
			// p can run to completion and return everything it holds.
			for _, r := range resources {
				available[r] += alloc[p][r]
			}
			finished[p] = true
			sequence = append(sequence, p)
			progressed = true
		}
		if !progressed {
			break
		}
	}

	if len(sequence) != len(processes) {
		return unsafe
	}
	return SafetyResponse{Safe: true, SafeSequence: sequence}
}
