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
	"fmt"
	"sync"
)

// resourceRecord is the canonical state of one resource.
type resourceRecord struct {
	total     int
	available int
}

// processRecord is the canonical state of one process. Absent map entries
// mean zero.
type processRecord struct {
	allocated  map[string]int
	requesting map[string]int
	maxDemand  map[string]int
}

// Registry owns the canonical resource and process records.
//
// A single coarse-grained lock guards every state-reading and state-mutating
// operation, including snapshot construction. Analyses (wait-for graph,
// cycle detection, Banker's check) operate on copied-out snapshots and never
// hold the lock.
//
// Thread Safety:
//
//	Registry is safe for concurrent use. Lock hold time is bounded by simple
//	map operations; no operation blocks or performs I/O while holding the lock.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]*resourceRecord
	processes map[string]*processRecord

	// Registration order. Gives analyses a stable iteration order and the
	// cycle detector its integer node indices.
	resourceOrder []string
	processOrder  []string

	// Entity limits. Zero means unlimited. Checked under the lock so
	// concurrent adds cannot exceed them.
	maxResources int
	maxProcesses int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.reset()
	return r
}

// SetLimits caps the number of resources and processes that can be
// registered. Zero means unlimited. Limits survive Reset.
func (r *Registry) SetLimits(maxResources, maxProcesses int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxResources = maxResources
	r.maxProcesses = maxProcesses
}

// reset replaces all state with fresh empty maps. Caller must hold mu,
// except during construction.
func (r *Registry) reset() {
	r.resources = make(map[string]*resourceRecord)
	r.processes = make(map[string]*processRecord)
	r.resourceOrder = nil
	r.processOrder = nil
}

// AddResource registers a resource with the given capacity. The resource
// starts fully available.
//
// Errors:
//
//	ErrInvalidCount - total is negative
//	ErrDuplicateEntity - rid is already registered
func (r *Registry) AddResource(rid string, total int) error {
	if total < 0 {
		return fmt.Errorf("%w: resource %q total %d", ErrInvalidCount, rid, total)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resources[rid]; exists {
		return fmt.Errorf("%w: resource %q", ErrDuplicateEntity, rid)
	}
	if r.maxResources > 0 && len(r.resources) >= r.maxResources {
		return fmt.Errorf("%w: %d resources", ErrRegistryFull, r.maxResources)
	}
	r.resources[rid] = &resourceRecord{total: total, available: total}
	r.resourceOrder = append(r.resourceOrder, rid)
	return nil
}

// AddProcess registers a process with empty allocation, requesting, and
// max-demand maps.
//
// Errors:
//
//	ErrDuplicateEntity - pid is already registered
func (r *Registry) AddProcess(pid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.processes[pid]; exists {
		return fmt.Errorf("%w: process %q", ErrDuplicateEntity, pid)
	}
	if r.maxProcesses > 0 && len(r.processes) >= r.maxProcesses {
		return fmt.Errorf("%w: %d processes", ErrRegistryFull, r.maxProcesses)
	}
	r.processes[pid] = &processRecord{
		allocated:  make(map[string]int),
		requesting: make(map[string]int),
		maxDemand:  make(map[string]int),
	}
	r.processOrder = append(r.processOrder, pid)
	return nil
}

// SetMaxDemand declares the upper bound a process may ever request of a
// resource. Used only by the safety oracle. Over-declaration against the
// resource total is legal; a process may never actually need its declared
// maximum. The resource does not need to be registered yet.
//
// Errors:
//
//	ErrInvalidCount - count is negative
//	ErrUnknownEntity - pid is not registered
func (r *Registry) SetMaxDemand(pid, rid string, count int) error {
	if count < 0 {
		return fmt.Errorf("%w: max demand %d", ErrInvalidCount, count)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.processes[pid]
	if !exists {
		return fmt.Errorf("%w: process %q", ErrUnknownEntity, pid)
	}
	p.maxDemand[rid] = count
	return nil
}

// Counts returns the number of registered resources and processes.
func (r *Registry) Counts() (resources, processes int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.resources), len(r.processes)
}

// Snapshot returns a deep copy of the full registry state. The copy is
// independent of the live registry and safe for lock-free analysis.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Resources:     make(map[string]ResourceState, len(r.resources)),
		Processes:     make(map[string]ProcessState, len(r.processes)),
		ResourceOrder: append([]string(nil), r.resourceOrder...),
		ProcessOrder:  append([]string(nil), r.processOrder...),
	}
	for rid, res := range r.resources {
		snap.Resources[rid] = ResourceState{Total: res.total, Available: res.available}
	}
	for pid, p := range r.processes {
		snap.Processes[pid] = ProcessState{
			Allocated:  copyCounts(p.allocated),
			Requesting: copyCounts(p.requesting),
			MaxDemand:  copyCounts(p.maxDemand),
		}
	}
	return snap
}

// Reset atomically replaces the registry with a fresh, empty one. Any
// concurrent reader observes either the old state or the empty state,
// never a partial reset.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

func copyCounts(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
