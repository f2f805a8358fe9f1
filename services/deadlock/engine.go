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

import "fmt"

// Request attempts to allocate count units of rid to pid.
//
// If the resource has enough available units the allocation is applied
// immediately and any previously recorded unmet request for the same
// resource is reduced (floored at zero). Otherwise the unmet demand is
// recorded on the process, accumulating across repeated blocked requests,
// and no allocation state changes. Recording unmet demand is the only way
// a waiting edge can enter the wait-for graph.
//
// Outputs:
//
//	bool - true if the allocation was granted immediately
//	error - non-nil if validation fails; the state is untouched on error
//
// Errors:
//
//	ErrInvalidCount - count is negative
//	ErrUnknownEntity - pid or rid is not registered
func (r *Registry) Request(pid, rid string, count int) (bool, error) {
	if count < 0 {
		return false, fmt.Errorf("%w: request %d", ErrInvalidCount, count)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.processes[pid]
	if !exists {
		return false, fmt.Errorf("%w: process %q", ErrUnknownEntity, pid)
	}
	res, exists := r.resources[rid]
	if !exists {
		return false, fmt.Errorf("%w: resource %q", ErrUnknownEntity, rid)
	}

	if res.available >= count {
		res.available -= count
		if count > 0 {
			p.allocated[rid] += count
		}
		// A previously blocked request is now (partially) satisfied.
		if pending := p.requesting[rid]; pending > 0 {
			if pending <= count {
				delete(p.requesting, rid)
			} else {
				p.requesting[rid] = pending - count
			}
		}
		return true, nil
	}

	p.requesting[rid] += count
	return false, nil
}

// Release returns up to count units of rid held by pid to the available
// pool. Releasing more than held is not an error; the process simply frees
// everything it holds and the zero entry is removed.
//
// Outputs:
//
//	int - the number of units actually freed (min of held and count)
//	error - non-nil if validation fails; the state is untouched on error
//
// Errors:
//
//	ErrInvalidCount - count is negative
//	ErrUnknownEntity - pid or rid is not registered
func (r *Registry) Release(pid, rid string, count int) (int, error) {
	if count < 0 {
		return 0, fmt.Errorf("%w: release %d", ErrInvalidCount, count)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.processes[pid]
	if !exists {
		return 0, fmt.Errorf("%w: process %q", ErrUnknownEntity, pid)
	}
	res, exists := r.resources[rid]
	if !exists {
		return 0, fmt.Errorf("%w: resource %q", ErrUnknownEntity, rid)
	}

	held := p.allocated[rid]
	freed := min(held, count)
	if remaining := held - freed; remaining > 0 {
		p.allocated[rid] = remaining
	} else {
		delete(p.allocated, rid)
	}
	res.available += freed
	return freed, nil
}
