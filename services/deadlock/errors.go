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

import "errors"

// Sentinel errors for the deadlock service.
var (
	// ErrDuplicateEntity indicates an add with an ID that is already registered.
	ErrDuplicateEntity = errors.New("entity already exists")

	// ErrUnknownEntity indicates an operation referencing an unregistered pid or rid.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrInvalidCount indicates a negative count or capacity.
	ErrInvalidCount = errors.New("count must be non-negative")

	// ErrInvalidID indicates an identifier that failed validation.
	ErrInvalidID = errors.New("invalid entity id")

	// ErrRegistryFull indicates the configured entity limit was reached.
	ErrRegistryFull = errors.New("registry entity limit reached")
)
