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
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(DefaultServiceConfig())
}

func TestService_IDValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		id   string
		ok   bool
	}{
		{"simple", "p1", true},
		{"dots and dashes", "worker-1.a_b", true},
		{"surrounding whitespace trimmed", "  p2  ", true},
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"leading punctuation", "-p1", false},
		{"embedded space", "p 1", false},
		{"control characters", "p\x001", false},
		{"too long", strings.Repeat("a", 100), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.AddProcess(ctx, tt.id)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidID)
			}
		})
	}
}

func TestService_TrimmedIDsCollide(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.AddProcess(ctx, "p1"))
	assert.ErrorIs(t, svc.AddProcess(ctx, " p1 "), ErrDuplicateEntity,
		"sanitized IDs share one namespace")
}

func TestService_CountCap(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.MaxUnits = 100
	svc := NewService(cfg)
	ctx := context.Background()

	require.NoError(t, svc.AddResource(ctx, "r1", 100))
	assert.ErrorIs(t, svc.AddResource(ctx, "r2", 101), ErrInvalidCount)

	require.NoError(t, svc.AddProcess(ctx, "p1"))
	_, err := svc.Request(ctx, "p1", "r1", 101)
	assert.ErrorIs(t, err, ErrInvalidCount)
	_, err = svc.Release(ctx, "p1", "r1", 101)
	assert.ErrorIs(t, err, ErrInvalidCount)
	assert.ErrorIs(t, svc.SetMaxDemand(ctx, "p1", "r1", 101), ErrInvalidCount)
}

func TestService_EntityLimits(t *testing.T) {
	cfg := DefaultServiceConfig()
	cfg.MaxProcesses = 1
	svc := NewService(cfg)
	ctx := context.Background()

	require.NoError(t, svc.AddProcess(ctx, "p1"))
	assert.ErrorIs(t, svc.AddProcess(ctx, "p2"), ErrRegistryFull)
}

func TestService_DetectDeadlock_EmptyState(t *testing.T) {
	svc := newTestService(t)

	resp := svc.DetectDeadlock(context.Background())
	assert.False(t, resp.HasDeadlock)
	assert.NotNil(t, resp.Cycles)
	assert.Empty(t, resp.Cycles)
}

func TestService_DetectDeadlock_Concurrent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	result, err := svc.RunScenario(ctx, ClassicDeadlock())
	require.NoError(t, err)
	require.True(t, result.Detect.HasDeadlock)

	// Concurrent detection calls share one traversal and all see the cycle.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := svc.DetectDeadlock(ctx)
			assert.True(t, resp.HasDeadlock)
		}()
	}
	wg.Wait()
}

func TestService_CheckSafety_UnknownEntity(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.AddResource(ctx, "r1", 1))
	require.NoError(t, svc.AddProcess(ctx, "p1"))

	_, err := svc.CheckSafety(ctx, "ghost", "r1", 1)
	assert.ErrorIs(t, err, ErrUnknownEntity)
	_, err = svc.CheckSafety(ctx, "p1", "ghost", 1)
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestService_Reset(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.RunScenario(ctx, ClassicDeadlock())
	require.NoError(t, err)

	svc.Reset(ctx)

	resources, processes := svc.Counts()
	assert.Zero(t, resources)
	assert.Zero(t, processes)
	assert.False(t, svc.DetectDeadlock(ctx).HasDeadlock)

	// Reset twice is the same as once.
	svc.Reset(ctx)
	resources, processes = svc.Counts()
	assert.Zero(t, resources)
	assert.Zero(t, processes)
}

func TestService_State_InvariantUnderLoad(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.AddResource(ctx, "r1", 20))
	require.NoError(t, svc.AddProcess(ctx, "p1"))
	require.NoError(t, svc.AddProcess(ctx, "p2"))

	var wg sync.WaitGroup
	for _, pid := range []string{"p1", "p2"} {
		wg.Add(1)
		go func(pid string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _ = svc.Request(ctx, pid, "r1", 2)
				_, _ = svc.Release(ctx, pid, "r1", 1)
			}
		}(pid)
	}
	wg.Wait()

	checkInvariant(t, svc.State(ctx))
}
