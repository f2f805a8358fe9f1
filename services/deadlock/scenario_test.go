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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioYAML = `
name: handoff
resources:
  - id: r1
    total: 1
processes:
  - p1
  - p2
steps:
  - op: request
    process: p1
    resource: r1
  - op: request
    process: p2
    resource: r1
  - op: release
    process: p1
    resource: r1
  - op: request
    process: p2
    resource: r1
`

func TestParseScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(scenarioYAML))
	require.NoError(t, err)

	assert.Equal(t, "handoff", sc.Name)
	require.Len(t, sc.Resources, 1)
	assert.Equal(t, 1, sc.Resources[0].Total)
	assert.Equal(t, []string{"p1", "p2"}, sc.Processes)
	require.Len(t, sc.Steps, 4)
	assert.Nil(t, sc.Steps[0].Count, "omitted count stays nil until replay")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", ":\nnot yaml {{{"},
		{"no resources", "name: x\nprocesses: [p1]\nsteps: []"},
		{"no processes", "name: x\nresources: [{id: r1, total: 1}]\nsteps: []"},
		{"bad op", `
name: x
resources: [{id: r1, total: 1}]
processes: [p1]
steps: [{op: acquire, process: p1, resource: r1}]
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "handoff", sc.Name)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRunScenario_Handoff(t *testing.T) {
	sc, err := ParseScenario([]byte(scenarioYAML))
	require.NoError(t, err)

	svc := NewService(DefaultServiceConfig())
	result, err := svc.RunScenario(context.Background(), sc)
	require.NoError(t, err)

	require.Equal(t, 4, result.StepCount)
	assert.True(t, result.Steps[0].Granted)
	assert.False(t, result.Steps[1].Granted)
	assert.Equal(t, 1, result.Steps[2].Freed)
	assert.True(t, result.Steps[3].Granted)
	assert.False(t, result.Detect.HasDeadlock)
}

func TestRunScenario_ClassicDeadlock(t *testing.T) {
	svc := NewService(DefaultServiceConfig())

	result, err := svc.RunScenario(context.Background(), ClassicDeadlock())
	require.NoError(t, err)

	assert.True(t, result.Detect.HasDeadlock)
	require.NotEmpty(t, result.Detect.Cycles)
	assert.ElementsMatch(t, []string{"p1", "p2"}, result.Detect.Cycles[0])
}

func TestRunScenario_BankerTextbook(t *testing.T) {
	svc := NewService(DefaultServiceConfig())
	ctx := context.Background()

	result, err := svc.RunScenario(ctx, BankerTextbook())
	require.NoError(t, err)
	require.False(t, result.Detect.HasDeadlock)

	// All three opening grants succeed.
	for i, step := range result.Steps {
		assert.True(t, step.Granted, "step %d", i)
	}

	safe, err := svc.CheckSafety(ctx, "p2", "r", 1)
	require.NoError(t, err)
	assert.True(t, safe.Safe)

	unsafe, err := svc.CheckSafety(ctx, "p1", "r", 1)
	require.NoError(t, err)
	assert.False(t, unsafe.Safe)
}

func TestRunScenario_UnknownEntityAborts(t *testing.T) {
	sc := &Scenario{
		Name:      "broken",
		Resources: []ScenarioEntity{{ID: "r1", Total: 1}},
		Processes: []string{"p1"},
		Steps: []ScenarioStep{
			{Op: "request", Process: "ghost", Resource: "r1"},
		},
	}

	svc := NewService(DefaultServiceConfig())
	_, err := svc.RunScenario(context.Background(), sc)
	assert.ErrorIs(t, err, ErrUnknownEntity)
}
