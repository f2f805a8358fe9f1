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
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario describes a reproducible allocation run: resources to register,
// processes to register, optional maximum-demand declarations, and an
// ordered script of request/release steps.
//
// Scenarios are loaded from YAML files and replayed against a Service, so
// the same file can seed a demo, a test fixture, or a bug report.
type Scenario struct {
	Name       string            `yaml:"name"`
	Resources  []ScenarioEntity  `yaml:"resources"`
	Processes  []string          `yaml:"processes"`
	MaxDemands []ScenarioDemand  `yaml:"max_demands,omitempty"`
	Steps      []ScenarioStep    `yaml:"steps"`
}

// ScenarioEntity declares a resource pool and its total units.
type ScenarioEntity struct {
	ID    string `yaml:"id"`
	Total int    `yaml:"total"`
}

// ScenarioDemand declares a process's maximum demand for one resource.
type ScenarioDemand struct {
	Process  string `yaml:"process"`
	Resource string `yaml:"resource"`
	Count    int    `yaml:"count"`
}

// ScenarioStep is one scripted operation. Op is "request" or "release".
// Count defaults to 1 when omitted.
type ScenarioStep struct {
	Op       string `yaml:"op"`
	Process  string `yaml:"process"`
	Resource string `yaml:"resource"`
	Count    *int   `yaml:"count,omitempty"`
}

// ScenarioStepResult records the outcome of one executed step.
type ScenarioStepResult struct {
	Step    ScenarioStep `json:"step"`
	Granted bool         `json:"granted,omitempty"`
	Freed   int          `json:"freed,omitempty"`
}

// ScenarioResult is the outcome of a full scenario run.
type ScenarioResult struct {
	Name      string               `json:"name"`
	StepCount int                  `json:"step_count"`
	Steps     []ScenarioStepResult `json:"steps"`
	Detect    DetectResponse       `json:"detect"`
}

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML and validates its shape. Identifier
// and count validation happens later, in the Service, when the scenario
// is replayed.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse the scenario: %w", err)
	}
	if len(sc.Resources) == 0 {
		return nil, fmt.Errorf("scenario declares no resources")
	}
	if len(sc.Processes) == 0 {
		return nil, fmt.Errorf("scenario declares no processes")
	}
	for i, step := range sc.Steps {
		if step.Op != "request" && step.Op != "release" {
			return nil, fmt.Errorf("step %d: unknown op %q (want request or release)", i, step.Op)
		}
	}
	return &sc, nil
}

// countOrOne applies the default step count.
func countOrOne(c *int) int {
	if c == nil {
		return 1
	}
	return *c
}

// RunScenario replays a scenario against the service and returns the
// per-step outcomes plus a final deadlock detection pass.
//
// Registration errors abort the run. Step errors abort too: a scenario
// referencing an unknown entity is a broken scenario, not a blocked one.
func (s *Service) RunScenario(ctx context.Context, sc *Scenario) (*ScenarioResult, error) {
	for _, res := range sc.Resources {
		if err := s.AddResource(ctx, res.ID, res.Total); err != nil {
			return nil, fmt.Errorf("resource %q: %w", res.ID, err)
		}
	}
	for _, pid := range sc.Processes {
		if err := s.AddProcess(ctx, pid); err != nil {
			return nil, fmt.Errorf("process %q: %w", pid, err)
		}
	}
	for _, d := range sc.MaxDemands {
		if err := s.SetMaxDemand(ctx, d.Process, d.Resource, d.Count); err != nil {
			return nil, fmt.Errorf("max demand %q/%q: %w", d.Process, d.Resource, err)
		}
	}

	result := &ScenarioResult{
		Name:  sc.Name,
		Steps: make([]ScenarioStepResult, 0, len(sc.Steps)),
	}
	for i, step := range sc.Steps {
		out := ScenarioStepResult{Step: step}
		count := countOrOne(step.Count)
		switch step.Op {
		case "request":
			granted, err := s.Request(ctx, step.Process, step.Resource, count)
			if err != nil {
				return nil, fmt.Errorf("step %d (request %s/%s): %w", i, step.Process, step.Resource, err)
			}
			out.Granted = granted
		case "release":
			freed, err := s.Release(ctx, step.Process, step.Resource, count)
			if err != nil {
				return nil, fmt.Errorf("step %d (release %s/%s): %w", i, step.Process, step.Resource, err)
			}
			out.Freed = freed
		}
		result.Steps = append(result.Steps, out)
	}
	result.StepCount = len(result.Steps)
	result.Detect = s.DetectDeadlock(ctx)
	return result, nil
}

// ClassicDeadlock returns the textbook two-process circular wait: each
// process holds one resource and requests the other's.
func ClassicDeadlock() *Scenario {
	one := 1
	return &Scenario{
		Name: "classic-two-process-deadlock",
		Resources: []ScenarioEntity{
			{ID: "r1", Total: 1},
			{ID: "r2", Total: 1},
		},
		Processes: []string{"p1", "p2"},
		Steps: []ScenarioStep{
			{Op: "request", Process: "p1", Resource: "r1", Count: &one},
			{Op: "request", Process: "p2", Resource: "r2", Count: &one},
			{Op: "request", Process: "p1", Resource: "r2", Count: &one},
			{Op: "request", Process: "p2", Resource: "r1", Count: &one},
		},
	}
}

// BankerTextbook returns a single-resource Banker's scenario: ten units,
// three processes with declared maxima where one further grant to p2
// would leave the system unsafe.
func BankerTextbook() *Scenario {
	three := 3
	two := 2
	return &Scenario{
		Name: "banker-single-resource",
		Resources: []ScenarioEntity{
			{ID: "r", Total: 10},
		},
		Processes: []string{"p1", "p2", "p3"},
		MaxDemands: []ScenarioDemand{
			{Process: "p1", Resource: "r", Count: 9},
			{Process: "p2", Resource: "r", Count: 4},
			{Process: "p3", Resource: "r", Count: 7},
		},
		Steps: []ScenarioStep{
			{Op: "request", Process: "p1", Resource: "r", Count: &three},
			{Op: "request", Process: "p2", Resource: "r", Count: &two},
			{Op: "request", Process: "p3", Resource: "r", Count: &two},
		},
	}
}
