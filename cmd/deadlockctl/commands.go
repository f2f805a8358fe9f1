// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ramcharansadu46-bit/deadlock-prevent/pkg/logging"
	"github.com/ramcharansadu46-bit/deadlock-prevent/services/deadlock"
)

var (
	asJSON   bool
	logLevel string

	rootCmd = &cobra.Command{
		Use:   "deadlockctl",
		Short: "A cli for replaying allocation scenarios and inspecting deadlock state",
		Long: `Deadlockctl replays resource allocation scenarios against an
in-process allocation engine, then reports the wait-for graph cycle
detection result and Banker's-algorithm safety verdicts.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_, _ = logging.Setup(logging.Config{
				Level:   logLevel,
				Service: "deadlockctl",
			})
		},
	}

	demoCmd = &cobra.Command{
		Use:   "demo",
		Short: "Run the built-in demo scenarios (circular wait + Banker's check)",
		Run:   runDemo,
	}

	runScenarioCmd = &cobra.Command{
		Use:   "run [scenario.yaml]",
		Short: "Replay a scenario file and report per-step outcomes",
		Args:  cobra.ExactArgs(1),
		Run:   runScenarioFile,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the deadlockctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("deadlockctl %s\n", deadlock.ServiceVersion)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON instead of console output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(runScenarioCmd)
	rootCmd.AddCommand(versionCmd)
}

// runDemo replays the two built-in scenarios: the classic two-process
// circular wait, then a single-resource Banker's setup where one further
// grant would be unsafe.
func runDemo(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	fmt.Println("=== Scenario 1: classic circular wait ===")
	svc := deadlock.NewService(deadlock.DefaultServiceConfig())
	result, err := svc.RunScenario(ctx, deadlock.ClassicDeadlock())
	if err != nil {
		fatal(err)
	}
	printResult(result)
	printState(svc.State(ctx))

	fmt.Println()
	fmt.Println("=== Scenario 2: Banker's safety oracle ===")
	svc = deadlock.NewService(deadlock.DefaultServiceConfig())
	result, err = svc.RunScenario(ctx, deadlock.BankerTextbook())
	if err != nil {
		fatal(err)
	}
	printResult(result)

	safe, err := svc.CheckSafety(ctx, "p2", "r", 1)
	if err != nil {
		fatal(err)
	}
	printVerdict("p2 requests 1 more unit of r", safe)

	unsafe, err := svc.CheckSafety(ctx, "p1", "r", 1)
	if err != nil {
		fatal(err)
	}
	printVerdict("p1 requests 1 more unit of r", unsafe)
}

// runScenarioFile loads a YAML scenario and replays it.
func runScenarioFile(cmd *cobra.Command, args []string) {
	sc, err := deadlock.LoadScenario(args[0])
	if err != nil {
		fatal(err)
	}

	ctx := context.Background()
	svc := deadlock.NewService(deadlock.DefaultServiceConfig())
	result, err := svc.RunScenario(ctx, sc)
	if err != nil {
		fatal(err)
	}
	printResult(result)
	printState(svc.State(ctx))
}

func printResult(result *deadlock.ScenarioResult) {
	if asJSON {
		dumpJSON(result)
		return
	}
	fmt.Printf("scenario: %s (%d steps)\n", result.Name, result.StepCount)
	for i, step := range result.Steps {
		switch step.Step.Op {
		case "request":
			outcome := "BLOCKED"
			if step.Granted {
				outcome = "granted"
			}
			fmt.Printf("  %2d. %s requests %s -> %s\n", i+1, step.Step.Process, step.Step.Resource, outcome)
		case "release":
			fmt.Printf("  %2d. %s releases %s -> freed %d\n", i+1, step.Step.Process, step.Step.Resource, step.Freed)
		}
	}
	if result.Detect.HasDeadlock {
		fmt.Printf("deadlock DETECTED: %d cycle(s)\n", len(result.Detect.Cycles))
		for _, cycle := range result.Detect.Cycles {
			fmt.Printf("  cycle: %v\n", cycle)
		}
	} else {
		fmt.Println("no deadlock detected")
	}
}

func printState(snap deadlock.Snapshot) {
	if asJSON {
		dumpJSON(snap)
		return
	}
	fmt.Println("final state:")
	dumpJSON(snap)
}

func printVerdict(question string, resp deadlock.SafetyResponse) {
	if asJSON {
		dumpJSON(resp)
		return
	}
	if resp.Safe {
		fmt.Printf("  %s: SAFE, sequence %v\n", question, resp.SafeSequence)
	} else {
		fmt.Printf("  %s: UNSAFE, grant would be denied\n", question)
	}
}

func dumpJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(data))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
