// Package simulation drives a Schelling grid from its initial random state
// until it stops changing.
//
// A Runner builds the grid for a Scenario, calls Step repeatedly, and records
// every step in a store.RunStore and a logging.StepTracer. A run ends when a
// step finds no unsatisfied agent, when a step cannot move anybody because the
// grid has no empty cell, when the scenario's step limit is hit, or when the
// context is cancelled.
//
// Usage:
//
//	r := simulation.NewRunner(runStore, logger, tracer)
//	result, err := r.Run(ctx, simulation.Scenario{
//	    Params:   schelling.Params{Height: 40, Width: 40, ProbTypeA: 0.45, ProbTypeB: 0.45, SatisfactionRatio: 0.5},
//	    Seed:     7,
//	    MaxSteps: 1000,
//	})
//	if err != nil {
//	    return err
//	}
//	defer result.Final.Release()
//
// The Assert* helpers check properties of a Result from tests.
package simulation
