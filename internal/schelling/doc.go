// Package schelling implements the grid engine of a Schelling segregation
// model.
//
// A Grid holds cells that are Empty or occupied by one of two agent types.
// Each call to Step scans the grid once, collects the agents whose share of
// same-type neighbors falls strictly below the grid's satisfaction ratio, and
// relocates every one of them to a randomly chosen empty cell. Step returns
// the number of agents that were unsatisfied when the step began; a return of
// zero means the configuration has converged.
//
// The engine never touches global random state. Callers pass an explicit
// *rand.Rand to NewGrid and Step, so a fixed seed reproduces a run exactly:
//
//	rng := rand.New(rand.NewPCG(seed, seed))
//	g, err := schelling.NewGrid(schelling.Params{
//	    Height: 50, Width: 50,
//	    ProbTypeA: 0.45, ProbTypeB: 0.45,
//	    SatisfactionRatio: 0.5,
//	}, rng)
//	if err != nil {
//	    return err
//	}
//	defer g.Release()
//	for g.Step(rng) > 0 {
//	}
//
// A Grid is not safe for concurrent use.
package schelling
