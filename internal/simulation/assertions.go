package simulation

import (
	"testing"

	"github.com/AlexandreRouma/devoir1-info0952/internal/schelling"
)

// AssertConserved asserts that the final grid holds exactly as many agents of
// each type, and as many empty cells, as the initial one.
func AssertConserved(t testing.TB, result *Result) {
	t.Helper()
	if result.Final.Released() {
		t.Fatal("AssertConserved: final grid was released")
	}
	if got := result.Final.Counts(); got != result.Initial {
		t.Errorf("AssertConserved: final counts %+v differ from initial %+v", got, result.Initial)
	}
}

// AssertEmptyCountConsistent asserts that the cached empty count of g matches
// a full scan.
func AssertEmptyCountConsistent(t testing.TB, g *schelling.Grid) {
	t.Helper()
	if got, want := g.EmptyCount(), g.Counts().Empty; got != want {
		t.Errorf("AssertEmptyCountConsistent: EmptyCount() = %d, scan found %d", got, want)
	}
}

// AssertConverged asserts that the run converged within maxSteps steps.
func AssertConverged(t testing.TB, result *Result, maxSteps int) {
	t.Helper()
	if !result.Converged {
		t.Errorf("AssertConverged: run did not converge after %d steps (%d unsatisfied, stalled=%v)",
			len(result.Steps), result.FinalUnsatisfied, result.Stalled)
		return
	}
	if len(result.Steps) > maxSteps {
		t.Errorf("AssertConverged: converged after %d steps, want at most %d", len(result.Steps), maxSteps)
	}
}

