package schelling

import "math/rand/v2"

// Position is a (row, column) pair.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Step performs one scan-and-relocate cycle and returns the number of agents
// that were unsatisfied when the step began.
//
// The scan records every empty cell and every unsatisfied agent before any
// agent moves. Each recorded agent is then moved exactly once, to a cell
// drawn uniformly from those empty at that moment; the cell it leaves takes
// the consumed slot in the empty list. Moved agents are not re-evaluated
// until the next step. A grid with no empty cell returns 0 without scanning.
// rng must not be nil.
func (g *Grid) Step(rng *rand.Rand) int {
	if g.Released() || g.emptyCount == 0 {
		return 0
	}

	empty := make([]int, 0, g.emptyCount)
	var unsat []int
	for row := 0; row < g.height; row++ {
		for col := 0; col < g.width; col++ {
			i := row*g.width + col
			own := g.cells[i]
			if own == Empty {
				empty = append(empty, i)
				continue
			}
			if g.unsatisfied(row, col, own) {
				unsat = append(unsat, i)
			}
		}
	}

	total := len(unsat)
	for len(unsat) > 0 {
		e := rng.IntN(len(empty))
		u := rng.IntN(len(unsat))
		g.swap(unsat[u], empty[e])
		empty[e] = unsat[u]

		last := len(unsat) - 1
		unsat[u] = unsat[last]
		unsat = unsat[:last]
	}

	return total
}

// position converts a buffer index to a Position.
func (g *Grid) position(i int) Position {
	return Position{Row: i / g.width, Col: i % g.width}
}

// EmptyPositions returns the empty cells in row-major order.
func (g *Grid) EmptyPositions() []Position {
	if g.Released() {
		return nil
	}
	out := make([]Position, 0, g.emptyCount)
	for i, c := range g.cells {
		if c == Empty {
			out = append(out, g.position(i))
		}
	}
	return out
}

// UnsatisfiedPositions returns the currently unsatisfied agents in row-major
// order.
func (g *Grid) UnsatisfiedPositions() []Position {
	if g.Released() {
		return nil
	}
	var out []Position
	for i, c := range g.cells {
		if c == Empty {
			continue
		}
		p := g.position(i)
		if g.unsatisfied(p.Row, p.Col, c) {
			out = append(out, p)
		}
	}
	return out
}
