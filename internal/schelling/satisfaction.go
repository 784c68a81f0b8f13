package schelling

import "fmt"

// neighborhood counts the occupied Moore neighbors of the cell at (row, col)
// and how many of them match own. Neighbors outside the grid are ignored.
func (g *Grid) neighborhood(row, col int, own CellType) (counted, same int) {
	for dy := -1; dy <= 1; dy++ {
		y := row + dy
		if y < 0 || y >= g.height {
			continue
		}
		base := y * g.width
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			x := col + dx
			if x < 0 || x >= g.width {
				continue
			}
			n := g.cells[base+x]
			if n == Empty {
				continue
			}
			counted++
			if n == own {
				same++
			}
		}
	}
	return counted, same
}

// unsatisfied evaluates an occupied in-bounds cell. An agent with no
// occupied neighbors is satisfied.
func (g *Grid) unsatisfied(row, col int, own CellType) bool {
	counted, same := g.neighborhood(row, col, own)
	if counted == 0 {
		return false
	}
	return float64(same)/float64(counted) < g.ratio
}

// IsUnsatisfied reports whether the agent at (row, col) has a same-type
// share of occupied neighbors strictly below the satisfaction ratio.
// It fails with ErrInvalidCoordinate outside the grid and ErrCellIsEmpty on
// an empty cell.
func (g *Grid) IsUnsatisfied(row, col int) (bool, error) {
	own, err := g.At(row, col)
	if err != nil {
		return false, err
	}
	if own == Empty {
		return false, fmt.Errorf("%w: (%d,%d)", ErrCellIsEmpty, row, col)
	}
	return g.unsatisfied(row, col, own), nil
}

// Unsatisfied returns how many agents are currently unsatisfied without
// moving anyone.
func (g *Grid) Unsatisfied() int {
	if g.Released() {
		return 0
	}
	n := 0
	for row := 0; row < g.height; row++ {
		for col := 0; col < g.width; col++ {
			own := g.cells[row*g.width+col]
			if own != Empty && g.unsatisfied(row, col, own) {
				n++
			}
		}
	}
	return n
}

// Similarity returns the mean share of same-type neighbors over agents that
// have at least one occupied neighbor. It is 0 when no agent has neighbors.
func (g *Grid) Similarity() float64 {
	if g.Released() {
		return 0
	}
	var sum float64
	agents := 0
	for row := 0; row < g.height; row++ {
		for col := 0; col < g.width; col++ {
			own := g.cells[row*g.width+col]
			if own == Empty {
				continue
			}
			counted, same := g.neighborhood(row, col, own)
			if counted == 0 {
				continue
			}
			sum += float64(same) / float64(counted)
			agents++
		}
	}
	if agents == 0 {
		return 0
	}
	return sum / float64(agents)
}
