package schelling

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Params describes a grid to be created by NewGrid.
type Params struct {
	Height int `json:"height"`
	Width  int `json:"width"`

	// ProbTypeA and ProbTypeB are the per-cell probabilities of holding each
	// agent type. Their sum must not exceed 1; the remainder is the
	// probability of a cell starting empty.
	ProbTypeA float64 `json:"prob_type_a"`
	ProbTypeB float64 `json:"prob_type_b"`

	// SatisfactionRatio is the minimum share of same-type occupied neighbors
	// an agent needs to stay put.
	SatisfactionRatio float64 `json:"satisfaction_ratio"`
}

// Validate reports whether p can build a grid.
func (p Params) Validate() error {
	if p.Height <= 0 || p.Width <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %dx%d", ErrInvalidParameters, p.Height, p.Width)
	}
	if p.ProbTypeA < 0 || p.ProbTypeA > 1 || math.IsNaN(p.ProbTypeA) {
		return fmt.Errorf("%w: prob_type_a must be between 0 and 1, got %f", ErrInvalidParameters, p.ProbTypeA)
	}
	if p.ProbTypeB < 0 || p.ProbTypeB > 1 || math.IsNaN(p.ProbTypeB) {
		return fmt.Errorf("%w: prob_type_b must be between 0 and 1, got %f", ErrInvalidParameters, p.ProbTypeB)
	}
	if p.ProbTypeA+p.ProbTypeB > 1.0 {
		return fmt.Errorf("%w: prob_type_a + prob_type_b = %f exceeds 1", ErrInvalidParameters, p.ProbTypeA+p.ProbTypeB)
	}
	return nil
}

// Grid is a rectangular Schelling grid. Dimensions and the satisfaction
// ratio are fixed at creation; only cell contents change.
type Grid struct {
	width      int
	height     int
	ratio      float64
	emptyCount int
	cells      []CellType // row-major, len == width*height
	released   bool
}

// Counts holds the number of cells of each type.
type Counts struct {
	Empty int `json:"empty"`
	TypeA int `json:"type_a"`
	TypeB int `json:"type_b"`
}

// Total returns the number of cells counted.
func (c Counts) Total() int {
	return c.Empty + c.TypeA + c.TypeB
}

// NewGrid creates a grid populated at random from p using rng.
// Each cell draws one value r in [0,1): TypeA if r < ProbTypeA, TypeB if
// r < ProbTypeA+ProbTypeB, Empty otherwise.
func NewGrid(p Params, rng *rand.Rand) (*Grid, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrInvalidParameters)
	}

	g, err := allocGrid(p.Height, p.Width, p.SatisfactionRatio)
	if err != nil {
		return nil, err
	}

	threshold := p.ProbTypeA + p.ProbTypeB
	for i := range g.cells {
		r := rng.Float64()
		switch {
		case r < p.ProbTypeA:
			g.cells[i] = TypeA
		case r < threshold:
			g.cells[i] = TypeB
		default:
			g.cells[i] = Empty
			g.emptyCount++
		}
	}

	return g, nil
}

// FromCells builds a grid from explicit row-major contents. It is used to
// set up known configurations.
func FromCells(height, width int, ratio float64, cells []CellType) (*Grid, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %dx%d", ErrInvalidParameters, height, width)
	}
	g, err := allocGrid(height, width, ratio)
	if err != nil {
		return nil, err
	}
	if len(cells) != len(g.cells) {
		return nil, fmt.Errorf("%w: got %d cells for a %dx%d grid", ErrInvalidParameters, len(cells), height, width)
	}
	for i, c := range cells {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: cell %d has invalid type %d", ErrInvalidParameters, i, c)
		}
		g.cells[i] = c
		if c == Empty {
			g.emptyCount++
		}
	}
	return g, nil
}

// ParseGrid builds a grid from text rows using the runes of CellType.Rune.
// All rows must have the same length.
func ParseGrid(rows []string, ratio float64) (*Grid, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidParameters)
	}
	width := len([]rune(rows[0]))
	cells := make([]CellType, 0, width*len(rows))
	for r, row := range rows {
		runes := []rune(row)
		if len(runes) != width {
			return nil, fmt.Errorf("%w: row %d has width %d, want %d", ErrInvalidParameters, r, len(runes), width)
		}
		for c, ch := range runes {
			ct, ok := ParseCellType(ch)
			if !ok {
				return nil, fmt.Errorf("%w: unknown cell %q at (%d,%d)", ErrInvalidParameters, ch, r, c)
			}
			cells = append(cells, ct)
		}
	}
	return FromCells(len(rows), width, ratio, cells)
}

// allocGrid acquires the whole cell buffer in one allocation.
func allocGrid(height, width int, ratio float64) (*Grid, error) {
	if height > math.MaxInt/width {
		return nil, fmt.Errorf("%w: %dx%d cells overflow", ErrAllocationFailure, height, width)
	}
	return &Grid{
		width:  width,
		height: height,
		ratio:  ratio,
		cells:  make([]CellType, height*width),
	}, nil
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

// SatisfactionRatio returns the threshold below which agents are unsatisfied.
func (g *Grid) SatisfactionRatio() float64 { return g.ratio }

// EmptyCount returns the cached number of empty cells.
func (g *Grid) EmptyCount() int { return g.emptyCount }

// Released reports whether Release has been called. A nil grid counts as released.
func (g *Grid) Released() bool { return g == nil || g.released }

// InBounds reports whether (row, col) lies inside the grid.
func (g *Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.height && col >= 0 && col < g.width
}

// At returns the content of the cell at (row, col).
func (g *Grid) At(row, col int) (CellType, error) {
	if g.Released() {
		return Empty, ErrReleased
	}
	if !g.InBounds(row, col) {
		return Empty, fmt.Errorf("%w: (%d,%d) outside %dx%d", ErrInvalidCoordinate, row, col, g.height, g.width)
	}
	return g.cells[row*g.width+col], nil
}

// Cells returns a row-major copy of the grid contents.
func (g *Grid) Cells() []CellType {
	if g.Released() {
		return nil
	}
	out := make([]CellType, len(g.cells))
	copy(out, g.cells)
	return out
}

// Row returns a copy of one row.
func (g *Grid) Row(row int) ([]CellType, error) {
	if g.Released() {
		return nil, ErrReleased
	}
	if row < 0 || row >= g.height {
		return nil, fmt.Errorf("%w: row %d outside 0..%d", ErrInvalidCoordinate, row, g.height-1)
	}
	out := make([]CellType, g.width)
	copy(out, g.cells[row*g.width:(row+1)*g.width])
	return out, nil
}

// Rows renders the grid as text, one string per row, using CellType.Rune.
// A released grid has no rows.
func (g *Grid) Rows() []string {
	if g.Released() {
		return nil
	}
	rows := make([]string, g.height)
	buf := make([]rune, g.width)
	for r := range rows {
		for c := range buf {
			buf[c] = g.cells[r*g.width+c].Rune()
		}
		rows[r] = string(buf)
	}
	return rows
}

// Counts scans the whole grid and returns per-type totals. Unlike
// EmptyCount it does not rely on the cache.
func (g *Grid) Counts() Counts {
	var c Counts
	if g.Released() {
		return c
	}
	for _, cell := range g.cells {
		switch cell {
		case Empty:
			c.Empty++
		case TypeA:
			c.TypeA++
		case TypeB:
			c.TypeB++
		}
	}
	return c
}

// Clone returns an independent copy of g.
func (g *Grid) Clone() *Grid {
	if g.Released() {
		return nil
	}
	c := *g
	c.cells = g.Cells()
	return &c
}

// Release drops the cell buffer. The grid must not be used afterwards except
// through the nil-safe accessors; calling Release again, or on a nil grid,
// does nothing.
func (g *Grid) Release() {
	if g == nil || g.released {
		return
	}
	g.cells = nil
	g.emptyCount = 0
	g.released = true
}

// swap exchanges the contents of two cells by buffer index.
func (g *Grid) swap(a, b int) {
	g.cells[a], g.cells[b] = g.cells[b], g.cells[a]
}
