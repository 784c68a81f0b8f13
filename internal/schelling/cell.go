package schelling

// CellType is the content of a single grid cell.
type CellType uint8

const (
	Empty CellType = iota
	TypeA
	TypeB
)

// Valid reports whether c is one of the three defined cell types.
func (c CellType) Valid() bool {
	return c <= TypeB
}

// String returns the lowercase name of the cell type.
func (c CellType) String() string {
	switch c {
	case Empty:
		return "empty"
	case TypeA:
		return "a"
	case TypeB:
		return "b"
	default:
		return "invalid"
	}
}

// Rune returns the single-character form used in text renderings.
func (c CellType) Rune() rune {
	switch c {
	case TypeA:
		return 'A'
	case TypeB:
		return 'B'
	default:
		return '.'
	}
}

// ParseCellType maps a rune produced by Rune back to its CellType.
func ParseCellType(r rune) (CellType, bool) {
	switch r {
	case '.', ' ':
		return Empty, true
	case 'A', 'a':
		return TypeA, true
	case 'B', 'b':
		return TypeB, true
	default:
		return Empty, false
	}
}
