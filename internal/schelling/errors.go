package schelling

import "errors"

var (
	// ErrInvalidParameters is returned by NewGrid when the occupancy
	// probabilities overcommit the grid or the dimensions are not positive.
	ErrInvalidParameters = errors.New("invalid grid parameters")

	// ErrAllocationFailure is returned by NewGrid when the cell buffer cannot
	// be acquired.
	ErrAllocationFailure = errors.New("grid allocation failed")

	// ErrInvalidCoordinate is returned when a queried position lies outside
	// the grid.
	ErrInvalidCoordinate = errors.New("coordinate out of bounds")

	// ErrCellIsEmpty is returned when satisfaction is queried on an empty cell.
	ErrCellIsEmpty = errors.New("cell is empty")

	// ErrReleased is returned by accessors called after Release.
	ErrReleased = errors.New("grid has been released")
)
