package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/AlexandreRouma/devoir1-info0952/internal/schelling"
	"github.com/AlexandreRouma/devoir1-info0952/internal/simulation"
)

// renderGrid writes one line per row: 'A' and 'B' for agents, '.' for
// empty cells.
func renderGrid(w io.Writer, g *schelling.Grid) error {
	bw := bufio.NewWriter(w)
	for _, row := range g.Rows() {
		bw.WriteString(row)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// renderStatus writes the one-line status printed under each rendered grid.
func renderStatus(w io.Writer, sr simulation.StepResult) {
	fmt.Fprintf(w, "step %d: %d unsatisfied, %d empty, similarity %.3f\n",
		sr.Step, sr.Unsatisfied, sr.Empty, sr.Similarity)
}
