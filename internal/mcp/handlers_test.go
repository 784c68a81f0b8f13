package mcp

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AlexandreRouma/devoir1-info0952/internal/schelling"
	"github.com/AlexandreRouma/devoir1-info0952/internal/store"
)

func TestHandleCreate(t *testing.T) {
	server := setupTestServer(t, Config{})

	out := createSession(t, server, testGrid)

	if out.SessionID == "" {
		t.Fatal("SessionID is empty")
	}
	if out.Seed != 7 {
		t.Errorf("Seed = %d, want 7", out.Seed)
	}
	if out.Counts.Total() != 100 {
		t.Errorf("Counts.Total() = %d, want 100", out.Counts.Total())
	}
	if server.SessionCount() != 1 {
		t.Errorf("SessionCount() = %d, want 1", server.SessionCount())
	}
}

func TestHandleCreate_ClockSeed(t *testing.T) {
	server := setupTestServer(t, Config{})
	in := testGrid
	in.Seed = 0

	out := createSession(t, server, in)
	if out.Seed == 0 {
		t.Error("Seed = 0, want a clock-derived seed")
	}
}

func TestHandleGrid_SameSeedSameGrid(t *testing.T) {
	server := setupTestServer(t, Config{})
	ctx := context.Background()

	a := createSession(t, server, testGrid)
	b := createSession(t, server, testGrid)

	_, ga, err := server.handleGrid(ctx, &sdk.CallToolRequest{}, GridInput{SessionID: a.SessionID})
	if err != nil {
		t.Fatalf("handleGrid failed: %v", err)
	}
	_, gb, err := server.handleGrid(ctx, &sdk.CallToolRequest{}, GridInput{SessionID: b.SessionID})
	if err != nil {
		t.Fatalf("handleGrid failed: %v", err)
	}

	if !slices.Equal(ga.Rows, gb.Rows) {
		t.Errorf("rows differ for the same seed:\n%v\n%v", ga.Rows, gb.Rows)
	}
}

func TestHandleGrid(t *testing.T) {
	server := setupTestServer(t, Config{})
	created := createSession(t, server, testGrid)

	_, out, err := server.handleGrid(context.Background(), &sdk.CallToolRequest{}, GridInput{SessionID: created.SessionID})
	if err != nil {
		t.Fatalf("handleGrid failed: %v", err)
	}

	if out.Height != 10 || out.Width != 10 || len(out.Rows) != 10 {
		t.Fatalf("grid %dx%d with %d rows, want 10x10", out.Height, out.Width, len(out.Rows))
	}
	var counts schelling.Counts
	for _, row := range out.Rows {
		if len(row) != 10 {
			t.Errorf("row %q has length %d, want 10", row, len(row))
		}
		counts.Empty += strings.Count(row, ".")
		counts.TypeA += strings.Count(row, "A")
		counts.TypeB += strings.Count(row, "B")
	}
	if counts != out.Counts {
		t.Errorf("rows count %+v, reported %+v", counts, out.Counts)
	}
	if counts != created.Counts {
		t.Errorf("grid counts %+v differ from create counts %+v", counts, created.Counts)
	}
	if out.Unsatisfied != created.Unsatisfied {
		t.Errorf("Unsatisfied = %d, want %d before any step", out.Unsatisfied, created.Unsatisfied)
	}
	if out.Steps != 0 {
		t.Errorf("Steps = %d, want 0", out.Steps)
	}
}

func TestHandleStep(t *testing.T) {
	server := setupTestServer(t, Config{})
	ctx := context.Background()
	created := createSession(t, server, testGrid)

	_, out, err := server.handleStep(ctx, &sdk.CallToolRequest{}, StepInput{SessionID: created.SessionID, Steps: 5})
	if err != nil {
		t.Fatalf("handleStep failed: %v", err)
	}

	if len(out.Results) == 0 || len(out.Results) > 5 {
		t.Fatalf("len(Results) = %d, want 1..5", len(out.Results))
	}
	if out.Results[0].Unsatisfied != created.Unsatisfied {
		t.Errorf("first step found %d unsatisfied, want %d", out.Results[0].Unsatisfied, created.Unsatisfied)
	}
	for i, r := range out.Results {
		if r.Step != i {
			t.Errorf("Results[%d].Step = %d", i, r.Step)
		}
	}
	if out.TotalSteps != len(out.Results) {
		t.Errorf("TotalSteps = %d, want %d", out.TotalSteps, len(out.Results))
	}
	if out.Converged != (out.Unsatisfied == 0) {
		t.Errorf("Converged = %v with %d unsatisfied", out.Converged, out.Unsatisfied)
	}

	// steps continue numbering across calls
	_, next, err := server.handleStep(ctx, &sdk.CallToolRequest{}, StepInput{SessionID: created.SessionID})
	if err != nil {
		t.Fatalf("handleStep failed: %v", err)
	}
	if len(next.Results) != 1 || next.Results[0].Step != out.TotalSteps {
		t.Errorf("next Results = %+v, want one step numbered %d", next.Results, out.TotalSteps)
	}
	if next.Results[0].Unsatisfied != out.Unsatisfied {
		t.Errorf("next step found %d unsatisfied, want %d", next.Results[0].Unsatisfied, out.Unsatisfied)
	}
}

func TestHandleStep_PreservesPopulation(t *testing.T) {
	server := setupTestServer(t, Config{})
	ctx := context.Background()
	created := createSession(t, server, testGrid)

	if _, _, err := server.handleStep(ctx, &sdk.CallToolRequest{}, StepInput{SessionID: created.SessionID, Steps: 20}); err != nil {
		t.Fatalf("handleStep failed: %v", err)
	}
	_, out, err := server.handleGrid(ctx, &sdk.CallToolRequest{}, GridInput{SessionID: created.SessionID})
	if err != nil {
		t.Fatalf("handleGrid failed: %v", err)
	}
	if out.Counts != created.Counts {
		t.Errorf("counts after steps %+v, want %+v", out.Counts, created.Counts)
	}
}

func TestHandleStep_Errors(t *testing.T) {
	server := setupTestServer(t, Config{})
	created := createSession(t, server, testGrid)

	tests := []struct {
		name string
		in   StepInput
		want string
	}{
		{"unknown session", StepInput{SessionID: "nope"}, "session not found"},
		{"negative steps", StepInput{SessionID: created.SessionID, Steps: -1}, "steps must be between"},
		{"too many steps", StepInput{SessionID: created.SessionID, Steps: maxStepsPerCall + 1}, "steps must be between"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := server.handleStep(context.Background(), &sdk.CallToolRequest{}, tt.in)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("handleStep() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestHandleStep_CancelledContext(t *testing.T) {
	server := setupTestServer(t, Config{})
	created := createSession(t, server, testGrid)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := server.handleStep(ctx, &sdk.CallToolRequest{}, StepInput{SessionID: created.SessionID, Steps: 3})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("handleStep() error = %v, want context.Canceled", err)
	}
}

func TestHandleCell(t *testing.T) {
	server := setupTestServer(t, Config{})
	ctx := context.Background()
	created := createSession(t, server, testGrid)

	_, grid, err := server.handleGrid(ctx, &sdk.CallToolRequest{}, GridInput{SessionID: created.SessionID})
	if err != nil {
		t.Fatalf("handleGrid failed: %v", err)
	}

	unsat := 0
	for row := 0; row < 10; row++ {
		for col := 0; col < 10; col++ {
			_, cell, err := server.handleCell(ctx, &sdk.CallToolRequest{}, CellInput{SessionID: created.SessionID, Row: row, Col: col})
			if err != nil {
				t.Fatalf("handleCell(%d,%d) failed: %v", row, col, err)
			}
			want, _ := schelling.ParseCellType(rune(grid.Rows[row][col]))
			if cell.Type != want.String() {
				t.Errorf("cell (%d,%d) type = %s, want %s", row, col, cell.Type, want)
			}
			if cell.Type == "empty" && cell.Unsatisfied {
				t.Errorf("empty cell (%d,%d) reported unsatisfied", row, col)
			}
			if cell.Unsatisfied {
				unsat++
			}
		}
	}
	if unsat != created.Unsatisfied {
		t.Errorf("cells report %d unsatisfied, want %d", unsat, created.Unsatisfied)
	}
}

func TestHandleCell_OutOfBounds(t *testing.T) {
	server := setupTestServer(t, Config{})
	created := createSession(t, server, testGrid)

	for _, pos := range [][2]int{{-1, 0}, {0, -1}, {10, 0}, {0, 10}} {
		_, _, err := server.handleCell(context.Background(), &sdk.CallToolRequest{}, CellInput{SessionID: created.SessionID, Row: pos[0], Col: pos[1]})
		if !errors.Is(err, schelling.ErrInvalidCoordinate) {
			t.Errorf("handleCell(%d,%d) error = %v, want ErrInvalidCoordinate", pos[0], pos[1], err)
		}
	}
}

func TestHandleDestroy(t *testing.T) {
	server := setupTestServer(t, Config{})
	ctx := context.Background()
	created := createSession(t, server, testGrid)

	_, out, err := server.handleDestroy(ctx, &sdk.CallToolRequest{}, DestroyInput{SessionID: created.SessionID})
	if err != nil {
		t.Fatalf("handleDestroy failed: %v", err)
	}
	if !out.Destroyed {
		t.Error("Destroyed = false")
	}
	if server.SessionCount() != 0 {
		t.Errorf("SessionCount() = %d, want 0", server.SessionCount())
	}

	_, _, err = server.handleDestroy(ctx, &sdk.CallToolRequest{}, DestroyInput{SessionID: created.SessionID})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second destroy error = %v, want ErrSessionNotFound", err)
	}
	_, _, err = server.handleGrid(ctx, &sdk.CallToolRequest{}, GridInput{SessionID: created.SessionID})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("grid after destroy error = %v, want ErrSessionNotFound", err)
	}
}

func TestHandleRun_AndHistory(t *testing.T) {
	server := setupTestServer(t, Config{DataDir: t.TempDir()})
	ctx := context.Background()

	in := RunInput{Height: 8, Width: 8, ProbTypeA: 0.4, ProbTypeB: 0.4, SatisfactionRatio: 0, Seed: 3}
	_, run, err := server.handleRun(ctx, &sdk.CallToolRequest{}, in)
	if err != nil {
		t.Fatalf("handleRun failed: %v", err)
	}
	if !run.Converged || run.Steps != 1 {
		t.Errorf("run = %+v, want converged after 1 step", run)
	}
	if run.RunID == "" {
		t.Fatal("RunID is empty")
	}

	_, list, err := server.handleHistory(ctx, &sdk.CallToolRequest{}, HistoryInput{})
	if err != nil {
		t.Fatalf("handleHistory failed: %v", err)
	}
	if list.Count != 1 || list.Runs[0].ID != run.RunID {
		t.Fatalf("history = %+v, want the one run", list)
	}
	if !list.Runs[0].Finished || list.Runs[0].Seed != 3 {
		t.Errorf("history run = %+v", list.Runs[0])
	}

	_, detail, err := server.handleHistory(ctx, &sdk.CallToolRequest{}, HistoryInput{RunID: run.RunID})
	if err != nil {
		t.Fatalf("handleHistory(run) failed: %v", err)
	}
	if len(detail.Steps) != 1 || detail.Steps[0].Unsatisfied != 0 {
		t.Errorf("steps = %+v, want a single zero step", detail.Steps)
	}

	_, _, err = server.handleHistory(ctx, &sdk.CallToolRequest{}, HistoryInput{RunID: "missing"})
	if !errors.Is(err, store.ErrRunNotFound) {
		t.Errorf("handleHistory(missing) error = %v, want ErrRunNotFound", err)
	}
}

func TestHandleRun_Invalid(t *testing.T) {
	server := setupTestServer(t, Config{})

	tests := []struct {
		name string
		in   RunInput
		want string
	}{
		{"overcommitted", RunInput{Height: 4, Width: 4, ProbTypeA: 0.9, ProbTypeB: 0.2}, "invalid grid parameters"},
		{"negative max steps", RunInput{Height: 4, Width: 4, ProbTypeA: 0.4, MaxSteps: -1}, "max_steps must be between"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := server.handleRun(context.Background(), &sdk.CallToolRequest{}, tt.in)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("handleRun() error = %v, want %q", err, tt.want)
			}
		})
	}
}
