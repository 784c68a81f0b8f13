package mcp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AlexandreRouma/devoir1-info0952/internal/ratelimit"
	"github.com/AlexandreRouma/devoir1-info0952/internal/schelling"
	"github.com/AlexandreRouma/devoir1-info0952/internal/simulation"
	"github.com/AlexandreRouma/devoir1-info0952/internal/store"
)

// ErrSessionNotFound is returned for an unknown or destroyed session ID.
var ErrSessionNotFound = errors.New("session not found")

const (
	defaultRunSteps = 1000
	maxRunSteps     = 100000
	defaultHistoryN = 20
	maxStepsPerCall = 1000
)

// registerTools registers all schelling MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "schelling_create",
		Description: "Create a randomly populated Schelling grid and return a session ID for it",
	}, s.handleCreate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "schelling_step",
		Description: "Run relocation steps on a session's grid and report the unsatisfied count of each step",
	}, s.handleStep)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "schelling_cell",
		Description: "Read one cell of a session's grid and whether its agent is unsatisfied",
	}, s.handleCell)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "schelling_grid",
		Description: "Render a session's grid as text rows together with its population and segregation metrics",
	}, s.handleGrid)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "schelling_destroy",
		Description: "Release a session's grid",
	}, s.handleDestroy)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "schelling_run",
		Description: "Run a complete simulation until it converges or hits max_steps, and record it in the run history",
	}, s.handleRun)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "schelling_history",
		Description: "List recorded runs, or show the per-step metrics of one run",
	}, s.handleHistory)
}

// checkSize validates p and rejects grids larger than the configured cap.
func (s *Server) checkSize(p schelling.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Height > s.maxCells/p.Width {
		return fmt.Errorf("%w: %dx%d grid exceeds the limit of %d cells", schelling.ErrInvalidParameters, p.Height, p.Width, s.maxCells)
	}
	return nil
}

func (s *Server) lookup(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

func paramsAudit(p schelling.Params, seed uint64) map[string]string {
	return map[string]string{
		"height": strconv.Itoa(p.Height),
		"width":  strconv.Itoa(p.Width),
		"ratio":  strconv.FormatFloat(p.SatisfactionRatio, 'g', -1, 64),
		"seed":   strconv.FormatUint(seed, 10),
	}
}

func (s *Server) handleCreate(ctx context.Context, req *sdk.CallToolRequest, args CreateInput) (_ *sdk.CallToolResult, _ CreateOutput, retErr error) {
	start := time.Now()
	var sessionID string
	defer func() {
		s.auditTool("schelling_create", start, retErr, sessionID, paramsAudit(args.params(), args.Seed))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "schelling_create"); err != nil {
		return nil, CreateOutput{}, err
	}

	p := args.params()
	if err := s.checkSize(p); err != nil {
		return nil, CreateOutput{}, err
	}

	seed := args.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := simulation.NewRand(seed)

	g, err := schelling.NewGrid(p, rng)
	if err != nil {
		return nil, CreateOutput{}, fmt.Errorf("failed to create grid: %w", err)
	}

	s.mu.Lock()
	if len(s.sessions) >= s.maxSessions {
		s.mu.Unlock()
		g.Release()
		return nil, CreateOutput{}, fmt.Errorf("too many sessions (limit %d), destroy one first", s.maxSessions)
	}
	sessionID = uuid.NewString()
	s.sessions[sessionID] = &session{grid: g, rng: rng, seed: seed, created: start}
	s.mu.Unlock()

	s.logger.Debug("session created", "session_id", sessionID, "height", p.Height, "width", p.Width, "seed", seed)

	return nil, CreateOutput{
		SessionID:   sessionID,
		Seed:        seed,
		Counts:      g.Counts(),
		Unsatisfied: g.Unsatisfied(),
	}, nil
}

func (s *Server) handleStep(ctx context.Context, req *sdk.CallToolRequest, args StepInput) (_ *sdk.CallToolResult, _ StepOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("schelling_step", start, retErr, args.SessionID, map[string]string{
			"steps": strconv.Itoa(args.Steps),
		})
	}()

	steps := args.Steps
	if steps == 0 {
		steps = 1
	}
	if steps < 0 || steps > maxStepsPerCall {
		return nil, StepOutput{}, fmt.Errorf("steps must be between 1 and %d, got %d", maxStepsPerCall, steps)
	}
	if err := ratelimit.CheckLimitN(s.toolLimiters, "schelling_step", steps); err != nil {
		return nil, StepOutput{}, err
	}

	sess, err := s.lookup(args.SessionID)
	if err != nil {
		return nil, StepOutput{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.grid.Released() {
		return nil, StepOutput{}, fmt.Errorf("%w: %s", ErrSessionNotFound, args.SessionID)
	}

	results := make([]StepCount, 0, steps)
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, StepOutput{}, err
		}
		n := sess.grid.Step(sess.rng)
		results = append(results, StepCount{Step: sess.steps, Unsatisfied: n})
		sess.steps++
		if n == 0 {
			break
		}
	}

	unsat := sess.grid.Unsatisfied()
	return nil, StepOutput{
		SessionID:   args.SessionID,
		Results:     results,
		TotalSteps:  sess.steps,
		Unsatisfied: unsat,
		Converged:   unsat == 0,
	}, nil
}

func (s *Server) handleCell(ctx context.Context, req *sdk.CallToolRequest, args CellInput) (_ *sdk.CallToolResult, _ CellOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("schelling_cell", start, retErr, args.SessionID, map[string]string{
			"row": strconv.Itoa(args.Row),
			"col": strconv.Itoa(args.Col),
		})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "schelling_cell"); err != nil {
		return nil, CellOutput{}, err
	}

	sess, err := s.lookup(args.SessionID)
	if err != nil {
		return nil, CellOutput{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	cell, err := sess.grid.At(args.Row, args.Col)
	if err != nil {
		return nil, CellOutput{}, err
	}

	out := CellOutput{Row: args.Row, Col: args.Col, Type: cell.String()}
	if cell != schelling.Empty {
		out.Unsatisfied, err = sess.grid.IsUnsatisfied(args.Row, args.Col)
		if err != nil {
			return nil, CellOutput{}, err
		}
	}
	return nil, out, nil
}

func (s *Server) handleGrid(ctx context.Context, req *sdk.CallToolRequest, args GridInput) (_ *sdk.CallToolResult, _ GridOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("schelling_grid", start, retErr, args.SessionID, nil)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "schelling_grid"); err != nil {
		return nil, GridOutput{}, err
	}

	sess, err := s.lookup(args.SessionID)
	if err != nil {
		return nil, GridOutput{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	g := sess.grid
	if g.Released() {
		return nil, GridOutput{}, fmt.Errorf("%w: %s", ErrSessionNotFound, args.SessionID)
	}

	return nil, GridOutput{
		SessionID:   args.SessionID,
		Height:      g.Height(),
		Width:       g.Width(),
		Rows:        g.Rows(),
		Counts:      g.Counts(),
		Unsatisfied: g.Unsatisfied(),
		Similarity:  g.Similarity(),
		Steps:       sess.steps,
	}, nil
}

func (s *Server) handleDestroy(ctx context.Context, req *sdk.CallToolRequest, args DestroyInput) (_ *sdk.CallToolResult, _ DestroyOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("schelling_destroy", start, retErr, args.SessionID, nil)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "schelling_destroy"); err != nil {
		return nil, DestroyOutput{}, err
	}

	s.mu.Lock()
	sess, ok := s.sessions[args.SessionID]
	delete(s.sessions, args.SessionID)
	s.mu.Unlock()

	if !ok {
		return nil, DestroyOutput{}, fmt.Errorf("%w: %s", ErrSessionNotFound, args.SessionID)
	}

	sess.mu.Lock()
	sess.grid.Release()
	sess.mu.Unlock()

	s.logger.Debug("session destroyed",
		"session_id", args.SessionID,
		"steps", sess.steps,
		"age", time.Since(sess.created).Round(time.Millisecond))

	return nil, DestroyOutput{SessionID: args.SessionID, Destroyed: true}, nil
}

func (s *Server) handleRun(ctx context.Context, req *sdk.CallToolRequest, args RunInput) (_ *sdk.CallToolResult, _ RunOutput, retErr error) {
	start := time.Now()
	defer func() {
		params := paramsAudit(args.params(), args.Seed)
		params["max_steps"] = strconv.Itoa(args.MaxSteps)
		s.auditTool("schelling_run", start, retErr, "", params)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "schelling_run"); err != nil {
		return nil, RunOutput{}, err
	}

	p := args.params()
	if err := s.checkSize(p); err != nil {
		return nil, RunOutput{}, err
	}

	maxSteps := args.MaxSteps
	if maxSteps == 0 {
		maxSteps = defaultRunSteps
	}
	if maxSteps < 0 || maxSteps > maxRunSteps {
		return nil, RunOutput{}, fmt.Errorf("max_steps must be between 1 and %d, got %d", maxRunSteps, maxSteps)
	}

	runner := simulation.NewRunner(s.store, s.logger, nil)
	res, err := runner.Run(ctx, simulation.Scenario{
		Name:     "mcp",
		Params:   p,
		Seed:     args.Seed,
		MaxSteps: maxSteps,
	})
	if err != nil {
		return nil, RunOutput{}, err
	}
	defer res.Final.Release()

	return nil, RunOutput{
		RunID:            res.RunID,
		Seed:             res.Seed,
		Initial:          res.Initial,
		Steps:            len(res.Steps),
		Converged:        res.Converged,
		Stalled:          res.Stalled,
		FinalUnsatisfied: res.FinalUnsatisfied,
		FinalSimilarity:  res.Final.Similarity(),
	}, nil
}

func (s *Server) handleHistory(ctx context.Context, req *sdk.CallToolRequest, args HistoryInput) (_ *sdk.CallToolResult, _ HistoryOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("schelling_history", start, retErr, "", map[string]string{
			"limit": strconv.Itoa(args.Limit),
		})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "schelling_history"); err != nil {
		return nil, HistoryOutput{}, err
	}

	if args.RunID != "" {
		run, err := s.store.GetRun(ctx, args.RunID)
		if err != nil {
			return nil, HistoryOutput{}, fmt.Errorf("failed to get run: %w", err)
		}
		if run == nil {
			return nil, HistoryOutput{}, fmt.Errorf("%w: %s", store.ErrRunNotFound, args.RunID)
		}

		records, err := s.store.ListSteps(ctx, args.RunID)
		if err != nil {
			return nil, HistoryOutput{}, fmt.Errorf("failed to list steps: %w", err)
		}
		steps := make([]HistoryStep, 0, len(records))
		for _, rec := range records {
			steps = append(steps, HistoryStep{
				Step:        rec.Step,
				Unsatisfied: rec.Unsatisfied,
				Empty:       rec.Empty,
				Similarity:  rec.Similarity,
			})
		}

		return nil, HistoryOutput{
			Runs:  []HistoryRun{toHistoryRun(*run)},
			Steps: steps,
			Count: 1,
		}, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultHistoryN
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, HistoryOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}

	out := make([]HistoryRun, 0, len(runs))
	for _, run := range runs {
		out = append(out, toHistoryRun(run))
	}
	return nil, HistoryOutput{Runs: out, Count: len(out)}, nil
}

func toHistoryRun(run store.Run) HistoryRun {
	return HistoryRun{
		ID:                run.ID,
		CreatedAt:         run.CreatedAt,
		Height:            run.Params.Height,
		Width:             run.Params.Width,
		SatisfactionRatio: run.Params.SatisfactionRatio,
		Seed:              run.Seed,
		Steps:             run.Steps,
		Converged:         run.Converged,
		FinalUnsatisfied:  run.FinalUnsatisfied,
		Finished:          run.Finished(),
	}
}
