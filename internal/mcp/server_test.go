package mcp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AlexandreRouma/devoir1-info0952/internal/ratelimit"
	"github.com/AlexandreRouma/devoir1-info0952/internal/schelling"
	"github.com/AlexandreRouma/devoir1-info0952/internal/store"
)

func setupTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "test-server"
		cfg.Version = "v1.0.0"
	}
	server, err := NewServer(&cfg)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server
}

var testGrid = CreateInput{
	Height:            10,
	Width:             10,
	ProbTypeA:         0.4,
	ProbTypeB:         0.4,
	SatisfactionRatio: 0.5,
	Seed:              7,
}

func createSession(t *testing.T, s *Server, in CreateInput) CreateOutput {
	t.Helper()
	_, out, err := s.handleCreate(context.Background(), &sdk.CallToolRequest{}, in)
	if err != nil {
		t.Fatalf("handleCreate failed: %v", err)
	}
	return out
}

func TestNewServer(t *testing.T) {
	dir := t.TempDir()
	server := setupTestServer(t, Config{DataDir: dir})

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if server.store == nil {
		t.Error("Server.store is nil")
	}
	if server.auditLogger == nil {
		t.Error("Server.auditLogger is nil with a data directory")
	}
	if server.maxSessions != DefaultMaxSessions || server.maxCells != DefaultMaxCells {
		t.Errorf("limits = %d sessions, %d cells, want defaults", server.maxSessions, server.maxCells)
	}
	if _, err := os.Stat(filepath.Join(dir, store.DBFile)); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

func TestNewServer_InMemory(t *testing.T) {
	server := setupTestServer(t, Config{})

	if _, ok := server.store.(*store.InMemoryRunStore); !ok {
		t.Errorf("store = %T, want *store.InMemoryRunStore", server.store)
	}
	if server.auditLogger != nil {
		t.Error("auditLogger should be nil without a data directory")
	}
}

func TestServer_CloseReleasesSessions(t *testing.T) {
	server, err := NewServer(&Config{Name: "test", Version: "v0"})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	out := createSession(t, server, testGrid)

	server.mu.Lock()
	g := server.sessions[out.SessionID].grid
	server.mu.Unlock()

	if err := server.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !g.Released() {
		t.Error("session grid not released by Close")
	}
	if server.SessionCount() != 0 {
		t.Errorf("SessionCount() = %d after Close, want 0", server.SessionCount())
	}
	if err := server.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestAudit_RecordsToolCalls(t *testing.T) {
	dir := t.TempDir()
	server := setupTestServer(t, Config{DataDir: dir})

	out := createSession(t, server, testGrid)
	_, _, err := server.handleStep(context.Background(), &sdk.CallToolRequest{}, StepInput{SessionID: "missing"})
	if err == nil {
		t.Fatal("expected error for unknown session")
	}

	data, err := os.ReadFile(filepath.Join(dir, AuditFile))
	if err != nil {
		t.Fatalf("reading audit log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("audit lines = %d, want 2:\n%s", len(lines), data)
	}
	if !strings.Contains(lines[0], `"tool":"schelling_create"`) || !strings.Contains(lines[0], out.SessionID) {
		t.Errorf("first entry = %s", lines[0])
	}
	if !strings.Contains(lines[1], `"status":"error"`) {
		t.Errorf("second entry = %s, want error status", lines[1])
	}
}

func TestHandleCreate_InvalidParameters(t *testing.T) {
	server := setupTestServer(t, Config{MaxCells: 100})

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"overcommitted", CreateInput{Height: 4, Width: 4, ProbTypeA: 0.6, ProbTypeB: 0.6}},
		{"zero width", CreateInput{Height: 4, Width: 0, ProbTypeA: 0.4}},
		{"too many cells", CreateInput{Height: 11, Width: 10, ProbTypeA: 0.4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := server.handleCreate(context.Background(), &sdk.CallToolRequest{}, tt.in)
			if !errors.Is(err, schelling.ErrInvalidParameters) {
				t.Errorf("handleCreate() error = %v, want ErrInvalidParameters", err)
			}
		})
	}
	if server.SessionCount() != 0 {
		t.Errorf("SessionCount() = %d, want 0", server.SessionCount())
	}
}

func TestHandleCreate_SessionLimit(t *testing.T) {
	server := setupTestServer(t, Config{MaxSessions: 2})

	createSession(t, server, testGrid)
	createSession(t, server, testGrid)

	_, _, err := server.handleCreate(context.Background(), &sdk.CallToolRequest{}, testGrid)
	if err == nil || !strings.Contains(err.Error(), "too many sessions") {
		t.Errorf("third create error = %v, want session limit error", err)
	}
}

func TestHandleCreate_RateLimited(t *testing.T) {
	server := setupTestServer(t, Config{MaxSessions: 10})

	for i := 0; i < 5; i++ {
		createSession(t, server, testGrid)
	}
	_, _, err := server.handleCreate(context.Background(), &sdk.CallToolRequest{}, testGrid)
	if err == nil || !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("sixth create error = %v, want rate limit error", err)
	}
}

func TestEveryToolIsRateLimited(t *testing.T) {
	server := setupTestServer(t, Config{})
	ctx := context.Background()
	req := &sdk.CallToolRequest{}

	tools := []struct {
		name string
		call func() error
	}{
		{"schelling_create", func() error { _, _, err := server.handleCreate(ctx, req, CreateInput{}); return err }},
		{"schelling_step", func() error { _, _, err := server.handleStep(ctx, req, StepInput{}); return err }},
		{"schelling_cell", func() error { _, _, err := server.handleCell(ctx, req, CellInput{}); return err }},
		{"schelling_grid", func() error { _, _, err := server.handleGrid(ctx, req, GridInput{}); return err }},
		{"schelling_destroy", func() error { _, _, err := server.handleDestroy(ctx, req, DestroyInput{}); return err }},
		{"schelling_run", func() error { _, _, err := server.handleRun(ctx, req, RunInput{}); return err }},
		{"schelling_history", func() error { _, _, err := server.handleHistory(ctx, req, HistoryInput{}); return err }},
	}

	for _, tt := range tools {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := server.toolLimiters[tt.name]; !ok {
				t.Fatalf("no limiter registered for %s", tt.name)
			}
			server.toolLimiters[tt.name] = ratelimit.NewLimiter(0, 1)

			// The first call spends the only token whatever its outcome.
			_ = tt.call()
			err := tt.call()
			if err == nil || !strings.Contains(err.Error(), "rate limit exceeded") {
				t.Errorf("second %s call error = %v, want rate limit error", tt.name, err)
			}
		})
	}
}
