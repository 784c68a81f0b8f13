// Package mcp provides an MCP (Model Context Protocol) server exposing the
// Schelling engine as tools.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AlexandreRouma/devoir1-info0952/internal/logging"
	"github.com/AlexandreRouma/devoir1-info0952/internal/ratelimit"
	"github.com/AlexandreRouma/devoir1-info0952/internal/schelling"
	"github.com/AlexandreRouma/devoir1-info0952/internal/store"
)

// Defaults for Config fields left at zero.
const (
	DefaultMaxSessions = 16
	DefaultMaxCells    = 1 << 20
)

// Server wraps the MCP SDK server and owns the live grid sessions.
type Server struct {
	server       *sdk.Server
	store        store.RunStore
	logger       *slog.Logger
	auditLogger  *AuditLogger
	toolLimiters ratelimit.ToolLimiters

	maxSessions int
	maxCells    int

	mu       sync.Mutex
	sessions map[string]*session
}

// session is one grid created by schelling_create. Its mutex serializes
// calls on the grid, which is not safe for concurrent use.
type session struct {
	mu      sync.Mutex
	grid    *schelling.Grid
	rng     *rand.Rand
	seed    uint64
	steps   int
	created time.Time
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "schelling")
	Version string // Server version

	// DataDir holds schelling.db and audit.jsonl. Empty keeps run history
	// in memory and disables auditing.
	DataDir string

	MaxSessions int // live sessions allowed at once
	MaxCells    int // largest grid a tool may build

	Logger *slog.Logger
}

// NewServer creates a new MCP server with the schelling tools.
func NewServer(cfg *Config) (*Server, error) {
	var runStore store.RunStore
	var audit *AuditLogger
	if cfg.DataDir != "" {
		sqliteStore, err := store.NewSQLiteRunStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create run store: %w", err)
		}
		runStore = sqliteStore
		audit = NewAuditLogger(cfg.DataDir)
	} else {
		runStore = store.NewInMemoryRunStore()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		store:        runStore,
		logger:       logger,
		auditLogger:  audit,
		toolLimiters: ratelimit.NewToolLimiters(),
		maxSessions:  cfg.MaxSessions,
		maxCells:     cfg.MaxCells,
		sessions:     make(map[string]*session),
	}
	if s.maxSessions <= 0 {
		s.maxSessions = DefaultMaxSessions
	}
	if s.maxCells <= 0 {
		s.maxCells = DefaultMaxCells
	}

	s.registerTools()

	return s, nil
}

// Run serves MCP over stdio. It blocks until the client disconnects or ctx
// is cancelled, then releases every session and closes the store.
func (s *Server) Run(ctx context.Context) error {
	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if closeErr := s.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close releases all sessions and closes the store and audit log.
func (s *Server) Close() error {
	s.mu.Lock()
	for id, sess := range s.sessions {
		sess.mu.Lock()
		sess.grid.Release()
		sess.mu.Unlock()
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	err := s.store.Close()
	if auditErr := s.auditLogger.Close(); auditErr != nil && err == nil {
		err = auditErr
	}
	return err
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
