// Package mcpserver exposes read-only introspection into a running
// controller's most recent tick outcome over the Model Context Protocol,
// so an operator (or an AI agent) can ask about current domain balance
// without reaching into logs.
package mcpserver

import (
	"context"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kestrel-sched/domlb/internal/loadbalance"
)

// State holds the latest tick outcome, updated by the controller's tick
// loop and read by tool handlers. Safe for concurrent use.
type State struct {
	mu          sync.RWMutex
	outcome     loadbalance.TickOutcome
	nrDoms      uint32
	tickCount   uint64
	lastCPUBusy float64
}

// NewState returns an empty State ready to be updated by a tick loop.
func NewState(nrDoms uint32) *State {
	return &State{nrDoms: nrDoms}
}

// Update records the outcome of a completed tick.
func (s *State) Update(outcome loadbalance.TickOutcome, cpuBusy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = outcome
	s.lastCPUBusy = cpuBusy
	s.tickCount++
}

func (s *State) snapshot() (loadbalance.TickOutcome, uint32, uint64, float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outcome, s.nrDoms, s.tickCount, s.lastCPUBusy
}

// Server wraps the MCP server instance bound to a controller's State.
type Server struct {
	mcpServer *server.MCPServer
	state     *State
}

// NewServer creates an MCP server exposing read-only tools over state.
func NewServer(version string, state *State) *Server {
	s := server.NewMCPServer("domlb", version, server.WithLogging())
	registerTools(s, state)
	return &Server{mcpServer: s, state: state}
}

// Start runs the server in stdio mode, blocking until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.mcpServer)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func registerTools(s *server.MCPServer, state *State) {
	statusTool := mcp.NewTool("get_status",
		mcp.WithDescription("Current balance status: load average, CPU busy, counts of push and pull domains, error counters, and whether the last tick found an imbalance. Fast, no side effects."),
	)
	s.AddTool(statusTool, handleGetStatus(state))

	domainsTool := mcp.NewTool("get_domains",
		mcp.WithDescription("Per-domain load detail from the most recent tick, including which domains are candidates to push or pull load."),
	)
	s.AddTool(domainsTool, handleGetDomains(state))

	migrationsTool := mcp.NewTool("list_migrations",
		mcp.WithDescription("Task migrations planned on the most recent tick, listed whether or not each directive write to the kernel component succeeded."),
	)
	s.AddTool(migrationsTool, handleListMigrations(state))
}
