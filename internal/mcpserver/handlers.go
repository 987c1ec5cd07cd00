package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// handleGetStatus returns a tool handler bound to state summarizing the
// most recent tick: load average, tick count, and a coarse imbalance flag.
func handleGetStatus(state *State) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		outcome, nrDoms, tickCount, cpuBusy := state.snapshot()

		summary := map[string]interface{}{
			"run_id":            outcome.RunID,
			"tick_count":        tickCount,
			"nr_domains":        nrDoms,
			"load_avg":          outcome.LoadAvg,
			"cpu_busy_pct":      cpuBusy * 100,
			"domains_to_push":   len(outcome.Imbalance.ToPush),
			"domains_to_pull":   len(outcome.Imbalance.ToPull),
			"migrations_last":   len(outcome.Migrations),
			"task_read_errors":  outcome.TaskReadErrors,
			"lb_data_errors":    outcome.LBDataErrorsTotal,
			"balanced":          len(outcome.Imbalance.ToPush) == 0 && len(outcome.Imbalance.ToPull) == 0,
		}
		return jsonResult(summary)
	}
}

// handleGetDomains returns per-domain load and push/pull classification
// from the most recent tick.
func handleGetDomains(state *State) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		outcome, _, _, _ := state.snapshot()

		pushByDom := make(map[uint32]float64, len(outcome.Imbalance.ToPush))
		for _, imb := range outcome.Imbalance.ToPush {
			pushByDom[imb.DomID] = imb.Delta
		}
		pullByDom := make(map[uint32]float64, len(outcome.Imbalance.ToPull))
		for _, imb := range outcome.Imbalance.ToPull {
			pullByDom[imb.DomID] = imb.Delta
		}

		type domainEntry struct {
			DomID   uint32  `json:"dom_id"`
			Load    float64 `json:"load"`
			ToPush  float64 `json:"to_push,omitempty"`
			ToPull  float64 `json:"to_pull,omitempty"`
			Balance string  `json:"balance"`
		}

		entries := make([]domainEntry, 0, len(outcome.DomLoads))
		for dom, load := range outcome.DomLoads {
			e := domainEntry{DomID: uint32(dom), Load: load, Balance: "balanced"}
			if delta, ok := pushByDom[uint32(dom)]; ok {
				e.ToPush = delta
				e.Balance = "push"
			}
			if delta, ok := pullByDom[uint32(dom)]; ok {
				e.ToPull = delta
				e.Balance = "pull"
			}
			entries = append(entries, e)
		}
		return jsonResult(entries)
	}
}

// handleListMigrations returns the migrations planned on the most recent
// tick, whether or not they were all successfully published.
func handleListMigrations(state *State) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		outcome, _, _, _ := state.snapshot()

		type migrationEntry struct {
			PID     int32   `json:"pid"`
			FromDom uint32  `json:"from_dom"`
			ToDom   uint32  `json:"to_dom"`
			Load    float64 `json:"load"`
		}
		entries := make([]migrationEntry, 0, len(outcome.Migrations))
		for _, m := range outcome.Migrations {
			entries = append(entries, migrationEntry{PID: m.PID, FromDom: m.FromDom, ToDom: m.ToDom, Load: m.Load})
		}
		return jsonResult(entries)
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(data)), nil
}

func newTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
	}
}
