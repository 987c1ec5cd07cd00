package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kestrel-sched/domlb/internal/loadbalance"
)

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected exactly one content item, got %d", len(res.Content))
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", res.Content[0])
	}
	return tc.Text
}

func TestHandleGetStatusReportsBalance(t *testing.T) {
	state := NewState(2)
	state.Update(loadbalance.TickOutcome{
		LoadAvg:  100,
		DomLoads: []float64{100, 100},
	}, 0.25)

	res, err := handleGetStatus(state)(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal([]byte(textOf(t, res)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["balanced"] != true {
		t.Fatalf("balanced = %v, want true", got["balanced"])
	}
	if got["tick_count"].(float64) != 1 {
		t.Fatalf("tick_count = %v, want 1", got["tick_count"])
	}
}

func TestHandleGetDomainsClassifiesPushPull(t *testing.T) {
	state := NewState(2)
	state.Update(loadbalance.TickOutcome{
		DomLoads: []float64{130, 70},
		Imbalance: loadbalance.ImbalanceSet{
			ToPush: []loadbalance.Imbalance{{DomID: 0, Delta: 30}},
			ToPull: []loadbalance.Imbalance{{DomID: 1, Delta: 30}},
		},
	}, 0)

	res, err := handleGetDomains(state)(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	var got []map[string]interface{}
	if err := json.Unmarshal([]byte(textOf(t, res)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d domain entries, want 2", len(got))
	}
	if got[0]["balance"] != "push" {
		t.Fatalf("domain 0 balance = %v, want push", got[0]["balance"])
	}
	if got[1]["balance"] != "pull" {
		t.Fatalf("domain 1 balance = %v, want pull", got[1]["balance"])
	}
}

func TestHandleListMigrationsReturnsPlannedMoves(t *testing.T) {
	state := NewState(2)
	state.Update(loadbalance.TickOutcome{
		Migrations: []loadbalance.Migration{
			{PID: 7, FromDom: 0, ToDom: 1, Load: 30},
		},
	}, 0)

	res, err := handleListMigrations(state)(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	var got []map[string]interface{}
	if err := json.Unmarshal([]byte(textOf(t, res)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 1 || got[0]["pid"].(float64) != 7 {
		t.Fatalf("migrations = %+v, want one entry with pid 7", got)
	}
}
