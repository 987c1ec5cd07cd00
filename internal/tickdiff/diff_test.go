package tickdiff

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json")
	snap := Snapshot{Timestamp: "t1", LoadAvg: 100, DomLoads: []float64{130, 70}, Migrations: 2}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if got.LoadAvg != 100 || len(got.DomLoads) != 2 {
		t.Fatalf("got = %+v, want round-tripped snapshot", got)
	}
}

func TestCompareDetectsWorsenedAndImprovedDomains(t *testing.T) {
	baseline := &Snapshot{Timestamp: "t0", LoadAvg: 100, DomLoads: []float64{100, 100}}
	current := &Snapshot{Timestamp: "t1", LoadAvg: 100, DomLoads: []float64{150, 100}}

	r := Compare(baseline, current)
	if r.Worsened != 1 {
		t.Fatalf("Worsened = %d, want 1, changes=%+v", r.Worsened, r.Changes)
	}
}

func TestCompareIgnoresNegligibleChanges(t *testing.T) {
	baseline := &Snapshot{Timestamp: "t0", LoadAvg: 100, DomLoads: []float64{100}}
	current := &Snapshot{Timestamp: "t1", LoadAvg: 100, DomLoads: []float64{100.05}}

	r := Compare(baseline, current)
	if len(r.Changes) != 0 {
		t.Fatalf("Changes = %+v, want none for a negligible delta", r.Changes)
	}
}

func TestFormatIncludesBothSections(t *testing.T) {
	r := &Report{
		Baseline: "t0", Current: "t1",
		Changes: []DomainChange{
			{Dom: 0, OldLoad: 100, NewLoad: 150, DeltaPct: 50, Direction: "worsened", Significance: "high"},
			{Dom: 1, OldLoad: 100, NewLoad: 80, DeltaPct: -20, Direction: "improved", Significance: "medium"},
		},
		Worsened: 1, Improved: 1,
	}
	out := Format(r)
	if !contains(out, "Worsened domains") || !contains(out, "Improved domains") {
		t.Fatalf("Format output missing expected sections:\n%s", out)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
