// Package tickdiff compares two per-tick domain-load snapshots and
// highlights domains whose load moved meaningfully between them, for
// offline investigation of a balancing run.
package tickdiff

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
)

// Snapshot is one tick's domain load state, serialized when
// --snapshot-out is set so separate ticks (or separate runs) can be
// diffed after the fact.
type Snapshot struct {
	Timestamp  string    `json:"timestamp"`
	RunID      string    `json:"run_id,omitempty"`
	LoadAvg    float64   `json:"load_avg"`
	DomLoads   []float64 `json:"dom_loads"`
	Migrations int       `json:"migrations"`
}

// LoadSnapshot reads and parses a JSON snapshot file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &snap, nil
}

// DomainChange is one domain's load delta between two snapshots.
type DomainChange struct {
	Dom          int     `json:"dom"`
	OldLoad      float64 `json:"old_load"`
	NewLoad      float64 `json:"new_load"`
	Delta        float64 `json:"delta"`
	DeltaPct     float64 `json:"delta_pct"`
	Direction    string  `json:"direction"`    // "worsened", "improved", "unchanged"
	Significance string  `json:"significance"` // "high", "medium", "low"
}

// Report is the full comparison between two snapshots.
type Report struct {
	Baseline        string         `json:"baseline"`
	Current         string         `json:"current"`
	LoadAvgDelta    float64        `json:"load_avg_delta"`
	Changes         []DomainChange `json:"changes"`
	Worsened        int            `json:"worsened"`
	Improved        int            `json:"improved"`
	MigrationsDelta int            `json:"migrations_delta"`
}

// Compare computes per-domain deltas between baseline and current.
// "Worsened" means the domain moved further from current's load average
// (more imbalanced); "improved" means it moved closer to it.
func Compare(baseline, current *Snapshot) *Report {
	r := &Report{
		Baseline:        baseline.Timestamp,
		Current:         current.Timestamp,
		LoadAvgDelta:    current.LoadAvg - baseline.LoadAvg,
		MigrationsDelta: current.Migrations - baseline.Migrations,
	}

	n := len(current.DomLoads)
	if len(baseline.DomLoads) < n {
		n = len(baseline.DomLoads)
	}
	for dom := 0; dom < n; dom++ {
		oldLoad, newLoad := baseline.DomLoads[dom], current.DomLoads[dom]
		change := domainChange(dom, oldLoad, newLoad, current.LoadAvg)
		if change == nil {
			continue
		}
		r.Changes = append(r.Changes, *change)
		switch change.Direction {
		case "worsened":
			r.Worsened++
		case "improved":
			r.Improved++
		}
	}
	return r
}

func domainChange(dom int, oldLoad, newLoad, loadAvg float64) *DomainChange {
	delta := newLoad - oldLoad
	deltaPct := 0.0
	if oldLoad != 0 {
		deltaPct = delta / math.Abs(oldLoad) * 100
	}
	if math.Abs(deltaPct) < 1.0 && math.Abs(delta) < 0.1 {
		return nil
	}

	oldDev := math.Abs(oldLoad - loadAvg)
	newDev := math.Abs(newLoad - loadAvg)
	direction := "unchanged"
	switch {
	case newDev > oldDev:
		direction = "worsened"
	case newDev < oldDev:
		direction = "improved"
	}

	absPct := math.Abs(deltaPct)
	significance := "low"
	if absPct >= 50 {
		significance = "high"
	} else if absPct >= 20 {
		significance = "medium"
	}

	return &DomainChange{
		Dom: dom, OldLoad: oldLoad, NewLoad: newLoad, Delta: delta, DeltaPct: deltaPct,
		Direction: direction, Significance: significance,
	}
}

// Format returns a human-readable summary of a Report.
func Format(r *Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Tick Diff ===\n")
	fmt.Fprintf(&sb, "Baseline: %s\n", r.Baseline)
	fmt.Fprintf(&sb, "Current:  %s\n\n", r.Current)
	fmt.Fprintf(&sb, "Load avg delta: %+.2f\n", r.LoadAvgDelta)
	fmt.Fprintf(&sb, "Migrations delta: %+d\n", r.MigrationsDelta)
	fmt.Fprintf(&sb, "Worsened: %d, Improved: %d\n\n", r.Worsened, r.Improved)

	if r.Worsened > 0 {
		sb.WriteString("Worsened domains:\n")
		for _, c := range r.Changes {
			if c.Direction == "worsened" {
				fmt.Fprintf(&sb, "  [%s] dom %d: %.2f -> %.2f (%+.1f%%)\n",
					strings.ToUpper(c.Significance), c.Dom, c.OldLoad, c.NewLoad, c.DeltaPct)
			}
		}
		sb.WriteString("\n")
	}
	if r.Improved > 0 {
		sb.WriteString("Improved domains:\n")
		for _, c := range r.Changes {
			if c.Direction == "improved" {
				fmt.Fprintf(&sb, "  [%s] dom %d: %.2f -> %.2f (%+.1f%%)\n",
					strings.ToUpper(c.Significance), c.Dom, c.OldLoad, c.NewLoad, c.DeltaPct)
			}
		}
	}
	return sb.String()
}
