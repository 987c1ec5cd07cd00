package kernmap

import (
	"context"
	"testing"

	"github.com/kestrel-sched/domlb/internal/loadbalance"
)

func TestFakeGatewayPublishDirectiveCreateOnly(t *testing.T) {
	fg := NewFakeGateway()
	ctx := context.Background()

	if err := fg.PublishDirective(ctx, 100, 2); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := fg.PublishDirective(ctx, 100, 3); err == nil {
		t.Fatal("expected create-only rejection on second publish for same pid, got nil")
	}
	if got := fg.Directives[100]; got != 2 {
		t.Errorf("directive for pid 100 = %d, want 2 (unchanged by rejected write)", got)
	}
}

func TestFakeGatewayClearDirectivesResets(t *testing.T) {
	fg := NewFakeGateway()
	ctx := context.Background()
	_ = fg.PublishDirective(ctx, 1, 0)

	if err := fg.ClearDirectives(ctx); err != nil {
		t.Fatalf("ClearDirectives: %v", err)
	}
	if len(fg.Directives) != 0 {
		t.Errorf("Directives not cleared: %v", fg.Directives)
	}
	if fg.ClearCalls != 1 {
		t.Errorf("ClearCalls = %d, want 1", fg.ClearCalls)
	}
}

func TestFakeGatewayReadTaskObservationsPassthrough(t *testing.T) {
	fg := NewFakeGateway()
	fg.Observations = []loadbalance.TaskObservation{{PID: 7, DomID: 1}}

	obs, errs := fg.ReadTaskObservations()
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(obs) != 1 || obs[0].PID != 7 {
		t.Fatalf("obs = %+v, want one observation with PID 7", obs)
	}
}

func TestStatIndexOrderMatchesNrStats(t *testing.T) {
	if NrStats != StatTaskGetErr+1 {
		t.Errorf("NrStats = %d, want %d", NrStats, StatTaskGetErr+1)
	}
}

func TestReadExitSignalWithoutBSSMapReportsStillRunning(t *testing.T) {
	gw := NewGateway(nil, nil, nil)
	exitType, err := gw.ReadExitSignal()
	if err != nil {
		t.Fatalf("ReadExitSignal: %v", err)
	}
	if exitType != 0 {
		t.Errorf("exitType = %d, want 0 when no bss map is wired", exitType)
	}
}

func TestNullTerminatedStopsAtFirstZeroByte(t *testing.T) {
	buf := make([]byte, 16)
	copy(buf, "scheduler panic")
	got := nullTerminated(buf)
	if got != "scheduler panic" {
		t.Errorf("nullTerminated = %q, want %q", got, "scheduler panic")
	}
}
