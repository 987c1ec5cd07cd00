package kernmap

import (
	"context"

	"github.com/kestrel-sched/domlb/internal/loadbalance"
)

// FakeGateway is an in-memory stand-in for Gateway for code that needs
// the gateway surface without a real kernel map. It satisfies the same
// read/write surface callers depend on (loadbalance.DirectiveGateway plus
// the task/stat read methods).
type FakeGateway struct {
	Observations []loadbalance.TaskObservation
	Stats        []uint64

	Directives        map[int32]uint32
	ClearCalls        int
	FailPublishForPID map[int32]bool
}

// NewFakeGateway returns an empty FakeGateway ready for a test to
// populate.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Directives:        make(map[int32]uint32),
		FailPublishForPID: make(map[int32]bool),
	}
}

func (f *FakeGateway) ReadTaskObservations() ([]loadbalance.TaskObservation, []error) {
	return f.Observations, nil
}

func (f *FakeGateway) ReadStats() ([]uint64, error) {
	return f.Stats, nil
}

func (f *FakeGateway) ClearDirectives(ctx context.Context) error {
	f.ClearCalls++
	f.Directives = make(map[int32]uint32)
	return nil
}

func (f *FakeGateway) PublishDirective(ctx context.Context, pid int32, domID uint32) error {
	if f.FailPublishForPID[pid] {
		return errFakePublish{pid: pid}
	}
	if _, exists := f.Directives[pid]; exists {
		return errFakePublish{pid: pid}
	}
	f.Directives[pid] = domID
	return nil
}

type errFakePublish struct{ pid int32 }

func (e errFakePublish) Error() string { return "fake publish rejected" }
