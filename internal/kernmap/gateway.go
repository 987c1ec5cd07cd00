package kernmap

import (
	"context"
	"fmt"

	"github.com/cilium/ebpf"

	"github.com/kestrel-sched/domlb/internal/errs"
	"github.com/kestrel-sched/domlb/internal/loadbalance"
)

// taskCtx mirrors the kernel component's per-task context struct. Field
// order and sizes must match the BPF-side definition exactly since it's
// read via a raw map lookup.
type taskCtx struct {
	RunnableAt  uint64
	RunnableFor uint64
	Weight      uint32
	DomID       uint32
	DomMask     uint64
}

// Gateway wraps the three shared maps domlb reads from and writes to. It
// is constructed by a Loader once the kernel component's collection has
// been loaded.
type Gateway struct {
	taskData  *ebpf.Map
	lbData    *ebpf.Map
	statsData *ebpf.Map
	exitData  *ebpf.Map // .bss map holding exit_type/exit_msg, optional
}

// NewGateway wraps already-loaded maps. Exported separately from the
// Loader so tests can construct a Gateway against an in-memory
// ebpf.Map (ebpftest.CreateMap-style) without a real kernel load.
func NewGateway(taskData, lbData, statsData *ebpf.Map) *Gateway {
	return &Gateway{taskData: taskData, lbData: lbData, statsData: statsData}
}

// ExitSignal mirrors the kernel component's exit_type/exit_msg bss
// globals: exit_type 0 means still running, 2 (EXT_OPS_EXIT_ERROR) means
// it aborted and exit_msg holds why, any other non-zero value is a
// graceful exit the caller should just log.
type ExitSignal struct {
	ExitType int32
	_        [4]byte // padding to match the kernel struct's natural alignment
	ExitMsg  [128]byte
}

const exitTypeError = 2

// ReadExitSignal reports whether the kernel component has signalled an
// exit. A nil *errs.KernelExitError with exitType 0 means it is still
// running. If the gateway has no bss map wired (e.g. in tests), it always
// reports "still running".
func (g *Gateway) ReadExitSignal() (int32, error) {
	if g.exitData == nil {
		return 0, nil
	}
	var sig ExitSignal
	var zero uint32
	if err := g.exitData.Lookup(&zero, &sig); err != nil {
		return 0, &errs.FatalMapError{Op: "lookup", Err: err}
	}
	if sig.ExitType == 0 {
		return 0, nil
	}
	if sig.ExitType == exitTypeError {
		msg := nullTerminated(sig.ExitMsg[:])
		return sig.ExitType, &errs.KernelExitError{ExitType: sig.ExitType, Message: msg}
	}
	return sig.ExitType, nil
}

func nullTerminated(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// ReadTaskObservations walks the task table and returns one observation
// per entry. The walk stops at the first iteration error: the
// observations read up to that point are returned together with one
// TransientMapError, and entries after the failure are not read this tick.
func (g *Gateway) ReadTaskObservations() ([]loadbalance.TaskObservation, []error) {
	var obs []loadbalance.TaskObservation
	var errsOut []error

	var pidKey int32
	var ctx taskCtx
	it := g.taskData.Iterate()
	for it.Next(&pidKey, &ctx) {
		obs = append(obs, loadbalance.TaskObservation{
			PID:         pidKey,
			DomID:       ctx.DomID,
			DomMask:     ctx.DomMask,
			Weight:      ctx.Weight,
			RunnableAt:  ctx.RunnableAt,
			RunnableFor: ctx.RunnableFor,
		})
	}
	if err := it.Err(); err != nil {
		errsOut = append(errsOut, &errs.TransientMapError{Op: "iterate", Key: "task_data", Err: err})
	}
	return obs, errsOut
}

// ClearDirectives deletes every entry from the directive map so a new
// tick's migrations start from a clean slate.
func (g *Gateway) ClearDirectives(ctx context.Context) error {
	var pidKey int32
	var domVal uint32
	var keys []int32
	it := g.lbData.Iterate()
	for it.Next(&pidKey, &domVal) {
		keys = append(keys, pidKey)
	}
	if err := it.Err(); err != nil {
		return &errs.FatalMapError{Op: "iterate", Err: err}
	}
	for _, k := range keys {
		if err := g.lbData.Delete(k); err != nil && err != ebpf.ErrKeyNotExist {
			return &errs.FatalMapError{Op: "delete", Err: err}
		}
	}
	return nil
}

// PublishDirective writes a single pid -> destination-domain directive
// with create-only semantics: if the kernel component already consumed
// or otherwise owns this pid's entry this tick, the write is rejected
// rather than silently overwriting it.
func (g *Gateway) PublishDirective(ctx context.Context, pid int32, domID uint32) error {
	if err := g.lbData.Update(pid, domID, ebpf.UpdateNoExist); err != nil {
		return &errs.TransientMapError{Op: "update", Key: pid, Err: err}
	}
	return nil
}

// ReadStats reads and zeroes the per-CPU stats counters, returning the
// summed value for each StatIndex. A read failure here is fatal to the
// current tick since the reported counters would otherwise be
// meaningless.
func (g *Gateway) ReadStats() ([]uint64, error) {
	sums := make([]uint64, NrStats)
	for i := StatIndex(0); i < NrStats; i++ {
		var perCPU []uint64
		key := uint32(i)
		if err := g.statsData.Lookup(key, &perCPU); err != nil {
			return nil, &errs.FatalMapError{Op: fmt.Sprintf("lookup stat %d", i), Err: err}
		}
		var sum uint64
		for _, v := range perCPU {
			sum += v
		}
		sums[i] = sum

		zeros := make([]uint64, len(perCPU))
		if err := g.statsData.Update(key, zeros, ebpf.UpdateExist); err != nil {
			return nil, &errs.FatalMapError{Op: fmt.Sprintf("zero stat %d", i), Err: err}
		}
	}
	return sums, nil
}
