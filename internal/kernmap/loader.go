package kernmap

import (
	"fmt"

	"github.com/cilium/ebpf"

	"github.com/kestrel-sched/domlb/internal/errs"
)

// mapNames are the names the kernel component's BPF object exposes its
// shared maps under. mapExitData is the compiler-generated bss map
// holding the exit_type/exit_msg globals the kernel side sets on error;
// its absence is tolerated since not every build exports it under this
// name.
const (
	mapTaskData  = "task_data"
	mapLBData    = "lb_data"
	mapStatsData = "stats_data"
	mapExitData  = ".bss"
)

// Loader opens the compiled kernel-component object, rewrites its
// read-only configuration area, and loads it into the kernel.
type Loader struct {
	verbose bool
}

// NewLoader returns a Loader. verbose enables the eBPF library's own
// verifier-log output on load failure.
func NewLoader(verbose bool) *Loader {
	return &Loader{verbose: verbose}
}

// Load loads objectPath with cfg rewritten into its rodata, returning a
// Gateway over the resulting maps. Load does not attach the kernel
// component's struct_ops dispatcher program; it only gets the maps ready
// to read and write.
func (l *Loader) Load(objectPath string, cfg Config) (*Gateway, *ebpf.Collection, error) {
	spec, err := ebpf.LoadCollectionSpec(objectPath)
	if err != nil {
		return nil, nil, errs.NewAttachError(fmt.Sprintf("load collection spec from %s", objectPath), err)
	}

	consts := map[string]interface{}{
		"CONFIG_slice_ns":         cfg.SliceNS,
		"CONFIG_nr_cpus":          cfg.NrCPUs,
		"CONFIG_nr_doms":          cfg.NrDoms,
		"CONFIG_kthreads_local":   cfg.KthreadsLocal,
		"CONFIG_fifo_sched":       cfg.FifoSched,
		"CONFIG_switch_partial":   cfg.SwitchPartial,
		"CONFIG_greedy_threshold": cfg.GreedyThreshold,
	}
	if err := spec.RewriteConstants(consts); err != nil {
		return nil, nil, errs.NewAttachError("rewrite rodata constants", err)
	}

	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, nil, errs.NewAttachError("load collection into kernel", err)
	}

	taskData, ok := coll.Maps[mapTaskData]
	if !ok {
		coll.Close()
		return nil, nil, errs.NewAttachError(fmt.Sprintf("collection missing map %q", mapTaskData), nil)
	}
	lbData, ok := coll.Maps[mapLBData]
	if !ok {
		coll.Close()
		return nil, nil, errs.NewAttachError(fmt.Sprintf("collection missing map %q", mapLBData), nil)
	}
	statsData, ok := coll.Maps[mapStatsData]
	if !ok {
		coll.Close()
		return nil, nil, errs.NewAttachError(fmt.Sprintf("collection missing map %q", mapStatsData), nil)
	}

	gw := NewGateway(taskData, lbData, statsData)
	if exitData, ok := coll.Maps[mapExitData]; ok {
		gw.exitData = exitData
	}
	return gw, coll, nil
}
