// domlb — userspace load-balancing controller for a sched_ext CPU
// scheduler: resolves domain topology, loads the kernel component's
// object and maps (its struct_ops dispatcher program is not attached
// here), and periodically rebalances tasks across domains based on
// observed per-task runtime.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kestrel-sched/domlb/internal/config"
	"github.com/kestrel-sched/domlb/internal/ebpfcaps"
	"github.com/kestrel-sched/domlb/internal/errs"
	"github.com/kestrel-sched/domlb/internal/hostcpu"
	"github.com/kestrel-sched/domlb/internal/kernmap"
	"github.com/kestrel-sched/domlb/internal/loadbalance"
	"github.com/kestrel-sched/domlb/internal/logging"
	"github.com/kestrel-sched/domlb/internal/mcpserver"
	"github.com/kestrel-sched/domlb/internal/tickdiff"
	"github.com/kestrel-sched/domlb/internal/topology"
)

var version = "0.1.0"

func main() {
	opts := config.DefaultOptions()

	rootCmd := &cobra.Command{
		Use:     "domlb",
		Short:   "Userspace load-balancing controller for a sched_ext scheduler",
		Version: version,
		Long: `domlb loads the object of a kernel-side round-robin-per-domain
scheduler (without attaching its struct_ops program) and rebalances tasks
across domains from userspace, based on an EWMA-smoothed estimate of
per-task runtime.

Domains are either explicit CPU masks (--cpumasks) or derived from a cache
level shared by CPUs (--cache-level); the two are mutually exclusive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runController(cmd.Context(), opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.Uint64Var(&opts.SliceUS, "slice-us", opts.SliceUS, "dispatch time slice in microseconds")
	flags.DurationVar(&opts.Interval, "interval", opts.Interval, "load-balancing tick period")
	flags.Uint32Var(&opts.CacheLevel, "cache-level", opts.CacheLevel, "cache level used to group CPUs into domains")
	flags.StringSliceVar(&opts.CPUMasks, "cpumasks", opts.CPUMasks, "explicit per-domain hex CPU masks, one per domain")
	flags.Uint32Var(&opts.GreedyThreshold, "greedy-threshold", opts.GreedyThreshold, "minimum queue depth before greedy steals are permitted")
	flags.Float64Var(&opts.LoadDecayFactor, "load-decay-factor", opts.LoadDecayFactor, "EWMA decay factor in [0, 0.99]")
	flags.BoolVar(&opts.NoLoadBalance, "no-load-balance", opts.NoLoadBalance, "run diagnostics only, skip planning and publishing migrations")
	flags.BoolVar(&opts.KthreadsLocal, "kthreads-local", opts.KthreadsLocal, "keep kernel threads on their waking CPU")
	flags.BoolVar(&opts.FifoSched, "fifo-sched", opts.FifoSched, "use FIFO dispatch instead of weighted vtime")
	flags.BoolVar(&opts.Partial, "partial", opts.Partial, "only switch tasks that opt in via syscall")
	flags.CountVarP(&opts.Verbose, "verbose", "v", "increase log verbosity (repeatable)")
	flags.StringVar(&opts.BPFObjectPath, "bpf-object", opts.BPFObjectPath, "path to the compiled kernel-component object")
	flags.StringVar(&opts.SnapshotOutPath, "snapshot-out", opts.SnapshotOutPath, "write a per-tick load snapshot to this path (disabled if empty)")

	rootCmd.MarkFlagsMutuallyExclusive("cpumasks", "cache-level")

	rootCmd.AddCommand(newCapabilitiesCmd())
	rootCmd.AddCommand(newMCPCmd(&opts))
	rootCmd.AddCommand(newDiffCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newCapabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Report whether this host can load the kernel component",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := ebpfcaps.Detect()
			fmt.Printf("kernel:      %s\n", info.KernelVersion)
			fmt.Printf("btf:         %v (%s)\n", info.BTFAvailable, info.VmlinuxPath)
			fmt.Printf("co-re:       %v\n", info.CORESupport)
			fmt.Printf("sched_ext:   %v\n", info.SchedExtReady)
			fmt.Printf("ready:       %v\n", ebpfcaps.Ready(info))
			for name, ok := range ebpfcaps.Capabilities() {
				fmt.Printf("  %-24s %v\n", name, ok)
			}
			return nil
		},
	}
}

// runtimeHandle bundles everything a tick loop needs, built once at
// startup and shared between the default run path and the mcp subcommand
// (which runs the same tick loop in the background while also serving).
type runtimeHandle struct {
	controller *loadbalance.Controller
	cpuReader  *hostcpu.Reader
	state      *mcpserver.State
	coll       io.Closer
	gw         *kernmap.Gateway
	log        zerolog.Logger
}

func setupRuntime(opts config.Options) (*runtimeHandle, error) {
	logging.Init(opts.Verbose)
	log := logging.Component("main")

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	nrCPUs, err := cpuCount()
	if err != nil {
		return nil, err
	}

	topo, err := topology.Resolve(opts.CPUMasks, opts.CacheLevel, nrCPUs)
	if err != nil {
		return nil, err
	}
	if topo.NotFoundCacheIDs > 1 {
		log.Warn().Int("count", topo.NotFoundCacheIDs).Msg("CPUs fell back to domain 0 due to unreadable cache id")
	}
	log.Info().Uint32("nr_cpus", topo.NrCPUs).Uint32("nr_doms", topo.NrDoms).Msg("resolved domain topology")
	for _, dom := range topo.Domains {
		log.Info().
			Uint32("dom", dom.ID).
			Str("cpumask", dom.CPUSet.DumpAsBits()).
			Uint("cpus", dom.CPUSet.Count()).
			Msg("domain cpumask")
	}

	info := ebpfcaps.Detect()
	if !ebpfcaps.Ready(info) {
		return nil, errs.NewAttachError(fmt.Sprintf("host not ready for sched_ext (kernel %s)", info.KernelVersion), nil)
	}

	loader := kernmap.NewLoader(opts.Verbose > 0)
	gw, coll, err := loader.Load(opts.BPFObjectPath, kernmap.Config{
		SliceNS:         opts.SliceUS * 1000,
		NrCPUs:          topo.NrCPUs,
		NrDoms:          topo.NrDoms,
		KthreadsLocal:   opts.KthreadsLocal,
		FifoSched:       opts.FifoSched,
		SwitchPartial:   opts.Partial,
		GreedyThreshold: opts.GreedyThreshold,
	})
	if err != nil {
		return nil, err
	}

	cpuReader := hostcpu.NewReader("/proc")
	controller := loadbalance.NewController(
		gw, gw, cpuReader, gw,
		monotonicNow,
		opts.LoadDecayFactor,
		topo.NrDoms,
		opts.NoLoadBalance,
		logging.Component("loadbalance"),
	)

	return &runtimeHandle{
		controller: controller,
		cpuReader:  cpuReader,
		state:      mcpserver.NewState(topo.NrDoms),
		coll:       coll,
		gw:         gw,
		log:        log,
	}, nil
}

// tickLoop runs the controller on opts.Interval until ctx is cancelled or
// the kernel component signals an exit, updating rt.state after each tick
// and optionally writing a snapshot.
func tickLoop(ctx context.Context, rt *runtimeHandle, opts config.Options) {
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rt.log.Info().Msg("shutting down")
			return
		case <-ticker.C:
			if exitType, err := rt.gw.ReadExitSignal(); err != nil {
				rt.log.Error().Err(err).Int32("exit_type", exitType).Msg("kernel component exited with an error")
				return
			} else if exitType != 0 {
				rt.log.Info().Int32("exit_type", exitType).Msg("kernel component exited")
				return
			}

			outcome, err := rt.controller.Tick(ctx)
			if err != nil {
				rt.log.Error().Err(err).Msg("tick failed")
				continue
			}
			cpuBusy, _ := rt.cpuReader.Busy()
			rt.state.Update(outcome, cpuBusy)

			if opts.SnapshotOutPath != "" {
				if err := writeSnapshot(opts.SnapshotOutPath, outcome); err != nil {
					rt.log.Warn().Err(err).Msg("failed to write tick snapshot")
				}
			}
		}
	}
}

func runController(ctx context.Context, opts config.Options) error {
	rt, err := setupRuntime(opts)
	if err != nil {
		return err
	}
	defer rt.coll.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tickLoop(ctx, rt, opts)
	// An error exit of the kernel component ends the loop above; report it
	// so the process exits non-zero.
	if _, err := rt.gw.ReadExitSignal(); err != nil {
		return err
	}
	return nil
}

func writeSnapshot(path string, outcome loadbalance.TickOutcome) error {
	snap := tickdiff.Snapshot{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RunID:      outcome.RunID,
		LoadAvg:    outcome.LoadAvg,
		DomLoads:   outcome.DomLoads,
		Migrations: len(outcome.Migrations),
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func monotonicNow() uint64 {
	var ts syscall.Timespec
	if err := syscall.ClockGettime(syscall.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return uint64(ts.Sec)*1e9 + uint64(ts.Nsec)
}

func cpuCount() (int, error) {
	n := runtime.NumCPU()
	if n <= 0 {
		return 0, errs.NewConfigError("unable to determine CPU count")
	}
	return n, nil
}
