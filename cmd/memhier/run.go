package main

import (
	"fmt"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/archsim/memhier/cache"
	"github.com/archsim/memhier/checkpoint"
	"github.com/archsim/memhier/config"
	"github.com/archsim/memhier/cpu"
	"github.com/archsim/memhier/mem"
	"github.com/archsim/memhier/mem/coherence"
	"github.com/archsim/memhier/monitor"
	"github.com/archsim/memhier/sim"
	"github.com/archsim/memhier/stats"
)

var runFlags struct {
	blockSize     int
	assoc         int
	nSets         int
	hitLatency    int
	mshrEntries   int
	wbEntries     int
	protocol      string
	prefetch      bool
	instructions  uint64
	workingSet    int
	stride        int
	memSize       int
	memLatency    int
	statsDB       string
	checkpointOut string
	openMonitor   bool
	monitorPort   int
}

func init() {
	runCmd.Flags().IntVar(&runFlags.blockSize, "block-size", 64, "cache block size in bytes")
	runCmd.Flags().IntVar(&runFlags.assoc, "assoc", 4, "cache associativity")
	runCmd.Flags().IntVar(&runFlags.nSets, "sets", 64, "number of cache sets")
	runCmd.Flags().IntVar(&runFlags.hitLatency, "hit-latency", 2, "cache hit latency in ticks")
	runCmd.Flags().IntVar(&runFlags.mshrEntries, "mshr-entries", 4, "MSHR table capacity")
	runCmd.Flags().IntVar(&runFlags.wbEntries, "writeback-entries", 4, "writeback buffer capacity")
	runCmd.Flags().StringVar(&runFlags.protocol, "protocol", "msi", "coherence protocol: msi or none")
	runCmd.Flags().BoolVar(&runFlags.prefetch, "prefetch", false, "enable next-line prefetch on access")
	runCmd.Flags().Uint64Var(&runFlags.instructions, "instructions", 10000, "instructions to execute")
	runCmd.Flags().IntVar(&runFlags.workingSet, "working-set", 4096, "demo workload's working-set size in bytes")
	runCmd.Flags().IntVar(&runFlags.stride, "stride", 37, "demo workload's per-instruction address stride in bytes")
	runCmd.Flags().IntVar(&runFlags.memSize, "mem-size", 1<<20, "backing store size in bytes")
	runCmd.Flags().IntVar(&runFlags.memLatency, "mem-latency", 50, "backing store access latency in ticks")
	runCmd.Flags().StringVar(&runFlags.statsDB, "stats-db", "", "SQLite file to persist statistics to (empty disables)")
	runCmd.Flags().StringVar(&runFlags.checkpointOut, "checkpoint-out", "", "SQLite file to checkpoint final state to (empty disables)")
	runCmd.Flags().BoolVar(&runFlags.openMonitor, "open-monitor", false, "open the monitor URL in a browser")
	runCmd.Flags().IntVar(&runFlags.monitorPort, "monitor-port", 0, "monitor server port (0 picks one at random)")

	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the demo workload through a single-level cache hierarchy",
	RunE:  runRun,
}

func runRun(*cobra.Command, []string) error {
	protocol, err := parseProtocol(runFlags.protocol)
	if err != nil {
		return err
	}

	cfg := config.Config{
		BlockSize:         runFlags.blockSize,
		Assoc:             runFlags.assoc,
		NSets:             runFlags.nSets,
		HitLatency:        runFlags.hitLatency,
		MSHREntries:       runFlags.mshrEntries,
		WritebackEntries:  runFlags.wbEntries,
		CoherenceProtocol: protocol,
		PrefetchOnAccess:  runFlags.prefetch,
		Mode:              config.Atomic,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid cache configuration: %w", err)
	}

	engine := sim.NewSerialEngine()
	registry := stats.NewRegistry()

	// The CPU model exposes a separate icache and dcache port (spec.md
	// §4.6), so the demo hierarchy gives each its own L1 and backing
	// store rather than trying to fan both into one cache's single
	// cpu-side port.
	l1i := cache.New("L1I", cfg, engine)
	l1d := cache.New("L1D", cfg, engine)
	registry.Register(l1i.Stats())
	registry.Register(l1d.Stats())

	memI := mem.NewSimpleMemory("memI", engine, runFlags.memSize, sim.VTimeInSec(runFlags.memLatency))
	memD := mem.NewSimpleMemory("memD", engine, runFlags.memSize, sim.VTimeInSec(runFlags.memLatency))
	wirePorts(l1i.MemSidePort(), memI.Port())
	wirePorts(l1d.MemSidePort(), memD.Port())

	isa := newDemoISA(runFlags.workingSet, runFlags.stride)
	core := cpu.New("cpu0", engine, isa, mem.IdentityTranslator{}, sim.VTimeInSec(1))
	wirePorts(core.ICachePort(), l1i.CPUSidePort())
	wirePorts(core.DCachePort(), l1d.CPUSidePort())

	// A snoop or invalidate reaching L1D must be able to clear a
	// reservation the CPU is holding for a locked load, even while no
	// dcache packet of the CPU's own is in flight (spec.md §4.7).
	l1d.SetUpstreamInvalidator(core)

	if runFlags.statsDB != "" {
		writer := stats.NewSQLiteWriter(runFlags.statsDB)
		writer.Init()
		runID := stats.NewRunID()
		atexit.Register(func() { writer.WriteSnapshot(runID, float64(engine.CurrentTime()), registry.Snapshot()) })
	}

	if runFlags.openMonitor {
		mon := monitor.NewMonitor(engine, registry).WithPortNumber(runFlags.monitorPort)
		url := mon.StartServer()
		if err := browser.OpenURL(url); err != nil {
			fmt.Printf("monitor running at %s (could not auto-open browser: %v)\n", url, err)
		}
	}

	var totalLatency sim.VTimeInSec
	for i := uint64(0); i < runFlags.instructions; i++ {
		lat, fault := core.StepAtomic()
		totalLatency += lat
		if fault != nil {
			return fmt.Errorf("instruction %d faulted: %w", i, fault)
		}
	}

	fmt.Printf("executed %d instructions, cumulative latency %.2f ticks\n", runFlags.instructions, totalLatency)
	printStats(registry)

	if runFlags.checkpointOut != "" {
		if !l1i.Drain() || !l1d.Drain() {
			return fmt.Errorf("caches did not reach a drained state before checkpointing")
		}

		store := checkpoint.NewStore(runFlags.checkpointOut)
		store.Init()
		store.Save([]*cache.Cache{l1i, l1d}, []*cpu.TimingCPU{core})
		fmt.Printf("checkpoint written to %s\n", runFlags.checkpointOut)
	}

	atexit.Exit(0)
	return nil
}

func parseProtocol(name string) (coherence.Protocol, error) {
	switch name {
	case "msi", "":
		return coherence.ProtocolMSI, nil
	case "none":
		return coherence.ProtocolNone, nil
	default:
		return 0, fmt.Errorf("unknown coherence protocol %q", name)
	}
}

// wirePorts peers two sim.Ports with each other, the shape every component
// pair in the hierarchy needs (spec.md §4.1's ports are symmetric: each
// side must set the other as its peer).
func wirePorts(a, b sim.Port) {
	a.SetPeer(b)
	b.SetPeer(a)
}

func printStats(registry *stats.Registry) {
	for _, s := range registry.Snapshot() {
		if s.Command != "" {
			fmt.Printf("  %s.%s[%s] = %d\n", s.Component, s.Metric, s.Command, s.Value)
		} else {
			fmt.Printf("  %s.%s = %d\n", s.Component, s.Metric, s.Value)
		}
	}
}
