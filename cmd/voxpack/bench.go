package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/voxpack/pkg/blockdata"
	"github.com/ajitpratap0/voxpack/pkg/logger"
	"github.com/ajitpratap0/voxpack/pkg/metrics"
)

type benchResult struct {
	Width    blockdata.Width
	GetOps   float64
	SetOps   float64
	Checksum int
}

func newBenchCommand() *cobra.Command {
	var (
		dims    string
		passes  int
		cpuFile string
		memFile string
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure Get and Set throughput of dense arrays per width",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			d := cfg.Chunk.Dimensions()
			if dims != "" {
				if d, err = blockdata.ParseDimensions(dims); err != nil {
					return err
				}
			}

			if cpuFile != "" {
				f, err := os.Create(cpuFile)
				if err != nil {
					return fmt.Errorf("failed to create CPU profile: %w", err)
				}
				defer f.Close()
				if err := pprof.StartCPUProfile(f); err != nil {
					return fmt.Errorf("failed to start CPU profile: %w", err)
				}
				defer pprof.StopCPUProfile()
			}

			log := logger.Get().With(zap.String("component", "bench"))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Dimensions: %s, %d passes\n", d, passes)
			fmt.Fprintf(out, "%-6s %16s %16s\n", "width", "get ops/s", "set ops/s")
			for _, w := range blockdata.Widths {
				r := benchWidth(w, d, passes)
				log.Debug("width measured",
					zap.String("width", w.String()),
					zap.Float64("get_ops", r.GetOps),
					zap.Float64("set_ops", r.SetOps),
					zap.Int("checksum", r.Checksum))
				fmt.Fprintf(out, "%-6s %16.0f %16.0f\n", w, r.GetOps, r.SetOps)
			}

			if memFile != "" {
				f, err := os.Create(memFile)
				if err != nil {
					return fmt.Errorf("failed to create memory profile: %w", err)
				}
				defer f.Close()
				runtime.GC()
				if err := pprof.WriteHeapProfile(f); err != nil {
					return fmt.Errorf("failed to write memory profile: %w", err)
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&dims, "dims", "", "Dimensions as XxYxZ (default chunk size)")
	f.IntVar(&passes, "passes", 64, "Full sweeps over the array per operation")
	f.StringVar(&cpuFile, "cpuprofile", "", "Write CPU profile to file")
	f.StringVar(&memFile, "memprofile", "", "Write memory profile to file")
	return cmd
}

// benchWidth sweeps a dense array of width w passes times with Set and then
// with Get. The checksum keeps the Get loop from being optimized away.
func benchWidth(w blockdata.Width, d blockdata.Dimensions, passes int) benchResult {
	if passes < 1 {
		passes = 1
	}
	arr := blockdata.NewDenseArray(w, d)
	mask := w.Max()
	ops := int64(d.Volume()) * int64(passes)

	set := metrics.NewThroughputTracker(w.String(), "set")
	start := time.Now()
	for p := 0; p < passes; p++ {
		for y := 0; y < d.SizeY; y++ {
			for z := 0; z < d.SizeZ; z++ {
				for x := 0; x < d.SizeX; x++ {
					arr.Set(x, y, z, (x^y^z^p)&mask)
				}
			}
		}
	}
	set.Increment(ops)
	setOps := rate(set, ops, time.Since(start))

	get := metrics.NewThroughputTracker(w.String(), "get")
	sum := 0
	start = time.Now()
	for p := 0; p < passes; p++ {
		for y := 0; y < d.SizeY; y++ {
			for z := 0; z < d.SizeZ; z++ {
				for x := 0; x < d.SizeX; x++ {
					sum += arr.Get(x, y, z)
				}
			}
		}
	}
	get.Increment(ops)
	getOps := rate(get, ops, time.Since(start))

	return benchResult{Width: w, GetOps: getOps, SetOps: setOps, Checksum: sum}
}

// rate publishes the tracker's window and falls back to the local
// measurement when the window was too short for the clock.
func rate(t *metrics.ThroughputTracker, ops int64, elapsed time.Duration) float64 {
	if r := t.GetAndReset(); r > 0 {
		return r
	}
	if elapsed <= 0 {
		return 0
	}
	return float64(ops) / elapsed.Seconds()
}
