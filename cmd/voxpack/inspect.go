package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/voxpack/pkg/blockdata"
	"github.com/ajitpratap0/voxpack/pkg/deflate"
	"github.com/ajitpratap0/voxpack/pkg/errors"
	"github.com/ajitpratap0/voxpack/pkg/logger"
	"github.com/ajitpratap0/voxpack/pkg/metrics"
)

// Fill patterns understood by inspect.
const (
	PatternEmpty   = "empty"
	PatternTerrain = "terrain"
	PatternChecker = "checker"
	PatternNoise   = "noise"
)

// Patterns lists the fill patterns in help order.
var Patterns = []string{PatternEmpty, PatternTerrain, PatternChecker, PatternNoise}

type inspectOptions struct {
	variant     string
	dims        string
	pattern     string
	seed        uint64
	chunks      int
	asJSON      bool
	dumpMetrics bool
}

// arrayReport describes one array before and after a deflation pass.
type arrayReport struct {
	Variant         string `json:"variant"`
	Dimensions      string `json:"dimensions"`
	Bits            int    `json:"bits"`
	Pattern         string `json:"pattern"`
	Strategy        string `json:"strategy"`
	Result          string `json:"result"`
	Outcome         string `json:"outcome"`
	BytesBefore     int    `json:"bytes_before"`
	BytesAfter      int    `json:"bytes_after"`
	SerializedBytes int    `json:"serialized_bytes"`
	UniformRows     int    `json:"uniform_rows,omitempty"`
	Algorithm       string `json:"algorithm,omitempty"`
	PayloadBytes    int    `json:"payload_bytes,omitempty"`
	Verified        bool   `json:"verified"`
}

// batchReport totals a multi-chunk run.
type batchReport struct {
	Chunks          int   `json:"chunks"`
	ArraysProcessed int64 `json:"arrays_processed"`
	BytesSaved      int64 `json:"bytes_saved"`
	Replaced        int   `json:"replaced"`
}

type inspectReport struct {
	Array    arrayReport            `json:"array"`
	Batch    *batchReport           `json:"batch,omitempty"`
	Counters map[string]interface{} `json:"counters"`
}

func newInspectCommand() *cobra.Command {
	opts := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Fill an array with a pattern, deflate it and report the result",
		Long: `Inspect builds an array of the chosen variant, fills it with a synthetic
pattern, runs the configured deflation strategy over it and reports the
variant it ends up as, its estimated memory before and after, and its
serialized size. The result is read back through the variant registry and
compared voxel by voxel with the original.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			if opts.variant == "" {
				opts.variant = cfg.Chunk.DefaultVariant
			}
			dims := cfg.Chunk.Dimensions()
			if opts.dims != "" {
				if dims, err = blockdata.ParseDimensions(opts.dims); err != nil {
					return err
				}
			}
			pass, err := deflate.NewPassFromConfig(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			rep, err := runInspect(ctx, blockdata.DefaultRegistry(), pass, dims, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(rep); err != nil {
					return err
				}
			} else {
				printReport(out, rep)
			}
			if opts.dumpMetrics {
				return writeMetrics(out, prometheus.DefaultGatherer)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.variant, "variant", "", "Variant tag to build (default chunk.default_variant)")
	f.StringVar(&opts.dims, "dims", "", "Dimensions as XxYxZ (default chunk size)")
	f.StringVar(&opts.pattern, "pattern", PatternTerrain, "Fill pattern: empty, terrain, checker or noise")
	f.Uint64Var(&opts.seed, "seed", 1, "Seed for the noise pattern")
	f.IntVar(&opts.chunks, "chunks", 1, "Number of arrays to deflate as one batch")
	f.BoolVar(&opts.asJSON, "json", false, "Print the report as JSON")
	f.BoolVar(&opts.dumpMetrics, "metrics", false, "Append the Prometheus metrics in text format")
	f.String("strategy", "", "Deflation strategy: none, rows or compressed")
	f.String("algorithm", "", "Compression algorithm for the compressed strategy")
	f.String("level", "", "Compression level")
	f.Int("workers", 0, "Deflation workers for batches (0 = NumCPU)")
	return cmd
}

func runInspect(ctx context.Context, reg *blockdata.Registry, pass *deflate.Pass, dims blockdata.Dimensions, opts *inspectOptions) (*inspectReport, error) {
	chunks := opts.chunks
	if chunks < 1 {
		chunks = 1
	}
	log := logger.WithContext(context.WithValue(ctx, logger.VariantKey, opts.variant)).
		With(zap.String("component", "inspect"))

	originals := make([]blockdata.Array, chunks)
	for i := range originals {
		arr, err := reg.CreateSized(blockdata.Tag(opts.variant), dims)
		if err != nil {
			return nil, err
		}
		if err := fillPattern(arr, opts.pattern, opts.seed+uint64(i)); err != nil {
			return nil, err
		}
		originals[i] = arr
	}
	// The pass works on copies so originals stay comparable afterwards.
	inputs := make([]blockdata.Array, chunks)
	for i, a := range originals {
		inputs[i] = a.Copy()
	}

	var results []blockdata.Array
	if chunks == 1 {
		results = []blockdata.Array{pass.Run(inputs[0])}
	} else {
		var err error
		if results, err = pass.RunAll(ctx, inputs); err != nil {
			return nil, err
		}
	}

	first, err := describe(reg, originals[0], results[0], inputs[0], opts.pattern, pass.Strategy())
	if err != nil {
		return nil, err
	}
	rep := &inspectReport{Array: *first, Counters: pass.Counters()}
	if chunks > 1 {
		processed, saved := pass.GetMetrics()
		b := &batchReport{Chunks: chunks, ArraysProcessed: processed, BytesSaved: saved}
		for i, r := range results {
			if r != inputs[i] {
				b.Replaced++
			}
		}
		rep.Batch = b
	}
	log.Info("inspection finished",
		zap.String("result", rep.Array.Result),
		zap.Int("bytes_before", rep.Array.BytesBefore),
		zap.Int("bytes_after", rep.Array.BytesAfter),
		zap.Int("chunks", chunks))
	return rep, nil
}

// describe reports on result, the array input turned into. Payload details
// are read before the round trip, which may inflate compressed arrays.
func describe(reg *blockdata.Registry, original, result, input blockdata.Array, pattern, strategy string) (*arrayReport, error) {
	rep := &arrayReport{
		Variant:     string(original.Tag()),
		Dimensions:  original.Dimensions().String(),
		Bits:        original.ElementSizeInBits(),
		Pattern:     pattern,
		Strategy:    strategy,
		Result:      string(result.Tag()),
		Outcome:     metrics.OutcomeDeclined,
		BytesBefore: input.EstimatedMemoryConsumptionInBytes(),
		BytesAfter:  result.EstimatedMemoryConsumptionInBytes(),
	}
	if result != input {
		rep.Outcome = metrics.OutcomeReplaced
	}
	switch r := result.(type) {
	case *deflate.SparseArray:
		rep.UniformRows = r.UniformRows()
	case *deflate.CompressedArray:
		rep.Algorithm = string(r.Algorithm())
		rep.PayloadBytes = r.PayloadSize()
	}

	var buf bytes.Buffer
	if err := reg.Serialize(result, &buf); err != nil {
		return nil, err
	}
	rep.SerializedBytes = buf.Len()
	back, err := reg.Deserialize(result.Tag(), &buf)
	if err != nil {
		return nil, err
	}
	rep.Verified = sameContents(original, back)
	return rep, nil
}

func sameContents(a, b blockdata.Array) bool {
	d := a.Dimensions()
	if d != b.Dimensions() {
		return false
	}
	for y := 0; y < d.SizeY; y++ {
		for z := 0; z < d.SizeZ; z++ {
			for x := 0; x < d.SizeX; x++ {
				if a.Get(x, y, z) != b.Get(x, y, z) {
					return false
				}
			}
		}
	}
	return true
}

// fillPattern writes a synthetic pattern through the checked helpers.
//
//	terrain: the bottom quarter solid at the width's maximum, two mixed
//	         layers above it, air everywhere else
//	checker: alternating 0 and 1 in all three axes
//	noise:   xorshift values across the full range
func fillPattern(arr blockdata.Array, pattern string, seed uint64) error {
	d := arr.Dimensions()
	top := 1<<arr.ElementSizeInBits() - 1
	ground := d.SizeY / 4

	var value func(x, y, z int) int
	switch pattern {
	case PatternEmpty:
		return nil
	case PatternTerrain:
		value = func(x, y, z int) int {
			switch {
			case y < ground:
				return top
			case y < ground+2:
				return (x + z) % (top + 1)
			}
			return 0
		}
	case PatternChecker:
		value = func(x, y, z int) int { return (x + y + z) % 2 }
	case PatternNoise:
		state := seed | 1
		value = func(x, y, z int) int {
			state ^= state << 13
			state ^= state >> 7
			state ^= state << 17
			return int(state % uint64(top+1))
		}
	default:
		return errors.New(errors.ErrorTypeConfig, "unknown fill pattern").
			WithDetail("pattern", pattern).
			WithDetail("supported", Patterns)
	}

	for y := 0; y < d.SizeY; y++ {
		for z := 0; z < d.SizeZ; z++ {
			for x := 0; x < d.SizeX; x++ {
				v := value(x, y, z)
				if v == 0 {
					continue
				}
				if _, err := blockdata.Set(arr, x, y, z, v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func printReport(w io.Writer, rep *inspectReport) {
	a := rep.Array
	fmt.Fprintf(w, "Variant:      %s (%d bits, %s)\n", a.Variant, a.Bits, a.Dimensions)
	fmt.Fprintf(w, "Pattern:      %s\n", a.Pattern)
	fmt.Fprintf(w, "Strategy:     %s\n", a.Strategy)
	fmt.Fprintf(w, "Result:       %s (%s)\n", a.Result, a.Outcome)
	fmt.Fprintf(w, "Memory:       %d -> %d bytes\n", a.BytesBefore, a.BytesAfter)
	fmt.Fprintf(w, "Serialized:   %d bytes\n", a.SerializedBytes)
	if a.UniformRows > 0 {
		fmt.Fprintf(w, "Uniform rows: %d\n", a.UniformRows)
	}
	if a.Algorithm != "" {
		fmt.Fprintf(w, "Payload:      %d bytes (%s)\n", a.PayloadBytes, a.Algorithm)
	}
	fmt.Fprintf(w, "Verified:     %t\n", a.Verified)
	if b := rep.Batch; b != nil {
		fmt.Fprintf(w, "Batch:        %d chunks, %d replaced, %d bytes saved\n", b.Chunks, b.Replaced, b.BytesSaved)
	}
	keys := make([]string, 0, len(rep.Counters))
	for k := range rep.Counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(w, "Pass counters:")
	for _, k := range keys {
		fmt.Fprintf(w, "  %-20s %v\n", k, rep.Counters[k])
	}
}

// writeMetrics prints the voxpack metric families in the Prometheus text
// exposition format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "voxpack_") {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

func unknownDefaultVariant(tag string) error {
	return errors.New(errors.ErrorTypeConfig, "chunk.default_variant is not a registered variant").
		WithDetail("field", "chunk.default_variant").
		WithDetail("tag", tag)
}
