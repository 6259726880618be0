package main

import (
	"fmt"
	"os"
	"runtime"
	"sort"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/voxpack/pkg/blockdata"
	_ "github.com/ajitpratap0/voxpack/pkg/deflate" // registers sparse and compressed variants
	"github.com/ajitpratap0/voxpack/pkg/logger"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := newRootCommand()
	err := root.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "voxpack",
		Short: "voxpack - packed per-voxel attribute arrays",
		Long: `voxpack stores small integer attributes for every voxel of a chunk in
bit-packed arrays of 1, 2, 4, 8 or 16 bits, and compacts idle arrays by
collapsing uniform rows or compressing them whole.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "Path to a YAML configuration file")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "voxpack v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(newVariantsCommand(), newInspectCommand(), newBenchCommand())
	return root
}

type variantInfo struct {
	Tag  string `json:"tag"`
	Bits int    `json:"bits"`
}

func newVariantsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "variants",
		Short: "List registered array variants",
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := listVariants(blockdata.DefaultRegistry())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}
			fmt.Fprintln(out, "Registered array variants:")
			for _, v := range infos {
				fmt.Fprintf(out, "  - %-14s %2d bits\n", v.Tag, v.Bits)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the list as JSON")
	return cmd
}

// listVariants builds a one-voxel array of every tag to report its width.
func listVariants(r *blockdata.Registry) ([]variantInfo, error) {
	tags := r.Tags()
	infos := make([]variantInfo, 0, len(tags))
	for _, tag := range tags {
		a, err := r.CreateSized(tag, blockdata.NewDimensions(1, 1, 1))
		if err != nil {
			return nil, err
		}
		infos = append(infos, variantInfo{Tag: string(tag), Bits: a.ElementSizeInBits()})
	}
	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].Bits != infos[j].Bits {
			return infos[i].Bits < infos[j].Bits
		}
		return infos[i].Tag < infos[j].Tag
	})
	return infos, nil
}
