package cmd

import (
	"fmt"
	"sort"

	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/AnyUserName/pixconv/internal/manifest"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <out_dir_or_manifest>",
	Short: "Display statistics for a batch output directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, args []string) error {
	m, _, err := manifest.Read(args[0])
	if err != nil {
		return err
	}
	printStats(m)
	return nil
}

func printStats(m *manifest.Manifest) {
	fmt.Println()
	fmt.Printf("  Manifest version: %d\n", m.Version)
	fmt.Printf("  Generated:        %s\n", m.GeneratedAt)
	fmt.Printf("  Target:           %s\n", m.Target)
	fmt.Printf("  Shrink factor:    %s\n", m.Factor)
	if m.BuildInfo != nil {
		fmt.Printf("  Workers:          %d\n", m.BuildInfo.Workers)
		if m.BuildInfo.Preset != "" {
			fmt.Printf("  Preset:           %s\n", m.BuildInfo.Preset)
		}
	}
	fmt.Println()

	s := m.Stats
	fmt.Printf("  Total assets:     %d\n", s.TotalAssets)
	fmt.Printf("  Input size:       %s\n", formatBytes(s.TotalInputBytes))
	fmt.Printf("  Output size:      %s\n", formatBytes(s.TotalOutputBytes))
	if s.TotalInputBytes > 0 {
		ratio := float64(s.TotalOutputBytes) / float64(s.TotalInputBytes) * 100
		fmt.Printf("  Compression:      %.1f%% of original\n", ratio)
	}
	fmt.Printf("  Kept source:      %d\n", s.FellBack)
	if s.Failed > 0 {
		fmt.Printf("  Failed:           %d\n", s.Failed)
	}
	fmt.Println()

	type formatStat struct {
		count int
		bytes int64
	}
	in := map[string]formatStat{}
	out := map[string]formatStat{}
	for _, a := range m.Assets {
		fs := in[a.Original.Format]
		fs.count++
		fs.bytes += a.Original.Size
		in[a.Original.Format] = fs

		fs = out[a.Output.Format]
		fs.count++
		fs.bytes += a.Output.Size
		out[a.Output.Format] = fs
	}

	printBreakdown := func(title string, stats map[string]formatStat) {
		fmt.Println(title)
		for _, f := range format.All() {
			if fs, ok := stats[f.String()]; ok {
				fmt.Printf("    %-8s  %4d files  %s\n", f, fs.count, formatBytes(fs.bytes))
			}
		}
		fmt.Println()
	}
	printBreakdown("  Source formats:", in)
	printBreakdown("  Output formats:", out)

	alpha := 0
	for _, a := range m.Assets {
		if a.Original.HasAlpha {
			alpha++
		}
	}
	fmt.Printf("  With alpha:       %d / %d assets\n", alpha, len(m.Assets))

	// Assets that did not get smaller.
	var warnings []string
	for key, a := range m.Assets {
		if a.FellBack {
			warnings = append(warnings, fmt.Sprintf("asset %q kept as %s: converted output was larger", key, a.Output.Format))
		}
	}
	sort.Strings(warnings)
	if len(warnings) > 0 {
		fmt.Println()
		fmt.Printf("  Warnings (%d):\n", len(warnings))
		for _, w := range warnings {
			fmt.Printf("    ⚠ %s\n", w)
		}
	}
	fmt.Println()
}
