package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/tgimg-render/internal/manifest"
)

var statsCmd = &cobra.Command{
	Use:   "stats <dir_or_manifest>",
	Short: "Display statistics for a render manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, args []string) error {
	m, err := manifest.Read(args[0])
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
	fmt.Printf("  Profile:          %s\n", m.Profile)
	fmt.Printf("  Domain:           %s\n", m.Domain)
	if m.BuildInfo != nil {
		poolMB := float64(m.BuildInfo.Workers*m.BuildInfo.PoolEntryKB) / 1024
		fmt.Printf("  Workers:          %d\n", m.BuildInfo.Workers)
		fmt.Printf("  Pool footprint:   %d × %d KB ≈ %.1f MB\n",
			m.BuildInfo.Workers, m.BuildInfo.PoolEntryKB, poolMB)
	}
	fmt.Println()

	s := m.Stats
	fmt.Printf("  Total assets:     %d\n", s.TotalAssets)
	fmt.Printf("  Total renditions: %d\n", s.TotalRenditions)
	fmt.Printf("  Total URLs:       %d\n", s.TotalURLs)
	fmt.Printf("  Input size:       %s\n", formatBytes(s.TotalInputBytes))
	fmt.Println()

	// Per-density breakdown.
	densityStats := map[string]int{}
	for _, a := range m.Assets {
		for _, r := range a.Renditions {
			for _, v := range r.URLs.Variants {
				densityStats[v.Descriptor]++
			}
		}
	}
	var densities []string
	for d := range densityStats {
		densities = append(densities, d)
	}
	sort.Strings(densities)
	fmt.Println("  Density breakdown:")
	for _, d := range densities {
		fmt.Printf("    %-6s  %4d URLs\n", d, densityStats[d])
	}
	fmt.Println()

	// Per-width breakdown.
	widthStats := map[int]int{}
	for _, a := range m.Assets {
		for _, r := range a.Renditions {
			widthStats[r.Width]++
		}
	}
	var widths []int
	for w := range widthStats {
		widths = append(widths, w)
	}
	sort.Ints(widths)
	fmt.Println("  Width breakdown:")
	for _, w := range widths {
		fmt.Printf("    %5dpx  %4d renditions\n", w, widthStats[w])
	}
	fmt.Println()

	// Placeholder coverage and payload.
	var covered, hashBytes int
	for _, a := range m.Assets {
		if a.ThumbHash != "" {
			covered++
			hashBytes += len(a.ThumbHash)
		}
	}
	fmt.Printf("  ThumbHash coverage: %d / %d assets", covered, len(m.Assets))
	if covered > 0 {
		fmt.Printf("  (avg %d chars)", hashBytes/covered)
	}
	fmt.Println()

	// Warnings.
	var warnings []string
	for key, a := range m.Assets {
		if len(a.Renditions) == 0 {
			warnings = append(warnings, fmt.Sprintf("asset %q has no renditions", key))
		}
		if a.ThumbHash == "" {
			warnings = append(warnings, fmt.Sprintf("asset %q missing thumbhash", key))
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
