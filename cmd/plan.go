package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/tgimg-render/internal/manifest"
	"github.com/AnyUserName/tgimg-render/internal/pipeline"
	"github.com/AnyUserName/tgimg-render/internal/profile"
)

var (
	planOut          string
	planProfile      string
	planWorkers      int
	planWidths       []int
	planFit          string
	planSourcePrefix string
	planWarm         bool
)

var planCmd = &cobra.Command{
	Use:   "plan <input_dir>",
	Short: "Plan placeholders and CDN URL sets for a directory of images",
	Long: `Scans input directory for images (png, jpg, jpeg, webp, gif, bmp, tiff),
computes thumbhash placeholders, average colours and aspect ratios, and
builds one URL set per profile width.  Originals are never rewritten; the
CDN performs every transformation.

The manifest is written as JSON, or YAML when --out ends in .yaml/.yml.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planOut, "out", "o", manifest.DefaultFileName, "manifest output path")
	planCmd.Flags().StringVarP(&planProfile, "profile", "p", "telegram-webview", "rendering profile")
	planCmd.Flags().IntVarP(&planWorkers, "workers", "w", 0, "parallel workers (0 = NumCPU)")
	planCmd.Flags().IntSliceVar(&planWidths, "widths", nil, "custom widths (overrides profile)")
	planCmd.Flags().StringVar(&planFit, "fit", "", "fit policy (overrides profile)")
	planCmd.Flags().StringVar(&planSourcePrefix, "source-prefix", "", "prefix turning relative paths into source refs")
	planCmd.Flags().BoolVar(&planWarm, "warm", false, "decode every preview into the placeholder cache")
	rootCmd.AddCommand(planCmd)
}

func runPlan(_ *cobra.Command, args []string) error {
	start := time.Now()

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	absInput, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve input path: %w", err)
	}

	// Load profile.  An explicit --dpr wins over the profile's densities.
	prof := profile.Get(planProfile)
	if planWidths != nil {
		prof.Widths = planWidths
	}
	if planFit != "" {
		prof.Fit = planFit
	}
	if dprFlag != "" {
		prof.DPIScaleFactors = cfg.Img.DPIScaleFactors
	}

	logVerbose("input:   %s", absInput)
	logVerbose("output:  %s", planOut)
	logVerbose("profile: %s (widths=%v, dpr=%v, fit=%s)", prof.Name, prof.Widths, prof.DPIScaleFactors, prof.Fit)

	p, err := pipeline.New(pipeline.Config{
		InputDir:        absInput,
		Profile:         prof,
		Domain:          cfg.Domain,
		BaseURL:         cfg.BaseURL,
		BackgroundColor: cfg.BackgroundColor,
		SourcePrefix:    planSourcePrefix,
		Workers:         planWorkers,
		Decoder:         cfg.Placeholders(),
		Warm:            planWarm,
		Log:             log,
	})
	if err != nil {
		return err
	}

	m, err := p.Run()
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	if dir := filepath.Dir(planOut); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := manifest.Write(m, planOut); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	printPlanReport(m, planOut, time.Since(start))
	return nil
}

func printPlanReport(m *manifest.Manifest, path string, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════╗")
	fmt.Println("║               tgimg plan complete                ║")
	fmt.Println("╚══════════════════════════════════════════════════╝")
	fmt.Println()

	stats := m.Stats
	fmt.Printf("  Assets:      %d\n", stats.TotalAssets)
	fmt.Printf("  Renditions:  %d\n", stats.TotalRenditions)
	fmt.Printf("  URLs:        %d\n", stats.TotalURLs)
	fmt.Printf("  Input size:  %s\n", formatBytes(stats.TotalInputBytes))
	if stats.WithAlpha > 0 {
		fmt.Printf("  With alpha:  %d\n", stats.WithAlpha)
	}
	fmt.Printf("  Time:        %s\n", elapsed.Round(time.Millisecond))

	if m.BuildInfo != nil {
		poolMB := float64(m.BuildInfo.Workers*m.BuildInfo.PoolEntryKB) / 1024
		fmt.Printf("  Workers:     %d  (pool ≈ %.1f MB)\n", m.BuildInfo.Workers, poolMB)
		if m.BuildInfo.PlaceholderDecodes > 0 {
			fmt.Printf("  Warmed:      %d previews\n", m.BuildInfo.PlaceholderDecodes)
		}
	}
	fmt.Println()

	// Top 10 heaviest originals.
	if len(m.Assets) > 0 {
		type assetSize struct {
			key   string
			size  int64
			color string
		}
		var items []assetSize
		for key, a := range m.Assets {
			items = append(items, assetSize{key, a.Original.Size, a.AvgColor})
		}
		sort.Slice(items, func(i, j int) bool {
			return items[i].size > items[j].size
		})
		n := len(items)
		if n > 10 {
			n = 10
		}
		fmt.Printf("  Top %d heaviest originals:\n", n)
		for _, it := range items[:n] {
			fmt.Printf("    %-40s %8s  %s\n", truncKey(it.key, 40), formatBytes(it.size), it.color)
		}
		fmt.Println()
	}

	fmt.Printf("  Manifest:    %s\n", path)
	fmt.Println()
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func truncKey(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max+3:]
}
