package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/tgimg-render/internal/mutation"
)

var (
	urlWidth  float64
	urlHeight float64
	urlFit    string
	urlExtra  string
	urlBg     string
	urlJSON   bool
)

var urlCmd = &cobra.Command{
	Use:   "url <source_ref>",
	Short: "Build CDN transformation URLs for a source",
	Long: `Prints the primary URL and one URL per DPI scale factor.

source_ref is a CDN file id, or an external URL starting with https://,
./, ../, / or // (relative ones resolve against --base-url).`,
	Example: `  tgimg url file-id --domain cdn.myapp.com -W 128 -H 128
  tgimg url https://myapp.com/a.jpg --domain cdn.myapp.com -W 320 --fit contain --json`,
	Args: cobra.ExactArgs(1),
	RunE: runURL,
}

func init() {
	urlCmd.Flags().Float64VarP(&urlWidth, "width", "W", 0, "target width in CSS pixels")
	urlCmd.Flags().Float64VarP(&urlHeight, "height", "H", 0, "target height in CSS pixels")
	urlCmd.Flags().StringVar(&urlFit, "fit", "cover", "fit policy: cover or contain")
	urlCmd.Flags().StringVar(&urlExtra, "extra", "", "extra mutations appended after resize")
	urlCmd.Flags().StringVar(&urlBg, "bg", "", "background colour for cover padding (default from config)")
	urlCmd.Flags().BoolVar(&urlJSON, "json", false, "print the URL set as JSON")
	rootCmd.AddCommand(urlCmd)
}

func runURL(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	fit, err := mutation.ParseFit(urlFit)
	if err != nil {
		return err
	}
	bg := cfg.BackgroundColor
	if urlBg != "" {
		bg = urlBg
	}

	set, err := mutation.Build(mutation.Request{
		SourceRef:       args[0],
		Width:           urlWidth,
		Height:          urlHeight,
		DPIScaleFactors: cfg.Img.DPIScaleFactors,
		Fit:             fit,
		BackgroundColor: bg,
		ExtraMutation:   urlExtra,
		CDNDomain:       cfg.Domain,
		BaseURL:         cfg.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}
	seg, _ := mutation.PathSegment(args[0], cfg.BaseURL)
	logVerbose("external=%v segment=%s", mutation.IsExternal(args[0]), seg)

	if urlJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(set)
	}

	fmt.Println(set.Primary)
	for _, variant := range set.Variants {
		fmt.Printf("  %-5s %s\n", variant.Descriptor, variant.URL)
	}
	return nil
}
