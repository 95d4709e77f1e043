package cmd

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/AnyUserName/tgimg-render/internal/placeholder"
	"github.com/AnyUserName/tgimg-render/internal/thumbhash"
)

var (
	placeholderOut   string
	placeholderWidth int
)

var placeholderCmd = &cobra.Command{
	Use:   "placeholder <thumbhash>",
	Short: "Decode a thumbhash: average colour, aspect ratio and preview",
	Long: `Decodes a base64 thumbhash (standard or URL-safe alphabet).

Prints the average colour and approximate aspect ratio.  With --out the
blurred preview is written to that path (format from the extension,
optionally upscaled with --width); otherwise its data URL is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlaceholder,
}

func init() {
	placeholderCmd.Flags().StringVarP(&placeholderOut, "out", "o", "", "write the preview PNG to this path")
	placeholderCmd.Flags().IntVar(&placeholderWidth, "width", 0, "resize the written preview to this width")
	rootCmd.AddCommand(placeholderCmd)
}

func runPlaceholder(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	h, err := placeholder.NewHandle(args[0])
	if err != nil {
		return err
	}
	dec := cfg.Placeholders()
	avg := dec.AverageColor(h)

	fmt.Printf("  ID:           %s\n", h.ID)
	fmt.Printf("  Bytes:        %d\n", len(h.Raw))
	fmt.Printf("  Avg colour:   %s  %s\n", avg.Hex(), avg.CSS())
	fmt.Printf("  Aspect ratio: %.4f\n", dec.AspectRatio(h))

	if placeholderOut != "" {
		var img image.Image
		if img, err = thumbhash.ToImage(h.Raw); err != nil {
			return err
		}
		if placeholderWidth > 0 {
			img = imaging.Resize(img, placeholderWidth, 0, imaging.Linear)
		}
		if err := imaging.Save(img, placeholderOut); err != nil {
			return fmt.Errorf("write %s: %w", placeholderOut, err)
		}
		fmt.Printf("  Preview:      %s (%dx%d)\n", placeholderOut, img.Bounds().Dx(), img.Bounds().Dy())
		return nil
	}

	url, err := dec.Image(h)
	if err != nil {
		return err
	}
	if !verbose && len(url) > 96 {
		url = url[:96] + "…"
	}
	fmt.Printf("  Preview:      %s\n", strings.TrimSpace(url))
	return nil
}
