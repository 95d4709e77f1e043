package cmd

import (
	"encoding/base64"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/AnyUserName/tgimg-render/internal/placeholder"
	"github.com/AnyUserName/tgimg-render/internal/thumbhash"
)

var hashURLSafe bool

var hashCmd = &cobra.Command{
	Use:   "hash <image>...",
	Short: "Compute thumbhash placeholders for local images",
	Long: `Decodes each image (png, jpeg, gif, webp, bmp, tiff), downsizes it to
at most 100x100 and prints its base64 thumbhash, ready for the thumbhash
prop of an image widget.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHash,
}

func init() {
	hashCmd.Flags().BoolVar(&hashURLSafe, "url-safe", false, "use the URL-safe base64 alphabet without padding")
	rootCmd.AddCommand(hashCmd)
}

func runHash(_ *cobra.Command, args []string) error {
	enc := base64.StdEncoding
	if hashURLSafe {
		enc = base64.RawURLEncoding
	}

	var failed int
	for _, path := range args {
		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			log.WithError(err).Errorf("open %s", path)
			failed++
			continue
		}
		raw := thumbhash.Encode(img)
		if raw == nil {
			log.Errorf("%s: empty image", path)
			failed++
			continue
		}
		hash := enc.EncodeToString(raw)
		h, err := placeholder.NewHandle(hash)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		logVerbose("%s: %dx%d, %d bytes, id %s", path, img.Bounds().Dx(), img.Bounds().Dy(), len(raw), h.ID)
		fmt.Printf("%s\t%s\n", hash, path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(args))
	}
	return nil
}
