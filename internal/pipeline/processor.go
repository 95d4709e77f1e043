package pipeline

import (
	"encoding/base64"
	"fmt"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/AnyUserName/tgimg-render/internal/hasher"
	"github.com/AnyUserName/tgimg-render/internal/manifest"
	"github.com/AnyUserName/tgimg-render/internal/mutation"
	"github.com/AnyUserName/tgimg-render/internal/placeholder"
	"github.com/AnyUserName/tgimg-render/internal/thumbhash"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// processResult holds the result of processing a single source image.
type processResult struct {
	key   string
	asset manifest.Asset
	err   error
}

// processImage handles a single source image: hash, thumbhash, URL sets.
func (p *Pipeline) processImage(src Source) processResult {
	result := processResult{key: src.Key}
	log := p.log.WithField("asset", src.Key)

	f, err := os.Open(src.AbsPath)
	if err != nil {
		result.err = fmt.Errorf("open %s: %w", src.RelPath, err)
		return result
	}
	contentHash, err := hasher.ContentHashReader(f, 16)
	f.Close()
	if err != nil {
		result.err = fmt.Errorf("hash %s: %w", src.RelPath, err)
		return result
	}

	img, err := imaging.Open(src.AbsPath, imaging.AutoOrientation(true))
	if err != nil {
		result.err = fmt.Errorf("decode %s: %w", src.RelPath, err)
		return result
	}

	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()
	if origW == 0 || origH == 0 {
		result.err = fmt.Errorf("decode %s: empty image", src.RelPath)
		return result
	}

	hash := base64.StdEncoding.EncodeToString(thumbhash.Encode(img))
	h, err := placeholder.NewHandle(hash)
	if err != nil {
		result.err = fmt.Errorf("thumbhash %s: %w", src.RelPath, err)
		return result
	}
	if p.cfg.Warm {
		if _, err := p.cfg.Decoder.Image(h); err != nil {
			log.WithError(err).Warn("placeholder warm-up failed")
		}
	}

	result.asset = manifest.Asset{
		SourceRef: p.cfg.SourcePrefix + src.RelPath,
		Original: manifest.OriginalInfo{
			Width:    origW,
			Height:   origH,
			Format:   src.Format,
			Size:     src.Size,
			HasAlpha: thumbhash.HasAlpha(img),
		},
		ContentHash:   contentHash,
		ThumbHash:     hash,
		PlaceholderID: h.ID,
		AspectRatio:   float64(origW) / float64(origH),
		HashAspect:    p.cfg.Decoder.AspectRatio(h),
		AvgColor:      p.cfg.Decoder.AverageColor(h).Hex(),
	}

	for _, w := range p.cfg.Profile.EffectiveWidths(origW) {
		height := int(math.Max(1, math.Round(float64(origH)*float64(w)/float64(origW))))

		set, err := mutation.Build(mutation.Request{
			SourceRef:       result.asset.SourceRef,
			Width:           float64(w),
			Height:          float64(height),
			DPIScaleFactors: p.cfg.Profile.DPIScaleFactors,
			Fit:             p.fit,
			BackgroundColor: p.cfg.BackgroundColor,
			ExtraMutation:   p.cfg.Profile.ExtraMutation,
			CDNDomain:       p.cfg.Domain,
			BaseURL:         p.cfg.BaseURL,
		})
		if err != nil {
			result.err = fmt.Errorf("urls %s@%d: %w", src.Key, w, err)
			return result
		}
		result.asset.Renditions = append(result.asset.Renditions, manifest.Rendition{
			Width:  w,
			Height: height,
			Fit:    p.fit.String(),
			URLs:   set,
		})
	}

	log.WithFields(logrus.Fields{
		"size":       fmt.Sprintf("%dx%d", origW, origH),
		"renditions": len(result.asset.Renditions),
	}).Debug("planned")
	return result
}
