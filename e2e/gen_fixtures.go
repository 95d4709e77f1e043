//go:build ignore

// gen_fixtures creates a small source tree plus config for a smoke run of
// `tgimg plan` / `validate` / `render`.
// Usage: go run gen_fixtures.go <output_dir>
package main

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

const sampleConfig = `domain: cdn.myapp.com
base_url: https://myapp.com/shop/
background_color: transparent
img:
  dpi_scale_factors: [1, 2, 3]
thumbhash_img:
  cache_size: 100
  intersect_root_margin_px: 200
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]
	src := filepath.Join(dir, "src")
	must(os.MkdirAll(filepath.Join(src, "cards"), 0o755))

	// Wide banner exercises width-only renditions and aspect derivation.
	save(filepath.Join(src, "banner.jpg"), gradient(960, 320))

	// Cards smaller than every profile width fall back to their own width.
	for i := 1; i <= 3; i++ {
		name := fmt.Sprintf("card-%d.png", i)
		save(filepath.Join(src, "cards", name), framed(200, 150, uint8(i*60)))
	}

	// Portrait with alpha sets the thumbhash alpha bit.
	save(filepath.Join(src, "logo.png"), fadeOut(120, 180))

	must(os.WriteFile(filepath.Join(dir, "tgimg.yaml"), []byte(sampleConfig), 0o644))

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created 5 images and tgimg.yaml in %s\n", dir)
}

func gradient(w, h int) *image.NRGBA {
	img := imaging.New(w, h, color.NRGBA{B: 128, A: 255})
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func framed(w, h int, base uint8) *image.NRGBA {
	img := imaging.New(w, h, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	inner := imaging.New(w-8, h-8, color.NRGBA{R: base, G: base + 40, B: base + 80, A: 255})
	return imaging.Paste(img, inner, image.Pt(4, 4))
}

func fadeOut(w, h int) *image.NRGBA {
	img := imaging.New(w, h, color.NRGBA{})
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 220, G: 60, B: 30, A: uint8(255 - y*255/h)})
		}
	}
	return img
}

func save(path string, img image.Image) {
	must(imaging.Save(img, path, imaging.JPEGQuality(85)))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
