// Package thumbhash implements the ThumbHash placeholder format: a 20–30
// byte DCT summary of an image from which an average colour, an approximate
// aspect ratio and a blurred 32px preview can be recovered.  Based on Evan
// Wallace's reference implementation; the byte layout is bit-compatible with
// it so hashes produced by other encoders decode here.
//
// Performance notes:
//   - sources are box-downscaled to ≤100px with imaging before the DCT
//   - sync.Pool holds the ~320 KB LPQA work buffers → steady-state allocations
//     are the returned hash and the AC slices
//   - deterministic: identical input → identical output regardless of parallelism
package thumbhash

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/disintegration/imaging"
)

const maxThumbDim = 100

// ErrTooLarge is returned by EncodeRGBA for rasters above 100×100.
var ErrTooLarge = errors.New("thumbhash: raster exceeds 100x100")

// ─── work buffer + pool ──────────────────────────────────────

type workBuf struct {
	l, p, q, a [maxThumbDim * maxThumbDim]float64
	fx         [maxThumbDim]float64
}

var wbPool = sync.Pool{New: func() any { return new(workBuf) }}

// ─── public API ────────────────────────────────────────────────

// Encode generates a ThumbHash from any image.Image.  Empty images yield nil.
func Encode(img image.Image) []byte {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil
	}
	// Fit never upscales; it clones small images into a packed NRGBA.
	small := imaging.Fit(img, maxThumbDim, maxThumbDim, imaging.Box)
	w, h := small.Bounds().Dx(), small.Bounds().Dy()
	hash, err := EncodeRGBA(w, h, small.Pix)
	if err != nil {
		// Fit guarantees ≤100px and a packed buffer.
		panic(err)
	}
	return hash
}

// EncodeRGBA encodes a packed, non-premultiplied RGBA raster of at most
// 100×100 pixels.
func EncodeRGBA(w, h int, rgba []byte) ([]byte, error) {
	if w <= 0 || h <= 0 || w > maxThumbDim || h > maxThumbDim {
		return nil, fmt.Errorf("%w: got %dx%d", ErrTooLarge, w, h)
	}
	n := w * h
	if len(rgba) < n*4 {
		return nil, fmt.Errorf("thumbhash: raster holds %d bytes, need %d", len(rgba), n*4)
	}

	// Average colour weighted by alpha.
	var avgR, avgG, avgB, avgA float64
	for i, j := 0, 0; i < n; i, j = i+1, j+4 {
		alpha := float64(rgba[j+3]) / 255
		avgR += alpha / 255 * float64(rgba[j])
		avgG += alpha / 255 * float64(rgba[j+1])
		avgB += alpha / 255 * float64(rgba[j+2])
		avgA += alpha
	}
	if avgA > 0 {
		avgR /= avgA
		avgG /= avgA
		avgB /= avgA
	}

	hasAlpha := avgA < float64(n)
	lLimit := 7 // fewer luminance terms when alpha needs room
	if hasAlpha {
		lLimit = 5
	}
	maxWH := imax(w, h)
	lx := max1(roundInt(float64(lLimit*w) / float64(maxWH)))
	ly := max1(roundInt(float64(lLimit*h) / float64(maxWH)))

	wb := wbPool.Get().(*workBuf)
	defer wbPool.Put(wb)
	l, p, q, a := wb.l[:n], wb.p[:n], wb.q[:n], wb.a[:n]

	// RGBA → LPQA, composited over the average colour.
	for i, j := 0, 0; i < n; i, j = i+1, j+4 {
		alpha := float64(rgba[j+3]) / 255
		r := avgR*(1-alpha) + alpha/255*float64(rgba[j])
		g := avgG*(1-alpha) + alpha/255*float64(rgba[j+1])
		b := avgB*(1-alpha) + alpha/255*float64(rgba[j+2])
		l[i] = (r + g + b) / 3
		p[i] = (r+g)/2 - b
		q[i] = r - g
		a[i] = alpha
	}

	fx := wb.fx[:w]
	lDC, lAC, lScale := encodeChannel(l, w, h, imax(3, lx), imax(3, ly), fx)
	pDC, pAC, pScale := encodeChannel(p, w, h, 3, 3, fx)
	qDC, qAC, qScale := encodeChannel(q, w, h, 3, 3, fx)
	var (
		aDC, aScale float64
		aAC         []float64
	)
	if hasAlpha {
		aDC, aAC, aScale = encodeChannel(a, w, h, 5, 5, fx)
	}

	// Bytes 0–2: header24, little-endian
	//   bits  0– 5  lDC    round(63·lDC)
	//   bits  6–11  pDC    round(31.5 + 31.5·pDC)
	//   bits 12–17  qDC    round(31.5 + 31.5·qDC)
	//   bits 18–22  lScale round(31·lScale)
	//   bit  23     hasAlpha
	// Bytes 3–4: header16, little-endian
	//   bits  0– 2  ly if landscape else lx
	//   bits  3– 8  pScale round(63·pScale)
	//   bits  9–14  qScale round(63·qScale)
	//   bit  15     isLandscape
	// Byte 5 (alpha only): aDC (low nibble), aScale (high nibble).
	// Then 4-bit AC nibbles, low nibble first: L, P, Q[, A].
	isLandscape := w > h
	header24 := uint32(roundInt(63*lDC)) |
		uint32(roundInt(31.5+31.5*pDC))<<6 |
		uint32(roundInt(31.5+31.5*qDC))<<12 |
		uint32(roundInt(31*lScale))<<18 |
		boolU32(hasAlpha)<<23
	dim := lx
	if isLandscape {
		dim = ly
	}
	header16 := uint32(dim) |
		uint32(roundInt(63*pScale))<<3 |
		uint32(roundInt(63*qScale))<<9 |
		boolU32(isLandscape)<<15

	channels := [][]float64{lAC, pAC, qAC}
	if hasAlpha {
		channels = append(channels, aAC)
	}
	totalAC := 0
	for _, ac := range channels {
		totalAC += len(ac)
	}

	acStart := 5
	if hasAlpha {
		acStart = 6
	}
	hash := make([]byte, acStart+(totalAC+1)/2)
	hash[0] = byte(header24)
	hash[1] = byte(header24 >> 8)
	hash[2] = byte(header24 >> 16)
	hash[3] = byte(header16)
	hash[4] = byte(header16 >> 8)
	if hasAlpha {
		hash[5] = byte(roundInt(15*aDC) | roundInt(15*aScale)<<4)
	}

	idx := 0
	for _, ac := range channels {
		for _, f := range ac {
			hash[acStart+idx>>1] |= byte(roundInt(15*f)) << ((idx & 1) << 2)
			idx++
		}
	}
	return hash, nil
}

// encodeChannel returns the DC term, the AC terms normalised to [0, 1] and
// the AC scale.  Coefficients form a triangle: cx·ny < nx·(ny−cy).
func encodeChannel(ch []float64, w, h, nx, ny int, fx []float64) (float64, []float64, float64) {
	var (
		dc, scale float64
		ac        []float64
	)
	wh := float64(w * h)
	for cy := 0; cy < ny; cy++ {
		for cx := 0; cx*ny < nx*(ny-cy); cx++ {
			for x := 0; x < w; x++ {
				fx[x] = math.Cos(math.Pi / float64(w) * float64(cx) * (float64(x) + 0.5))
			}
			var f float64
			for y := 0; y < h; y++ {
				fy := math.Cos(math.Pi / float64(h) * float64(cy) * (float64(y) + 0.5))
				row := ch[y*w : y*w+w]
				for x, v := range row {
					f += v * fx[x] * fy
				}
			}
			f /= wh
			if cx > 0 || cy > 0 {
				ac = append(ac, f)
				scale = math.Max(scale, math.Abs(f))
			} else {
				dc = f
			}
		}
	}
	if scale > 0 {
		for i := range ac {
			ac[i] = 0.5 + 0.5/scale*ac[i]
		}
	}
	return dc, ac, scale
}

// ─── HasAlpha ──────────────────────────────────────────────────

// HasAlpha reports whether any pixel is less than fully opaque.
func HasAlpha(img image.Image) bool {
	switch src := img.(type) {
	case *image.NRGBA:
		for i := 3; i < len(src.Pix); i += 4 {
			if src.Pix[i] < 255 {
				return true
			}
		}
		return false
	case *image.RGBA:
		for i := 3; i < len(src.Pix); i += 4 {
			if src.Pix[i] < 255 {
				return true
			}
		}
		return false
	case *image.YCbCr, *image.Gray:
		return false
	default:
		bounds := img.Bounds()
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				_, _, _, a := img.At(x, y).RGBA()
				if a < 0xffff {
					return true
				}
			}
		}
		return false
	}
}

// ─── helpers ──────────────────────────────────────────────────

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

func imax(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
