package thumbhash

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
)

// ErrInvalidHash reports a hash too short for the layout its header declares.
var ErrInvalidHash = errors.New("thumbhash: invalid hash")

// previewDim is the long edge of decoded previews.
const previewDim = 32

// RGBA is a colour with channels in [0, 1].
type RGBA struct {
	R, G, B, A float64
}

type header struct {
	lDC, pDC, qDC  float64
	lScale         float64
	pScale, qScale float64
	aDC, aScale    float64
	hasAlpha       bool
	isLandscape    bool
	lx, ly         int
}

func parseHeader(hash []byte) (header, error) {
	if len(hash) < 5 {
		return header{}, fmt.Errorf("%w: %d bytes", ErrInvalidHash, len(hash))
	}
	h24 := uint32(hash[0]) | uint32(hash[1])<<8 | uint32(hash[2])<<16
	h16 := uint32(hash[3]) | uint32(hash[4])<<8

	hd := header{
		lDC:         float64(h24&63) / 63,
		pDC:         float64((h24>>6)&63)/31.5 - 1,
		qDC:         float64((h24>>12)&63)/31.5 - 1,
		lScale:      float64((h24>>18)&31) / 31,
		hasAlpha:    (h24>>23)&1 == 1,
		pScale:      float64((h16>>3)&63) / 63,
		qScale:      float64((h16>>9)&63) / 63,
		isLandscape: (h16>>15)&1 == 1,
		aDC:         1,
	}
	if hd.hasAlpha {
		if len(hash) < 6 {
			return header{}, fmt.Errorf("%w: alpha header missing", ErrInvalidHash)
		}
		hd.aDC = float64(hash[5]&15) / 15
		hd.aScale = float64(hash[5]>>4) / 15
	}

	lMax := 7
	if hd.hasAlpha {
		lMax = 5
	}
	dim := int(h16 & 7)
	if hd.isLandscape {
		hd.lx, hd.ly = lMax, dim
	} else {
		hd.lx, hd.ly = dim, lMax
	}
	return hd, nil
}

// Validate checks that hash carries every byte its header declares.
func Validate(hash []byte) error {
	hd, err := parseHeader(hash)
	if err != nil {
		return err
	}
	need := hd.acStart() + (hd.acCount()+1)/2
	if len(hash) < need {
		return fmt.Errorf("%w: %d bytes, header declares %d", ErrInvalidHash, len(hash), need)
	}
	return nil
}

func (hd header) acStart() int {
	if hd.hasAlpha {
		return 6
	}
	return 5
}

func (hd header) acCount() int {
	n := triangle(imax(3, hd.lx), imax(3, hd.ly)) + 2*triangle(3, 3)
	if hd.hasAlpha {
		n += triangle(5, 5)
	}
	return n
}

// triangle counts the AC terms of an nx×ny triangular DCT block.
func triangle(nx, ny int) int {
	n := 0
	for cy := 0; cy < ny; cy++ {
		for cx := 0; cx*ny < nx*(ny-cy); cx++ {
			n++
		}
	}
	return n - 1
}

// AverageRGBA extracts the average colour straight from the header.
func AverageRGBA(hash []byte) (RGBA, error) {
	hd, err := parseHeader(hash)
	if err != nil {
		return RGBA{}, err
	}
	r, g, b := lpqToRGB(hd.lDC, hd.pDC, hd.qDC)
	return RGBA{R: clamp01(r), G: clamp01(g), B: clamp01(b), A: hd.aDC}, nil
}

// ApproximateAspectRatio returns width/height as encoded in the header.
func ApproximateAspectRatio(hash []byte) (float64, error) {
	hd, err := parseHeader(hash)
	if err != nil {
		return 0, err
	}
	if hd.ly == 0 {
		return 0, fmt.Errorf("%w: zero height term", ErrInvalidHash)
	}
	return float64(hd.lx) / float64(hd.ly), nil
}

// ToRGBA decodes hash into a packed non-premultiplied RGBA raster whose long
// edge is 32px.
func ToRGBA(hash []byte) (int, int, []byte, error) {
	if err := Validate(hash); err != nil {
		return 0, 0, nil, err
	}
	hd, _ := parseHeader(hash)
	ratio, err := ApproximateAspectRatio(hash)
	if err != nil {
		return 0, 0, nil, err
	}

	lx, ly := imax(3, hd.lx), imax(3, hd.ly)
	r := &nibbleReader{hash: hash, pos: hd.acStart()}
	lAC := r.channel(lx, ly, hd.lScale)
	// Saturation boosted 1.25× to compensate for quantisation.
	pAC := r.channel(3, 3, hd.pScale*1.25)
	qAC := r.channel(3, 3, hd.qScale*1.25)
	var aAC []float64
	if hd.hasAlpha {
		aAC = r.channel(5, 5, hd.aScale)
	}

	w, h := previewDim, previewDim
	if ratio > 1 {
		h = roundInt(previewDim / ratio)
	} else {
		w = roundInt(previewDim * ratio)
	}
	w, h = max1(w), max1(h)

	nFx := imax(lx, 3)
	nFy := imax(ly, 3)
	if hd.hasAlpha {
		nFx, nFy = imax(lx, 5), imax(ly, 5)
	}
	var fx, fy [8]float64

	rgba := make([]byte, w*h*4)
	for y, i := 0, 0; y < h; y++ {
		for cy := 0; cy < nFy; cy++ {
			fy[cy] = math.Cos(math.Pi / float64(h) * (float64(y) + 0.5) * float64(cy))
		}
		for x := 0; x < w; x, i = x+1, i+4 {
			for cx := 0; cx < nFx; cx++ {
				fx[cx] = math.Cos(math.Pi / float64(w) * (float64(x) + 0.5) * float64(cx))
			}

			l, p, q, a := hd.lDC, hd.pDC, hd.qDC, hd.aDC
			for cy, j := 0, 0; cy < ly; cy++ {
				fy2 := fy[cy] * 2
				for cx := startX(cy); cx*ly < lx*(ly-cy); cx, j = cx+1, j+1 {
					l += lAC[j] * fx[cx] * fy2
				}
			}
			for cy, j := 0, 0; cy < 3; cy++ {
				fy2 := fy[cy] * 2
				for cx := startX(cy); cx < 3-cy; cx, j = cx+1, j+1 {
					f := fx[cx] * fy2
					p += pAC[j] * f
					q += qAC[j] * f
				}
			}
			if hd.hasAlpha {
				for cy, j := 0, 0; cy < 5; cy++ {
					fy2 := fy[cy] * 2
					for cx := startX(cy); cx < 5-cy; cx, j = cx+1, j+1 {
						a += aAC[j] * fx[cx] * fy2
					}
				}
			}

			rr, gg, bb := lpqToRGB(l, p, q)
			rgba[i] = to8(rr)
			rgba[i+1] = to8(gg)
			rgba[i+2] = to8(bb)
			rgba[i+3] = to8(a)
		}
	}
	return w, h, rgba, nil
}

// ToImage decodes hash into an *image.NRGBA preview.
func ToImage(hash []byte) (*image.NRGBA, error) {
	w, h, pix, err := ToRGBA(hash)
	if err != nil {
		return nil, err
	}
	return &image.NRGBA{Pix: pix, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}, nil
}

// ToDataURL decodes hash and encodes the preview as a PNG data URL.
func ToDataURL(hash []byte) (string, error) {
	img, err := ToImage(hash)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := &png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode preview png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ─── helpers ──────────────────────────────────────────────────

type nibbleReader struct {
	hash []byte
	pos  int
	idx  int
}

// channel reads one triangular block of AC terms scaled to [-scale, scale].
func (r *nibbleReader) channel(nx, ny int, scale float64) []float64 {
	ac := make([]float64, 0, triangle(nx, ny))
	for cy := 0; cy < ny; cy++ {
		for cx := startX(cy); cx*ny < nx*(ny-cy); cx++ {
			nib := (r.hash[r.pos+r.idx>>1] >> ((r.idx & 1) << 2)) & 15
			ac = append(ac, (float64(nib)/7.5-1)*scale)
			r.idx++
		}
	}
	return ac
}

// startX skips the DC term on the first row.
func startX(cy int) int {
	if cy == 0 {
		return 1
	}
	return 0
}

func lpqToRGB(l, p, q float64) (float64, float64, float64) {
	b := l - 2.0/3.0*p
	r := (3*l - b + q) / 2
	g := r - q
	return r, g, b
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func to8(v float64) byte {
	return byte(math.Max(0, 255*math.Min(1, v)))
}
