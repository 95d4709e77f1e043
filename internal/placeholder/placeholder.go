// Package placeholder turns thumbhash strings into the three things a
// progressive image needs before the real bytes arrive: an instant average
// colour, an approximate aspect ratio and a blurred preview image.  Only the
// preview is expensive; it is decoded once per hash identity and kept in a
// shared Cache.
package placeholder

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/AnyUserName/tgimg-render/internal/hasher"
	"github.com/AnyUserName/tgimg-render/internal/thumbhash"
)

// Cache is the store decoded previews live in.  lru.Cache[string, string]
// satisfies it; hosts may plug in their own.
type Cache interface {
	Has(key string) bool
	Get(key string) (string, bool)
	Set(key, value string)
}

// Handle is a parsed thumbhash.  Two handles are the same placeholder when
// their IDs match; the raw bytes are never compared.
type Handle struct {
	ID  string
	Raw []byte
}

// NewHandle parses a base64 thumbhash (standard or URL alphabet, padding
// optional) and validates its layout.
func NewHandle(hash string) (Handle, error) {
	hash = strings.TrimSpace(hash)
	raw, err := decodeBase64(hash)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: %v", thumbhash.ErrInvalidHash, err)
	}
	if err := thumbhash.Validate(raw); err != nil {
		return Handle{}, err
	}
	return Handle{ID: hasher.ID(hash), Raw: raw}, nil
}

// Equal reports identity equality.
func (h Handle) Equal(o Handle) bool { return h.ID == o.ID }

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if strings.ContainsAny(s, "-_") {
		return base64.RawURLEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// Color is an 8-bit RGBA colour.
type Color struct {
	R, G, B, A uint8
}

// Hex returns #rrggbb, ignoring alpha.
func (c Color) Hex() string {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hex()
}

// CSS returns an rgba() expression.
func (c Color) CSS() string {
	return fmt.Sprintf("rgba(%d, %d, %d, %.3g)", c.R, c.G, c.B, float64(c.A)/255)
}

// Decoder extracts placeholder data from handles.  Safe for concurrent use;
// one Decoder is shared by every widget using the same Cache.
type Decoder struct {
	cache   Cache
	render  func([]byte) (string, error)
	flight  singleflight.Group // check-then-decode-then-set runs once per id at a time
	decodes atomic.Int64
	log     *logrus.Entry
}

// NewDecoder creates a decoder backed by cache.
func NewDecoder(cache Cache, log *logrus.Logger) *Decoder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Decoder{
		cache:  cache,
		render: thumbhash.ToDataURL,
		log:    log.WithField("component", "placeholder"),
	}
}

// AverageColor reads the average colour from the header.  It is cheaper
// than a cache lookup and is never cached.
func (d *Decoder) AverageColor(h Handle) Color {
	avg, err := thumbhash.AverageRGBA(h.Raw)
	if err != nil {
		// Handles are validated on construction.
		return Color{}
	}
	return Color{
		R: uint8(avg.R*255 + 0.5),
		G: uint8(avg.G*255 + 0.5),
		B: uint8(avg.B*255 + 0.5),
		A: uint8(avg.A*255 + 0.5),
	}
}

// AspectRatio returns the approximate width/height ratio from the header,
// or 0 when it cannot be derived.
func (d *Decoder) AspectRatio(h Handle) float64 {
	ratio, err := thumbhash.ApproximateAspectRatio(h.Raw)
	if err != nil {
		return 0
	}
	return ratio
}

// Image returns the preview as a PNG data URL, decoding on a cache miss.
// Concurrent calls for one id share a single lookup and decode; distinct
// ids never wait on each other.
func (d *Decoder) Image(h Handle) (string, error) {
	v, err, _ := d.flight.Do(h.ID, func() (any, error) {
		if v, ok := d.cache.Get(h.ID); ok {
			return v, nil
		}
		url, err := d.render(h.Raw)
		if err != nil {
			return "", fmt.Errorf("decode placeholder %s: %w", h.ID, err)
		}
		d.decodes.Add(1)
		d.cache.Set(h.ID, url)
		d.log.WithField("id", h.ID).Debug("placeholder decoded")
		return url, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Decodes returns how many full decodes this decoder has performed.
func (d *Decoder) Decodes() int64 { return d.decodes.Load() }
