// Package mutation builds CDN transformation URLs of the form
//
//	https://{domain}/{path segment}/{mutation,mutation,...,auto}
//
// from a declarative request: source reference, target box, fit policy and
// the DPI scale factors to emit variants for.  Everything here is pure.
package mutation

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

var (
	// ErrInvalidDimensions is returned when a resize is needed but neither
	// width nor height is known.
	ErrInvalidDimensions = errors.New("mutation: resize requires a width or a height")
	// ErrNoScaleFactors is returned for a request without DPI scale factors.
	ErrNoScaleFactors = errors.New("mutation: at least one DPI scale factor is required")
	// ErrUnresolvedRef is returned for an external reference that cannot be
	// made absolute: a path-relative ref without an absolute base, or one
	// that does not parse.
	ErrUnresolvedRef = errors.New("mutation: external reference cannot be resolved to an absolute URL")
	// ErrInvalidBaseURL is returned for a base that is not an absolute
	// http(s) URL.
	ErrInvalidBaseURL = errors.New("mutation: base url must be an absolute http(s) URL")
)

// DefaultBackground is used for cover padding when the request names none.
const DefaultBackground = "transparent"

// externalPrefixes mark a source reference as a URL rather than a CDN file id.
var externalPrefixes = []string{"https://", "./", "../", "/", "//"}

// Request describes one image to fetch.  Width and Height are CSS pixels;
// zero means unset.
type Request struct {
	SourceRef       string
	Width           float64
	Height          float64
	DPIScaleFactors []float64
	Fit             Fit
	BackgroundColor string
	ExtraMutation   string
	CDNDomain       string
	// BaseURL resolves relative external references ("./a.jpg", "/a.jpg").
	BaseURL string
}

// Variant is one DPI rendition.
type Variant struct {
	Scale      float64 `json:"scale" yaml:"scale"`
	URL        string  `json:"url" yaml:"url"`
	Descriptor string  `json:"descriptor" yaml:"descriptor"`
}

// URLSet is the output of Build.  Primary is always the 1x URL.
type URLSet struct {
	Primary  string    `json:"primary" yaml:"primary"`
	Variants []Variant `json:"variants" yaml:"variants"`
}

// SrcSet renders the variants as an HTML srcset attribute value.
func (s URLSet) SrcSet() string {
	parts := make([]string, len(s.Variants))
	for i, v := range s.Variants {
		parts[i] = v.URL + " " + v.Descriptor
	}
	return strings.Join(parts, ", ")
}

// Build resolves req into its primary URL and one variant per scale factor,
// in the order given.  It panics on a nil Fit.
func Build(req Request) (URLSet, error) {
	if len(req.DPIScaleFactors) == 0 {
		return URLSet{}, ErrNoScaleFactors
	}
	if req.Fit == nil {
		panic("mutation: Request.Fit is nil")
	}

	seg, err := PathSegment(req.SourceRef, req.BaseURL)
	if err != nil {
		return URLSet{}, err
	}
	prefix := "https://" + req.CDNDomain + "/" + seg + "/"

	build := func(scale float64) (string, error) {
		m, err := mutationString(req, scale)
		if err != nil {
			return "", err
		}
		return prefix + m, nil
	}

	primary, err := build(1)
	if err != nil {
		return URLSet{}, err
	}
	set := URLSet{Primary: primary, Variants: make([]Variant, 0, len(req.DPIScaleFactors))}
	for _, s := range req.DPIScaleFactors {
		u, err := build(s)
		if err != nil {
			return URLSet{}, err
		}
		set.Variants = append(set.Variants, Variant{Scale: s, URL: u, Descriptor: Descriptor(s)})
	}
	return set, nil
}

func mutationString(req Request, scale float64) (string, error) {
	parts := make([]string, 0, 5)
	if req.Width > 0 || req.Height > 0 {
		bg := req.BackgroundColor
		if bg == "" {
			bg = DefaultBackground
		}
		resize, err := ResizeMutation(req.Width, req.Height, req.Fit, scale, bg)
		if err != nil {
			return "", err
		}
		parts = append(parts, resize)
	}
	if extra := strings.TrimSpace(req.ExtraMutation); extra != "" {
		parts = append(parts, extra)
	}
	parts = append(parts, "auto")
	return strings.Join(parts, ","), nil
}

// ResizeMutation returns the comma-joined resize clauses for one scale.
// Dimensions are multiplied by scale and rounded half away from zero.
func ResizeMutation(width, height float64, fit Fit, scale float64, bg string) (string, error) {
	b := box{hasW: width > 0, hasH: height > 0}
	if !b.hasW && !b.hasH {
		return "", ErrInvalidDimensions
	}
	if b.hasW {
		b.w = int(math.Round(width * scale))
	}
	if b.hasH {
		b.h = int(math.Round(height * scale))
	}
	return strings.Join(fit.clauses(b, bg), ","), nil
}

// IsExternal reports whether ref names a URL rather than a CDN file id.
func IsExternal(ref string) bool {
	for _, p := range externalPrefixes {
		if strings.HasPrefix(ref, p) {
			return true
		}
	}
	return false
}

// PathSegment returns the CDN path segment for ref: the id itself, or
// @ext_ followed by the unpadded URL-safe base64 of the absolute URL.
func PathSegment(ref, baseURL string) (string, error) {
	if !IsExternal(ref) {
		return ref, nil
	}
	abs, err := ResolveRef(ref, baseURL)
	if err != nil {
		return "", err
	}
	return "@ext_" + base64.RawURLEncoding.EncodeToString([]byte(abs)), nil
}

// ResolveRef makes an external reference absolute.  Scheme-relative refs
// ("//host/a.jpg") take the base's scheme, or https without a base.
// Path-relative refs need an absolute baseURL.
func ResolveRef(ref, baseURL string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrUnresolvedRef, ref, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if baseURL == "" {
		if u.Host == "" {
			return "", fmt.Errorf("%w: %q needs a base url", ErrUnresolvedRef, ref)
		}
		u.Scheme = "https"
		return u.String(), nil
	}
	base, err := ParseBaseURL(baseURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

// ParseBaseURL parses s and requires it to be an absolute http(s) URL with
// a host.
func ParseBaseURL(s string) (*url.URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidBaseURL, s, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, s)
	}
	return u, nil
}

// Descriptor formats a scale factor as a srcset density ("1x", "1.5x").
func Descriptor(scale float64) string {
	return strconv.FormatFloat(scale, 'f', -1, 64) + "x"
}
