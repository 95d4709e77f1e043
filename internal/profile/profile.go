package profile

import (
	"sort"

	"github.com/AnyUserName/tgimg-render/internal/mutation"
)

// Profile is a named rendering preset: which widths to plan URL sets for,
// at which pixel densities, with which fit.
type Profile struct {
	Name            string
	Widths          []int     // CSS widths a layout typically renders at
	DPIScaleFactors []float64 // densities per width, first entry is the primary
	Fit             string    // "cover" or "contain"
	ExtraMutation   string    // appended after the resize clauses
}

// Built-in profiles.
var profiles = map[string]Profile{
	"telegram-webview": {
		Name:            "telegram-webview",
		Widths:          []int{320, 640, 960},
		DPIScaleFactors: []float64{1, 2, 3},
		Fit:             "cover",
	},
	"telegram-webview-hq": {
		Name:            "telegram-webview-hq",
		Widths:          []int{320, 640, 960, 1280, 1920},
		DPIScaleFactors: []float64{1, 1.5, 2, 3},
		Fit:             "cover",
	},
	"minimal": {
		Name:            "minimal",
		Widths:          []int{320, 640},
		DPIScaleFactors: []float64{1, 2},
		Fit:             "contain",
	},
}

// Get returns a profile by name. Falls back to telegram-webview if unknown.
func Get(name string) Profile {
	if p, ok := profiles[name]; ok {
		return p
	}
	p := profiles["telegram-webview"]
	p.Name = name // preserve requested name
	return p
}

// Names lists the built-in profiles in sorted order.
func Names() []string {
	out := make([]string, 0, len(profiles))
	for n := range profiles {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// FitPolicy parses Fit.
func (p Profile) FitPolicy() (mutation.Fit, error) {
	return mutation.ParseFit(p.Fit)
}

// EffectiveWidths returns the profile widths that do not upscale an image
// originalWidth pixels wide, deduplicated and in profile order.
func (p Profile) EffectiveWidths(originalWidth int) []int {
	seen := map[int]bool{}
	var result []int

	for _, w := range p.Widths {
		if w > originalWidth || seen[w] {
			continue // don't upscale
		}
		seen[w] = true
		result = append(result, w)
	}

	// Always include original width if not already present
	// (for cases where original is smaller than smallest target).
	if len(result) == 0 && originalWidth > 0 {
		result = append(result, originalWidth)
	}

	return result
}
