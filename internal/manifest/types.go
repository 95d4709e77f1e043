package manifest

import "github.com/AnyUserName/tgimg-render/internal/mutation"

// Manifest is the render plan for a directory of source images: what a
// frontend needs to draw each one progressively without touching the
// originals.
type Manifest struct {
	Version     int              `json:"version" yaml:"version"`
	GeneratedAt string           `json:"generated_at" yaml:"generated_at"`
	Profile     string           `json:"profile" yaml:"profile"`
	Domain      string           `json:"domain" yaml:"domain"`
	BuildInfo   *BuildInfo       `json:"build_info,omitempty" yaml:"build_info,omitempty"`
	Assets      map[string]Asset `json:"assets" yaml:"assets"`
	Stats       Stats            `json:"stats" yaml:"stats"`
}

// BuildInfo captures planning parameters for diagnostics.
type BuildInfo struct {
	Workers            int   `json:"workers" yaml:"workers"`
	PoolEntryKB        int   `json:"pool_entry_kb" yaml:"pool_entry_kb"` // per-worker thumbhash encode buffer
	PlaceholderDecodes int64 `json:"placeholder_decodes" yaml:"placeholder_decodes"`
}

// Asset describes one source image.
type Asset struct {
	SourceRef     string       `json:"source_ref" yaml:"source_ref"` // what widgets pass as src
	Original      OriginalInfo `json:"original" yaml:"original"`
	ContentHash   string       `json:"content_hash" yaml:"content_hash"`
	ThumbHash     string       `json:"thumbhash" yaml:"thumbhash"` // base64-encoded thumbhash bytes
	PlaceholderID string       `json:"placeholder_id" yaml:"placeholder_id"`
	AspectRatio   float64      `json:"aspect_ratio" yaml:"aspect_ratio"`               // exact width / height
	HashAspect    float64      `json:"hash_aspect_ratio" yaml:"hash_aspect_ratio"`     // as a widget derives it
	AvgColor      string       `json:"avg_color,omitempty" yaml:"avg_color,omitempty"` // #rrggbb
	Renditions    []Rendition  `json:"renditions" yaml:"renditions"`
}

// OriginalInfo holds metadata about the source image.
type OriginalInfo struct {
	Width    int    `json:"width" yaml:"width"`
	Height   int    `json:"height" yaml:"height"`
	Format   string `json:"format" yaml:"format"`
	Size     int64  `json:"size" yaml:"size"`
	HasAlpha bool   `json:"has_alpha" yaml:"has_alpha"`
}

// Rendition is the URL set a widget renders at one layout width.
type Rendition struct {
	Width  int             `json:"width" yaml:"width"`
	Height int             `json:"height" yaml:"height"`
	Fit    string          `json:"fit" yaml:"fit"`
	URLs   mutation.URLSet `json:"urls" yaml:"urls"`
}

// Stats aggregates plan metrics.
type Stats struct {
	TotalInputBytes int64 `json:"total_input_bytes" yaml:"total_input_bytes"`
	TotalAssets     int   `json:"total_assets" yaml:"total_assets"`
	TotalRenditions int   `json:"total_renditions" yaml:"total_renditions"`
	TotalURLs       int   `json:"total_urls" yaml:"total_urls"`
	WithAlpha       int   `json:"with_alpha,omitempty" yaml:"with_alpha,omitempty"`
}

// SupportedManifestVersion is the current schema version.
const SupportedManifestVersion = 2
