package manifest

import (
	"fmt"
	"strings"

	"github.com/AnyUserName/tgimg-render/internal/placeholder"
)

// Validate checks internal consistency and returns one message per
// problem found.  Every thumbhash must parse and match its placeholder
// id, and every rendition URL must live on the manifest's domain.
func Validate(m *Manifest) []string {
	var errs []string

	if m.Version != SupportedManifestVersion {
		errs = append(errs, fmt.Sprintf("unsupported manifest version: %d", m.Version))
	}
	prefix := "https://" + m.Domain + "/"

	for key, asset := range m.Assets {
		if asset.SourceRef == "" {
			errs = append(errs, fmt.Sprintf("asset %q: missing source_ref", key))
		}
		if asset.Original.Width <= 0 || asset.Original.Height <= 0 {
			errs = append(errs, fmt.Sprintf("asset %q: invalid original dimensions %dx%d",
				key, asset.Original.Width, asset.Original.Height))
		}
		if asset.AspectRatio <= 0 {
			errs = append(errs, fmt.Sprintf("asset %q: invalid aspect ratio %.4f", key, asset.AspectRatio))
		}

		if asset.ThumbHash == "" {
			errs = append(errs, fmt.Sprintf("asset %q: missing thumbhash", key))
		} else if h, err := placeholder.NewHandle(asset.ThumbHash); err != nil {
			errs = append(errs, fmt.Sprintf("asset %q: %v", key, err))
		} else if h.ID != asset.PlaceholderID {
			errs = append(errs, fmt.Sprintf("asset %q: placeholder_id %q does not match thumbhash (%q)",
				key, asset.PlaceholderID, h.ID))
		}

		if len(asset.Renditions) == 0 {
			errs = append(errs, fmt.Sprintf("asset %q: no renditions", key))
		}
		for i, r := range asset.Renditions {
			if r.Width <= 0 {
				errs = append(errs, fmt.Sprintf("asset %q rendition[%d]: invalid width %d", key, i, r.Width))
			}
			if !strings.HasPrefix(r.URLs.Primary, prefix) {
				errs = append(errs, fmt.Sprintf("asset %q rendition[%d]: primary %q not on %s",
					key, i, r.URLs.Primary, m.Domain))
			}
			if len(r.URLs.Variants) == 0 {
				errs = append(errs, fmt.Sprintf("asset %q rendition[%d]: no density variants", key, i))
			}
			for j, v := range r.URLs.Variants {
				if !strings.HasPrefix(v.URL, prefix) {
					errs = append(errs, fmt.Sprintf("asset %q rendition[%d] variant[%d]: url not on %s",
						key, i, j, m.Domain))
				}
			}
		}
	}

	// Verify stats consistency.
	cp := *m
	cp.ComputeStats()
	want := cp.Stats
	if m.Stats.TotalAssets != want.TotalAssets {
		errs = append(errs, fmt.Sprintf("stats.total_assets mismatch: %d != %d", m.Stats.TotalAssets, want.TotalAssets))
	}
	if m.Stats.TotalRenditions != want.TotalRenditions {
		errs = append(errs, fmt.Sprintf("stats.total_renditions mismatch: %d != %d", m.Stats.TotalRenditions, want.TotalRenditions))
	}
	if m.Stats.TotalURLs != want.TotalURLs {
		errs = append(errs, fmt.Sprintf("stats.total_urls mismatch: %d != %d", m.Stats.TotalURLs, want.TotalURLs))
	}

	return errs
}
