package widget

import (
	"fmt"
	"math"

	"github.com/AnyUserName/tgimg-render/internal/mutation"
	"github.com/AnyUserName/tgimg-render/internal/visibility"
)

// View is the three-layer stack, topmost first.  A nil layer is not
// mounted.
type View struct {
	Primary     *PrimaryLayer     `json:"primary,omitempty"`
	Placeholder *PlaceholderLayer `json:"placeholder,omitempty"`
	Error       *ErrorLayer       `json:"error,omitempty"`
}

// PrimaryLayer is the real image element.
type PrimaryLayer struct {
	Src           string `json:"src"`
	SrcSet        string `json:"srcset,omitempty"`
	Alt           string `json:"alt"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	Loading       string `json:"loading"`
	FetchPriority string `json:"fetchpriority"`
	Loaded        bool   `json:"loaded"`
}

// PlaceholderLayer sits under the primary image while it loads.  With a
// thumbhash it carries the average colour and, once the gate fired, the
// blurred preview; without one it carries the configured generic node.
type PlaceholderLayer struct {
	Color       string  `json:"color,omitempty"`
	Image       string  `json:"image,omitempty"`
	AspectRatio float64 `json:"aspect_ratio,omitempty"`
	Node        any     `json:"node,omitempty"`
}

// ErrorLayer replaces the primary image after a failure.
type ErrorLayer struct {
	Node    any    `json:"node,omitempty"`
	Message string `json:"message"`
}

// Render composes the current view.  The primary image is mounted in every
// state except Error so a cached response can paint before the placeholder
// is ever seen.
func (c *Controller) Render() (View, error) {
	var v View

	if c.state == Error {
		v.Error = &ErrorLayer{Node: c.cfg.Img.ErrorNode, Message: c.err.Error()}
		return v, nil
	}

	dims := c.Dimensions()
	set, err := mutation.Build(mutation.Request{
		SourceRef:       c.props.Src,
		Width:           dims.Width,
		Height:          dims.Height,
		DPIScaleFactors: c.cfg.Img.DPIScaleFactors,
		Fit:             c.props.Fit,
		BackgroundColor: c.cfg.BackgroundColor,
		ExtraMutation:   c.props.ExtraMutation,
		CDNDomain:       c.cfg.Domain,
		BaseURL:         c.cfg.BaseURL,
	})
	if err != nil {
		return View{}, fmt.Errorf("render %s: %w", c.props.Src, err)
	}

	loading, fetch := loadingHints(c.props.Priority)
	v.Primary = &PrimaryLayer{
		Src:           set.Primary,
		SrcSet:        set.SrcSet(),
		Alt:           c.props.Alt,
		Width:         int(math.Round(dims.Width)),
		Height:        int(math.Round(dims.Height)),
		Loading:       loading,
		FetchPriority: fetch,
		Loaded:        c.state == Loaded,
	}

	if c.state == Loading {
		v.Placeholder = c.placeholderLayer()
	}
	return v, nil
}

func (c *Controller) placeholderLayer() *PlaceholderLayer {
	if c.handle == nil {
		return &PlaceholderLayer{Node: c.cfg.Img.PlaceholderNode}
	}
	return &PlaceholderLayer{
		Color:       c.decoder.AverageColor(*c.handle).CSS(),
		Image:       c.preview,
		AspectRatio: c.decoder.AspectRatio(*c.handle),
	}
}

func loadingHints(p visibility.Priority) (loading, fetch string) {
	switch p {
	case visibility.High:
		return "eager", "high"
	case visibility.Low:
		return "lazy", "low"
	default:
		return "lazy", "auto"
	}
}
