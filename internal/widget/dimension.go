package widget

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dimension is a declared width or height: a pixel value, or a fraction of
// the container box when Fraction is set.  The zero value means unset.
type Dimension struct {
	Value    float64
	Fraction bool
}

// Px declares an explicit pixel size.
func Px(v float64) Dimension { return Dimension{Value: v} }

// Percent declares a size relative to the container, 0-100.
func Percent(p float64) Dimension { return Dimension{Value: p / 100, Fraction: true} }

// IsSet reports whether the dimension was declared.
func (d Dimension) IsSet() bool { return d.Value > 0 }

// Explicit reports a declared pixel value.
func (d Dimension) Explicit() bool { return d.IsSet() && !d.Fraction }

func (d Dimension) String() string {
	switch {
	case !d.IsSet():
		return ""
	case d.Fraction:
		return strconv.FormatFloat(d.Value*100, 'f', -1, 64) + "%"
	default:
		return strconv.FormatFloat(d.Value, 'f', -1, 64)
	}
}

// ParseDimension accepts "", "200", "200px" or "50%".
func ParseDimension(s string) (Dimension, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Dimension{}, nil
	}
	pct := strings.HasSuffix(s, "%")
	num := strings.TrimSuffix(strings.TrimSuffix(s, "%"), "px")
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return Dimension{}, fmt.Errorf("widget: invalid dimension %q", s)
	}
	if pct {
		return Percent(v), nil
	}
	return Px(v), nil
}

// Box is a measured container size in CSS pixels.
type Box struct {
	Width  float64
	Height float64
}

// Dimensions is the resolved size the image renders at.  Zero means the
// axis is absent and no resize is requested for it.
type Dimensions struct {
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Empty reports that neither axis could be resolved.
func (d Dimensions) Empty() bool { return d.Width <= 0 && d.Height <= 0 }

// Band outside of which a new container measurement replaces the committed
// one.  Values inside it are treated as layout jitter.
const (
	shrinkBand = 0.75
	growBand   = 1.5
)

// commitAxis returns the value to keep for one container axis.
func commitAxis(prev, next float64) float64 {
	if prev <= 0 {
		return next
	}
	r := next / prev
	if r < shrinkBand || r > growBand {
		return next
	}
	return prev
}

// resolveAxis turns a declaration into pixels against the committed
// container size.
func resolveAxis(d Dimension, container float64) float64 {
	switch {
	case !d.IsSet():
		return 0
	case d.Fraction:
		if container <= 0 {
			return 0
		}
		return d.Value * container
	default:
		return d.Value
	}
}
