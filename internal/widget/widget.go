// Package widget drives one progressive image: it resolves the rendered
// size, builds the CDN URLs, defers the placeholder decode behind a
// visibility gate and tracks the Loading → Loaded | Error lifecycle.
//
// A Controller belongs to the host UI loop and is not safe for concurrent
// use.  Controllers share state only through the placeholder decoder held by
// their Config.
package widget

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AnyUserName/tgimg-render/internal/config"
	"github.com/AnyUserName/tgimg-render/internal/mutation"
	"github.com/AnyUserName/tgimg-render/internal/placeholder"
	"github.com/AnyUserName/tgimg-render/internal/visibility"
)

// ErrLoadFailure wraps any error reported while fetching or decoding the
// primary image.
var ErrLoadFailure = errors.New("widget: image load failed")

// LoadState is the primary image lifecycle.  Loaded and Error are terminal.
type LoadState int

const (
	Loading LoadState = iota
	Loaded
	Error
)

func (s LoadState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("LoadState(%d)", int(s))
	}
}

// Props are the per-widget inputs.
type Props struct {
	Src           string
	Width         Dimension
	Height        Dimension
	Fit           mutation.Fit // nil means Cover
	ExtraMutation string
	Thumbhash     string
	Priority      visibility.Priority
	Alt           string

	// Element identifies the node for visibility checks.  Defaults to the
	// controller ID.
	Element visibility.Element
}

// ImageDecoder is the host image element after its network load finished.
type ImageDecoder interface {
	// Decode blocks until the image is decoded and ready to paint.
	Decode(ctx context.Context) error
}

// previewSource is the part of *placeholder.Decoder a controller uses.
type previewSource interface {
	AverageColor(placeholder.Handle) placeholder.Color
	AspectRatio(placeholder.Handle) float64
	Image(placeholder.Handle) (string, error)
}

// Controller orchestrates one image widget.
type Controller struct {
	id      string
	cfg     *config.Config
	props   Props
	env     visibility.Env
	handle  *placeholder.Handle
	decoder previewSource
	gate    *visibility.Gate
	log     *logrus.Entry

	state     LoadState
	err       error
	mounted   bool
	unmounted bool
	container Box // last committed measurement
	preview   string
}

// New creates a controller.  env may be nil when Props has no thumbhash.
func New(cfg *config.Config, props Props, env visibility.Env) (*Controller, error) {
	if cfg == nil {
		return nil, config.ErrMissingContext
	}
	if props.Fit == nil {
		props.Fit = mutation.Cover
	}
	if _, err := mutation.PathSegment(props.Src, cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("widget %s: %w", props.Src, err)
	}

	id := uuid.NewString()
	c := &Controller{
		id:    id,
		cfg:   cfg,
		props: props,
		env:   env,
		log:   cfg.Log().WithField("widget", id),
	}
	if c.props.Element == nil {
		c.props.Element = id
	}

	if props.Thumbhash != "" {
		h, err := placeholder.NewHandle(props.Thumbhash)
		if err != nil {
			return nil, fmt.Errorf("widget %s: %w", props.Src, err)
		}
		if env == nil {
			return nil, fmt.Errorf("widget %s: visibility env required for thumbhash placeholders", props.Src)
		}
		c.handle = &h
		c.decoder = cfg.Placeholders()
		c.gate = visibility.NewGate(env, c.log)
	}
	return c, nil
}

// NewFromContext is New with the Config taken from ctx.
func NewFromContext(ctx context.Context, props Props, env visibility.Env) (*Controller, error) {
	cfg, err := config.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return New(cfg, props, env)
}

// ID is a random instance id used in logs.
func (c *Controller) ID() string { return c.id }

// State returns the lifecycle state.
func (c *Controller) State() LoadState { return c.state }

// Err returns the load failure, if any.
func (c *Controller) Err() error { return c.err }

// Mount records the initial container measurement and, when a thumbhash is
// present, arms the placeholder gate.  Only the first call has effect.
func (c *Controller) Mount(box Box) {
	if c.mounted || c.unmounted {
		return
	}
	c.mounted = true
	c.container = box
	c.log.WithField("state", c.state).Debug("mounted")

	if c.gate == nil || c.state != Loading {
		return
	}
	c.gate.Schedule(c.props.Element, c.props.Priority, c.cfg.ThumbhashImg.IntersectRootMarginPx,
		c.wantsPreview, c.decodePreview)
}

// Resize records a new container measurement.  A fractional axis only
// changes when the new value leaves the [0.75x, 1.5x] band around the
// committed one.  Reports whether the committed box changed.
func (c *Controller) Resize(box Box) bool {
	next := Box{
		Width:  commitAxis(c.container.Width, box.Width),
		Height: commitAxis(c.container.Height, box.Height),
	}
	if next == c.container {
		return false
	}
	c.container = next
	c.log.WithFields(logrus.Fields{"width": next.Width, "height": next.Height}).Debug("container resized")
	return true
}

// Dimensions resolves the rendered size from the props, the committed
// container box and the placeholder aspect ratio.
func (c *Controller) Dimensions() Dimensions {
	w, h := c.props.Width, c.props.Height
	if w.Explicit() && h.Explicit() {
		return Dimensions{Width: w.Value, Height: h.Value}
	}

	d := Dimensions{
		Width:  resolveAxis(w, c.container.Width),
		Height: resolveAxis(h, c.container.Height),
	}
	if c.handle == nil || (d.Width > 0) == (d.Height > 0) {
		return d
	}
	ratio := c.decoder.AspectRatio(*c.handle)
	if ratio <= 0 {
		return d
	}
	if d.Width > 0 {
		d.Height = math.Round(d.Width / ratio)
	} else {
		d.Width = math.Round(d.Height * ratio)
	}
	return d
}

// HandleLoad is called once the primary image finished downloading.  It
// waits for dec to finish decoding before switching to Loaded so the
// placeholder is never hidden early; a decode error moves to Error.
func (c *Controller) HandleLoad(ctx context.Context, dec ImageDecoder) error {
	if c.state != Loading {
		return nil
	}
	if dec != nil {
		if err := dec.Decode(ctx); err != nil {
			return c.HandleError(err)
		}
	}
	if c.state != Loading {
		return nil
	}
	c.state = Loaded
	c.disposeGate()
	c.log.WithField("state", c.state).Debug("image loaded")
	return nil
}

// HandleError moves a loading widget to Error.  The returned error wraps
// ErrLoadFailure and err; it is nil when the widget was already terminal.
func (c *Controller) HandleError(err error) error {
	if c.state != Loading {
		return nil
	}
	if err == nil {
		err = errors.New("unknown error")
	}
	c.state = Error
	c.err = fmt.Errorf("%w: %s: %w", ErrLoadFailure, c.props.Src, err)
	c.disposeGate()
	c.log.WithError(err).WithField("state", c.state).Warn("image failed to load")
	return c.err
}

// Unmount detaches any pending visibility work.  Safe to call twice.
func (c *Controller) Unmount() {
	if c.unmounted {
		return
	}
	c.unmounted = true
	c.disposeGate()
	c.log.Debug("unmounted")
}

func (c *Controller) disposeGate() {
	if c.gate != nil {
		c.gate.Dispose()
	}
}

// ─── Placeholder decode ────────────────────────────────────────────────────

func (c *Controller) wantsPreview() bool {
	return !c.unmounted && c.state == Loading && c.preview == ""
}

func (c *Controller) decodePreview() {
	url, err := c.decoder.Image(*c.handle)
	if err != nil {
		c.log.WithError(err).Warn("placeholder decode failed, keeping average colour")
		return
	}
	c.preview = url
}
