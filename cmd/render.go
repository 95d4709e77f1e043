package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/tgimg-render/internal/config"
	"github.com/AnyUserName/tgimg-render/internal/mutation"
	"github.com/AnyUserName/tgimg-render/internal/visibility"
	"github.com/AnyUserName/tgimg-render/internal/widget"
)

var (
	renderWidth     string
	renderHeight    string
	renderFit       string
	renderExtra     string
	renderThumbhash string
	renderPriority  string
	renderAlt       string
	renderContainer []float64
	renderDistance  int
	renderFail      string
)

var renderCmd = &cobra.Command{
	Use:   "render <source_ref>",
	Short: "Simulate a widget's lifecycle and print each rendered view",
	Long: `Mounts one image widget on a simulated UI loop and prints the layer
stack after every step: mount, frames/idle before the element is visible,
scrolling into view, and finally the primary image load (or --fail).

Dimensions accept pixels ("200") or container fractions ("50%").`,
	Example: `  tgimg render file-id --domain cdn.myapp.com --width 50% --container 400,300 \
      --thumbhash 1QcSHQRnh493V4dIh4eXh1h4kJUI --distance 800`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	f := renderCmd.Flags()
	f.StringVar(&renderWidth, "width", "", "width: pixels or percent of container")
	f.StringVar(&renderHeight, "height", "", "height: pixels or percent of container")
	f.StringVar(&renderFit, "fit", "cover", "fit policy: cover or contain")
	f.StringVar(&renderExtra, "extra", "", "extra mutations")
	f.StringVar(&renderThumbhash, "thumbhash", "", "base64 thumbhash placeholder")
	f.StringVar(&renderPriority, "priority", "auto", "placeholder priority: high, auto or low")
	f.StringVar(&renderAlt, "alt", "", "alt text")
	f.Float64SliceVar(&renderContainer, "container", []float64{0, 0}, "container box width,height")
	f.IntVar(&renderDistance, "distance", 0, "initial distance from the viewport in px (0 = visible)")
	f.StringVar(&renderFail, "fail", "", "simulate a load failure with this message")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	props, err := renderProps(args[0])
	if err != nil {
		return err
	}
	if len(renderContainer) != 2 {
		return errors.New("--container takes width,height")
	}

	const element = "widget"
	loop := visibility.NewLoop()
	loop.SetDistance(element, renderDistance)
	props.Element = element

	ctx := config.NewContext(cmd.Context(), cfg)
	w, err := widget.NewFromContext(ctx, props, loop)
	if err != nil {
		return err
	}
	defer w.Unmount()
	logVerbose("widget %s", w.ID())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	step := func(name string) error {
		view, err := w.Render()
		if err != nil {
			return err
		}
		return enc.Encode(map[string]any{
			"step":       name,
			"state":      w.State().String(),
			"dimensions": w.Dimensions(),
			"view":       view,
		})
	}

	w.Mount(widget.Box{Width: renderContainer[0], Height: renderContainer[1]})
	if err := step("mount"); err != nil {
		return err
	}

	loop.Settle(4)
	if err := step("frames"); err != nil {
		return err
	}

	if renderDistance > cfg.ThumbhashImg.IntersectRootMarginPx {
		loop.SetVisible(element)
		loop.Settle(4)
		if err := step("visible"); err != nil {
			return err
		}
	}

	if renderFail != "" {
		_ = w.HandleError(errors.New(renderFail))
		return step("error")
	}
	if err := w.HandleLoad(cmd.Context(), decodedImage{}); err != nil {
		return err
	}
	return step("loaded")
}

func renderProps(src string) (widget.Props, error) {
	p := widget.Props{Src: src, ExtraMutation: renderExtra, Thumbhash: renderThumbhash, Alt: renderAlt}
	var err error
	if p.Width, err = widget.ParseDimension(renderWidth); err != nil {
		return p, err
	}
	if p.Height, err = widget.ParseDimension(renderHeight); err != nil {
		return p, err
	}
	if p.Fit, err = mutation.ParseFit(renderFit); err != nil {
		return p, err
	}
	if p.Priority, err = visibility.ParsePriority(renderPriority); err != nil {
		return p, fmt.Errorf("--priority: %w", err)
	}
	return p, nil
}

// decodedImage stands in for an image element whose decode already
// finished.
type decodedImage struct{}

func (decodedImage) Decode(context.Context) error { return nil }
