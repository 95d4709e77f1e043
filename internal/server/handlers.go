package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AnyUserName/tgimg-render/internal/mutation"
	"github.com/AnyUserName/tgimg-render/internal/placeholder"
	"github.com/AnyUserName/tgimg-render/internal/thumbhash"
	"github.com/AnyUserName/tgimg-render/internal/visibility"
	"github.com/AnyUserName/tgimg-render/internal/widget"
)

type urlQuery struct {
	Src    string  `form:"src" binding:"required"`
	Width  float64 `form:"width"`
	Height float64 `form:"height"`
	Fit    string  `form:"fit"`
	Extra  string  `form:"extra"`
	Bg     string  `form:"bg"`
	DPR    string  `form:"dpr"` // comma separated, defaults to config
}

func (s *Server) handleURL(c *gin.Context) {
	var q urlQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fit := mutation.Cover
	if q.Fit != "" {
		f, err := mutation.ParseFit(q.Fit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		fit = f
	}

	factors := s.cfg.Img.DPIScaleFactors
	if q.DPR != "" {
		var err error
		if factors, err = parseFactors(q.DPR); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	bg := s.cfg.BackgroundColor
	if q.Bg != "" {
		bg = q.Bg
	}

	set, err := mutation.Build(mutation.Request{
		SourceRef:       q.Src,
		Width:           q.Width,
		Height:          q.Height,
		DPIScaleFactors: factors,
		Fit:             fit,
		BackgroundColor: bg,
		ExtraMutation:   q.Extra,
		CDNDomain:       s.cfg.Domain,
		BaseURL:         s.cfg.BaseURL,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"primary":  set.Primary,
		"variants": set.Variants,
		"srcset":   set.SrcSet(),
	})
}

func parseFactors(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v <= 0 {
			return nil, errors.New("dpr must be a comma separated list of positive numbers")
		}
		out = append(out, v)
	}
	return out, nil
}

// handlePlaceholder accepts the hash as ?hash= or as the path tail; the
// path form only works with URL-safe base64.
func (s *Server) handlePlaceholder(c *gin.Context) {
	hash := c.Query("hash")
	if hash == "" {
		hash = strings.TrimPrefix(c.Param("hash"), "/")
	}
	if hash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hash is required"})
		return
	}

	h, err := placeholder.NewHandle(hash)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dec := s.cfg.Placeholders()
	img, err := dec.Image(h)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, thumbhash.ErrInvalidHash) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	avg := dec.AverageColor(h)
	c.JSON(http.StatusOK, gin.H{
		"id":           h.ID,
		"color":        avg.CSS(),
		"hex":          avg.Hex(),
		"aspect_ratio": dec.AspectRatio(h),
		"image":        img,
	})
}

type renderRequest struct {
	Src       string `json:"src" binding:"required"`
	Width     string `json:"width"`
	Height    string `json:"height"`
	Fit       string `json:"fit"`
	Extra     string `json:"extra"`
	Thumbhash string `json:"thumbhash"`
	Priority  string `json:"priority"`
	Alt       string `json:"alt"`
	Container struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"container"`
}

// handleRender mounts a widget on a throwaway loop with the element in
// view, runs one frame and idle window, and returns the resulting layers.
func (s *Server) handleRender(c *gin.Context) {
	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	props, err := req.props()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	loop := visibility.NewLoop()
	loop.SetVisible(props.Element)
	w, err := widget.New(s.cfg, props, loop)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer w.Unmount()

	w.Mount(widget.Box{Width: req.Container.Width, Height: req.Container.Height})
	loop.Settle(4)

	view, err := w.Render()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"widget":     w.ID(),
		"state":      w.State().String(),
		"dimensions": w.Dimensions(),
		"view":       view,
	})
}

func (r renderRequest) props() (widget.Props, error) {
	p := widget.Props{
		Src:           r.Src,
		ExtraMutation: r.Extra,
		Thumbhash:     r.Thumbhash,
		Alt:           r.Alt,
		Element:       "preview",
	}
	var err error
	if p.Width, err = widget.ParseDimension(r.Width); err != nil {
		return p, err
	}
	if p.Height, err = widget.ParseDimension(r.Height); err != nil {
		return p, err
	}
	if r.Fit != "" {
		if p.Fit, err = mutation.ParseFit(r.Fit); err != nil {
			return p, err
		}
	}
	if p.Priority, err = visibility.ParsePriority(r.Priority); err != nil {
		return p, err
	}
	return p, nil
}
