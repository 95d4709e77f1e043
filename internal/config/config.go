// Package config holds the settings every image widget shares: CDN domain,
// DPI scale factors, placeholder cache and fallback nodes.  A Config is
// usually loaded once by the CLI and handed to widgets through a
// context.Context.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AnyUserName/tgimg-render/internal/lru"
	"github.com/AnyUserName/tgimg-render/internal/mutation"
	"github.com/AnyUserName/tgimg-render/internal/placeholder"
)

// ErrMissingContext is returned when a widget is created without a Config.
var ErrMissingContext = errors.New("config: no image configuration in context")

// Config is the shared widget configuration.  Do not copy after first use.
type Config struct {
	Domain          string             `mapstructure:"domain" yaml:"domain"`
	BaseURL         string             `mapstructure:"base_url" yaml:"base_url"`
	BackgroundColor string             `mapstructure:"background_color" yaml:"background_color"`
	Img             ImgConfig          `mapstructure:"img" yaml:"img"`
	ThumbhashImg    ThumbhashImgConfig `mapstructure:"thumbhash_img" yaml:"thumbhash_img"`
	Redis           RedisConfig        `mapstructure:"redis" yaml:"redis"`
	Server          ServerConfig       `mapstructure:"server" yaml:"server"`

	// Logger receives debug output from widgets and the decoder.
	Logger *logrus.Logger `mapstructure:"-" yaml:"-"`

	once    sync.Once
	decoder *placeholder.Decoder
}

// ImgConfig configures the primary image.
type ImgConfig struct {
	DPIScaleFactors []float64 `mapstructure:"dpi_scale_factors" yaml:"dpi_scale_factors"`

	// PlaceholderNode is shown while loading when no thumbhash is given.
	PlaceholderNode any `mapstructure:"-" yaml:"-"`
	// ErrorNode replaces the image after a load failure.
	ErrorNode any `mapstructure:"-" yaml:"-"`
}

// ThumbhashImgConfig configures placeholder decoding.
type ThumbhashImgConfig struct {
	CacheSize             int `mapstructure:"cache_size" yaml:"cache_size"`
	IntersectRootMarginPx int `mapstructure:"intersect_root_margin_px" yaml:"intersect_root_margin_px"`

	// Cache overrides the in-process LRU sized by CacheSize.
	Cache placeholder.Cache `mapstructure:"-" yaml:"-"`
}

// RedisConfig enables a shared remote placeholder cache when Addr is set.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr" yaml:"addr"`
	Password  string        `mapstructure:"password" yaml:"password"`
	DB        int           `mapstructure:"db" yaml:"db"`
	KeyPrefix string        `mapstructure:"key_prefix" yaml:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ServerConfig is used by the preview API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	Mode            string        `mapstructure:"mode" yaml:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns a configuration with every optional field filled in.
// Domain is left empty; callers must set it.
func Default() *Config {
	return &Config{
		BackgroundColor: mutation.DefaultBackground,
		Img: ImgConfig{
			DPIScaleFactors: []float64{1, 2, 3},
		},
		ThumbhashImg: ThumbhashImgConfig{
			CacheSize:             100,
			IntersectRootMarginPx: 200,
		},
		Redis: RedisConfig{
			KeyPrefix: "tgimg:placeholder:",
			TTL:       24 * time.Hour,
			Timeout:   200 * time.Millisecond,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			Mode:            "release",
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Validate checks the fields widgets depend on.
func (c *Config) Validate() error {
	if c.Domain == "" {
		return fmt.Errorf("config: domain is required")
	}
	if strings.Contains(c.Domain, "/") {
		return fmt.Errorf("config: domain %q must be a bare host name", c.Domain)
	}
	if c.BaseURL != "" {
		if _, err := mutation.ParseBaseURL(c.BaseURL); err != nil {
			return fmt.Errorf("config: base_url: %w", err)
		}
	}
	if len(c.Img.DPIScaleFactors) == 0 {
		return fmt.Errorf("config: %w", mutation.ErrNoScaleFactors)
	}
	for _, s := range c.Img.DPIScaleFactors {
		if s <= 0 {
			return fmt.Errorf("config: dpi scale factor %g must be positive", s)
		}
	}
	if c.ThumbhashImg.CacheSize < 1 && c.ThumbhashImg.Cache == nil {
		return fmt.Errorf("config: thumbhash_img.cache_size must be at least 1")
	}
	if c.ThumbhashImg.IntersectRootMarginPx < 0 {
		return fmt.Errorf("config: thumbhash_img.intersect_root_margin_px must not be negative")
	}
	return nil
}

// Placeholders returns the decoder shared by all widgets using c.  It is
// created on first use; the cache is ThumbhashImg.Cache if set, otherwise
// an LRU of ThumbhashImg.CacheSize entries.
func (c *Config) Placeholders() *placeholder.Decoder {
	c.once.Do(func() {
		cache := c.ThumbhashImg.Cache
		if cache == nil {
			cache = lru.NewStringCache(c.ThumbhashImg.CacheSize)
			c.ThumbhashImg.Cache = cache
		}
		c.decoder = placeholder.NewDecoder(cache, c.Logger)
	})
	return c.decoder
}

// Log returns the configured logger or the logrus standard logger.
func (c *Config) Log() *logrus.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.StandardLogger()
}

// ─── Context provider ──────────────────────────────────────────────────────

type ctxKey struct{}

// NewContext returns ctx carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext returns the Config stored by NewContext.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(ctxKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, ErrMissingContext
	}
	return cfg, nil
}
