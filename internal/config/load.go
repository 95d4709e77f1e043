package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// TGIMG_THUMBHASH_IMG_CACHE_SIZE.
const EnvPrefix = "TGIMG"

// NewViper returns a viper instance seeded with Default() values and wired
// to TGIMG_* environment variables.  Callers may bind flags on it before
// calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault("domain", d.Domain)
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("background_color", d.BackgroundColor)
	v.SetDefault("img.dpi_scale_factors", d.Img.DPIScaleFactors)
	v.SetDefault("thumbhash_img.cache_size", d.ThumbhashImg.CacheSize)
	v.SetDefault("thumbhash_img.intersect_root_margin_px", d.ThumbhashImg.IntersectRootMarginPx)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.key_prefix", d.Redis.KeyPrefix)
	v.SetDefault("redis.ttl", d.Redis.TTL)
	v.SetDefault("redis.timeout", d.Redis.Timeout)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (or ./tgimg.yaml when path is empty and the file
// exists) into v and decodes the result.  A missing default file is not an
// error; a missing explicit path is.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tgimg")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
