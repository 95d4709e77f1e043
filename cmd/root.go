package cmd

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/AnyUserName/tgimg-render/internal/config"
	"github.com/AnyUserName/tgimg-render/internal/rediscache"
)

var (
	version = "0.2.0"
	verbose bool
	cfgFile string
	dprFlag string

	v   = config.NewViper()
	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "tgimg",
	Short: "Progressive image rendering toolkit for Telegram Mini Apps",
	Long: `tgimg — builds CDN transformation URLs for every pixel density,
decodes thumbhash placeholders (average colour, aspect ratio, blurred
preview) and plans render manifests for the @tgimg/react runtime component.

Configuration is read from ./tgimg.yaml (or --config) and TGIMG_* env vars.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default ./tgimg.yaml)")
	pf.String("domain", "", "CDN domain, e.g. cdn.myapp.com")
	pf.String("base-url", "", "document base URL for relative external sources")
	pf.String("redis", "", "redis address for a shared placeholder cache")
	pf.StringVar(&dprFlag, "dpr", "", "comma separated DPI scale factors (default from config)")

	_ = v.BindPFlag("domain", pf.Lookup("domain"))
	_ = v.BindPFlag("base_url", pf.Lookup("base-url"))
	_ = v.BindPFlag("redis.addr", pf.Lookup("redis"))

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"tgimg %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

func setupLogging(*cobra.Command, []string) error {
	log.SetFormatter(prefixFormatter{})
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return nil
}

// logVerbose prints a message only when --verbose is set.
func logVerbose(format string, args ...any) {
	log.Debugf(format, args...)
}

// loadConfig resolves file, env and flags into a Config.  When requireDomain
// is set the result must pass Validate.
func loadConfig(requireDomain bool) (*config.Config, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.Logger = log

	if dprFlag != "" {
		factors, err := parseFactors(dprFlag)
		if err != nil {
			return nil, err
		}
		cfg.Img.DPIScaleFactors = factors
	}

	if requireDomain {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	if cfg.Redis.Addr != "" && cfg.ThumbhashImg.Cache == nil {
		cfg.ThumbhashImg.Cache = rediscache.New(rediscache.Dial(cfg.Redis), cfg.Redis, cfg.ThumbhashImg.CacheSize, log)
		logVerbose("placeholder cache: redis %s (prefix %q)", cfg.Redis.Addr, cfg.Redis.KeyPrefix)
	}
	return cfg, nil
}

func parseFactors(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid scale factor %q", part)
		}
		out = append(out, f)
	}
	return out, nil
}
