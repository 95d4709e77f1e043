package pipeline

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/AnyUserName/tgimg-render/internal/manifest"
	"github.com/AnyUserName/tgimg-render/internal/mutation"
	"github.com/AnyUserName/tgimg-render/internal/placeholder"
	"github.com/AnyUserName/tgimg-render/internal/profile"
)

// PoolEntryKB is the approximate size of one thumbhash sync.Pool entry:
// four 100×100 float64 channels plus the cosine row.
const PoolEntryKB = 313

// Config holds all parameters for a planning run.
type Config struct {
	InputDir        string
	Profile         profile.Profile
	Domain          string
	BaseURL         string
	BackgroundColor string
	// SourcePrefix is prepended to each relative path to form the source
	// ref widgets will pass, e.g. "https://myapp.com/static/" or "" for
	// CDN file ids.
	SourcePrefix string
	Workers      int
	// Decoder computes placeholder colours and ratios.  With Warm set it
	// also decodes every preview into its cache.
	Decoder *placeholder.Decoder
	Warm    bool
	Log     *logrus.Logger
}

// Pipeline scans a directory and plans every image in it.
type Pipeline struct {
	cfg Config
	fit mutation.Fit
	log *logrus.Entry
}

// New creates a configured pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.Decoder == nil {
		return nil, fmt.Errorf("pipeline: placeholder decoder is required")
	}
	if len(cfg.Profile.DPIScaleFactors) == 0 {
		return nil, fmt.Errorf("pipeline: profile %s: %w", cfg.Profile.Name, mutation.ErrNoScaleFactors)
	}
	fit, err := cfg.Profile.FitPolicy()
	if err != nil {
		return nil, fmt.Errorf("pipeline: profile %s: %w", cfg.Profile.Name, err)
	}
	return &Pipeline{
		cfg: cfg,
		fit: fit,
		log: cfg.Log.WithField("component", "pipeline"),
	}, nil
}

// Run executes the full planning pass and returns the manifest.
func (p *Pipeline) Run() (*manifest.Manifest, error) {
	// Step 1: Scan for images.
	sources, err := ScanImages(p.cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no images found in %s", p.cfg.InputDir)
	}
	p.log.Debugf("found %d images", len(sources))

	// Step 2: Process images in parallel.
	results := make([]processResult, len(sources))
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.cfg.Workers)

	for i, src := range sources {
		wg.Add(1)
		go func(idx int, s Source) {
			defer wg.Done()
			sem <- struct{}{}        // acquire
			defer func() { <-sem }() // release

			p.log.Debugf("processing: %s", s.Key)
			results[idx] = p.processImage(s)
		}(i, src)
	}
	wg.Wait()

	// Step 3: Collect results into manifest.
	m := manifest.New(p.cfg.Profile.Name, p.cfg.Domain)

	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		m.Assets[r.key] = r.asset
	}

	// Report errors but don't fail the entire run for partial failures.
	if len(errs) > 0 {
		for _, e := range errs {
			p.log.WithError(e).Error("image failed")
		}
		if len(errs) == len(sources) {
			return nil, fmt.Errorf("all %d images failed to process", len(errs))
		}
		p.log.Warnf("%d of %d images had errors", len(errs), len(sources))
	}

	m.BuildInfo = &manifest.BuildInfo{
		Workers:            p.cfg.Workers,
		PoolEntryKB:        PoolEntryKB,
		PlaceholderDecodes: p.cfg.Decoder.Decodes(),
	}
	m.ComputeStats()
	return m, nil
}
