// Package analysis maps analyzer variant names to forensics.Analyzer
// implementations and runs them with the configured pre-checks.
package analysis

import (
	"context"
	"fmt"
	"image"
	"log"
	"sort"

	"github.com/Molcarrus/image-forensics/internal/config"
	"github.com/Molcarrus/image-forensics/internal/forensics"
	"github.com/Molcarrus/image-forensics/internal/forensics/copymove"
	"github.com/Molcarrus/image-forensics/internal/system"
	"github.com/Molcarrus/image-forensics/internal/textmask"
)

// DefaultVariant is used when no variant is named.
const DefaultVariant = copymove.Kind

// Variant describes one analyzer known to the registry.
type Variant struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Available   bool   `json:"available" yaml:"available"`

	build func(cfg *config.Config) (forensics.Analyzer, error)
}

var registry = make(map[string]Variant)

func register(v Variant) {
	registry[v.Name] = v
}

func init() {
	register(Variant{
		Name:        copymove.Kind,
		Description: "duplicated regions within one image (block DCT matching)",
		Available:   true,
		build: func(cfg *config.Config) (forensics.Analyzer, error) {
			return copymove.NewWithParams(cfg.DetectorParams())
		},
	})

	planned := map[string]string{
		"ela":        "error level analysis of JPEG recompression",
		"noise":      "local noise inconsistency",
		"jpeg-ghost": "JPEG ghosts at alternative qualities",
		"prnu":       "sensor pattern noise correlation",
		"cfa":        "color filter array interpolation traces",
		"pca":        "principal component residuals",
		"benford":    "first-digit statistics of DCT coefficients",
	}
	for name, desc := range planned {
		register(Variant{Name: name, Description: desc})
	}
}

// Variants lists every registered variant sorted by name, with available
// analyzers first.
func Variants() []Variant {
	out := make([]Variant, 0, len(registry))
	for _, v := range registry {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Available != out[j].Available {
			return out[i].Available
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// New builds the analyzer for variant. An empty variant selects
// DefaultVariant.
//
// Unknown variants wrap forensics.ErrInvalidParameter; known variants with
// no implementation wrap forensics.ErrNotImplemented.
func New(variant string, cfg *config.Config) (forensics.Analyzer, error) {
	if variant == "" {
		variant = DefaultVariant
	}
	v, ok := registry[variant]
	if !ok {
		return nil, fmt.Errorf("%w: unknown analyzer %q", forensics.ErrInvalidParameter, variant)
	}
	if v.build == nil {
		return nil, fmt.Errorf("%w: %s", forensics.ErrNotImplemented, variant)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return v.build(cfg)
}

// Run analyzes img with the copy-move detector configured by cfg.
//
// Before the analysis it checks the estimated working memory against
// cfg.MemoryHeadroom and, when cfg.TextMask is set, excludes detected text
// regions from matching. The excluded regions are returned alongside the
// result.
func Run(ctx context.Context, cfg *config.Config, img image.Image) (*copymove.Result, []textmask.Region, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if img == nil {
		return nil, nil, fmt.Errorf("%w: nil image", forensics.ErrAnalysis)
	}
	p := cfg.DetectorParams()
	if p.Logf == nil && cfg.Debug() {
		p.Logf = log.Printf
	}

	b := img.Bounds()
	if err := system.CheckBudget(system.EstimateMemory(b.Dx(), b.Dy(), p), cfg.MemoryHeadroom); err != nil {
		return nil, nil, err
	}

	masker, err := textmask.New(cfg.TextMask, cfg.OCRLanguage)
	if err != nil {
		return nil, nil, err
	}
	var regions []textmask.Region
	if masker != nil {
		regions, err = masker.Regions(img)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: text mask: %w", forensics.ErrAnalysis, err)
		}
		p.ExcludeRegions = append(p.ExcludeRegions, textmask.Rectangles(regions)...)
		if cfg.Debug() {
			log.Printf("text mask %s: %d regions excluded", cfg.TextMask, len(regions))
		}
	}

	d, err := copymove.NewWithParams(p)
	if err != nil {
		return nil, nil, err
	}
	res, err := d.Detect(ctx, img)
	if err != nil {
		return nil, nil, err
	}
	return res, regions, nil
}
