package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
)

// Presentation is the theme and wording used when rendering the board and
// the aging report. Domain logic never reads it.
type Presentation struct {
	Palette     Palette     `yaml:"palette"`
	Terminology Terminology `yaml:"terminology"`
}

// Palette holds hex colors.
type Palette struct {
	Accent  string            `yaml:"accent"`
	Muted   string            `yaml:"muted"`
	Danger  string            `yaml:"danger"`
	Stages  map[string]string `yaml:"stages"`
	Buckets map[string]string `yaml:"buckets"`
}

// Terminology holds display labels.
type Terminology struct {
	Stages   map[string]string `yaml:"stages"`
	Buckets  map[string]string `yaml:"buckets"`
	Unknown  string            `yaml:"unknown_account"`
	Currency string            `yaml:"currency"`
}

// DefaultPresentation returns the built-in profile.
func DefaultPresentation() *Presentation {
	return &Presentation{
		Palette: Palette{
			Accent: "#6366F1",
			Muted:  "#6B7280",
			Danger: "#DC2626",
			Stages: map[string]string{
				string(domain.StageHook):       "#3B82F6",
				string(domain.StageEngagement): "#EAB308",
				string(domain.StageSales):      "#F97316",
				string(domain.StageRetention):  "#22C55E",
				string(domain.StageWon):        "#16A34A",
				string(domain.StageLost):       "#9CA3AF",
			},
			Buckets: map[string]string{
				string(domain.Bucket1To30):  "#F59E0B",
				string(domain.Bucket31To60): "#F97316",
				string(domain.Bucket60Plus): "#DC2626",
			},
		},
		Terminology: Terminology{
			Stages: map[string]string{
				string(domain.StageHook):       "Hook (Trial)",
				string(domain.StageEngagement): "Engagement",
				string(domain.StageSales):      "Sales",
				string(domain.StageRetention):  "Retention",
				string(domain.StageWon):        "Won",
				string(domain.StageLost):       "Lost",
			},
			Buckets: map[string]string{
				string(domain.BucketCurrent): "Current",
				string(domain.Bucket1To30):   "1 - 30 Days",
				string(domain.Bucket31To60):  "31 - 60 Days",
				string(domain.Bucket60Plus):  "60+ Days",
			},
			Unknown:  domain.UnknownAccount,
			Currency: "USD",
		},
	}
}

// LoadPresentation reads a YAML profile and merges it over the defaults.
// An empty path returns the defaults.
func LoadPresentation(path string) (*Presentation, error) {
	p := DefaultPresentation()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presentation file: %w", err)
	}

	var override Presentation
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse presentation file: %w", err)
	}
	p.Merge(&override)

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Merge copies every non-empty value of other into p.
func (p *Presentation) Merge(other *Presentation) {
	if other == nil {
		return
	}
	setIf(&p.Palette.Accent, other.Palette.Accent)
	setIf(&p.Palette.Muted, other.Palette.Muted)
	setIf(&p.Palette.Danger, other.Palette.Danger)
	mergeMap(p.Palette.Stages, other.Palette.Stages)
	mergeMap(p.Palette.Buckets, other.Palette.Buckets)

	mergeMap(p.Terminology.Stages, other.Terminology.Stages)
	mergeMap(p.Terminology.Buckets, other.Terminology.Buckets)
	setIf(&p.Terminology.Unknown, other.Terminology.Unknown)
	setIf(&p.Terminology.Currency, other.Terminology.Currency)
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Validate checks colors and map keys.
func (p *Presentation) Validate() error {
	colors := map[string]string{
		"palette.accent": p.Palette.Accent,
		"palette.muted":  p.Palette.Muted,
		"palette.danger": p.Palette.Danger,
	}
	for k, v := range p.Palette.Stages {
		colors["palette.stages."+k] = v
	}
	for k, v := range p.Palette.Buckets {
		colors["palette.buckets."+k] = v
	}
	for field, c := range colors {
		if !hexColor.MatchString(c) {
			return fmt.Errorf("%s: %q is not a hex color", field, c)
		}
	}

	for k := range p.Terminology.Stages {
		if !domain.Stage(k).Valid() {
			return fmt.Errorf("terminology.stages: unknown stage %q", k)
		}
	}
	for k := range p.Palette.Stages {
		if !domain.Stage(k).Valid() {
			return fmt.Errorf("palette.stages: unknown stage %q", k)
		}
	}
	return nil
}

// StageLabel returns the display label of a stage.
func (p *Presentation) StageLabel(s domain.Stage) string {
	if l := p.Terminology.Stages[string(s)]; l != "" {
		return l
	}
	return string(s)
}

// BucketLabel returns the display label of an aging bucket.
func (p *Presentation) BucketLabel(b domain.Bucket) string {
	if l := p.Terminology.Buckets[string(b)]; l != "" {
		return l
	}
	return string(b)
}

// StageColor returns the color of a stage, or the accent color.
func (p *Presentation) StageColor(s domain.Stage) string {
	if c := p.Palette.Stages[string(s)]; c != "" {
		return c
	}
	return p.Palette.Accent
}

// BucketColor returns the color of an aging bucket, or the muted color.
func (p *Presentation) BucketColor(b domain.Bucket) string {
	if c := p.Palette.Buckets[string(b)]; c != "" {
		return c
	}
	return p.Palette.Muted
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeMap(dst, src map[string]string) {
	for k, v := range src {
		if v != "" {
			dst[k] = v
		}
	}
}
