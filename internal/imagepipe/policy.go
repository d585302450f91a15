package imagepipe

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Formats the pipeline can encode to. webp and avif have no pure-Go
// encoder and are therefore valid only as pass-through formats.
var encodableFormats = []any{"jpeg", "png", "gif"}

var knownFormats = []any{"jpeg", "png", "gif", "webp", "avif"}

// Policy is the canonical-format policy consumed by the pipeline:
// sources whose format is in PassThrough and within MaxDimension are
// stored byte-for-byte; everything else is re-encoded to TargetFormat.
type Policy struct {
	PassThrough     []string `yaml:"pass_through"`
	TargetFormat    string   `yaml:"target_format"`
	Quality         int      `yaml:"quality"`
	MaxDimension    int      `yaml:"max_dimension"`
	FetchLimitBytes int64    `yaml:"fetch_limit_bytes"`
}

// Validate validates the policy.
func (p *Policy) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.PassThrough, validation.Each(validation.In(knownFormats...))),
		validation.Field(&p.TargetFormat, validation.Required, validation.In(encodableFormats...)),
		validation.Field(&p.Quality, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&p.MaxDimension, validation.Required, validation.Min(16)),
		validation.Field(&p.FetchLimitBytes, validation.Required, validation.Min(int64(1))),
	)
}

// DefaultPolicy returns the JPEG/640px baseline policy.
func DefaultPolicy() Policy {
	return Policy{
		PassThrough:     []string{"jpeg"},
		TargetFormat:    "jpeg",
		Quality:         85,
		MaxDimension:    640,
		FetchLimitBytes: 100 << 10, // 100 KB cap on externally fetched sources
	}
}

func (p *Policy) passesThrough(format string) bool {
	for _, f := range p.PassThrough {
		if f == format {
			return true
		}
	}
	return false
}
