package pipeline

import (
	"strings"

	"ukbqsm/internal/config"
)

// Overrides are per-invocation changes to the pipeline configuration.
type Overrides struct {
	NoCorrection bool
	Transform    string
	Threads      int
	DataDir      string
}

// Apply returns a validated copy of cfg with the overrides applied. cfg is
// not modified.
func (o Overrides) Apply(cfg *config.Config) (*config.Config, error) {
	out := *cfg
	if o.NoCorrection {
		out.Pipeline.Correction = false
	}
	if t := strings.TrimSpace(o.Transform); t != "" {
		out.Pipeline.Transform = strings.ToLower(t)
	}
	if o.Threads > 0 {
		out.Pipeline.Threads = o.Threads
	}
	if d := strings.TrimSpace(o.DataDir); d != "" {
		expanded, err := config.ExpandPath(d)
		if err != nil {
			return nil, err
		}
		out.Paths.DataDir = expanded
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}
