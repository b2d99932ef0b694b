package pipeline

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"ukbqsm/internal/textutil"
)

//go:embed regions.yaml
var defaultRegionsYAML []byte

// ErrInvalidRegions reports a malformed region threshold table.
var ErrInvalidRegions = errors.New("invalid region table")

// Region is one labelled structure measured from the segmentation.
type Region struct {
	Name  string `yaml:"name"`
	Lower int    `yaml:"lower"`
	Upper int    `yaml:"upper"`
	Erode *bool  `yaml:"erode,omitempty"`
}

// ShouldErode resolves the per-region erosion flag against the default.
func (r Region) ShouldErode(fallback bool) bool {
	if r.Erode != nil {
		return *r.Erode
	}
	return fallback
}

// DefaultRegions returns the built-in subcortical table.
func DefaultRegions() []Region {
	regions, err := ParseRegions(bytes.NewReader(defaultRegionsYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded regions table: %v", err))
	}
	return regions
}

// LoadRegions reads the table at path. A blank or missing path yields the
// built-in table; any other read failure is returned.
func LoadRegions(path string) ([]Region, bool, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultRegions(), false, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultRegions(), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open region table: %w", err)
	}
	defer file.Close()

	regions, err := ParseRegions(file)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	return regions, true, nil
}

// ParseRegions decodes and validates a YAML region list.
func ParseRegions(r io.Reader) ([]Region, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var regions []Region
	if err := dec.Decode(&regions); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty table", ErrInvalidRegions)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegions, err)
	}
	if err := ValidateRegions(regions); err != nil {
		return nil, err
	}
	return regions, nil
}

// ValidateRegions checks names are present and caselessly unique, and that
// label bounds are ordered.
func ValidateRegions(regions []Region) error {
	if len(regions) == 0 {
		return fmt.Errorf("%w: no regions", ErrInvalidRegions)
	}
	seen := make(map[string]string, len(regions))
	for i := range regions {
		r := &regions[i]
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			return fmt.Errorf("%w: entry %d has no name", ErrInvalidRegions, i+1)
		}
		if strings.ContainsAny(r.Name, ",\"\n") {
			return fmt.Errorf("%w: region %q contains CSV metacharacters", ErrInvalidRegions, r.Name)
		}
		key := textutil.FoldKey(r.Name)
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("%w: region %q duplicates %q", ErrInvalidRegions, r.Name, prev)
		}
		seen[key] = r.Name
		if r.Lower > r.Upper {
			return fmt.Errorf("%w: region %q lower %d exceeds upper %d", ErrInvalidRegions, r.Name, r.Lower, r.Upper)
		}
		if r.Lower < 0 {
			return fmt.Errorf("%w: region %q has negative label %d", ErrInvalidRegions, r.Name, r.Lower)
		}
	}
	return nil
}
