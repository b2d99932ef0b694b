package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"ukbqsm/internal/report"
	"ukbqsm/internal/setgraph"
	"ukbqsm/internal/textutil"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFields(); err != nil {
		return err
	}
	if _, err := c.SetGraph(); err != nil {
		return fmt.Errorf("derived: %w", err)
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	required := []struct {
		key   string
		value string
	}{
		{"paths.lists_dir", c.Paths.ListsDir},
		{"paths.input_dir", c.Paths.InputDir},
		{"paths.work_dir", c.Paths.WorkDir},
		{"paths.data_dir", c.Paths.DataDir},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s must be set", r.key)
		}
	}
	return nil
}

// reservedListName is taken by the summary file in the lists directory.
var reservedListName = strings.TrimSuffix(report.FileName, filepath.Ext(report.FileName))

func (c *Config) validateFields() error {
	if len(c.Fields) == 0 {
		return errors.New("at least one field must be configured")
	}
	seen := make(map[string]struct{}, len(c.Fields))
	for i, f := range c.Fields {
		if f.Name == "" {
			return fmt.Errorf("fields[%d].name must be set", i)
		}
		if !textutil.IsToken(f.Name) {
			return fmt.Errorf("fields[%d].name %q must be a lowercase token (letters, digits, '-' or '_')", i, f.Name)
		}
		if f.Name == reservedListName {
			return fmt.Errorf("fields[%d].name %q is reserved for the summary file", i, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("fields: duplicate name %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		if len(f.Dirs) == 0 {
			return fmt.Errorf("fields.%s: set dirs, code or prefix", f.Name)
		}
		if f.Flat() {
			if err := validateMarker(f.Marker); err != nil {
				return fmt.Errorf("fields.%s.marker: %w", f.Name, err)
			}
			continue
		}
		if f.Marker != "" {
			return fmt.Errorf("fields.%s.marker requires prefix", f.Name)
		}
		if !strings.HasPrefix(f.Extension, ".") {
			return fmt.Errorf("fields.%s.extension %q must start with '.'", f.Name, f.Extension)
		}
	}
	for i, d := range c.Derived {
		if !textutil.IsToken(d.Name) {
			return fmt.Errorf("derived[%d].name %q must be a lowercase token (letters, digits, '-' or '_')", i, d.Name)
		}
		if d.Name == reservedListName {
			return fmt.Errorf("derived[%d].name %q is reserved for the summary file", i, d.Name)
		}
	}
	return nil
}

func validateMarker(marker string) error {
	if marker == "" {
		return nil
	}
	if filepath.IsAbs(marker) {
		return fmt.Errorf("%q must be relative to the entry", marker)
	}
	for _, part := range strings.Split(filepath.ToSlash(marker), "/") {
		if part == ".." {
			return fmt.Errorf("%q must stay inside the entry", marker)
		}
	}
	if _, err := filepath.Match(marker, ""); err != nil {
		return fmt.Errorf("%q: %w", marker, err)
	}
	return nil
}

// SetGraph builds the derived-set graph over the configured fields.
func (c *Config) SetGraph() (*setgraph.Graph, error) {
	nodes := make([]setgraph.Node, 0, len(c.Derived))
	for _, d := range c.Derived {
		nodes = append(nodes, setgraph.Node{Name: d.Name, Op: setgraph.Op(d.Op), Inputs: d.Inputs})
	}
	return setgraph.New(c.FieldNames(), nodes)
}

func (c *Config) validatePipeline() error {
	switch c.Pipeline.Transform {
	case TransformAffine, TransformDeformable:
	default:
		return fmt.Errorf("pipeline.transform must be %q or %q, got %q", TransformAffine, TransformDeformable, c.Pipeline.Transform)
	}
	if c.Pipeline.Threads < 1 {
		return errors.New("pipeline.threads must be at least 1")
	}
	if c.Pipeline.HomogeneitySigmaMM <= 0 {
		return errors.New("pipeline.homogeneity_sigma_mm must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}
