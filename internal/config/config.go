package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directories and files the workflow reads and writes.
type Paths struct {
	BulkRoot   string `toml:"bulk_root"`
	ListsDir   string `toml:"lists_dir"`
	InputDir   string `toml:"input_dir"`
	WorkDir    string `toml:"work_dir"`
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	IDPFile    string `toml:"idp_file"`
	LedgerPath string `toml:"ledger_path"`
}

// Field describes one bulk-data field whose subjects are extracted from disk.
// A field with a Prefix is read from a flat directory of prefixed entries;
// otherwise its directories are walked for archive files.
type Field struct {
	Name      string   `toml:"name"`
	Code      string   `toml:"code"`
	Dirs      []string `toml:"dirs"`
	Extension string   `toml:"extension"`
	Delimiter string   `toml:"delimiter"`
	MaxDepth  int      `toml:"max_depth"`
	Prefix    string   `toml:"prefix"`
	Marker    string   `toml:"marker"`
}

// Flat reports whether the field is read from prefixed directory entries.
func (f Field) Flat() bool {
	return strings.TrimSpace(f.Prefix) != ""
}

// Derived describes a set computed from fields or other derived sets.
type Derived struct {
	Name   string   `toml:"name"`
	Op     string   `toml:"op"`
	Inputs []string `toml:"inputs"`
}

// PipelineInputs names the per-subject input files inside the subject directory.
type PipelineInputs struct {
	T1           string `toml:"t1"`
	Magnitude    string `toml:"magnitude"`
	QSM          string `toml:"qsm"`
	Segmentation string `toml:"segmentation"`
	Lesions      string `toml:"lesions"`
}

// PipelineReference names the reference images inside the data directory.
type PipelineReference struct {
	MNITemplate  string `toml:"mni_template"`
	SNLeft       string `toml:"sn_left"`
	SNRight      string `toml:"sn_right"`
	RegionsTable string `toml:"regions_table"`
}

// Pipeline contains per-subject processing settings.
type Pipeline struct {
	Correction         bool              `toml:"correction"`
	Transform          string            `toml:"transform"`
	Threads            int               `toml:"threads"`
	HomogeneitySigmaMM float64           `toml:"homogeneity_sigma_mm"`
	ErodeRegions       bool              `toml:"erode_regions"`
	Inputs             PipelineInputs    `toml:"inputs"`
	Reference          PipelineReference `toml:"reference"`
}

// Tools contains external executable names or paths.
type Tools struct {
	ANTsRegistration string `toml:"ants_registration"`
	ANTsApply        string `toml:"ants_apply"`
	FSLMaths         string `toml:"fslmaths"`
	FSLStats         string `toml:"fslstats"`
	MRIConvert       string `toml:"mri_convert"`
	MRIBinarize      string `toml:"mri_binarize"`
	Julia            string `toml:"julia"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ukbqsm.
//
// Configuration sections by subsystem:
//   - Paths: bulk data, list, work, reference and output locations
//   - Fields: subject sources scanned during reconciliation
//   - Derived: the set graph evaluated over the fields
//   - Pipeline: per-subject processing knobs and file names
//   - Tools: external executable names
//   - Logging: log format and level
type Config struct {
	Paths    Paths     `toml:"paths"`
	Fields   []Field   `toml:"fields"`
	Derived  []Derived `toml:"derived"`
	Pipeline Pipeline  `toml:"pipeline"`
	Tools    Tools     `toml:"tools"`
	Logging  Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// Tables in the file replace the default graph wholesale; normalize
		// restores the defaults when the file omits them.
		cfg.Fields = nil
		cfg.Derived = nil
		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the workflow writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.ListsDir,
		c.Paths.WorkDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.IDPFile),
		filepath.Dir(c.Paths.LedgerPath),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FieldNames returns the configured field names in declaration order.
func (c *Config) FieldNames() []string {
	names := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Field returns the field with the given name.
func (c *Config) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// SubjectInputDir returns the directory holding one subject's input images.
func (c *Config) SubjectInputDir(subject string, session int) string {
	return filepath.Join(c.Paths.InputDir, fmt.Sprintf("%s_%d", subject, session))
}

// SubjectCompletionMarker returns the file written when a subject session
// finishes the pipeline.
func (c *Config) SubjectCompletionMarker(subject string, session int) string {
	return filepath.Join(c.SubjectWorkDir(subject, session), CompletionMarker)
}

// SubjectWorkDir returns the directory holding one subject's working files.
func (c *Config) SubjectWorkDir(subject string, session int) string {
	return filepath.Join(c.Paths.WorkDir, processedPrefix+subject, fmt.Sprintf("ses-%d", session))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
