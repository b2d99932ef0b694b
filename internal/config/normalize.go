package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ukbqsm/internal/subjects"
)

func (c *Config) normalize() error {
	c.applyPathEnv()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeFields(); err != nil {
		return err
	}
	c.normalizeDerived()
	c.normalizePipeline()
	c.normalizeTools()
	c.normalizeLogging()
	return nil
}

func (c *Config) applyPathEnv() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"UKBQSM_BULK_ROOT", &c.Paths.BulkRoot},
		{"UKBQSM_LISTS_DIR", &c.Paths.ListsDir},
		{"UKBQSM_INPUT_DIR", &c.Paths.InputDir},
		{"UKBQSM_WORK_DIR", &c.Paths.WorkDir},
		{"UKBQSM_DATA_DIR", &c.Paths.DataDir},
	}
	for _, o := range overrides {
		if value, ok := os.LookupEnv(o.env); ok && strings.TrimSpace(value) != "" {
			*o.target = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.BulkRoot) == "" {
		c.Paths.BulkRoot = defaultBulkRoot
	}
	if c.Paths.BulkRoot, err = expandPath(c.Paths.BulkRoot); err != nil {
		return fmt.Errorf("paths.bulk_root: %w", err)
	}
	if c.Paths.ListsDir, err = expandPath(c.Paths.ListsDir); err != nil {
		return fmt.Errorf("paths.lists_dir: %w", err)
	}
	if c.Paths.InputDir, err = expandPath(c.Paths.InputDir); err != nil {
		return fmt.Errorf("paths.input_dir: %w", err)
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.IDPFile) == "" && c.Paths.WorkDir != "" {
		c.Paths.IDPFile = filepath.Join(c.Paths.WorkDir, defaultIDPFileName)
	}
	if c.Paths.IDPFile, err = expandPath(c.Paths.IDPFile); err != nil {
		return fmt.Errorf("paths.idp_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.LedgerPath) == "" {
		c.Paths.LedgerPath = defaultLedgerPath
	}
	if c.Paths.LedgerPath, err = expandPath(c.Paths.LedgerPath); err != nil {
		return fmt.Errorf("paths.ledger_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeFields() error {
	if len(c.Fields) == 0 {
		c.Fields = DefaultFields()
	}
	defaults := defaultArchiveOptions()
	for i := range c.Fields {
		f := &c.Fields[i]
		f.Name = strings.TrimSpace(f.Name)
		f.Code = strings.TrimSpace(f.Code)
		f.Prefix = strings.TrimSpace(f.Prefix)
		f.Marker = strings.TrimSpace(f.Marker)

		if dirs, ok := os.LookupEnv(FieldDirsEnv(f.Name)); ok && strings.TrimSpace(dirs) != "" {
			f.Dirs = filepath.SplitList(dirs)
		}
		if len(f.Dirs) == 0 {
			switch {
			case f.Flat():
				f.Dirs = []string{c.Paths.WorkDir}
			case f.Code != "":
				f.Dirs = []string{defaultFieldDir(c.Paths.BulkRoot, *f)}
			}
		}
		dirs := make([]string, 0, len(f.Dirs))
		for _, dir := range f.Dirs {
			if strings.TrimSpace(dir) == "" {
				continue
			}
			expanded, err := expandPath(strings.TrimSpace(dir))
			if err != nil {
				return fmt.Errorf("fields.%s.dirs: %w", f.Name, err)
			}
			dirs = append(dirs, expanded)
		}
		f.Dirs = dirs

		if f.Flat() {
			continue
		}
		if strings.TrimSpace(f.Extension) == "" {
			f.Extension = defaults.Extension
		}
		if f.Delimiter == "" {
			f.Delimiter = defaults.Delimiter
		}
		if f.MaxDepth <= 0 {
			f.MaxDepth = defaults.MaxDepth
		}
	}
	return nil
}

// FieldDirsEnv returns the environment variable overriding a field's
// directories, for example UKBQSM_FIELD_T1_DIRS.
func FieldDirsEnv(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(name)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return "UKBQSM_FIELD_" + b.String() + "_DIRS"
}

// ArchiveOptions returns the extraction options for an archive field.
func (f Field) ArchiveOptions() subjects.ArchiveOptions {
	return subjects.ArchiveOptions{
		Extension: f.Extension,
		Delimiter: f.Delimiter,
		MaxDepth:  f.MaxDepth,
	}
}

func (c *Config) normalizeDerived() {
	if len(c.Derived) == 0 {
		c.Derived = DefaultDerived()
	}
	for i := range c.Derived {
		d := &c.Derived[i]
		d.Name = strings.TrimSpace(d.Name)
		d.Op = strings.ToLower(strings.TrimSpace(d.Op))
		for j := range d.Inputs {
			d.Inputs[j] = strings.TrimSpace(d.Inputs[j])
		}
	}
}

func (c *Config) normalizePipeline() {
	c.Pipeline.Transform = strings.ToLower(strings.TrimSpace(c.Pipeline.Transform))
	if c.Pipeline.Transform == "" {
		c.Pipeline.Transform = defaultTransform
	}
	if c.Pipeline.Threads == 0 {
		c.Pipeline.Threads = defaultThreads
	}
	if c.Pipeline.HomogeneitySigmaMM == 0 {
		c.Pipeline.HomogeneitySigmaMM = defaultHomogeneitySigmaMM
	}

	inputs, ref := defaultInputs(), defaultReference()
	fillString(&c.Pipeline.Inputs.T1, inputs.T1)
	fillString(&c.Pipeline.Inputs.Magnitude, inputs.Magnitude)
	fillString(&c.Pipeline.Inputs.QSM, inputs.QSM)
	fillString(&c.Pipeline.Inputs.Segmentation, inputs.Segmentation)
	fillString(&c.Pipeline.Inputs.Lesions, inputs.Lesions)
	fillString(&c.Pipeline.Reference.MNITemplate, ref.MNITemplate)
	fillString(&c.Pipeline.Reference.SNLeft, ref.SNLeft)
	fillString(&c.Pipeline.Reference.SNRight, ref.SNRight)
	fillString(&c.Pipeline.Reference.RegionsTable, ref.RegionsTable)
}

func (c *Config) normalizeTools() {
	tools := defaultTools()
	fillString(&c.Tools.ANTsRegistration, tools.ANTsRegistration)
	fillString(&c.Tools.ANTsApply, tools.ANTsApply)
	fillString(&c.Tools.FSLMaths, tools.FSLMaths)
	fillString(&c.Tools.FSLStats, tools.FSLStats)
	fillString(&c.Tools.MRIConvert, tools.MRIConvert)
	fillString(&c.Tools.MRIBinarize, tools.MRIBinarize)
	fillString(&c.Tools.Julia, tools.Julia)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func fillString(target *string, fallback string) {
	*target = strings.TrimSpace(*target)
	if *target == "" {
		*target = fallback
	}
}
