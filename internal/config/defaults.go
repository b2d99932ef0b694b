package config

import (
	"path/filepath"

	"ukbqsm/internal/subjects"
)

const (
	defaultConfigPath  = "~/.config/ukbqsm/config.toml"
	projectConfigName  = "ukbqsm.toml"
	defaultBulkRoot    = "~/ukb/bulk"
	defaultListsDir    = "~/ukb/lists"
	defaultInputDir    = "~/ukb/inputs"
	defaultWorkDir     = "~/ukb/work"
	defaultDataDir     = "~/ukb/data"
	defaultLogDir      = "~/.local/share/ukbqsm/logs"
	defaultIDPFileName = "qsm_idps.csv"
	defaultLedgerPath  = "~/.local/share/ukbqsm/ledger.db"
	defaultLogFormat   = "console"
	defaultLogLevel    = "info"

	processedPrefix = "sub-"
	processedMarker = "ses-*/" + CompletionMarker

	// CompletionMarker is written inside a session work directory once every
	// pipeline step has succeeded.
	CompletionMarker = ".complete"

	TransformAffine     = "affine"
	TransformDeformable = "deformable"

	defaultTransform          = TransformDeformable
	defaultThreads            = 4
	defaultHomogeneitySigmaMM = 7.0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			BulkRoot:   defaultBulkRoot,
			ListsDir:   defaultListsDir,
			InputDir:   defaultInputDir,
			WorkDir:    defaultWorkDir,
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			LedgerPath: defaultLedgerPath,
		},
		Fields:  DefaultFields(),
		Derived: DefaultDerived(),
		Pipeline: Pipeline{
			Correction:         true,
			Transform:          defaultTransform,
			Threads:            defaultThreads,
			HomogeneitySigmaMM: defaultHomogeneitySigmaMM,
			ErodeRegions:       true,
			Inputs:             defaultInputs(),
			Reference:          defaultReference(),
		},
		Tools:   defaultTools(),
		Logging: Logging{Format: defaultLogFormat, Level: defaultLogLevel},
	}
}

// DefaultFields returns the four imaging fields plus the processed set.
// Directories are left empty so normalize can place them under bulk_root.
func DefaultFields() []Field {
	return []Field{
		{Name: "t1", Code: "20252"},
		{Name: "swi", Code: "20251"},
		{Name: "flair", Code: "20253"},
		{Name: "aseg", Code: "20263"},
		{Name: "processed", Prefix: processedPrefix, Marker: processedMarker},
	}
}

// DefaultDerived returns the standard reconciliation chain.
func DefaultDerived() []Derived {
	return []Derived{
		{Name: "core", Op: "intersect", Inputs: []string{"t1", "swi", "flair", "aseg"}},
		{Name: "todo", Op: "complement", Inputs: []string{"core", "processed"}},
		{Name: "stale", Op: "complement", Inputs: []string{"processed", "core"}},
		{Name: "t1_swi_aseg", Op: "intersect", Inputs: []string{"t1", "swi", "aseg"}},
		{Name: "no_flair", Op: "complement", Inputs: []string{"t1_swi_aseg", "flair"}},
	}
}

func defaultInputs() PipelineInputs {
	return PipelineInputs{
		T1:           "T1.nii.gz",
		Magnitude:    "SWI_mag.nii.gz",
		QSM:          "QSM.nii.gz",
		Segmentation: "aseg.mgz",
		Lesions:      "lesions.nii.gz",
	}
}

func defaultReference() PipelineReference {
	return PipelineReference{
		MNITemplate:  "MNI152_T1_1mm.nii.gz",
		SNLeft:       "SN_left_MNI.nii.gz",
		SNRight:      "SN_right_MNI.nii.gz",
		RegionsTable: "regions.yaml",
	}
}

func defaultTools() Tools {
	return Tools{
		ANTsRegistration: "antsRegistrationSyNQuick.sh",
		ANTsApply:        "antsApplyTransforms",
		FSLMaths:         "fslmaths",
		FSLStats:         "fslstats",
		MRIConvert:       "mri_convert",
		MRIBinarize:      "mri_binarize",
		Julia:            "julia",
	}
}

func defaultFieldDir(bulkRoot string, f Field) string {
	return filepath.Join(bulkRoot, f.Code)
}

func defaultArchiveOptions() subjects.ArchiveOptions {
	return subjects.ArchiveOptions{
		Extension: subjects.DefaultExtension,
		Delimiter: subjects.DefaultDelimiter,
		MaxDepth:  subjects.DefaultMaxDepth,
	}
}
