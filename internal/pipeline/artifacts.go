package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"ukbqsm/internal/config"
	"ukbqsm/internal/services/ants"
	"ukbqsm/internal/textutil"
)

// LockFileName is the per-subject lock inside the work directory.
const LockFileName = ".lock"

// Artifacts names every file a subject session reads or writes. It is built
// once per run and shared by all steps.
type Artifacts struct {
	Subject string
	Session int

	InputDir string
	WorkDir  string
	MaskDir  string
	LockPath string
	Marker   string
	IDPFile  string

	T1           string
	Magnitude    string
	QSM          string
	Segmentation string
	Lesions      string

	MNITemplate  string
	SNLeft       string
	SNRight      string
	RegionsTable string

	CorrectedMagnitude string
	Correction         bool
	Transform          ants.Transform

	MagToT1 ants.Outputs
	T1ToMNI ants.Outputs

	QSMInT1  string
	QSMInMNI string

	Aseg       string
	Ventricles string

	WMHMask        string
	LesionsBinary  string
	WMLeft         string
	WMRight        string
	WMMask         string
	WMNoLesionMask string
}

// NewArtifacts resolves all paths for subject and session from cfg.
func NewArtifacts(cfg *config.Config, subject string, session int) (Artifacts, error) {
	if cfg == nil {
		return Artifacts{}, fmt.Errorf("configuration required")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return Artifacts{}, fmt.Errorf("subject required")
	}
	if !textutil.IsToken(strings.ToLower(subject)) {
		return Artifacts{}, fmt.Errorf("subject %q is not a plain identifier", subject)
	}
	if session < 0 {
		return Artifacts{}, fmt.Errorf("session must be non-negative, got %d", session)
	}

	in := cfg.SubjectInputDir(subject, session)
	work := cfg.SubjectWorkDir(subject, session)
	masks := filepath.Join(work, "masks")
	inputs := cfg.Pipeline.Inputs
	ref := cfg.Pipeline.Reference
	data := cfg.Paths.DataDir

	a := Artifacts{
		Subject:  subject,
		Session:  session,
		InputDir: in,
		WorkDir:  work,
		MaskDir:  masks,
		LockPath: filepath.Join(work, LockFileName),
		Marker:   cfg.SubjectCompletionMarker(subject, session),
		IDPFile:  cfg.Paths.IDPFile,

		T1:           filepath.Join(in, inputs.T1),
		Magnitude:    filepath.Join(in, inputs.Magnitude),
		QSM:          filepath.Join(in, inputs.QSM),
		Segmentation: filepath.Join(in, inputs.Segmentation),
		Lesions:      filepath.Join(in, inputs.Lesions),

		MNITemplate:  filepath.Join(data, ref.MNITemplate),
		SNLeft:       filepath.Join(data, ref.SNLeft),
		SNRight:      filepath.Join(data, ref.SNRight),
		RegionsTable: filepath.Join(data, ref.RegionsTable),

		CorrectedMagnitude: filepath.Join(work, "mag_corrected.nii.gz"),
		Correction:         cfg.Pipeline.Correction,
		Transform:          TransformFor(cfg.Pipeline.Transform),

		MagToT1: ants.OutputsFor(filepath.Join(work, "mag2T1_")),
		T1ToMNI: ants.OutputsFor(filepath.Join(work, "T12MNI_")),

		QSMInT1:  filepath.Join(work, "QSM_T1.nii.gz"),
		QSMInMNI: filepath.Join(work, "QSM_MNI.nii.gz"),

		Aseg:       filepath.Join(work, "aseg.nii.gz"),
		Ventricles: filepath.Join(masks, "ventricles.nii.gz"),

		WMHMask:        filepath.Join(masks, "wmh.nii.gz"),
		LesionsBinary:  filepath.Join(masks, "lesions_bin.nii.gz"),
		WMLeft:         filepath.Join(masks, "wm_left.nii.gz"),
		WMRight:        filepath.Join(masks, "wm_right.nii.gz"),
		WMMask:         filepath.Join(masks, "wm.nii.gz"),
		WMNoLesionMask: filepath.Join(masks, "wm_no_lesions.nii.gz"),
	}
	return a, nil
}

// TransformFor maps the configured transform name to the ANTs flag.
func TransformFor(name string) ants.Transform {
	if strings.EqualFold(strings.TrimSpace(name), config.TransformAffine) {
		return ants.TransformAffine
	}
	return ants.TransformSyN
}

// RegistrationMoving is the magnitude image registered to T1.
func (a Artifacts) RegistrationMoving() string {
	if a.Correction {
		return a.CorrectedMagnitude
	}
	return a.Magnitude
}

// RegionMask returns the mask path for a region table entry.
func (a Artifacts) RegionMask(name string) string {
	return filepath.Join(a.MaskDir, "region_"+textutil.SanitizeToken(name)+".nii.gz")
}

// RequiredInputs lists files that must exist before any tool runs.
func (a Artifacts) RequiredInputs() []string {
	return []string{
		a.T1, a.Magnitude, a.QSM, a.Segmentation,
		a.MNITemplate, a.SNLeft, a.SNRight,
	}
}
