package deps

import (
	"fmt"
	"os"
	"strings"

	"ukbqsm/internal/config"
)

// Requirements lists the configured tool binaries. Homogeneity correction
// makes julia required; otherwise it is optional.
func Requirements(cfg *config.Config) []Requirement {
	t := cfg.Tools
	return []Requirement{
		{Name: "ANTs registration", Command: t.ANTsRegistration, Description: "Registers magnitude to T1 and T1 to MNI152"},
		{Name: "ANTs apply", Command: t.ANTsApply, Description: "Resamples QSM into T1 and MNI space"},
		{Name: "fslmaths", Command: t.FSLMaths, Description: "Builds region and white-matter masks"},
		{Name: "fslstats", Command: t.FSLStats, Description: "Computes masked medians"},
		{Name: "mri_convert", Command: t.MRIConvert, Description: "Converts the FreeSurfer segmentation"},
		{Name: "mri_binarize", Command: t.MRIBinarize, Description: "Extracts the ventricle mask"},
		{Name: "Julia", Command: t.Julia, Description: "Runs MriResearchTools homogeneity correction", Optional: !cfg.Pipeline.Correction},
	}
}

// EnvRequirement names an environment variable a tool suite expects.
type EnvRequirement struct {
	Name     string
	Variable string
}

// ToolEnvironment lists the installation variables of FSL and FreeSurfer.
// They are reported only; the pipeline never reads them.
func ToolEnvironment() []EnvRequirement {
	return []EnvRequirement{
		{Name: "FSL", Variable: "FSLDIR"},
		{Name: "FreeSurfer", Variable: "FREESURFER_HOME"},
	}
}

// CheckEnvironment reports whether each variable names an existing directory.
// Results are always optional.
func CheckEnvironment(reqs []EnvRequirement) []Status {
	out := make([]Status, 0, len(reqs))
	for _, req := range reqs {
		status := Status{
			Name:        req.Name + " home",
			Command:     "$" + req.Variable,
			Description: fmt.Sprintf("%s installation directory", req.Name),
			Optional:    true,
		}
		value := strings.TrimSpace(os.Getenv(req.Variable))
		switch {
		case value == "":
			status.Detail = req.Variable + " not set"
		default:
			info, err := os.Stat(value)
			if err != nil || !info.IsDir() {
				status.Detail = fmt.Sprintf("%s=%s is not a directory", req.Variable, value)
				break
			}
			status.Available = true
			status.Path = value
		}
		out = append(out, status)
	}
	return out
}
