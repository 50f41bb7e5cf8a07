package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"sevenstream/internal/config"
)

// Requirement defines an external binary sevenstream can drive.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name" yaml:"name"`
	Command     string `json:"command" yaml:"command"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Optional    bool   `json:"optional" yaml:"optional"`
	Available   bool   `json:"available" yaml:"available"`
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
	Detail      string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// alternates are the other names 7-Zip ships under.
var alternates = []string{"7z", "7zz", "7za", "7zr"}

// Requirements lists the configured binary followed by the other 7-Zip
// builds as optional fallbacks.
func Requirements(cfg *config.Config) []Requirement {
	configured := strings.TrimSpace(cfg.SevenZip.Binary)
	reqs := []Requirement{{
		Name:        "7-Zip",
		Command:     configured,
		Description: "Configured archiver binary",
	}}
	for _, name := range alternates {
		if name == configured {
			continue
		}
		reqs = append(reqs, Requirement{
			Name:        name,
			Command:     name,
			Description: "Alternative 7-Zip build",
			Optional:    true,
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = resolved
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the required dependencies that are unavailable.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			missing = append(missing, status)
		}
	}
	return missing
}
