// Package deps resolves the external binaries shotdetect shells out to and
// reports whether they can run.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

var lookPath = exec.LookPath

// Requirement names an external binary and why it is needed.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the resolution result for one Requirement. Path is the
// absolute location found on PATH; Version is filled by AnnotateVersions.
type Status struct {
	Requirement
	Path      string
	Version   string
	Available bool
	Detail    string
}

// CheckBinaries resolves every requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		req.Description = strings.TrimSpace(req.Description)
		results = append(results, resolve(req))
	}
	return results
}

func resolve(req Requirement) Status {
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := lookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Path = path
	status.Available = true
	return status
}
