package deps

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"time"
)

const probeTimeout = 5 * time.Second

// The banner looks like "7-Zip [64] 16.02 : Copyright ..." or
// "7-Zip (z) 23.01 (x64) : Copyright ...".
var bannerPattern = regexp.MustCompile(`(?m)^7-Zip(?: \[\w+\]| \(\w+\))? (\d+\.\d+(?:\.\d+)?)`)

// ParseBanner extracts the version from 7-Zip's startup banner.
func ParseBanner(output []byte) (string, bool) {
	match := bannerPattern.FindSubmatch(output)
	if match == nil {
		return "", false
	}
	return string(match[1]), true
}

// ProbeVersion runs the binary without arguments, which prints the banner
// and usage, and returns the reported version.
func ProbeVersion(ctx context.Context, binary string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, binary) //nolint:gosec
	cmd.Stdout = &out
	// Usage output may come with a non-zero exit; only the banner matters.
	_ = cmd.Run()
	if version, ok := ParseBanner(out.Bytes()); ok {
		return version, nil
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("probe %s: %w", binary, err)
	}
	return "", fmt.Errorf("probe %s: no 7-Zip banner in output", binary)
}

// Check resolves every requirement and probes the version of those found.
func Check(ctx context.Context, requirements []Requirement) []Status {
	statuses := CheckBinaries(requirements)
	for i := range statuses {
		if !statuses[i].Available {
			continue
		}
		version, err := ProbeVersion(ctx, statuses[i].Path)
		if err != nil {
			statuses[i].Detail = err.Error()
			continue
		}
		statuses[i].Version = version
	}
	return statuses
}
