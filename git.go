package misc

import (
	"context"
	"os/exec"
	"strings"
)

// GitVersionPrefix starts every non-empty result of GitVersion.
const GitVersionPrefix = "-git-"

// Function variables for testing injection.
var (
	gitCommand = "git"
	gitArgs    = []string{"describe", "--abbrev=8", "--dirty", "--always", "--tags"}
)

// GitVersion describes the checkout containing dir, for example
// "-git-v1.2.0-3-g1a2b3c4d-dirty". It returns "" if git is not installed,
// dir is not inside a repository, or the command fails for any other reason.
func GitVersion(ctx context.Context, dir string) string {
	cmd := exec.CommandContext(ctx, gitCommand, gitArgs...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		Logger().DebugContext(ctx, "git version unavailable", "dir", dir, "error", err)
		return ""
	}
	desc := strings.TrimSpace(string(out))
	if desc == "" {
		return ""
	}
	return GitVersionPrefix + desc
}
