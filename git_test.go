package misc

import (
	"context"
	"os/exec"
	"strings"
	"testing"
)

func TestGitVersion(t *testing.T) {
	dir := t.TempDir()
	got := GitVersion(context.Background(), dir)
	// The temporary directory may still sit inside a checkout.
	if exec.Command("git", "-C", dir, "status").Run() == nil {
		if !strings.HasPrefix(got, GitVersionPrefix) {
			t.Fatalf("GitVersion = %q, want %q prefix", got, GitVersionPrefix)
		}
		return
	}
	if got != "" {
		t.Fatalf("GitVersion outside a repository = %q, want empty", got)
	}
}

func TestGitVersionRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"-c", "user.email=test@example.com", "-c", "user.name=test", "-c", "commit.gpgsign=false", "commit", "-q", "--allow-empty", "-m", "x"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}

	got := GitVersion(context.Background(), dir)
	if !strings.HasPrefix(got, GitVersionPrefix) {
		t.Fatalf("GitVersion = %q, want %q prefix", got, GitVersionPrefix)
	}
	if len(got) == len(GitVersionPrefix) {
		t.Fatalf("GitVersion = %q has no revision", got)
	}
}

func TestGitVersionNoBinary(t *testing.T) {
	old := gitCommand
	gitCommand = "no-such-git-binary"
	t.Cleanup(func() { gitCommand = old })

	if got := GitVersion(context.Background(), t.TempDir()); got != "" {
		t.Fatalf("GitVersion = %q, want empty", got)
	}
}

func TestGitVersionCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := GitVersion(ctx, "."); got != "" {
		t.Fatalf("GitVersion with canceled context = %q, want empty", got)
	}
}
