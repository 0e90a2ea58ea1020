package export

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// GitDestination writes the artifact to a file in a git clone, commits and
// pushes.
type GitDestination struct {
	repo   string // path to the local clone
	file   string // file path within the repo
	branch string
}

// NewGitDestination creates a git destination. repo is the path to an
// existing local clone with an "origin" remote.
func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{repo: repo, file: file, branch: branch}
}

func (d *GitDestination) String() string {
	return fmt.Sprintf("%s:%s@%s", d.repo, d.file, d.branch)
}

// Write writes data to the configured file, commits and pushes. Unchanged
// content produces no commit.
func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	if err := d.git(ctx, "checkout", d.branch); err != nil {
		return fmt.Errorf("git checkout: %w", err)
	}

	// The remote might not have the branch yet.
	_ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)

	if err := writeFileAtomic(filepath.Join(d.repo, d.file), data); err != nil {
		return err
	}

	if err := d.git(ctx, "add", d.file); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	if err := d.git(ctx, "diff", "--cached", "--quiet"); err == nil {
		return nil
	}
	if err := d.git(ctx, "commit", "-m", "export: update "+d.file); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	if err := d.git(ctx, "push", "origin", d.branch); err != nil {
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}

func (d *GitDestination) git(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	cmd.Stdout = os.Stderr // visible alongside logs
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
