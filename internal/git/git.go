// Package git wraps the git command line for MGit's note repositories.
//
// MGit treats a notes folder as an ordinary git repository and shells out
// to the system git binary for every operation. Output parsing sticks to
// porcelain formats so it is stable across git versions.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Errors returned by repository operations.
var (
	// ErrNotRepository indicates the path is not inside a git work tree.
	ErrNotRepository = errors.New("not a git repository")

	// ErrNothingToCommit indicates a commit was requested with a clean tree.
	ErrNothingToCommit = errors.New("nothing to commit")
)

// Repository is a handle to a git work tree.
type Repository struct {
	root string
}

// Open resolves path to its repository root. Returns ErrNotRepository when
// path is not inside a work tree.
func Open(ctx context.Context, path string) (*Repository, error) {
	out, err := run(ctx, path, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, path)
	}
	return &Repository{root: strings.TrimSpace(out)}, nil
}

// Init creates a repository at path and returns a handle to it.
func Init(ctx context.Context, path string) (*Repository, error) {
	if _, err := run(ctx, path, "init"); err != nil {
		return nil, err
	}
	return &Repository{root: path}, nil
}

// Root returns the repository's top-level directory.
func (r *Repository) Root() string { return r.root }

// CurrentBranch returns the checked-out branch name, or the short HEAD
// hash when detached.
func (r *Repository) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	branch := strings.TrimSpace(out)
	if branch != "" {
		return branch, nil
	}
	out, err = r.git(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CommitAll stages everything and commits with the given message. Returns
// ErrNothingToCommit when the tree is clean.
func (r *Repository) CommitAll(ctx context.Context, message string) error {
	status, err := r.Status(ctx)
	if err != nil {
		return err
	}
	if !status.HasChanges() {
		return ErrNothingToCommit
	}
	if _, err := r.git(ctx, "add", "-A"); err != nil {
		return err
	}
	if _, err := r.git(ctx, "commit", "-m", message); err != nil {
		return err
	}
	return nil
}

// LogEntry is one commit in the history.
type LogEntry struct {
	Hash    string
	Author  string
	Date    string
	Subject string
}

// Log returns the most recent commits, newest first.
func (r *Repository) Log(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	out, err := r.git(ctx, "log",
		fmt.Sprintf("--max-count=%d", limit),
		"--pretty=format:%h%x1f%an%x1f%as%x1f%s")
	if err != nil {
		// A repository with no commits has no log.
		if strings.Contains(err.Error(), "does not have any commits") {
			return nil, nil
		}
		return nil, err
	}

	var entries []LogEntry
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(line, "\x1f")
		if len(parts) != 4 {
			continue
		}
		entries = append(entries, LogEntry{
			Hash:    parts[0],
			Author:  parts[1],
			Date:    parts[2],
			Subject: parts[3],
		})
	}
	return entries, nil
}

func (r *Repository) git(ctx context.Context, args ...string) (string, error) {
	return run(ctx, r.root, args...)
}

func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return stdout.String(), nil
}
