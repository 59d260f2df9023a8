package launch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"runtime/debug"
	"strings"
)

// Record lists the experiments launched from a commit
type Record struct {
	Branch string
	Commit string
	Names  []string
}

// NewRecord returns a Record of names launched from the git checkout in
// dir. Without a checkout, the commit the binary was built from is
// used.
func NewRecord(ctx context.Context, dir string, names []string) Record {
	r := Record{Branch: "unknown", Commit: "unknown", Names: names}

	if branch, err := git(ctx, dir, "rev-parse", "--abbrev-ref",
		"HEAD"); err == nil {
		r.Branch = branch
	}
	if commit, err := git(ctx, dir, "rev-parse", "HEAD"); err == nil {
		r.Commit = commit
		return r
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				r.Commit = setting.Value
			}
		}
	}
	return r
}

func git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir},
		args...)...)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(out)), nil
}

// WriteTo writes the Record, one entry per line
func (r Record) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "branch: %v\n", r.Branch)
	fmt.Fprintf(&b, "commit SHA: %v\n", r.Commit)
	for _, name := range r.Names {
		fmt.Fprintf(&b, "%q,\n", name)
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Save writes the Record to filename, replacing any earlier record. If
// readOnly, the file is made read-only so that it is not changed by
// accident after the jobs have run.
func (r Record) Save(filename string, readOnly bool) error {
	err := os.Remove(filename)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("save: %w", err)
	}

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC,
		0644)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("save: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("save: %w", err)
	}

	if readOnly {
		if err := os.Chmod(filename, 0444); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	return nil
}
