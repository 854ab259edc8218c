package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Tagger creates a tag on a dataset repository.
type Tagger interface {
	CreateTag(ctx context.Context, repoID, tag string) error
}

// VersionFunc returns the installed toolkit version, e.g. "0.4.2".
type VersionFunc func(ctx context.Context) (string, error)

// RecordResult is the outcome of a recording plus the tagging step.
type RecordResult struct {
	Outcome Outcome
	Tag     string // set when tagging was attempted
	TagErr  error  // non-fatal
}

// Tagged reports whether the dataset was tagged successfully.
func (r RecordResult) Tagged() bool {
	return r.Tag != "" && r.TagErr == nil
}

// Recorder runs a recording and tags new datasets with the toolkit version.
type Recorder struct {
	Runner  Runner
	Tagger  Tagger
	Version VersionFunc
}

// Record runs the recording command. When a new (not resumed) recording
// finishes successfully the dataset is tagged "v<toolkit version>". Tagging
// failures are reported in TagErr and never change the Outcome.
func (r *Recorder) Record(ctx context.Context, cmd Command, req RecordRequest) RecordResult {
	res := RecordResult{Outcome: r.Runner.Run(ctx, cmd)}
	if res.Outcome.Status != Succeeded || req.Resume {
		return res
	}
	if r.Tagger == nil || r.Version == nil {
		return res
	}

	version, err := r.Version(ctx)
	if err != nil {
		res.TagErr = fmt.Errorf("determine toolkit version: %w", err)
		return res
	}
	res.Tag = "v" + strings.TrimPrefix(version, "v")

	if err := r.Tagger.CreateTag(ctx, req.RepoID, res.Tag); err != nil {
		res.TagErr = err
	}
	return res
}

// ToolkitVersion asks the toolkit's Python interpreter for its version.
func ToolkitVersion(python string) VersionFunc {
	return func(ctx context.Context) (string, error) {
		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, python, "-c", "import lerobot; print(lerobot.__version__)")
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg != "" {
				return "", fmt.Errorf("%w: %s", err, lastLine(msg))
			}
			return "", err
		}
		v := strings.TrimSpace(stdout.String())
		if v == "" {
			return "", fmt.Errorf("empty version from %s", python)
		}
		return v, nil
	}
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
