package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/log"

	"github.com/lehungry-robotum/commander/pkg/augment"
	"github.com/lehungry-robotum/commander/pkg/config"
	"github.com/lehungry-robotum/commander/pkg/dataset"
	"github.com/lehungry-robotum/commander/pkg/hub"
)

const commitMessage = "Upload augmented dataset"

// job is one augmentation run.
type job struct {
	logger    *log.Logger
	secrets   config.Secrets
	gen       augment.Generator
	options   augment.Options
	yes       bool
	namespace string
	outSuffix string
	outDir    string
	private   bool
}

func (j *job) hubClient() *hub.Client {
	token := j.secrets.UsableHFToken()
	if token == "" {
		token = hub.ResolveToken()
	}
	return hub.New(token, j.logger)
}

func (j *job) run(ctx context.Context, repoID string) error {
	if repoID == "" {
		var err error
		if repoID, err = selectDataset(j.namespace); err != nil {
			return err
		}
	}
	fmt.Printf("\nSelected Repository: %s\n", headerStyle.Render(repoID))

	client := j.hubClient()

	work, err := os.MkdirTemp("", "augment-src-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(work)

	var local *dataset.Local
	err = withSpinner(ctx, "Loading dataset...", func() error {
		var err error
		local, err = dataset.Materialize(ctx, client, repoID, work)
		return err
	})
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	j.logger.Debug("dataset downloaded", "files", len(local.DataFiles), "dir", work)

	mapping, err := local.TaskMapping()
	if err != nil || len(mapping) == 0 {
		printCritical("Could not load task mapping. Aborting.")
		if err == nil {
			err = errors.New("task mapping is empty")
		}
		return err
	}
	fmt.Printf("Loaded %d tasks.\n", len(mapping))

	cache, err := j.buildCache(ctx, augment.Mapping(mapping))
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(renderSummary(augment.Mapping(mapping), cache))

	if !j.confirm(fmt.Sprintf("Ready to augment %d data files. Proceed with dataset generation?", len(local.DataFiles))) {
		fmt.Println("Aborted.")
		return nil
	}

	outDir := j.outDir
	if outDir == "" {
		if outDir, err = os.MkdirTemp("", "augment-out-*"); err != nil {
			return err
		}
	}
	files, report, err := j.augmentFiles(local, cache, outDir)
	if err != nil {
		return err
	}

	fmt.Printf("Original size:  %d frames\n", report.InputRows)
	fmt.Printf("Augmented size: %d frames\n", report.OutputRows)
	if len(report.MissingTasks) > 0 {
		printWarning("Task indexes without description (placeholder used): %v", report.MissingTasks)
	}
	fmt.Println(dimStyle.Render("Augmented files written to " + outDir))

	target := repoID + j.outSuffix
	fmt.Printf("\nTarget Repo ID: %s\n", headerStyle.Render(target))
	if !j.confirm("Push to Hugging Face Hub?") {
		fmt.Println("Skipping upload. You can run again to push.")
		return nil
	}

	err = withSpinner(ctx, "Pushing to Hub...", func() error {
		if err := client.CreateRepo(ctx, target, j.private); err != nil {
			return err
		}
		return client.Upload(ctx, target, files, commitMessage)
	})
	if err != nil {
		printWarning("Make sure you are authenticated or have set HF_TOKEN in %s", opts.Secrets)
		return fmt.Errorf("push to hub: %w", err)
	}
	fmt.Println(successStyle.Render("Successfully pushed to Hub."))
	return nil
}

// buildCache reviews each task interactively, or generates all of them at
// once with --yes.
func (j *job) buildCache(ctx context.Context, mapping augment.Mapping) (augment.Cache, error) {
	if j.yes {
		var cache augment.Cache
		title := fmt.Sprintf("Pre-computing augmentations for %d unique tasks...", len(mapping))
		err := withSpinner(ctx, title, func() error {
			var err error
			cache, err = augment.Precompute(ctx, mapping, j.gen, j.options)
			return err
		})
		return cache, err
	}

	printHeader(fmt.Sprintf("Review Augmentations (%d unique tasks)", len(mapping)))
	return augment.ReviewAll(ctx, mapping, spinnerGenerator{gen: j.gen}, formReviewer{}, j.options)
}

// augmentFiles expands every data file into outDir and returns the files to
// publish: the augmented data plus the task metadata.
func (j *job) augmentFiles(local *dataset.Local, cache augment.Cache, outDir string) ([]hub.UploadFile, augment.Report, error) {
	var (
		total augment.Report
		files []hub.UploadFile
	)
	for _, path := range local.DataFiles {
		batch, err := local.ReadDataFile(path)
		if err != nil {
			return nil, total, err
		}
		out, report, err := augment.AugmentBatch(batch, cache, j.options)
		if err != nil {
			return nil, total, fmt.Errorf("%s: %w", path, err)
		}
		total.Merge(report)

		dest := filepath.Join(outDir, filepath.FromSlash(path))
		if err := dataset.WriteFile(dest, out); err != nil {
			return nil, total, err
		}
		files = append(files, hub.UploadFile{Path: path, LocalPath: dest})
		j.logger.Debug("augmented", "file", path, "in", report.InputRows, "out", report.OutputRows)
	}

	tasks := filepath.Join(outDir, filepath.FromSlash(dataset.TasksFile))
	if err := copyFile(local.Path(dataset.TasksFile), tasks); err != nil {
		return nil, total, err
	}
	files = append(files, hub.UploadFile{Path: dataset.TasksFile, LocalPath: tasks})
	return files, total, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

func (j *job) confirm(title string) bool {
	if j.yes {
		return true
	}
	ok, err := confirm(title)
	if err != nil {
		return false
	}
	return ok
}

// withSpinner runs action behind a spinner and returns its error.
func withSpinner(ctx context.Context, title string, action func() error) error {
	var actionErr error
	err := spinner.New().
		Title(title).
		Context(ctx).
		Action(func() { actionErr = action() }).
		Run()
	if err != nil {
		return err
	}
	return actionErr
}
